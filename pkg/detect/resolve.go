package detect

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

const maxDecodeRounds = 3

var embeddedHTTPPattern = regexp.MustCompile(`(?i)https?://[^\s"'<>]+`)

// ResolveHint finds the PDF a URL points at without touching the network.
// A PDF-shaped http(s) URL resolves to itself. Otherwise the query
// parameters named file, src or url (or whose value mentions .pdf) and the
// fragment are searched, in that order, for a wrapped PDF-shaped URL, as
// viewer pages carry their document.
func ResolveHint(rawURL string) (string, bool) {
	if normalized, ok := NormalizeHTTPURL(rawURL); ok && LooksLikePdfURL(normalized) {
		return normalized, true
	}
	return extractEmbeddedPdfURL(rawURL)
}

func extractEmbeddedPdfURL(rawURL string) (string, bool) {
	if strings.TrimSpace(rawURL) == "" {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}

	var candidates []string
	for _, kv := range orderedQuery(u.RawQuery) {
		key := strings.ToLower(kv[0])
		if key == "file" || key == "src" || key == "url" || strings.Contains(strings.ToLower(kv[1]), ".pdf") {
			candidates = append(candidates, kv[1])
		}
	}
	if frag := strings.TrimSpace(u.EscapedFragment()); frag != "" {
		candidates = append(candidates, frag)
	}

	for _, candidate := range candidates {
		if resolved, ok := decodeWrappedHTTPURL(candidate); ok && LooksLikePdfURL(resolved) {
			return resolved, true
		}
	}
	return "", false
}

// orderedQuery splits a raw query into decoded key/value pairs, keeping
// their order. Undecodable pairs are kept raw.
func orderedQuery(rawQuery string) [][2]string {
	var pairs [][2]string
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		pairs = append(pairs, [2]string{key, value})
	}
	return pairs
}

// decodeWrappedHTTPURL peels up to three layers of percent-encoding off value
// looking for an http(s) URL, then falls back to the first http(s) substring.
func decodeWrappedHTTPURL(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}

	for i := 0; i < maxDecodeRounds; i++ {
		if normalized, ok := NormalizeHTTPURL(value); ok {
			return normalized, true
		}
		decoded, err := url.PathUnescape(value)
		if err != nil || decoded == value {
			break
		}
		value = strings.TrimSpace(decoded)
	}

	match := embeddedHTTPPattern.FindString(value)
	if match == "" {
		return "", false
	}
	return NormalizeHTTPURL(match)
}

// ResolveForOpen resolves rawURL for an explicit open: the hint first, then
// the URL itself if the detector confirms it.
func (d *Detector) ResolveForOpen(ctx context.Context, rawURL string) (string, bool) {
	if hinted, ok := ResolveHint(rawURL); ok {
		return hinted, true
	}
	normalized, ok := NormalizeHTTPURL(rawURL)
	if !ok {
		return "", false
	}
	if d.IsPdfURL(ctx, normalized) {
		return normalized, true
	}
	return "", false
}
