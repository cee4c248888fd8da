// Package detect decides whether a URL points at a PDF document, using cheap
// URL-shape heuristics first and a content-type probe second.
package detect

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	supportedPagePattern = regexp.MustCompile(`(?i)^https?://`)
	pdfSuffixPattern     = regexp.MustCompile(`\.pdf(?:$|[?#])`)
	pdfSegmentPattern    = regexp.MustCompile(`/pdf(?:/|$)`)
)

// Header is one response header as delivered by the host.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// IsSupportedWebPage reports whether rawURL is an http or https URL.
func IsSupportedWebPage(rawURL string) bool {
	return supportedPagePattern.MatchString(rawURL)
}

// NormalizeHTTPURL parses rawURL and returns its canonical absolute form.
// Only http and https URLs with a host are accepted.
func NormalizeHTTPURL(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" && u.RawPath == "" {
		u.Path = "/"
	}
	return u.String(), true
}

// LooksLikePdfURL is the network-free heuristic: the path, query and
// fragment end in ".pdf" (optionally followed by a query or fragment), or the
// path has a "/pdf" segment. It over-matches abstract pages on sites that use
// /pdf/ paths; the probe corrects those.
func LooksLikePdfURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}

	tail := u.EscapedPath()
	if u.RawQuery != "" {
		tail += "?" + u.RawQuery
	}
	if frag := u.EscapedFragment(); frag != "" {
		tail += "#" + frag
	}
	if pdfSuffixPattern.MatchString(strings.ToLower(tail)) {
		return true
	}
	return pdfSegmentPattern.MatchString(strings.ToLower(u.EscapedPath()))
}

// HasPdfByHeaders reports whether a content-type header announces a PDF.
func HasPdfByHeaders(headers []Header) bool {
	for _, h := range headers {
		if strings.EqualFold(h.Name, "content-type") && isPdfContentType(h.Value) {
			return true
		}
	}
	return false
}

func isPdfContentType(value string) bool {
	return strings.Contains(strings.ToLower(value), "application/pdf")
}
