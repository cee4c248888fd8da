package takeover

import (
	"net/url"
	"strings"
)

// BuildViewerURL returns the launch URL that opens pdfURL in the viewer,
// with sourceURL as the page to return to. sourceURL may be empty.
func BuildViewerURL(viewerURL, pdfURL, sourceURL string) string {
	var b strings.Builder
	b.WriteString(viewerURL)
	if strings.Contains(viewerURL, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	b.WriteString("url=")
	b.WriteString(url.QueryEscape(pdfURL))
	if sourceURL != "" {
		b.WriteString("&from=")
		b.WriteString(url.QueryEscape(sourceURL))
	}
	return b.String()
}

// ParseViewerURL extracts the document and return URLs from a launch URL.
// The fragment form used by declarative redirects is understood too.
func ParseViewerURL(launchURL string) (pdfURL, sourceURL string, ok bool) {
	u, err := url.Parse(launchURL)
	if err != nil {
		return "", "", false
	}
	q := u.Query()
	if pdf := q.Get("url"); pdf != "" {
		return pdf, q.Get("from"), true
	}
	if frag := u.Fragment; frag != "" {
		return frag, "", true
	}
	return "", "", false
}
