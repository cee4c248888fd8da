// Package htmlscan finds PDF candidates in a page without a browser, by
// fetching the HTML and walking the parsed tree.
package htmlscan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/entrhq/darkpdf/pkg/logging"
	"github.com/entrhq/darkpdf/pkg/manual"
	"github.com/entrhq/darkpdf/pkg/takeover"
)

// DefaultTimeout bounds one page fetch.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a page is parsed.
const maxBodyBytes = 8 << 20

// Scanner fetches and scans pages.
type Scanner struct {
	client  *http.Client
	timeout time.Duration
	logger  *logging.Logger
}

// New creates a Scanner. A nil client uses http.DefaultClient.
func New(client *http.Client, timeout time.Duration, logger *logging.Logger) *Scanner {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scanner{client: client, timeout: timeout, logger: logger}
}

// ScanURL fetches pageURL and collects its links and embedded documents.
func (s *Scanner) ScanURL(ctx context.Context, pageURL string) (manual.ScanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return manual.ScanResult{}, fmt.Errorf("%w: %v", manual.ErrScanUnavailable, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return manual.ScanResult{}, fmt.Errorf("%w: %v", manual.ErrScanUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return manual.ScanResult{}, fmt.Errorf("%w: %s returned %d", manual.ErrScanUnavailable, pageURL, resp.StatusCode)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	res, err := Parse(io.LimitReader(resp.Body, maxBodyBytes), finalURL)
	if err != nil {
		return manual.ScanResult{}, err
	}
	s.logger.Debugf("scanned %s: %d elements", finalURL, len(res.Elements))
	return res, nil
}

// Parse walks an HTML document served from pageURL. Anchors come first, then
// embeds, each capped like the in-browser scan. A <base href> replaces
// pageURL as the resolution base.
func Parse(r io.Reader, pageURL string) (manual.ScanResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return manual.ScanResult{}, fmt.Errorf("%w: failed to parse HTML: %v", manual.ErrScanUnavailable, err)
	}

	res := manual.ScanResult{URL: pageURL}
	var anchors, embeds []manual.Element
	baseSet := false

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if res.Title == "" {
					res.Title = collapse(textOf(n))
				}
			case atom.Base:
				if href, ok := attr(n, "href"); ok && !baseSet {
					if base := resolveBase(pageURL, href); base != "" {
						res.URL = base
						baseSet = true
					}
				}
			case atom.A:
				if href, ok := attr(n, "href"); ok && len(anchors) < manual.MaxAnchors {
					anchors = append(anchors, manual.Element{
						Kind:  manual.KindAnchor,
						Ref:   href,
						Text:  collapse(textOf(n)),
						Title: collapse(attrValue(n, "title")),
						Type:  attrValue(n, "type"),
					})
				}
			case atom.Iframe, atom.Embed, atom.Object:
				key := "src"
				if n.DataAtom == atom.Object {
					key = "data"
				}
				if ref, ok := attr(n, key); ok && len(embeds) < manual.MaxEmbeds {
					embeds = append(embeds, manual.Element{
						Kind:  manual.ElementKind(n.Data),
						Ref:   ref,
						Title: collapse(attrValue(n, "title")),
						Name:  collapse(attrValue(n, "name")),
						Type:  attrValue(n, "type"),
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	res.Elements = append(anchors, embeds...)
	return res, nil
}

// TabScanner scans whatever URL a tab currently shows.
type TabScanner struct {
	Scanner *Scanner
	Tabs    takeover.Tabs
}

// ScanTab implements manual.PageScanner.
func (t TabScanner) ScanTab(ctx context.Context, tabID int) (manual.ScanResult, error) {
	tab, err := t.Tabs.Get(ctx, tabID)
	if err != nil {
		return manual.ScanResult{}, fmt.Errorf("%w: %v", manual.ErrScanUnavailable, err)
	}
	return t.Scanner.ScanURL(ctx, tab.URL)
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func attrValue(n *html.Node, key string) string {
	v, _ := attr(n, key)
	return v
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolveBase(pageURL, href string) string {
	page, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return page.ResolveReference(ref).String()
}
