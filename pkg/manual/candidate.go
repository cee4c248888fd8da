package manual

import (
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/entrhq/darkpdf/pkg/detect"
)

// Collection bounds applied to a page scan.
const (
	MaxAnchors               = 1200
	MaxEmbeds                = 100
	MaxCollectedCandidates   = 40
	MaxVerifiedCandidates    = 16
	maxLabelRunes            = 120
	currentPageScore         = 120
	currentPageFallbackLabel = "Current page"
)

// ElementKind names the markup an Element was collected from.
type ElementKind string

const (
	KindAnchor ElementKind = "a"
	KindIFrame ElementKind = "iframe"
	KindEmbed  ElementKind = "embed"
	KindObject ElementKind = "object"
)

// Element is one raw link or embedded document found on a page. Ref is the
// href, src or data attribute exactly as written.
type Element struct {
	Kind  ElementKind `json:"kind"`
	Ref   string      `json:"ref"`
	Text  string      `json:"text,omitempty"`
	Type  string      `json:"type,omitempty"`
	Title string      `json:"title,omitempty"`
	Name  string      `json:"name,omitempty"`
}

// ScanResult is what a PageScanner reports for a page.
type ScanResult struct {
	URL      string    `json:"url"`
	Title    string    `json:"title,omitempty"`
	Elements []Element `json:"elements"`
}

// Source tells where a candidate came from.
type Source string

const (
	SourceCurrent Source = "current"
	SourceLink    Source = "link"
	SourceEmbed   Source = "embed"
)

// Candidate is a URL that might be a PDF, with a ranking score.
type Candidate struct {
	URL    string `json:"url"`
	Source Source `json:"source"`
	Label  string `json:"label"`
	Score  int    `json:"score"`
}

// collector merges candidates by normalized URL, keeping the best score.
type collector struct {
	byURL map[string]int
	list  []Candidate
}

func (c *collector) add(cand Candidate) {
	if c.byURL == nil {
		c.byURL = make(map[string]int)
	}
	if i, ok := c.byURL[cand.URL]; ok {
		if cand.Score > c.list[i].Score {
			c.list[i] = cand
		}
		return
	}
	c.byURL[cand.URL] = len(c.list)
	c.list = append(c.list, cand)
}

func (c *collector) full() bool {
	return len(c.list) >= MaxCollectedCandidates
}

// Collect scores the scanned elements of the page at tabURL and returns the
// candidates worth verifying, best first.
func Collect(tabURL string, res ScanResult) []Candidate {
	var c collector

	base := res.URL
	if base == "" {
		base = tabURL
	}
	baseURL, _ := url.Parse(base)

	if current, ok := detect.NormalizeHTTPURL(tabURL); ok {
		c.add(Candidate{
			URL:    current,
			Source: SourceCurrent,
			Label:  normalizeLabel(res.Title, currentPageFallbackLabel),
			Score:  currentPageScore,
		})
	}

	// Links, then embeds. Each pass stops after the add that fills the
	// collection.
	anchors := 0
	for _, el := range res.Elements {
		if el.Kind != KindAnchor {
			continue
		}
		if anchors >= MaxAnchors {
			break
		}
		anchors++
		if cand, ok := scoreAnchor(baseURL, el); ok {
			c.add(cand)
			if c.full() {
				break
			}
		}
	}

	embeds := 0
	for _, el := range res.Elements {
		if el.Kind != KindIFrame && el.Kind != KindEmbed && el.Kind != KindObject {
			continue
		}
		if embeds >= MaxEmbeds {
			break
		}
		embeds++
		if cand, ok := scoreEmbed(baseURL, el); ok {
			c.add(cand)
			if c.full() {
				break
			}
		}
	}

	out := c.list
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > MaxVerifiedCandidates {
		out = out[:MaxVerifiedCandidates]
	}
	return out
}

func scoreAnchor(base *url.URL, el Element) (Candidate, bool) {
	href := strings.TrimSpace(el.Ref)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return Candidate{}, false
	}
	text := collapseSpace(el.Text)
	if text == "" {
		text = collapseSpace(el.Title)
	}
	hint := strings.ToLower(href + " " + text + " " + el.Type)
	if !strings.Contains(hint, ".pdf") &&
		!strings.Contains(hint, "/pdf/") &&
		!strings.Contains(hint, "application/pdf") &&
		!strings.Contains(hint, " pdf") {
		return Candidate{}, false
	}
	abs, ok := resolveRef(base, href)
	if !ok {
		return Candidate{}, false
	}
	score := 50
	if strings.Contains(hint, ".pdf") {
		score = 80
	}
	return Candidate{
		URL:    abs,
		Source: SourceLink,
		Label:  normalizeLabel(text, abs),
		Score:  score,
	}, true
}

func scoreEmbed(base *url.URL, el Element) (Candidate, bool) {
	src := strings.TrimSpace(el.Ref)
	if src == "" {
		return Candidate{}, false
	}
	abs, ok := resolveRef(base, src)
	if !ok {
		return Candidate{}, false
	}
	hint := strings.ToLower(src + " " + el.Type)
	score := 65
	if strings.Contains(hint, ".pdf") || strings.Contains(hint, "/pdf/") || strings.Contains(hint, "application/pdf") {
		score = 95
	}
	name := el.Title
	if strings.TrimSpace(name) == "" {
		name = el.Name
	}
	return Candidate{
		URL:    abs,
		Source: SourceEmbed,
		Label:  normalizeLabel(name, abs),
		Score:  score,
	}, true
}

func resolveRef(base *url.URL, ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	return detect.NormalizeHTTPURL(u.String())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeLabel(label, fallback string) string {
	l := collapseSpace(label)
	if l == "" {
		return fallback
	}
	if utf8.RuneCountInString(l) > maxLabelRunes {
		r := []rune(l)
		l = string(r[:maxLabelRunes])
	}
	return l
}
