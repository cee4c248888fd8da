// Package manual implements the user-triggered "open in viewer" actions:
// resolving the current tab, scanning its page for PDF candidates and
// letting the user pick one when several survive verification.
package manual

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/entrhq/darkpdf/pkg/detect"
	"github.com/entrhq/darkpdf/pkg/logging"
	"github.com/entrhq/darkpdf/pkg/takeover"
)

// ErrScanUnavailable is returned by a PageScanner that cannot inspect a tab.
var ErrScanUnavailable = errors.New("page scan unavailable")

// PageScanner collects the raw links and embeds of the page shown in a tab.
type PageScanner interface {
	ScanTab(ctx context.Context, tabID int) (ScanResult, error)
}

// Chooser asks the user to pick one of several candidates. ok is false when
// the user dismissed the choice.
type Chooser interface {
	Choose(ctx context.Context, tabID int, candidates []Candidate) (url string, ok bool, err error)
}

// Detector verifies and resolves candidate URLs.
type Detector interface {
	IsPdfURL(ctx context.Context, rawURL string) bool
	ResolveForOpen(ctx context.Context, rawURL string) (string, bool)
}

// Viewer opens URLs in the viewer and reports failures to the user.
// *takeover.Controller implements it.
type Viewer interface {
	Open(ctx context.Context, req takeover.OpenRequest) bool
	OpenBlank(ctx context.Context) error
	ShowPageHint(ctx context.Context, tabID int, message string)
	ShowBadgeHint(ctx context.Context, tabID int, message string)
}

// Action summarizes what Invoke did.
type Action string

const (
	ActionOpenedBlank   Action = "opened-blank"
	ActionOpenedHint    Action = "opened-hint"
	ActionOpenedCurrent Action = "opened-current"
	ActionOpenedLink    Action = "opened-link"
	ActionOpenedOnly    Action = "opened-only-candidate"
	ActionOpenedChoice  Action = "opened-choice"
	ActionCancelled     Action = "cancelled"
	ActionNotFound      Action = "not-found"
	ActionScanFailed    Action = "scan-failed"
	ActionOpenFailed    Action = "open-failed"
)

// Outcome is the result of a manual invocation.
type Outcome struct {
	Action     Action      `json:"action"`
	URL        string      `json:"url,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// Hint messages.
const (
	msgScanFailed      = "Could not inspect this page for PDFs"
	msgNotFound        = "No accessible PDF found on this page"
	msgLinkNotPdf      = "This link is not an accessible PDF"
	msgCurrentNotFound = "No accessible PDF found for the current page"
)

// Deps are the collaborators of a Flow. Chooser may be nil, in which case
// the highest-scored candidate is opened.
type Deps struct {
	Viewer   Viewer
	Detector Detector
	Scanner  PageScanner
	Chooser  Chooser
	Logger   *logging.Logger
}

// Flow runs manual invocations.
type Flow struct {
	viewer   Viewer
	detector Detector
	scanner  PageScanner
	chooser  Chooser
	logger   *logging.Logger
}

// NewFlow creates a Flow.
func NewFlow(deps Deps) *Flow {
	return &Flow{
		viewer:   deps.Viewer,
		detector: deps.Detector,
		scanner:  deps.Scanner,
		chooser:  deps.Chooser,
		logger:   deps.Logger,
	}
}

// Invoke handles the toolbar action on tab. A tab with ID takeover.NoTab
// opens a blank viewer.
func (f *Flow) Invoke(ctx context.Context, tab takeover.Tab) Outcome {
	if tab.ID < 0 {
		return f.openBlank(ctx)
	}

	if hinted, ok := detect.ResolveHint(tab.URL); ok {
		return f.open(ctx, tab, hinted, ActionOpenedHint)
	}

	if !detect.IsSupportedWebPage(tab.URL) {
		return f.openBlank(ctx)
	}

	if f.detector.IsPdfURL(ctx, tab.URL) {
		return f.open(ctx, tab, tab.URL, ActionOpenedCurrent)
	}

	if f.scanner == nil {
		f.viewer.ShowPageHint(ctx, tab.ID, msgScanFailed)
		return Outcome{Action: ActionScanFailed}
	}
	res, err := f.scanner.ScanTab(ctx, tab.ID)
	if err != nil {
		f.logger.Warnf("tab %d: page scan failed: %v", tab.ID, err)
		f.viewer.ShowPageHint(ctx, tab.ID, msgScanFailed)
		return Outcome{Action: ActionScanFailed}
	}

	verified := f.verify(ctx, Collect(tab.URL, res))
	f.logger.Debugf("tab %d: %d verified candidates", tab.ID, len(verified))

	switch len(verified) {
	case 0:
		f.viewer.ShowPageHint(ctx, tab.ID, msgNotFound)
		return Outcome{Action: ActionNotFound}
	case 1:
		out := f.open(ctx, tab, verified[0].URL, ActionOpenedOnly)
		out.Candidates = verified
		return out
	}

	chosen := verified[0].URL
	if f.chooser != nil {
		url, picked, err := f.chooser.Choose(ctx, tab.ID, verified)
		switch {
		case err != nil:
			f.logger.Warnf("tab %d: candidate picker failed, opening best match: %v", tab.ID, err)
		case !picked:
			return Outcome{Action: ActionCancelled, Candidates: verified}
		default:
			chosen = url
		}
	}
	out := f.open(ctx, tab, chosen, ActionOpenedChoice)
	out.Candidates = verified
	return out
}

// OpenLink handles the link context-menu action: linkURL is resolved and
// opened in a new viewer tab.
func (f *Flow) OpenLink(ctx context.Context, tab takeover.Tab, linkURL string) Outcome {
	target, ok := f.detector.ResolveForOpen(ctx, linkURL)
	if !ok {
		if tab.ID >= 0 {
			f.viewer.ShowBadgeHint(ctx, tab.ID, msgLinkNotPdf)
		}
		return Outcome{Action: ActionNotFound}
	}
	source := firstNonEmpty(tab.URL, linkURL)
	return f.openNewTab(ctx, tab.ID, target, source, ActionOpenedLink)
}

// OpenCurrent handles the page context-menu action. pageURL overrides the
// tab's URL when the host reports a different frame document.
func (f *Flow) OpenCurrent(ctx context.Context, tab takeover.Tab, pageURL string) Outcome {
	candidate := firstNonEmpty(pageURL, tab.URL)
	target, ok := f.detector.ResolveForOpen(ctx, candidate)
	if !ok {
		if tab.ID >= 0 {
			f.viewer.ShowBadgeHint(ctx, tab.ID, msgCurrentNotFound)
		}
		return Outcome{Action: ActionNotFound}
	}
	return f.openNewTab(ctx, tab.ID, target, candidate, ActionOpenedCurrent)
}

func (f *Flow) verify(ctx context.Context, candidates []Candidate) []Candidate {
	ok := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			ok[i] = f.detector.IsPdfURL(gctx, c.URL)
			return nil
		})
	}
	_ = g.Wait()

	var out []Candidate
	for i, c := range candidates {
		if ok[i] {
			out = append(out, c)
		}
	}
	return out
}

func (f *Flow) open(ctx context.Context, tab takeover.Tab, pdfURL string, action Action) Outcome {
	opened := f.viewer.Open(ctx, takeover.OpenRequest{
		TabID:     tab.ID,
		PdfURL:    pdfURL,
		SourceURL: tab.URL,
		Reason:    takeover.ReasonManual,
		Mode:      takeover.OpenInPlace,
	})
	if !opened {
		return Outcome{Action: ActionOpenFailed, URL: pdfURL}
	}
	return Outcome{Action: action, URL: pdfURL}
}

func (f *Flow) openNewTab(ctx context.Context, tabID int, pdfURL, sourceURL string, action Action) Outcome {
	opened := f.viewer.Open(ctx, takeover.OpenRequest{
		TabID:     tabID,
		PdfURL:    pdfURL,
		SourceURL: sourceURL,
		Reason:    takeover.ReasonManual,
		Mode:      takeover.OpenNewTab,
	})
	if !opened {
		return Outcome{Action: ActionOpenFailed, URL: pdfURL}
	}
	return Outcome{Action: action, URL: pdfURL}
}

func (f *Flow) openBlank(ctx context.Context) Outcome {
	if err := f.viewer.OpenBlank(ctx); err != nil {
		f.logger.Warnf("%v", err)
		return Outcome{Action: ActionOpenFailed}
	}
	return Outcome{Action: ActionOpenedBlank}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
