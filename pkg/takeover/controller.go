package takeover

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/darkpdf/pkg/detect"
	"github.com/entrhq/darkpdf/pkg/logging"
	"github.com/entrhq/darkpdf/pkg/rules"
)

// NavigationStatus is the phase reported by a navigation event.
type NavigationStatus string

const (
	StatusLoading   NavigationStatus = "loading"
	StatusCommitted NavigationStatus = "committed"
	StatusComplete  NavigationStatus = "complete"
)

// NavigationEvent reports that a tab's top-level URL changed or finished
// loading.
type NavigationEvent struct {
	TabID  int
	URL    string
	Status NavigationStatus
}

// HeadersEvent reports response headers of a top-level document request.
type HeadersEvent struct {
	TabID      int
	URL        string
	StatusCode int
	Headers    []detect.Header
	MainFrame  bool
}

// OpenMode selects where the viewer is opened.
type OpenMode int

const (
	OpenNewTab OpenMode = iota
	OpenInPlace
)

// OpenReason distinguishes automatic from user-triggered opens.
type OpenReason int

const (
	ReasonAuto OpenReason = iota
	ReasonManual
)

// OpenRequest asks the controller to show a PDF in the viewer.
type OpenRequest struct {
	TabID     int
	PdfURL    string
	SourceURL string
	Reason    OpenReason
	Mode      OpenMode

	// PreserveSource restores the original tab after an automatic open in
	// a new tab.
	PreserveSource bool
}

// Config holds the controller's tunables.
type Config struct {
	ViewerURL    string
	MaxAttempts  int
	RecentTTL    time.Duration
	HintDuration time.Duration

	ConfirmPolls    int
	ConfirmInterval time.Duration
	RestorePolls    int
	RestoreInterval time.Duration
}

// DefaultConfig returns the stock tunables for viewerURL.
func DefaultConfig(viewerURL string) Config {
	return Config{
		ViewerURL:       viewerURL,
		MaxAttempts:     3,
		RecentTTL:       8 * time.Second,
		HintDuration:    5 * time.Second,
		ConfirmPolls:    7,
		ConfirmInterval: 120 * time.Millisecond,
		RestorePolls:    12,
		RestoreInterval: 140 * time.Millisecond,
	}
}

// Deps are the ports the controller drives.
type Deps struct {
	Tabs     Tabs
	Badger   Badger
	Injector Injector
	Settings SettingsSource
	Detector PdfChecker
	Clock    Clock
	Logger   *logging.Logger
}

// Hint messages.
const (
	msgInvalidLink      = "Invalid link, cannot open it in the viewer"
	msgTakeoverFailed   = "Automatic takeover failed, the current page was kept"
	msgRequestFailedFmt = "PDF request failed (%d), automatic takeover skipped"
)

// Controller reacts to tab events and opens PDFs in the viewer.
type Controller struct {
	cfg      Config
	tabs     Tabs
	badger   Badger
	injector Injector
	settings SettingsSource
	detector PdfChecker
	clock    Clock
	logger   *logging.Logger
	state    *TabState

	// ctx bounds background restoration work; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a controller. Zero-valued tunables take their
// defaults.
func NewController(cfg Config, deps Deps) *Controller {
	def := DefaultConfig(cfg.ViewerURL)
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RecentTTL <= 0 {
		cfg.RecentTTL = def.RecentTTL
	}
	if cfg.HintDuration <= 0 {
		cfg.HintDuration = def.HintDuration
	}
	if cfg.ConfirmPolls <= 0 {
		cfg.ConfirmPolls = def.ConfirmPolls
	}
	if cfg.ConfirmInterval <= 0 {
		cfg.ConfirmInterval = def.ConfirmInterval
	}
	if cfg.RestorePolls <= 0 {
		cfg.RestorePolls = def.RestorePolls
	}
	if cfg.RestoreInterval <= 0 {
		cfg.RestoreInterval = def.RestoreInterval
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:      cfg,
		tabs:     deps.Tabs,
		badger:   deps.Badger,
		injector: deps.Injector,
		settings: deps.Settings,
		detector: deps.Detector,
		clock:    deps.Clock,
		logger:   deps.Logger,
		state:    NewTabState(cfg.RecentTTL),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ViewerURL returns the configured viewer page.
func (c *Controller) ViewerURL() string {
	return c.cfg.ViewerURL
}

// HandleNavigation processes a top-level URL change or load completion.
func (c *Controller) HandleNavigation(ctx context.Context, ev NavigationEvent) {
	if ev.TabID < 0 || !detect.IsSupportedWebPage(ev.URL) || c.isViewer(ev.URL) {
		return
	}

	if !detect.LooksLikePdfURL(ev.URL) {
		c.state.RememberSource(ev.TabID, ev.URL)
		if ev.Status == StatusComplete {
			if p, ok := c.state.Pending(ev.TabID); ok {
				c.attempt(ctx, ev.TabID, p.URL)
			}
		}
		return
	}

	c.detect(ctx, ev.TabID, ev.URL)
}

func (c *Controller) detect(ctx context.Context, tabID int, url string) {
	if !c.state.BeginDetection(tabID, url, c.clock.Now()) {
		return
	}
	defer c.state.EndDetection(tabID, url)

	if !c.allowed(ctx, url) {
		return
	}
	if !c.detector.IsPdfURL(ctx, url) {
		return
	}
	// The header path may have opened it while we probed.
	if c.state.WasRecentlyRedirected(tabID, url, c.clock.Now()) {
		return
	}

	source := c.state.SourceFor(tabID, url)
	if source == "" {
		source = url
	}
	c.logger.Infof("tab %d: detected PDF %s", tabID, url)
	c.enqueue(ctx, tabID, url, source)
}

// HandleHeaders is the fast path for main-frame responses whose headers are
// already known; no probe is needed.
func (c *Controller) HandleHeaders(ctx context.Context, ev HeadersEvent) {
	if ev.TabID < 0 || !ev.MainFrame || !detect.IsSupportedWebPage(ev.URL) || c.isViewer(ev.URL) {
		return
	}
	if !detect.LooksLikePdfURL(ev.URL) && !detect.HasPdfByHeaders(ev.Headers) {
		return
	}
	if c.state.WasRecentlyRedirected(ev.TabID, ev.URL, c.clock.Now()) {
		return
	}
	if !c.allowed(ctx, ev.URL) {
		return
	}

	if ev.StatusCode >= 400 {
		c.logger.Infof("tab %d: skipping %s, status %d", ev.TabID, ev.URL, ev.StatusCode)
		c.ShowBadgeHint(ctx, ev.TabID, fmt.Sprintf(msgRequestFailedFmt, ev.StatusCode))
		return
	}

	source := c.state.SourceFor(ev.TabID, ev.URL)
	if source == "" {
		source = ev.URL
	}
	opened := c.Open(ctx, OpenRequest{
		TabID:          ev.TabID,
		PdfURL:         ev.URL,
		SourceURL:      source,
		Reason:         ReasonAuto,
		Mode:           OpenNewTab,
		PreserveSource: true,
	})
	if !opened {
		c.enqueue(ctx, ev.TabID, ev.URL, source)
		return
	}
	c.state.MarkOpened(ev.TabID, ev.URL)
}

// HandleTabClosed drops all state of the tab and cancels its timers.
func (c *Controller) HandleTabClosed(tabID int) {
	if t := c.state.Remove(tabID); t != nil {
		t.Stop()
	}
}

// isViewer reports whether url is the viewer page itself, which carries the
// PDF address in its query and must never be taken over.
func (c *Controller) isViewer(url string) bool {
	base := c.cfg.ViewerURL
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	return base != "" && strings.HasPrefix(url, base)
}

// Snapshot returns the tab's current bookkeeping.
func (c *Controller) Snapshot(tabID int) (TabSnapshot, bool) {
	return c.state.Snapshot(tabID)
}

func (c *Controller) allowed(ctx context.Context, url string) bool {
	s, err := c.settings.Get(ctx)
	if err != nil {
		c.logger.Warnf("failed to read settings: %v", err)
		return false
	}
	return rules.IsAllowedURL(url, s)
}

// enqueue queues a redirect and attempts it unless the same redirect was
// already queued.
func (c *Controller) enqueue(ctx context.Context, tabID int, url, sourceURL string) {
	source, _ := detect.NormalizeHTTPURL(sourceURL)
	if c.state.Enqueue(tabID, url, source) {
		c.attempt(ctx, tabID, url)
	}
}

func (c *Controller) attempt(ctx context.Context, tabID int, url string) {
	p, ok := c.state.BeginAttempt(tabID, url)
	if !ok {
		return
	}

	source := p.SourceURL
	if source == "" {
		source = url
	}
	opened := c.Open(ctx, OpenRequest{
		TabID:          tabID,
		PdfURL:         url,
		SourceURL:      source,
		Reason:         ReasonAuto,
		Mode:           OpenNewTab,
		PreserveSource: true,
	})

	switch c.state.FinishAttempt(tabID, url, opened, c.cfg.MaxAttempts) {
	case AttemptSucceeded:
		c.logger.Infof("tab %d: opened %s in viewer", tabID, url)
	case AttemptRetry:
		c.logger.Debugf("tab %d: open of %s failed, will retry", tabID, url)
	case AttemptAbandoned:
		c.logger.Warnf("tab %d: giving up on %s after %d attempts", tabID, url, c.cfg.MaxAttempts)
		c.ShowBadgeHint(ctx, tabID, msgTakeoverFailed)
	}
}

// Open shows req.PdfURL in the viewer and reports whether it succeeded.
func (c *Controller) Open(ctx context.Context, req OpenRequest) bool {
	pdfURL, ok := detect.NormalizeHTTPURL(req.PdfURL)
	if !ok {
		if req.TabID >= 0 {
			c.ShowBadgeHint(ctx, req.TabID, msgInvalidLink)
		}
		return false
	}
	source, ok := detect.NormalizeHTTPURL(req.SourceURL)
	if !ok {
		source = pdfURL
	}
	launch := BuildViewerURL(c.cfg.ViewerURL, pdfURL, source)
	auto := req.Reason == ReasonAuto && req.TabID >= 0

	if auto {
		c.state.MarkRecent(req.TabID, pdfURL, c.clock.Now())
	}

	if req.Mode == OpenNewTab || req.TabID < 0 {
		if _, err := c.tabs.Create(ctx, launch); err != nil {
			c.logger.Warnf("failed to open viewer tab for %s: %v", pdfURL, err)
			return false
		}
		if auto && req.PreserveSource && c.ctx.Err() == nil {
			c.wg.Add(1)
			go c.restoreSourceTab(req.TabID, pdfURL)
		}
		return true
	}

	if _, err := c.tabs.Update(ctx, req.TabID, launch); err != nil {
		c.logger.Warnf("failed to navigate tab %d to viewer: %v", req.TabID, err)
		return false
	}
	if auto && !c.confirmViewer(ctx, req.TabID) {
		return false
	}
	return true
}

// OpenBlank opens an empty viewer in a new tab.
func (c *Controller) OpenBlank(ctx context.Context) error {
	if _, err := c.tabs.Create(ctx, c.cfg.ViewerURL); err != nil {
		return fmt.Errorf("failed to open viewer: %w", err)
	}
	return nil
}

// confirmViewer polls the tab until it shows the viewer.
func (c *Controller) confirmViewer(ctx context.Context, tabID int) bool {
	for i := 0; i < c.cfg.ConfirmPolls; i++ {
		if err := c.clock.Sleep(ctx, c.cfg.ConfirmInterval); err != nil {
			return false
		}
		tab, err := c.tabs.Get(ctx, tabID)
		if err != nil {
			return false
		}
		if c.isViewer(tab.URL) {
			return true
		}
	}
	return false
}

// restoreSourceTab takes the original tab back off the raw PDF once the
// viewer has opened elsewhere: history back, else the remembered source
// page, else close it if another tab spawned it. Every step is best-effort.
func (c *Controller) restoreSourceTab(tabID int, pdfURL string) {
	defer c.wg.Done()
	ctx := c.ctx

	var current Tab
	showingPdf := false
	for i := 0; i < c.cfg.RestorePolls; i++ {
		tab, err := c.tabs.Get(ctx, tabID)
		if err != nil {
			return
		}
		current = tab
		if tab.URL != "" && detect.LooksLikePdfURL(tab.URL) && !c.isViewer(tab.URL) {
			showingPdf = true
			break
		}
		if i < c.cfg.RestorePolls-1 {
			if err := c.clock.Sleep(ctx, c.cfg.RestoreInterval); err != nil {
				return
			}
		}
	}
	if !showingPdf {
		return
	}

	source := c.state.SourceFor(tabID, pdfURL)

	if err := c.tabs.GoBack(ctx, tabID); err == nil {
		return
	}
	if source != "" {
		if _, err := c.tabs.Update(ctx, tabID, source); err == nil {
			return
		}
	}
	if current.OpenerID != 0 {
		if err := c.tabs.Remove(ctx, tabID); err != nil {
			c.logger.Debugf("tab %d: could not close source tab: %v", tabID, err)
		}
	}
}

// Close stops background work and all hint timers.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
	for _, t := range c.state.drain() {
		t.Stop()
	}
}
