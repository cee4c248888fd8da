// Package browser drives a Chromium instance through playwright and exposes
// it to darkpdf as tabs, events and page scripting.
package browser

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/darkpdf/pkg/detect"
	"github.com/entrhq/darkpdf/pkg/logging"
	"github.com/entrhq/darkpdf/pkg/takeover"
)

const (
	// DefaultTimeout bounds page operations, in milliseconds.
	DefaultTimeout = 30000.0

	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800
)

// EventHandler receives tab events. *takeover.Controller implements it.
type EventHandler interface {
	HandleNavigation(ctx context.Context, ev takeover.NavigationEvent)
	HandleHeaders(ctx context.Context, ev takeover.HeadersEvent)
	HandleTabClosed(tabID int)
}

// Options configures Launch.
type Options struct {
	Headless bool

	// SkipInstall assumes the playwright driver and browsers are present.
	SkipInstall bool

	// Timeout is the default page timeout in milliseconds.
	Timeout float64

	Logger *logging.Logger
}

type tabEntry struct {
	id     int
	page   playwright.Page
	opener int
	badge  string
}

// Host is one browser with one context. Pages are tabs with integer ids
// assigned in creation order, starting at 1.
type Host struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	timeout float64
	logger  *logging.Logger

	mu      sync.RWMutex
	tabs    map[int]*tabEntry
	byPage  map[playwright.Page]int
	nextID  int
	handler EventHandler

	routes routeTable

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Launch installs (unless skipped) and starts playwright, then opens a
// Chromium browser context.
func Launch(opts Options) (*Host, error) {
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if !opts.SkipInstall {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: DefaultViewportWidth, Height: DefaultViewportHeight},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Host{
		pw:      pw,
		browser: browser,
		bctx:    bctx,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		tabs:    make(map[int]*tabEntry),
		byPage:  make(map[playwright.Page]int),
		ctx:     ctx,
		cancel:  cancel,
	}
	bctx.OnPage(func(page playwright.Page) {
		h.track(page)
	})
	return h, nil
}

// SetHandler routes tab events to handler. Events before the first call are
// dropped.
func (h *Host) SetHandler(handler EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

// track registers page as a tab and subscribes to its events. Calling it
// twice for the same page returns the existing id.
func (h *Host) track(page playwright.Page) int {
	h.mu.Lock()
	if id, ok := h.byPage[page]; ok {
		h.mu.Unlock()
		return id
	}
	h.nextID++
	entry := &tabEntry{id: h.nextID, page: page}
	h.tabs[entry.id] = entry
	h.byPage[page] = entry.id
	h.mu.Unlock()

	page.SetDefaultTimeout(h.timeout)
	if opener, err := page.Opener(); err == nil && opener != nil {
		if openerID, ok := h.idOf(opener); ok {
			h.mu.Lock()
			entry.opener = openerID
			h.mu.Unlock()
		}
	}

	id := entry.id
	page.OnRequest(func(req playwright.Request) {
		if isMainFrameNavigation(req) {
			h.emitNavigation(id, req.URL(), takeover.StatusLoading)
		}
	})
	page.OnFrameNavigated(func(frame playwright.Frame) {
		if frame.ParentFrame() == nil {
			h.emitNavigation(id, frame.URL(), takeover.StatusCommitted)
		}
	})
	page.OnLoad(func(p playwright.Page) {
		h.emitNavigation(id, p.URL(), takeover.StatusComplete)
	})
	page.OnResponse(func(resp playwright.Response) {
		if !isMainFrameNavigation(resp.Request()) {
			return
		}
		h.emitHeaders(takeover.HeadersEvent{
			TabID:      id,
			URL:        resp.URL(),
			StatusCode: resp.Status(),
			Headers:    headerList(resp.Headers()),
			MainFrame:  true,
		})
	})
	page.OnClose(func(playwright.Page) {
		h.forget(id)
	})

	h.logger.Debugf("tracking tab %d", id)
	return id
}

func (h *Host) idOf(page playwright.Page) (int, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.byPage[page]
	return id, ok
}

func (h *Host) entry(tabID int) (*tabEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.tabs[tabID]
	if !ok {
		return nil, fmt.Errorf("tab %d: %w", tabID, takeover.ErrTabNotFound)
	}
	return e, nil
}

func (h *Host) forget(tabID int) {
	h.mu.Lock()
	e, ok := h.tabs[tabID]
	if ok {
		delete(h.tabs, tabID)
		delete(h.byPage, e.page)
	}
	handler := h.handler
	h.mu.Unlock()

	if ok && handler != nil {
		h.dispatch(func(context.Context) { handler.HandleTabClosed(tabID) })
	}
}

// emitNavigation and emitHeaders drop events for navigations the route
// table redirects; the tab is already on its way to the viewer.
func (h *Host) emitNavigation(tabID int, url string, status takeover.NavigationStatus) {
	if h.routes.preempts(url) {
		h.logger.Debugf("tab %d: %s handled by redirect rule", tabID, url)
		return
	}
	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()
	if handler == nil {
		return
	}
	ev := takeover.NavigationEvent{TabID: tabID, URL: url, Status: status}
	h.dispatch(func(ctx context.Context) { handler.HandleNavigation(ctx, ev) })
}

func (h *Host) emitHeaders(ev takeover.HeadersEvent) {
	if h.routes.preempts(ev.URL) {
		return
	}
	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()
	if handler == nil {
		return
	}
	h.dispatch(func(ctx context.Context) { handler.HandleHeaders(ctx, ev) })
}

// dispatch runs fn on its own goroutine so playwright's event loop is never
// blocked by a handler that calls back into the browser.
func (h *Host) dispatch(fn func(ctx context.Context)) {
	h.mu.RLock()
	if h.ctx.Err() != nil {
		h.mu.RUnlock()
		return
	}
	h.wg.Add(1)
	h.mu.RUnlock()
	go func() {
		defer h.wg.Done()
		fn(h.ctx)
	}()
}

// TabIDs lists the open tabs in id order.
func (h *Host) TabIDs() []int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]int, 0, len(h.tabs))
	for id := 1; id <= h.nextID; id++ {
		if _, ok := h.tabs[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Close shuts the browser and the playwright driver down. The browser goes
// first so handlers blocked in page calls return before the wait.
func (h *Host) Close() error {
	h.mu.Lock()
	h.cancel()
	h.mu.Unlock()

	var errs []error
	if err := h.bctx.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := h.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	h.wg.Wait()
	if err := h.pw.Stop(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing browser: %v", errs)
	}
	return nil
}

func isMainFrameNavigation(req playwright.Request) bool {
	if req == nil || !req.IsNavigationRequest() {
		return false
	}
	frame := req.Frame()
	return frame != nil && frame.ParentFrame() == nil
}

func headerList(headers map[string]string) []detect.Header {
	out := make([]detect.Header, 0, len(headers))
	for name, value := range headers {
		out = append(out, detect.Header{Name: name, Value: value})
	}
	return out
}
