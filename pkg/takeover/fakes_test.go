package takeover

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/entrhq/darkpdf/pkg/settings"
)

const testViewer = "http://127.0.0.1:8780/viewer/viewer.html"

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Sleep returns at once; it does not move the clock so timers only fire
// through Advance.
func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps++
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) sleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}

// Advance moves time forward and runs every timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type fakeTabs struct {
	mu      sync.Mutex
	tabs    map[int]Tab
	nextID  int
	created []string
	updated []string
	removed []int
	backs   []int

	// createErrs is consumed one per Create call; nil entries succeed.
	createErrs []error
	updateErr  error
	backErr    error
	// updateKeepsURL makes Update succeed without changing the tab URL.
	updateKeepsURL bool
}

func newFakeTabs(tabs ...Tab) *fakeTabs {
	ft := &fakeTabs{tabs: map[int]Tab{}, nextID: 100}
	for _, t := range tabs {
		ft.tabs[t.ID] = t
	}
	return ft
}

func (f *fakeTabs) Create(_ context.Context, url string) (Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return Tab{}, err
		}
	}
	f.created = append(f.created, url)
	f.nextID++
	t := Tab{ID: f.nextID, URL: url}
	f.tabs[t.ID] = t
	return t, nil
}

func (f *fakeTabs) Update(_ context.Context, tabID int, url string) (Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return Tab{}, f.updateErr
	}
	t, ok := f.tabs[tabID]
	if !ok {
		return Tab{}, ErrTabNotFound
	}
	f.updated = append(f.updated, url)
	if !f.updateKeepsURL {
		t.URL = url
		f.tabs[tabID] = t
	}
	return t, nil
}

func (f *fakeTabs) Get(_ context.Context, tabID int) (Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tabs[tabID]
	if !ok {
		return Tab{}, ErrTabNotFound
	}
	return t, nil
}

func (f *fakeTabs) GoBack(_ context.Context, tabID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.backErr != nil {
		return f.backErr
	}
	f.backs = append(f.backs, tabID)
	return nil
}

func (f *fakeTabs) Remove(_ context.Context, tabID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tabs, tabID)
	f.removed = append(f.removed, tabID)
	return nil
}

func (f *fakeTabs) createdURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.created...)
}

func (f *fakeTabs) snapshot() (updated []string, removed, backs []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.updated...), append([]int(nil), f.removed...), append([]int(nil), f.backs...)
}

type badgeCall struct {
	TabID int
	Title string
}

type fakeBadger struct {
	mu      sync.Mutex
	sets    []badgeCall
	clears  []int
	failSet bool
	onSet   func()
}

func (b *fakeBadger) SetBadge(_ context.Context, tabID int, _ string, title string) error {
	if b.onSet != nil {
		b.onSet()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSet {
		return errors.New("no badge")
	}
	b.sets = append(b.sets, badgeCall{TabID: tabID, Title: title})
	return nil
}

func (b *fakeBadger) ClearBadge(_ context.Context, tabID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clears = append(b.clears, tabID)
	return nil
}

func (b *fakeBadger) calls() ([]badgeCall, []int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]badgeCall(nil), b.sets...), append([]int(nil), b.clears...)
}

type fakeInjector struct {
	mu     sync.Mutex
	toasts []string
	err    error
}

func (i *fakeInjector) ShowToast(_ context.Context, _ int, message string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	i.toasts = append(i.toasts, message)
	return nil
}

type staticSettings struct {
	s settings.Settings
}

func (s staticSettings) Get(context.Context) (settings.Settings, error) {
	return s.s, nil
}

type fakeDetector struct {
	mu    sync.Mutex
	calls int
	fn    func(url string) bool
}

func (d *fakeDetector) IsPdfURL(_ context.Context, url string) bool {
	d.mu.Lock()
	d.calls++
	fn := d.fn
	d.mu.Unlock()
	if fn == nil {
		return true
	}
	return fn(url)
}

func (d *fakeDetector) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type harness struct {
	ctrl     *Controller
	tabs     *fakeTabs
	badger   *fakeBadger
	injector *fakeInjector
	detector *fakeDetector
	clock    *fakeClock
}

func newHarness(s settings.Settings, tabs ...Tab) *harness {
	h := &harness{
		tabs:     newFakeTabs(tabs...),
		badger:   &fakeBadger{},
		injector: &fakeInjector{},
		detector: &fakeDetector{},
		clock:    newFakeClock(),
	}
	h.ctrl = NewController(DefaultConfig(testViewer), Deps{
		Tabs:     h.tabs,
		Badger:   h.badger,
		Injector: h.injector,
		Settings: staticSettings{s: s},
		Detector: h.detector,
		Clock:    h.clock,
	})
	return h
}
