package takeover

import (
	"sync"
	"time"

	"github.com/entrhq/darkpdf/pkg/detect"
)

// State is where a tab is in the automatic takeover lifecycle.
type State int

const (
	Idle State = iota
	Checking
	Queued
	Opened
	Abandoned
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case Queued:
		return "queued"
	case Opened:
		return "opened"
	case Abandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event drives State transitions.
type Event int

const (
	EventDetectStarted Event = iota
	EventDetectFinished
	EventEnqueued
	EventOpenSucceeded
	EventOpenFailed
	EventGaveUp
	EventClosed
)

// Next is the transition function of the per-tab lifecycle. A queued
// redirect keeps the tab Queued while another detection runs.
func Next(s State, e Event) State {
	switch e {
	case EventDetectStarted:
		if s == Queued {
			return Queued
		}
		return Checking
	case EventDetectFinished:
		if s == Checking {
			return Idle
		}
		return s
	case EventEnqueued, EventOpenFailed:
		return Queued
	case EventOpenSucceeded:
		return Opened
	case EventGaveUp:
		return Abandoned
	case EventClosed:
		return Idle
	default:
		return s
	}
}

// RecentRedirect suppresses re-detection of a URL the tab was just
// redirected away from.
type RecentRedirect struct {
	URL string    `json:"url"`
	At  time.Time `json:"at"`
}

// PendingRedirect is a queued viewer open awaiting a successful attempt.
type PendingRedirect struct {
	URL       string `json:"url"`
	SourceURL string `json:"sourceUrl,omitempty"`
	Attempts  int    `json:"attempts"`

	attempting bool
}

// TabRecord holds everything known about one tab.
type TabRecord struct {
	State          State
	Recent         *RecentRedirect
	InFlightURL    string
	Pending        *PendingRedirect
	LastNonPdfPage string

	hintTimer Timer
	hintSeq   uint64
}

// TabSnapshot is a read-only copy of a TabRecord.
type TabSnapshot struct {
	TabID          int              `json:"tabId"`
	State          State            `json:"state"`
	Recent         *RecentRedirect  `json:"recent,omitempty"`
	InFlightURL    string           `json:"inFlightUrl,omitempty"`
	Pending        *PendingRedirect `json:"pending,omitempty"`
	LastNonPdfPage string           `json:"lastNonPdfPage,omitempty"`
	HintActive     bool             `json:"hintActive"`
}

// AttemptOutcome is the result of recording one open attempt.
type AttemptOutcome int

const (
	// AttemptStale means the pending entry changed while the attempt ran.
	AttemptStale AttemptOutcome = iota
	AttemptSucceeded
	AttemptRetry
	AttemptAbandoned
)

// TabState is the per-tab bookkeeping shared by every handler. Each method
// is atomic; callers re-validate across I/O by passing the URL they acted on.
type TabState struct {
	mu   sync.Mutex
	tabs map[int]*TabRecord
	ttl  time.Duration
}

// NewTabState creates empty state with the given loop-suppression TTL.
func NewTabState(ttl time.Duration) *TabState {
	return &TabState{tabs: make(map[int]*TabRecord), ttl: ttl}
}

func (ts *TabState) record(tabID int) *TabRecord {
	r, ok := ts.tabs[tabID]
	if !ok {
		r = &TabRecord{}
		ts.tabs[tabID] = r
	}
	return r
}

func (ts *TabState) transition(r *TabRecord, e Event) {
	r.State = Next(r.State, e)
}

// RememberSource records url as the tab's last non-PDF page.
func (ts *TabState) RememberSource(tabID int, url string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.record(tabID).LastNonPdfPage = url
}

// SourceFor returns the remembered return page for a redirect to pdfURL, or
// "" when there is none or it is the PDF itself.
func (ts *TabState) SourceFor(tabID int, pdfURL string) string {
	ts.mu.Lock()
	last := ""
	if r, ok := ts.tabs[tabID]; ok {
		last = r.LastNonPdfPage
	}
	ts.mu.Unlock()

	source, ok := detect.NormalizeHTTPURL(last)
	if !ok {
		return ""
	}
	if pdf, ok := detect.NormalizeHTTPURL(pdfURL); ok && pdf == source {
		return ""
	}
	return source
}

// WasRecentlyRedirected reports whether url is the tab's live recent
// redirect. Expired entries are dropped.
func (ts *TabState) WasRecentlyRedirected(tabID int, url string, now time.Time) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.recentLocked(tabID, url, now)
}

func (ts *TabState) recentLocked(tabID int, url string, now time.Time) bool {
	r, ok := ts.tabs[tabID]
	if !ok || r.Recent == nil {
		return false
	}
	if now.Sub(r.Recent.At) > ts.ttl {
		r.Recent = nil
		return false
	}
	return r.Recent.URL == url
}

// MarkRecent records a redirect of the tab away from url.
func (ts *TabState) MarkRecent(tabID int, url string, now time.Time) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.record(tabID).Recent = &RecentRedirect{URL: url, At: now}
}

// BeginDetection marks a detection of url in flight. It returns false when
// the URL was just redirected or the same detection is already running.
func (ts *TabState) BeginDetection(tabID int, url string, now time.Time) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.recentLocked(tabID, url, now) {
		return false
	}
	r := ts.record(tabID)
	if r.InFlightURL == url {
		return false
	}
	r.InFlightURL = url
	ts.transition(r, EventDetectStarted)
	return true
}

// EndDetection clears the in-flight marker if it still belongs to url.
func (ts *TabState) EndDetection(tabID int, url string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	r, ok := ts.tabs[tabID]
	if !ok || r.InFlightURL != url {
		return
	}
	r.InFlightURL = ""
	ts.transition(r, EventDetectFinished)
}

// Enqueue queues a redirect of the tab to url. If the same URL is already
// queued, a missing source is filled in and false is returned; otherwise the
// entry is replaced and true tells the caller to attempt it.
func (ts *TabState) Enqueue(tabID int, url, sourceURL string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	r := ts.record(tabID)
	if r.Pending != nil && r.Pending.URL == url {
		if r.Pending.SourceURL == "" && sourceURL != "" {
			r.Pending.SourceURL = sourceURL
		}
		return false
	}
	r.Pending = &PendingRedirect{URL: url, SourceURL: sourceURL}
	ts.transition(r, EventEnqueued)
	return true
}

// Pending returns a copy of the tab's queued redirect.
func (ts *TabState) Pending(tabID int) (PendingRedirect, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	r, ok := ts.tabs[tabID]
	if !ok || r.Pending == nil {
		return PendingRedirect{}, false
	}
	return *r.Pending, true
}

// BeginAttempt claims the queued redirect to url for one attempt. It fails
// when nothing is queued for url or another attempt is running.
func (ts *TabState) BeginAttempt(tabID int, url string) (PendingRedirect, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	r, ok := ts.tabs[tabID]
	if !ok || r.Pending == nil || r.Pending.URL != url || r.Pending.attempting {
		return PendingRedirect{}, false
	}
	r.Pending.attempting = true
	return *r.Pending, true
}

// FinishAttempt records the result of an attempt started with BeginAttempt.
// After maxAttempts failures the entry is dropped and AttemptAbandoned is
// returned, exactly once per entry.
func (ts *TabState) FinishAttempt(tabID int, url string, opened bool, maxAttempts int) AttemptOutcome {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	r, ok := ts.tabs[tabID]
	if !ok || r.Pending == nil || r.Pending.URL != url {
		return AttemptStale
	}
	p := r.Pending
	p.attempting = false

	if opened {
		r.Pending = nil
		ts.transition(r, EventOpenSucceeded)
		return AttemptSucceeded
	}

	p.Attempts++
	if p.Attempts >= maxAttempts {
		r.Pending = nil
		ts.transition(r, EventGaveUp)
		return AttemptAbandoned
	}
	ts.transition(r, EventOpenFailed)
	return AttemptRetry
}

// MarkOpened records a viewer open of url that did not go through the
// queue. A queued redirect of the same URL is settled by it.
func (ts *TabState) MarkOpened(tabID int, url string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	r := ts.record(tabID)
	if r.Pending != nil && r.Pending.URL == url && !r.Pending.attempting {
		r.Pending = nil
	}
	ts.transition(r, EventOpenSucceeded)
}

// NextHint reserves the sequence number of a new hint on the tab.
func (ts *TabState) NextHint(tabID int) uint64 {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	r := ts.record(tabID)
	r.hintSeq++
	return r.hintSeq
}

// SetHintTimer installs t as the timer of hint seq and returns the timer the
// caller must stop: the replaced one, or t itself if a newer hint exists.
func (ts *TabState) SetHintTimer(tabID int, seq uint64, t Timer) Timer {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	r := ts.record(tabID)
	if r.hintSeq != seq {
		return t
	}
	prev := r.hintTimer
	r.hintTimer = t
	return prev
}

// ClearHintTimer forgets the hint timer if seq still identifies it.
func (ts *TabState) ClearHintTimer(tabID int, seq uint64) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	r, ok := ts.tabs[tabID]
	if !ok || r.hintSeq != seq || r.hintTimer == nil {
		return false
	}
	r.hintTimer = nil
	return true
}

// Remove deletes every entry for the tab and returns its hint timer, if any,
// for the caller to stop.
func (ts *TabState) Remove(tabID int) Timer {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	r, ok := ts.tabs[tabID]
	if !ok {
		return nil
	}
	delete(ts.tabs, tabID)
	r.State = Next(r.State, EventClosed)
	return r.hintTimer
}

// Has reports whether any entry exists for the tab.
func (ts *TabState) Has(tabID int) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	_, ok := ts.tabs[tabID]
	return ok
}

// Snapshot copies the tab's record.
func (ts *TabState) Snapshot(tabID int) (TabSnapshot, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	r, ok := ts.tabs[tabID]
	if !ok {
		return TabSnapshot{}, false
	}
	snap := TabSnapshot{
		TabID:          tabID,
		State:          r.State,
		InFlightURL:    r.InFlightURL,
		LastNonPdfPage: r.LastNonPdfPage,
		HintActive:     r.hintTimer != nil,
	}
	if r.Recent != nil {
		recent := *r.Recent
		snap.Recent = &recent
	}
	if r.Pending != nil {
		pending := *r.Pending
		snap.Pending = &pending
	}
	return snap, true
}

// drain removes every record and returns their hint timers.
func (ts *TabState) drain() []Timer {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	var timers []Timer
	for id, r := range ts.tabs {
		if r.hintTimer != nil {
			timers = append(timers, r.hintTimer)
		}
		delete(ts.tabs, id)
	}
	return timers
}
