// Package takeover watches tab activity and moves PDF navigations into the
// viewer automatically.
package takeover

import (
	"context"
	"errors"
	"time"

	"github.com/entrhq/darkpdf/pkg/settings"
)

// NoTab marks a request that is not tied to an existing tab.
const NoTab = -1

// ErrTabNotFound is returned by Tabs when the tab no longer exists.
var ErrTabNotFound = errors.New("tab not found")

// Tab is what the host reports about one tab.
type Tab struct {
	ID    int    `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`

	// OpenerID is the id of the tab that opened this one, or 0.
	OpenerID int `json:"openerId,omitempty"`
}

// Tabs controls the host's tabs.
type Tabs interface {
	Create(ctx context.Context, url string) (Tab, error)
	Update(ctx context.Context, tabID int, url string) (Tab, error)
	Get(ctx context.Context, tabID int) (Tab, error)
	GoBack(ctx context.Context, tabID int) error
	Remove(ctx context.Context, tabID int) error
}

// Badger shows a short per-tab status marker.
type Badger interface {
	SetBadge(ctx context.Context, tabID int, text, title string) error
	ClearBadge(ctx context.Context, tabID int) error
}

// Injector runs UI scripts inside a tab's page.
type Injector interface {
	ShowToast(ctx context.Context, tabID int, message string) error
}

// SettingsSource yields the current settings. settings.Store satisfies it.
type SettingsSource interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// PdfChecker confirms that a URL serves a PDF. detect.Detector satisfies it.
type PdfChecker interface {
	IsPdfURL(ctx context.Context, url string) bool
}

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so handlers can be driven deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
