package browser

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/darkpdf/pkg/takeover"
)

// Create opens url in a new tab and returns once the navigation committed.
func (h *Host) Create(ctx context.Context, url string) (takeover.Tab, error) {
	if err := ctx.Err(); err != nil {
		return takeover.Tab{}, err
	}
	page, err := h.bctx.NewPage()
	if err != nil {
		return takeover.Tab{}, fmt.Errorf("failed to create page: %w", err)
	}
	id := h.track(page)
	if err := h.gotoCommit(page, url); err != nil {
		return takeover.Tab{}, err
	}
	return h.Get(ctx, id)
}

// Update navigates an existing tab to url.
func (h *Host) Update(ctx context.Context, tabID int, url string) (takeover.Tab, error) {
	if err := ctx.Err(); err != nil {
		return takeover.Tab{}, err
	}
	e, err := h.entry(tabID)
	if err != nil {
		return takeover.Tab{}, err
	}
	if err := h.gotoCommit(e.page, url); err != nil {
		return takeover.Tab{}, err
	}
	return h.Get(ctx, tabID)
}

func (h *Host) gotoCommit(page playwright.Page, url string) error {
	_, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateCommit,
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Get reports a tab's current URL, title and opener.
func (h *Host) Get(ctx context.Context, tabID int) (takeover.Tab, error) {
	e, err := h.entry(tabID)
	if err != nil {
		return takeover.Tab{}, err
	}
	if e.page.IsClosed() {
		return takeover.Tab{}, fmt.Errorf("tab %d: %w", tabID, takeover.ErrTabNotFound)
	}
	title, _ := e.page.Title()

	h.mu.RLock()
	opener := e.opener
	h.mu.RUnlock()
	return takeover.Tab{
		ID:       tabID,
		URL:      e.page.URL(),
		Title:    title,
		OpenerID: opener,
	}, nil
}

// GoBack moves the tab one step back in its history. It fails when there is
// no previous entry.
func (h *Host) GoBack(ctx context.Context, tabID int) error {
	e, err := h.entry(tabID)
	if err != nil {
		return err
	}
	resp, err := e.page.GoBack(playwright.PageGoBackOptions{
		WaitUntil: playwright.WaitUntilStateCommit,
	})
	if err != nil {
		return fmt.Errorf("go back failed: %w", err)
	}
	if resp == nil && e.page.URL() == "about:blank" {
		return fmt.Errorf("tab %d has no history", tabID)
	}
	return nil
}

// Remove closes the tab.
func (h *Host) Remove(ctx context.Context, tabID int) error {
	e, err := h.entry(tabID)
	if err != nil {
		return err
	}
	if err := e.page.Close(); err != nil {
		return fmt.Errorf("failed to close tab %d: %w", tabID, err)
	}
	return nil
}

// SetBadge records the badge and shows it as a title prefix. The page part is
// best-effort: pages that block scripts keep their title.
func (h *Host) SetBadge(ctx context.Context, tabID int, text, title string) error {
	e, err := h.entry(tabID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	e.badge = text
	h.mu.Unlock()

	if _, err := e.page.Evaluate(badgeScript, text); err != nil {
		h.logger.Debugf("tab %d: badge title not shown: %v", tabID, err)
	}
	h.logger.Infof("tab %d: %s", tabID, title)
	return nil
}

// ClearBadge removes the badge.
func (h *Host) ClearBadge(ctx context.Context, tabID int) error {
	e, err := h.entry(tabID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	e.badge = ""
	h.mu.Unlock()

	if _, err := e.page.Evaluate(badgeScript, ""); err != nil {
		h.logger.Debugf("tab %d: badge title not restored: %v", tabID, err)
	}
	return nil
}

// Badge returns the tab's current badge text.
func (h *Host) Badge(tabID int) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if e, ok := h.tabs[tabID]; ok {
		return e.badge
	}
	return ""
}

// ShowToast shows message inside the page.
func (h *Host) ShowToast(ctx context.Context, tabID int, message string) error {
	e, err := h.entry(tabID)
	if err != nil {
		return err
	}
	if _, err := e.page.Evaluate(toastScript, message); err != nil {
		return fmt.Errorf("toast script failed: %w", err)
	}
	return nil
}
