package takeover

import (
	"context"
)

const badgeText = "!"

// ShowBadgeHint puts message on the tab's badge and clears it after the
// hint duration. A newer hint replaces the older one and its timer.
func (c *Controller) ShowBadgeHint(ctx context.Context, tabID int, message string) {
	if tabID < 0 || c.badger == nil {
		return
	}
	// The sequence is taken before the badge changes so a timer of the
	// previous hint firing meanwhile cannot clear the new badge.
	seq := c.state.NextHint(tabID)
	if err := c.badger.SetBadge(ctx, tabID, badgeText, message); err != nil {
		c.logger.Debugf("tab %d: failed to set badge: %v", tabID, err)
	}
	timer := c.clock.AfterFunc(c.cfg.HintDuration, func() {
		if !c.state.ClearHintTimer(tabID, seq) {
			return
		}
		if err := c.badger.ClearBadge(context.Background(), tabID); err != nil {
			c.logger.Debugf("tab %d: failed to clear badge: %v", tabID, err)
		}
	})
	if stale := c.state.SetHintTimer(tabID, seq, timer); stale != nil {
		stale.Stop()
	}
}

// ShowPageHint shows message as an in-page toast, falling back to the badge
// when the page cannot be scripted.
func (c *Controller) ShowPageHint(ctx context.Context, tabID int, message string) {
	if tabID < 0 {
		return
	}
	if c.injector != nil {
		err := c.injector.ShowToast(ctx, tabID, message)
		if err == nil {
			return
		}
		c.logger.Debugf("tab %d: toast failed, using badge: %v", tabID, err)
	}
	c.ShowBadgeHint(ctx, tabID, message)
}
