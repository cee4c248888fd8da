package browser

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/darkpdf/pkg/rulesync"
)

// routeTable holds the declarative rules the context route consults.
type routeTable struct {
	mu        sync.RWMutex
	rules     []rulesync.Rule
	installed bool

	installMu sync.Mutex
}

func (t *routeTable) replace(removeIDs []int, add []rulesync.Rule) {
	t.mu.Lock()
	defer t.mu.Unlock()

	remove := make(map[int]bool, len(removeIDs))
	for _, id := range removeIDs {
		remove[id] = true
	}
	kept := t.rules[:0:0]
	for _, r := range t.rules {
		if !remove[r.ID] {
			kept = append(kept, r)
		}
	}
	kept = append(kept, add...)
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Priority > kept[j].Priority })
	t.rules = kept
}

// redirectFor returns the redirect target of the first rule matching the
// request.
func (t *routeTable) redirectFor(rawURL, resourceType string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.rules {
		if r.Action.Type != rulesync.ActionRedirect || !r.Matches(rawURL, resourceType) {
			continue
		}
		if target, ok := r.RedirectTarget(rawURL); ok {
			return target, true
		}
	}
	return "", false
}

// preempts reports whether the installed route redirects a main-frame
// navigation to rawURL before it reaches the network.
func (t *routeTable) preempts(rawURL string) bool {
	t.mu.RLock()
	installed := t.installed
	t.mu.RUnlock()
	if !installed {
		return false
	}
	_, ok := t.redirectFor(rawURL, rulesync.ResourceMainFrame)
	return ok
}

// SupportsDeclarativeRules is true: rules are evaluated by a context route
// before the request leaves the browser.
func (h *Host) SupportsDeclarativeRules() bool { return true }

// UpdateRules swaps the rule set. The catch-all route is installed on first
// use and stays; with no rules it lets every request through.
func (h *Host) UpdateRules(ctx context.Context, removeIDs []int, add []rulesync.Rule) error {
	h.routes.replace(removeIDs, add)

	// mu stays free while the route installs so event callbacks can read it.
	h.routes.installMu.Lock()
	defer h.routes.installMu.Unlock()
	h.routes.mu.RLock()
	installed := h.routes.installed
	h.routes.mu.RUnlock()
	if installed || len(add) == 0 {
		return nil
	}
	if err := h.bctx.Route("**/*", h.routeRequest); err != nil {
		return fmt.Errorf("failed to install route: %w", err)
	}
	h.routes.mu.Lock()
	h.routes.installed = true
	h.routes.mu.Unlock()
	return nil
}

func (h *Host) routeRequest(route playwright.Route) {
	req := route.Request()
	resourceType := req.ResourceType()
	if isMainFrameNavigation(req) {
		resourceType = rulesync.ResourceMainFrame
	}

	target, ok := h.routes.redirectFor(req.URL(), resourceType)
	if !ok {
		if err := route.Fallback(); err != nil {
			h.logger.Debugf("route fallback failed: %v", err)
		}
		return
	}

	h.logger.Debugf("redirecting %s to viewer", req.URL())
	err := route.Fulfill(playwright.RouteFulfillOptions{
		Status:  playwright.Int(http.StatusFound),
		Headers: map[string]string{"Location": target},
	})
	if err != nil {
		h.logger.Warnf("redirect of %s failed: %v", req.URL(), err)
		_ = route.Fallback()
	}
}
