package rulesync

import (
	"context"
	"sync"

	"github.com/entrhq/darkpdf/pkg/logging"
	"github.com/entrhq/darkpdf/pkg/settings"
)

// Installer is the host capability that evaluates declarative rules.
type Installer interface {
	// SupportsDeclarativeRules reports whether rules added through
	// UpdateRules take effect. Hosts that cannot pre-empt navigations
	// return false.
	SupportsDeclarativeRules() bool

	// UpdateRules removes the given ids and then adds rules, as one call.
	UpdateRules(ctx context.Context, removeIDs []int, add []Rule) error
}

// Synchronizer keeps the installed rules in line with the settings.
type Synchronizer struct {
	installer Installer
	viewerURL string
	logger    *logging.Logger

	mu        sync.Mutex
	installed []Rule
}

// NewSynchronizer creates a synchronizer that redirects to viewerURL.
func NewSynchronizer(installer Installer, viewerURL string, logger *logging.Logger) *Synchronizer {
	return &Synchronizer{
		installer: installer,
		viewerURL: viewerURL,
		logger:    logger,
	}
}

// Sync replaces the installed rules with the set built from s. Failures are
// logged and leave the previous set in place; the event-driven controller
// covers for stale rules.
func (sy *Synchronizer) Sync(ctx context.Context, s settings.Settings) {
	sy.mu.Lock()
	defer sy.mu.Unlock()

	if sy.installer == nil {
		return
	}

	if !sy.installer.SupportsDeclarativeRules() {
		if err := sy.installer.UpdateRules(ctx, RuleIDs, nil); err != nil {
			sy.logger.Warnf("failed to clear declarative rules: %v", err)
			return
		}
		sy.installed = nil
		return
	}

	rules := Build(s, sy.viewerURL)
	if err := sy.installer.UpdateRules(ctx, RuleIDs, rules); err != nil {
		sy.logger.Warnf("failed to sync declarative rules: %v", err)
		return
	}
	sy.installed = rules
	sy.logger.Debugf("installed %d declarative rules", len(rules))
}

// Installed returns the last successfully installed rule set.
func (sy *Synchronizer) Installed() []Rule {
	sy.mu.Lock()
	defer sy.mu.Unlock()
	return append([]Rule(nil), sy.installed...)
}
