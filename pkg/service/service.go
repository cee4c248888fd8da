// Package service assembles the darkpdf components around a set of host
// ports and keeps them in step with the settings record.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/entrhq/darkpdf/pkg/config"
	"github.com/entrhq/darkpdf/pkg/detect"
	"github.com/entrhq/darkpdf/pkg/logging"
	"github.com/entrhq/darkpdf/pkg/manual"
	"github.com/entrhq/darkpdf/pkg/rulesync"
	"github.com/entrhq/darkpdf/pkg/settings"
	"github.com/entrhq/darkpdf/pkg/takeover"
)

// Ports are the host capabilities the service drives. Installer, Scanner
// and Chooser may be nil.
type Ports struct {
	Tabs      takeover.Tabs
	Badger    takeover.Badger
	Injector  takeover.Injector
	Scanner   manual.PageScanner
	Chooser   manual.Chooser
	Installer rulesync.Installer
	Clock     takeover.Clock

	// HTTPClient is used for content-type probes; nil means a default client.
	HTTPClient *http.Client
}

// Watcher reports external changes of the settings persistence.
// config.FileStore implements it.
type Watcher interface {
	Watch(ctx context.Context, onChange func(), onError func(error)) error
}

// Service owns one instance of every component.
type Service struct {
	cfg         *config.DaemonConfig
	persistence settings.Persistence
	logger      *logging.Logger

	settings   *settings.Store
	detector   *detect.Detector
	rules      *rulesync.Synchronizer
	controller *takeover.Controller
	manual     *manual.Flow

	ctx    context.Context
	cancel context.CancelFunc
}

// New wires the components. Nothing is read or installed until Bootstrap.
func New(cfg *config.DaemonConfig, persistence settings.Persistence, ports Ports, logger *logging.Logger) *Service {
	if cfg == nil {
		cfg = config.DefaultDaemonConfig()
	}
	client := ports.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	store := settings.NewStore(persistence, logger.With("settings"))
	detector := detect.NewDetector(client, cfg.Probe.Timeout, logger.With("detect"))

	installer := ports.Installer
	if !cfg.Browser.DeclarativeRules {
		installer = nil
	}
	rules := rulesync.NewSynchronizer(installer, cfg.ViewerURL, logger.With("rules"))

	tcfg := takeover.DefaultConfig(cfg.ViewerURL)
	tcfg.MaxAttempts = cfg.Takeover.MaxAttempts
	tcfg.RecentTTL = cfg.Takeover.RecentTTL
	tcfg.HintDuration = cfg.Takeover.HintDuration
	controller := takeover.NewController(tcfg, takeover.Deps{
		Tabs:     ports.Tabs,
		Badger:   ports.Badger,
		Injector: ports.Injector,
		Settings: store,
		Detector: detector,
		Clock:    ports.Clock,
		Logger:   logger.With("takeover"),
	})

	flow := manual.NewFlow(manual.Deps{
		Viewer:   controller,
		Detector: detector,
		Scanner:  ports.Scanner,
		Chooser:  ports.Chooser,
		Logger:   logger.With("manual"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:         cfg,
		persistence: persistence,
		logger:      logger,
		settings:    store,
		detector:    detector,
		rules:       rules,
		controller:  controller,
		manual:      flow,
		ctx:         ctx,
		cancel:      cancel,
	}
	store.Subscribe(func(next settings.Settings) {
		s.rules.Sync(s.ctx, next)
	})
	return s
}

// Bootstrap loads the settings record, writes its normalized form back and
// installs the matching redirect rules. The rules are installed even when
// writing the record fails.
func (s *Service) Bootstrap(ctx context.Context) error {
	current, err := s.settings.Reload(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if _, err := s.settings.Save(ctx, current.Record()); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	s.logger.Infof("bootstrapped: auto takeover %t, %d rules installed",
		current.AutoTakeoverEnabled, len(s.rules.Installed()))
	return nil
}

// WatchSettings replays external edits of the settings record into the
// store until ctx is done.
func (s *Service) WatchSettings(ctx context.Context, w Watcher) error {
	return w.Watch(ctx, func() {
		raw, err := s.persistence.ReadRecord(ctx, settings.StorageKey)
		if err != nil && !errors.Is(err, config.ErrRecordNotFound) {
			s.logger.Warnf("failed to read changed settings: %v", err)
			return
		}
		s.settings.Replace(raw)
	}, func(err error) {
		s.logger.Warnf("settings watch: %v", err)
	})
}

// Settings returns the settings store.
func (s *Service) Settings() *settings.Store { return s.settings }

// Detector returns the PDF detector.
func (s *Service) Detector() *detect.Detector { return s.detector }

// Rules returns the rule synchronizer.
func (s *Service) Rules() *rulesync.Synchronizer { return s.rules }

// Controller returns the takeover controller.
func (s *Service) Controller() *takeover.Controller { return s.controller }

// Manual returns the manual invocation flow.
func (s *Service) Manual() *manual.Flow { return s.manual }

// Close stops background work.
func (s *Service) Close() {
	s.cancel()
	s.controller.Close()
}
