package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/darkpdf/pkg/config"
	"github.com/entrhq/darkpdf/pkg/host/browser"
	"github.com/entrhq/darkpdf/pkg/logging"
	"github.com/entrhq/darkpdf/pkg/server"
	"github.com/entrhq/darkpdf/pkg/service"
)

const shutdownTimeout = 5 * time.Second

var (
	runHeadless    bool
	runSkipInstall bool
	runListenAddr  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the browser host and the control API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("headless") {
			cfg.Browser.Headless = runHeadless
		}
		if runListenAddr != "" {
			cfg.ListenAddr = runListenAddr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runDaemon(ctx, cfg)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "run the browser without a window (overrides config)")
	runCmd.Flags().BoolVar(&runSkipInstall, "skip-install", false, "assume the playwright driver and browsers are installed")
	runCmd.Flags().StringVar(&runListenAddr, "listen", "", "control API address (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runDaemon(ctx context.Context, cfg *config.DaemonConfig) error {
	logger := logging.MustLogger("darkpdf")
	defer logger.Close()

	store, err := config.NewFileStore(cfg.SettingsPath)
	if err != nil {
		return fmt.Errorf("failed to open settings: %w", err)
	}

	host, err := browser.Launch(browser.Options{
		Headless:    cfg.Browser.Headless,
		SkipInstall: runSkipInstall,
		Logger:      logger.With("browser"),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := host.Close(); err != nil {
			logger.Warnf("browser shutdown: %v", err)
		}
	}()

	svc := service.New(cfg, store, service.Ports{
		Tabs:      host,
		Badger:    host,
		Injector:  host,
		Scanner:   host,
		Chooser:   host,
		Installer: host,
	}, logger)
	defer svc.Close()
	host.SetHandler(svc.Controller())

	if err := svc.Bootstrap(ctx); err != nil {
		logger.Warnf("%v", err)
	}

	go func() {
		if err := svc.WatchSettings(ctx, store); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnf("settings watch stopped: %v", err)
		}
	}()

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: server.New(svc, host, server.Options{
			ViewerDir: cfg.ViewerDir,
			Logger:    logger.With("api"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Infof("control API listening on %s, viewer %s", cfg.ListenAddr, cfg.ViewerURL)
	fmt.Printf("darkpdf running (API http://%s, log %s). Press Ctrl+C to stop.\n", cfg.ListenAddr, logger.LogPath())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control API failed: %w", err)
		}
	}

	fmt.Println("\nShutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("control API shutdown: %v", err)
	}
	return nil
}
