// Package main is the darkpdf command: it runs the browser host with
// automatic PDF takeover and offers one-shot resolve, scan and rules
// commands for scripting.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/darkpdf/pkg/config"
	"github.com/entrhq/darkpdf/pkg/logging"
)

const version = "0.1.0"

var (
	cfgFile      string
	settingsPath string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "darkpdf",
	Short: "Open every PDF in a dark-themed viewer",
	Long: `darkpdf drives a browser and redirects PDF navigations into a
dark-themed viewer page, honoring per-site whitelist and blacklist rules.

Run "darkpdf run" to start the browser and control API, or use the
resolve, scan and rules commands on their own.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "daemon config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "settings record file (default ~/.darkpdf/settings.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
}

// loadConfig reads the daemon config and applies the persistent flags and
// the process-wide logging settings.
func loadConfig() (*config.DaemonConfig, error) {
	cfg, err := config.LoadDaemonConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if settingsPath != "" {
		cfg.SettingsPath = settingsPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Logging.Dir != "" {
		logging.SetLogDirectory(cfg.Logging.Dir)
	}
	logging.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	return cfg, nil
}
