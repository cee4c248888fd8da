package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DaemonConfig is the process configuration of darkpdf, read from YAML.
// The user-facing settings record lives in the FileStore, not here.
type DaemonConfig struct {
	// ViewerURL is the viewer page every open is routed to
	ViewerURL string `yaml:"viewer_url" json:"viewer_url"`

	// ViewerDir, when set, is served at /viewer/ by the control API
	ViewerDir string `yaml:"viewer_dir" json:"viewer_dir"`

	ListenAddr   string `yaml:"listen_addr" json:"listen_addr"`
	SettingsPath string `yaml:"settings_path" json:"settings_path"`

	Browser  BrowserConfig  `yaml:"browser" json:"browser"`
	Probe    ProbeConfig    `yaml:"probe" json:"probe"`
	Takeover TakeoverConfig `yaml:"takeover" json:"takeover"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// BrowserConfig controls the playwright-driven host browser.
type BrowserConfig struct {
	Headless bool `yaml:"headless" json:"headless"`

	// DeclarativeRules enables pre-navigation redirect rules. When false the
	// event-driven controller alone handles takeover.
	DeclarativeRules bool `yaml:"declarative_rules" json:"declarative_rules"`
}

// ProbeConfig controls the HEAD content-type probe.
type ProbeConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// TakeoverConfig holds the tunable constants of automatic takeover.
type TakeoverConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	RecentTTL    time.Duration `yaml:"recent_ttl" json:"recent_ttl"`
	HintDuration time.Duration `yaml:"hint_duration" json:"hint_duration"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level" json:"level"`
	Dir   string `yaml:"dir" json:"dir"`
}

// DefaultDaemonConfig returns the configuration used when no file is given.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		ViewerURL:  "http://127.0.0.1:8780/viewer/viewer.html",
		ListenAddr: "127.0.0.1:8780",
		Browser: BrowserConfig{
			Headless:         false,
			DeclarativeRules: true,
		},
		Probe: ProbeConfig{Timeout: 6 * time.Second},
		Takeover: TakeoverConfig{
			MaxAttempts:  3,
			RecentTTL:    8 * time.Second,
			HintDuration: 5 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadDaemonConfig reads a YAML file over the defaults. An empty path yields
// the defaults.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	cfg := DefaultDaemonConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *DaemonConfig) Validate() error {
	u, err := url.Parse(c.ViewerURL)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("viewer_url must be an absolute URL, got %q", c.ViewerURL)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive")
	}
	if c.Takeover.MaxAttempts < 1 {
		return fmt.Errorf("takeover.max_attempts must be at least 1, got %d", c.Takeover.MaxAttempts)
	}
	if c.Takeover.RecentTTL <= 0 {
		return fmt.Errorf("takeover.recent_ttl must be positive")
	}
	if c.Takeover.HintDuration <= 0 {
		return fmt.Errorf("takeover.hint_duration must be positive")
	}
	return nil
}
