package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDaemonConfigIsValid(t *testing.T) {
	cfg := DefaultDaemonConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Takeover.MaxAttempts)
	assert.Equal(t, 8*time.Second, cfg.Takeover.RecentTTL)
	assert.Equal(t, 6*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Takeover.HintDuration)
}

func TestLoadDaemonConfig(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := LoadDaemonConfig("")
		require.NoError(t, err)
		assert.Equal(t, DefaultDaemonConfig(), cfg)
	})

	t.Run("overrides defaults from yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "darkpdf.yaml")
		yamlText := `
viewer_url: chrome-extension://abc/src/viewer/viewer.html
browser:
  headless: true
  declarative_rules: false
probe:
  timeout: 2s
takeover:
  max_attempts: 5
  recent_ttl: 10s
logging:
  level: debug
`
		require.NoError(t, os.WriteFile(path, []byte(yamlText), 0644))

		cfg, err := LoadDaemonConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "chrome-extension://abc/src/viewer/viewer.html", cfg.ViewerURL)
		assert.True(t, cfg.Browser.Headless)
		assert.False(t, cfg.Browser.DeclarativeRules)
		assert.Equal(t, 2*time.Second, cfg.Probe.Timeout)
		assert.Equal(t, 5, cfg.Takeover.MaxAttempts)
		assert.Equal(t, 10*time.Second, cfg.Takeover.RecentTTL)
		assert.Equal(t, 5*time.Second, cfg.Takeover.HintDuration, "unset keys keep defaults")
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "darkpdf.yaml")
		require.NoError(t, os.WriteFile(path, []byte("takeover:\n  max_attempts: 0\n"), 0644))

		_, err := LoadDaemonConfig(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadDaemonConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestDaemonConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DaemonConfig)
	}{
		{"relative viewer url", func(c *DaemonConfig) { c.ViewerURL = "viewer.html" }},
		{"empty listen addr", func(c *DaemonConfig) { c.ListenAddr = "" }},
		{"zero probe timeout", func(c *DaemonConfig) { c.Probe.Timeout = 0 }},
		{"zero ttl", func(c *DaemonConfig) { c.Takeover.RecentTTL = 0 }},
		{"zero hint duration", func(c *DaemonConfig) { c.Takeover.HintDuration = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDaemonConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
