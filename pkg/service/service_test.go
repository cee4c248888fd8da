package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/darkpdf/pkg/config"
	"github.com/entrhq/darkpdf/pkg/logging"
	"github.com/entrhq/darkpdf/pkg/rulesync"
	"github.com/entrhq/darkpdf/pkg/settings"
)

type recordingInstaller struct {
	mu        sync.Mutex
	supported bool
	calls     [][]rulesync.Rule
}

func (i *recordingInstaller) SupportsDeclarativeRules() bool { return i.supported }

func (i *recordingInstaller) UpdateRules(_ context.Context, _ []int, add []rulesync.Rule) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls = append(i.calls, add)
	return nil
}

func (i *recordingInstaller) last() []rulesync.Rule {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.calls) == 0 {
		return nil
	}
	return i.calls[len(i.calls)-1]
}

func newFileStore(t *testing.T) *config.FileStore {
	t.Helper()
	fs, err := config.NewFileStore(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)
	return fs
}

func TestBootstrap_NormalizesRecordAndInstallsRules(t *testing.T) {
	fs := newFileStore(t)
	require.NoError(t, fs.WriteRecord(context.Background(), settings.StorageKey, map[string]interface{}{
		"whitelist":        "HTTPS://Docs.Example.com/path, *.papers.org",
		"customThemeColor": "AABBCC",
	}))

	installer := &recordingInstaller{supported: true}
	svc := New(config.DefaultDaemonConfig(), fs, Ports{Installer: installer}, logging.Discard())
	defer svc.Close()

	require.NoError(t, svc.Bootstrap(context.Background()))

	rec, err := fs.ReadRecord(context.Background(), settings.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"docs.example.com", "*.papers.org"}, rec["whitelist"])
	assert.Equal(t, "#aabbcc", rec["customThemeColor"])

	rules := installer.last()
	require.Len(t, rules, 2)
	assert.Equal(t, []string{"docs.example.com", "papers.org"}, rules[0].Condition.RequestDomains)
	assert.Len(t, svc.Rules().Installed(), 2)
}

func TestBootstrap_DeclarativeRulesDisabled(t *testing.T) {
	cfg := config.DefaultDaemonConfig()
	cfg.Browser.DeclarativeRules = false
	installer := &recordingInstaller{supported: true}

	svc := New(cfg, newFileStore(t), Ports{Installer: installer}, logging.Discard())
	defer svc.Close()

	require.NoError(t, svc.Bootstrap(context.Background()))
	assert.Empty(t, installer.calls)
}

type failingPersistence struct{}

func (failingPersistence) ReadRecord(context.Context, string) (map[string]interface{}, error) {
	return nil, errors.New("unreadable")
}

func (failingPersistence) WriteRecord(context.Context, string, map[string]interface{}) error {
	return errors.New("read-only")
}

func TestBootstrap_PersistFailureStillSyncsRules(t *testing.T) {
	installer := &recordingInstaller{supported: true}
	svc := New(config.DefaultDaemonConfig(), failingPersistence{}, Ports{Installer: installer}, logging.Discard())
	defer svc.Close()

	assert.Error(t, svc.Bootstrap(context.Background()))
	assert.Len(t, installer.last(), 2)
}

func TestSave_ResyncsRules(t *testing.T) {
	installer := &recordingInstaller{supported: true}
	svc := New(config.DefaultDaemonConfig(), newFileStore(t), Ports{Installer: installer}, logging.Discard())
	defer svc.Close()
	require.NoError(t, svc.Bootstrap(context.Background()))

	_, err := svc.Settings().Save(context.Background(), map[string]interface{}{"autoTakeoverEnabled": false})
	require.NoError(t, err)
	assert.Empty(t, installer.last())
	assert.Empty(t, svc.Rules().Installed())
}

// syncWatcher delivers one change notification synchronously.
type syncWatcher struct {
	before func()
}

func (w syncWatcher) Watch(_ context.Context, onChange func(), _ func(error)) error {
	w.before()
	onChange()
	return nil
}

func TestWatchSettings_ReplaysExternalEdits(t *testing.T) {
	fs := newFileStore(t)
	installer := &recordingInstaller{supported: true}
	svc := New(config.DefaultDaemonConfig(), fs, Ports{Installer: installer}, logging.Discard())
	defer svc.Close()
	require.NoError(t, svc.Bootstrap(context.Background()))
	calls := len(installer.calls)

	err := svc.WatchSettings(context.Background(), syncWatcher{before: func() {
		require.NoError(t, fs.SetRecord(settings.StorageKey, map[string]interface{}{"blacklist": "*"}))
	}})
	require.NoError(t, err)

	s, err := svc.Settings().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, s.Blacklist)
	assert.Len(t, installer.calls, calls+1)
	assert.Empty(t, installer.last())
}
