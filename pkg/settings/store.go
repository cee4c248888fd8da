package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/entrhq/darkpdf/pkg/config"
	"github.com/entrhq/darkpdf/pkg/logging"
)

// Persistence reads and writes raw records by key. config.FileStore
// satisfies it.
type Persistence interface {
	ReadRecord(ctx context.Context, key string) (map[string]interface{}, error)
	WriteRecord(ctx context.Context, key string, data map[string]interface{}) error
}

// Listener is called with the new settings after every change.
type Listener func(Settings)

// Store caches the normalized settings record and keeps it in sync with
// persistence. The cache is what every other component consults; it is only
// re-read on Reload or when an external change is reported through Replace.
type Store struct {
	persistence Persistence
	logger      *logging.Logger

	mu        sync.RWMutex
	current   Settings
	loaded    bool
	listeners []Listener
}

// NewStore creates a store over the given persistence.
func NewStore(p Persistence, logger *logging.Logger) *Store {
	return &Store{
		persistence: p,
		logger:      logger,
		current:     Default(),
	}
}

// Get returns the cached settings, loading them on the first call.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	s.mu.RLock()
	if s.loaded {
		cur := s.current
		s.mu.RUnlock()
		return cur, nil
	}
	s.mu.RUnlock()
	return s.Reload(ctx)
}

// Reload always re-reads persistence. A missing record yields defaults; a
// read failure is logged and also yields defaults so decisions can proceed.
func (s *Store) Reload(ctx context.Context) (Settings, error) {
	raw, err := s.persistence.ReadRecord(ctx, StorageKey)
	if err != nil && !errors.Is(err, config.ErrRecordNotFound) {
		s.logger.Warnf("failed to read settings, using defaults: %v", err)
	}
	next := Normalize(raw)

	s.mu.Lock()
	s.current = next
	s.loaded = true
	s.mu.Unlock()
	return next, nil
}

// Save normalizes raw, persists it, replaces the cache and notifies
// listeners. The cache is updated even if persisting fails.
func (s *Store) Save(ctx context.Context, raw map[string]interface{}) (Settings, error) {
	next := Normalize(raw)
	err := s.persistence.WriteRecord(ctx, StorageKey, next.Record())
	s.set(next, true)
	if err != nil {
		return next, fmt.Errorf("failed to persist settings: %w", err)
	}
	return next, nil
}

// Replace installs a record observed from outside (for example an edit of
// the settings file). Listeners are only notified when the normalized value
// differs from the cache.
func (s *Store) Replace(raw map[string]interface{}) Settings {
	next := Normalize(raw)
	s.set(next, false)
	return next
}

// Subscribe registers fn to be called after every change.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) set(next Settings, always bool) {
	s.mu.Lock()
	changed := !s.loaded || !s.current.Equal(next)
	s.current = next
	s.loaded = true
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	if !changed && !always {
		return
	}
	for _, fn := range listeners {
		fn(next)
	}
}
