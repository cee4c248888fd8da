package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrRecordNotFound is returned when a record key has never been written.
var ErrRecordNotFound = errors.New("record not found")

// Store provides persistence for named JSON records.
type Store interface {
	// Load loads the records from disk
	Load() error

	// Save saves the records to disk
	Save() error

	// GetRecord returns a copy of the record stored under key
	GetRecord(key string) (map[string]interface{}, error)

	// SetRecord replaces the record stored under key
	SetRecord(key string, data map[string]interface{}) error
}

// FileStore implements Store using a single JSON file.
type FileStore struct {
	path     string
	records  map[string]map[string]interface{}
	mu       sync.RWMutex
	version  string
	modified bool
}

type fileLayout struct {
	Version string                            `json:"version"`
	Records map[string]map[string]interface{} `json:"records"`
}

// DefaultSettingsPath returns ~/.darkpdf/settings.json.
func DefaultSettingsPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".darkpdf", "settings.json"), nil
}

// NewFileStore creates a new file-based record store.
// If path is empty, defaults to ~/.darkpdf/settings.json
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		p, err := DefaultSettingsPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	store := &FileStore{
		path:    path,
		records: make(map[string]map[string]interface{}),
		version: "1.0",
	}

	// A missing file is an empty store.
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load records from %s: %w", path, err)
	}

	return store, nil
}

// Load loads the records from disk, replacing anything held in memory.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.records = make(map[string]map[string]interface{})
			return nil
		}
		return fmt.Errorf("failed to open store file: %w", err)
	}
	defer file.Close()

	var layout fileLayout
	if err := json.NewDecoder(file).Decode(&layout); err != nil {
		return fmt.Errorf("failed to decode store file: %w", err)
	}

	if layout.Version != "" {
		s.version = layout.Version
	}
	if layout.Records != nil {
		s.records = layout.Records
	} else {
		s.records = make(map[string]map[string]interface{})
	}
	s.modified = false

	return nil
}

// Save writes the records to disk through a temp file and rename.
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fileLayout{Version: s.version, Records: s.records}); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode records: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	s.modified = false
	return nil
}

// GetRecord returns a copy of the record stored under key.
func (s *FileStore) GetRecord(key string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.records[key]
	if !exists {
		return nil, fmt.Errorf("%q: %w", key, ErrRecordNotFound)
	}
	return copyRecord(data), nil
}

// SetRecord stores a copy of data under key.
func (s *FileStore) SetRecord(key string, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = copyRecord(data)
	s.modified = true
	return nil
}

// ReadRecord is the persistence-port form of GetRecord.
func (s *FileStore) ReadRecord(_ context.Context, key string) (map[string]interface{}, error) {
	return s.GetRecord(key)
}

// WriteRecord sets the record and saves the file.
func (s *FileStore) WriteRecord(_ context.Context, key string, data map[string]interface{}) error {
	if err := s.SetRecord(key, data); err != nil {
		return err
	}
	return s.Save()
}

// IsModified returns true if the store has unsaved changes.
func (s *FileStore) IsModified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

// Path returns the file path of the store.
func (s *FileStore) Path() string {
	return s.path
}

// copyRecord copies the top level of a record; nested values are shared.
func copyRecord(data map[string]interface{}) map[string]interface{} {
	dataCopy := make(map[string]interface{}, len(data))
	for k, v := range data {
		dataCopy[k] = v
	}
	return dataCopy
}
