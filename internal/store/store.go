// Package store provides the durable key-value state consumed by the shell.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/land007/theia/internal/logging"
	"go.uber.org/zap"
)

// Store is the persistence contract consumed by the window manager.
//
// Get decodes the stored value for key into out and reports whether a usable
// value was found. A missing or unreadable entry leaves the caller's default
// in place and returns false; it never returns an error. Set persists the
// value and surfaces failures to the caller.
type Store interface {
	Get(key string, out interface{}) bool
	Set(key string, value interface{}) error
}

// FileStore keeps all values in a single JSON document on disk with an
// in-memory cache. The file is read once on first access; every Set rewrites
// it in full.
type FileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]json.RawMessage
	loaded bool
	log    *logging.Logger
}

// NewFileStore creates a store backed by the JSON file at path.
func NewFileStore(path string, log *logging.Logger) *FileStore {
	return &FileStore{
		path: path,
		log:  log,
	}
}

// Get implements Store.
func (s *FileStore) Get(key string, out interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadLocked()

	raw, ok := s.values[key]
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.log.Warn("stored value unreadable, using default",
			zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set implements Store.
func (s *FileStore) Set(key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadLocked()

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %q: %w", key, err)
	}
	s.values[key] = raw

	return s.flushLocked()
}

// loadLocked populates the cache from disk on first use. A missing or corrupt
// file yields an empty store rather than an error.
func (s *FileStore) loadLocked() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.values = make(map[string]json.RawMessage)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("state file unreadable, starting empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return
	}

	if err := json.Unmarshal(data, &s.values); err != nil {
		s.log.Warn("state file corrupt, starting empty",
			zap.String("path", s.path), zap.Error(err))
		s.values = make(map[string]json.RawMessage)
	}
}

func (s *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	// Write-then-rename keeps a crash from truncating the previous state.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
