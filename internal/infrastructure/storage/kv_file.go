package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/syed-hamad/posprint/internal/domain/ports"
)

// FileKVStore implements ports.KVStore as a single JSON file holding a
// string map. All printer configuration lives here, so a corrupt or
// unreadable file degrades to an empty store instead of failing: printer
// setup is a convenience, never worth blocking a print over.
type FileKVStore struct {
	mu       sync.Mutex
	filePath string
	values   map[string]string
	log      ports.Logger
}

// NewFileKVStore loads (or initialises) the store at path.
func NewFileKVStore(path string, log ports.Logger) *FileKVStore {
	s := &FileKVStore{
		filePath: path,
		values:   make(map[string]string),
		log:      log,
	}
	s.load()
	return s
}

func (s *FileKVStore) load() {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) && s.log != nil {
			s.log.Warn("kv store: cannot read %s: %v", s.filePath, err)
		}
		return
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		if s.log != nil {
			s.log.Warn("kv store: corrupt JSON in %s, starting empty: %v", s.filePath, err)
		}
		s.values = make(map[string]string)
	}
}

func (s *FileKVStore) saveLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("kv store: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("kv store: mkdir: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0o644); err != nil {
		return fmt.Errorf("kv store: write %s: %w", s.filePath, err)
	}
	return nil
}

// Get returns the stored value and whether the key exists.
func (s *FileKVStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value under key and persists the file.
func (s *FileKVStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.saveLocked()
}

// Delete removes a key and persists the file.
func (s *FileKVStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.saveLocked()
}
