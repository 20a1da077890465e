package memory

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store defines the interface for memory persistence backends.
type Store interface {
	Save(data []byte) error

	// Load returns nil data when nothing has been saved yet.
	Load() ([]byte, error)

	Close() error
}

// JSONStore implements Store for file-based JSON persistence.
type JSONStore struct {
	FilePath string
}

// NewJSONStore creates a new JSON file store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{FilePath: path}
}

// Save writes data through a temp file and rename so a crash never leaves
// a truncated file behind.
func (s *JSONStore) Save(data []byte) error {
	if s.FilePath == "" {
		return nil
	}

	dir := filepath.Dir(s.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp := s.FilePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, s.FilePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Load reads data from the JSON file.
func (s *JSONStore) Load() ([]byte, error) {
	if s.FilePath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Close is a no-op for JSON files.
func (s *JSONStore) Close() error {
	return nil
}

var _ Store = (*JSONStore)(nil)
