package faceid

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists identities. Implementations assume a single writer.
type Store interface {
	// Load returns every stored identity. An empty store returns nil, nil.
	Load(ctx context.Context) ([]Identity, error)

	// Save replaces the stored identities with ids.
	Save(ctx context.Context, ids []Identity) error

	// Close releases any resources held by the store.
	Close() error
}

// MemoryStore keeps identities in memory. Used for tests and ephemeral runs.
type MemoryStore struct {
	mu    sync.Mutex
	ids   []Identity
	saves int

	// SaveErr, when set, is returned by every Save.
	SaveErr error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(ids ...Identity) *MemoryStore {
	return &MemoryStore{ids: ids}
}

// Load returns a copy of the stored identities.
func (s *MemoryStore) Load(ctx context.Context) ([]Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Identity, len(s.ids))
	for i, id := range s.ids {
		out[i] = id.clone()
	}
	return out, nil
}

// Save replaces the stored identities.
func (s *MemoryStore) Save(ctx context.Context, ids []Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.ids = make([]Identity, len(ids))
	for i, id := range ids {
		s.ids[i] = id.clone()
	}
	return nil
}

// Saves returns how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// JSONStore persists identities to a JSON document of the form
// {"faces":[{"user_id":"kaya","embeddings":[[...],[...]]}]}.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

// registryFile is the on-disk document.
type registryFile struct {
	Faces []faceEntry `json:"faces"`
}

type faceEntry struct {
	UserID     string      `json:"user_id"`
	Embeddings []Embedding `json:"embeddings,omitempty"`

	// Embedding is the older single-vector layout, read but never written.
	Embedding Embedding `json:"embedding,omitempty"`
}

// NewJSONStore creates a store backed by the file at path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the registry file. A missing file is an empty registry.
func (s *JSONStore) Load(ctx context.Context) ([]Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	ids := make([]Identity, 0, len(file.Faces))
	for _, f := range file.Faces {
		embs := f.Embeddings
		if len(embs) == 0 && len(f.Embedding) > 0 {
			embs = []Embedding{f.Embedding}
		}
		ids = append(ids, Identity{UserID: f.UserID, Embeddings: embs})
	}
	return ids, nil
}

// Save writes the registry atomically (temp file + rename).
func (s *JSONStore) Save(ctx context.Context, ids []Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file := registryFile{Faces: make([]faceEntry, len(ids))}
	for i, id := range ids {
		file.Faces[i] = faceEntry{UserID: id.UserID, Embeddings: id.Embeddings}
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Close is a no-op for JSON files.
func (s *JSONStore) Close() error {
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*JSONStore)(nil)
)
