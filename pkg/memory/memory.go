// Package memory keeps what the robot knows about each user.
//
// Every identified user (keyed by the face registry's user id) gets a
// PersonMemory with the facts the robot concluded about them and the most
// recent exchanges. Context renders that record for the chat prompt.
package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// DefaultMaxExchanges is how many recent exchanges are kept per user.
const DefaultMaxExchanges = 10

// Service is what the conversation loop needs from a memory backend.
// All methods must be safe for concurrent use.
type Service interface {
	// Context returns prompt text describing the user, or "" if unknown.
	Context(ctx context.Context, userID string) (string, error)

	// SaveExchange records one user utterance and the robot's reply.
	SaveExchange(ctx context.Context, userID, userText, robotText string) error

	// Conclude records a durable fact about the user.
	Conclude(ctx context.Context, userID, fact string) error
}

// Recaller answers a question about a user from stored memory.
type Recaller interface {
	Recall(ctx context.Context, userID, question string) (string, error)
}

// Memory is the local Service implementation. Data persists to the
// configured Store after every change.
type Memory struct {
	// People is keyed by user id.
	People map[string]*PersonMemory `json:"people"`

	maxExchanges int
	store        Store
	logger       *slog.Logger
	now          func() time.Time

	mu sync.RWMutex
}

// Option configures a Memory.
type Option func(*Memory)

// WithStore persists memory through s.
func WithStore(s Store) Option {
	return func(m *Memory) { m.store = s }
}

// WithMaxExchanges bounds the per-user exchange log.
func WithMaxExchanges(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.maxExchanges = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Memory) { m.logger = l }
}

// New creates a memory and loads any existing data from its store.
func New(opts ...Option) (*Memory, error) {
	m := &Memory{
		People:       make(map[string]*PersonMemory),
		maxExchanges: DefaultMaxExchanges,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "memory")
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewWithFile creates a memory that persists to a JSON file.
func NewWithFile(path string, opts ...Option) (*Memory, error) {
	return New(append(opts, WithStore(NewJSONStore(path)))...)
}

// Save persists memory to the configured store.
func (m *Memory) Save() error {
	if m.store == nil {
		return nil
	}

	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return err
	}

	return m.store.Save(data)
}

// Load replaces in-memory data with what the store holds.
func (m *Memory) Load() error {
	if m.store == nil {
		return nil
	}

	data, err := m.store.Load()
	if err != nil || data == nil {
		return err
	}

	var loaded struct {
		People map[string]*PersonMemory `json:"people"`
	}
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if loaded.People != nil {
		m.People = loaded.People
	}
	return nil
}

// Close releases resources held by the store.
func (m *Memory) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}

// Stats returns counts for the status endpoint.
func (m *Memory) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	facts, exchanges := 0, 0
	for _, p := range m.People {
		facts += len(p.Facts)
		exchanges += len(p.Exchanges)
	}
	return map[string]int{
		"people":    len(m.People),
		"facts":     facts,
		"exchanges": exchanges,
	}
}

var _ Service = (*Memory)(nil)

// Nop is a Service that remembers nothing. Used when memory is disabled.
type Nop struct{}

func (Nop) Context(context.Context, string) (string, error) { return "", nil }
func (Nop) SaveExchange(context.Context, string, string, string) error { return nil }
func (Nop) Conclude(context.Context, string, string) error { return nil }

var (
	_ Service  = Nop{}
	_ Recaller = (*Memory)(nil)
)
