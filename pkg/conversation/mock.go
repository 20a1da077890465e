package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/reachy-voice/pkg/faceid"
)

// MockEvent is one published event.
type MockEvent struct {
	Type string
	Data any
	Time time.Time
}

// MockEvents implements EventSink for testing.
type MockEvents struct {
	mu     sync.Mutex
	events []MockEvent
}

// NewMockEvents creates an empty recorder.
func NewMockEvents() *MockEvents {
	return &MockEvents{}
}

// Publish records the event.
func (m *MockEvents) Publish(eventType string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, MockEvent{Type: eventType, Data: data, Time: time.Now()})
}

// Events returns all recorded events.
func (m *MockEvents) Events() []MockEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockEvent(nil), m.events...)
}

// Count returns how many events of a type were published.
func (m *MockEvents) Count(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// States returns the sequence of published states.
func (m *MockEvents) States() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	var states []State
	for _, e := range m.events {
		if e.Type != EventState {
			continue
		}
		if d, ok := e.Data.(map[string]any); ok {
			if s, ok := d["state"].(State); ok {
				states = append(states, s)
			}
		}
	}
	return states
}

// IdentifierFunc adapts a function to Identifier.
type IdentifierFunc func(ctx context.Context, embedding faceid.Embedding) string

// Identify calls f.
func (f IdentifierFunc) Identify(ctx context.Context, embedding faceid.Embedding) string {
	return f(ctx, embedding)
}

var (
	_ EventSink  = (*MockEvents)(nil)
	_ Identifier = IdentifierFunc(nil)
	_ Identifier = (*faceid.Registry)(nil)
)
