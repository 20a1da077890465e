package robot

import (
	"context"
	"fmt"
	"sync"
)

// Mock implements Controller for testing.
type Mock struct {
	// Err, if set, is returned by every call.
	Err error

	// State is returned by DaemonStatus. Defaults to "running".
	State string

	mu    sync.Mutex
	calls []string
}

func (m *Mock) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.Err
}

func (m *Mock) PlayEmotion(ctx context.Context, emotion string) error {
	return m.record("PlayEmotion:" + emotion)
}

func (m *Mock) SetVolume(ctx context.Context, level int) error {
	return m.record(fmt.Sprintf("SetVolume:%d", level))
}

func (m *Mock) DaemonStatus(ctx context.Context) (string, error) {
	if err := m.record("DaemonStatus"); err != nil {
		return "", err
	}
	if m.State == "" {
		return "running", nil
	}
	return m.State, nil
}

// Calls returns calls as "Method:arg" strings.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
