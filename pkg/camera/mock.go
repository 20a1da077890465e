package camera

import (
	"context"
	"sync"
)

// Mock returns Frames in order, repeating the last one. Err, if set, is
// returned instead.
type Mock struct {
	mu     sync.Mutex
	Frames [][]byte
	Err    error
	calls  int
}

// Snapshot implements Snapshotter.
func (m *Mock) Snapshot(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Frames) == 0 {
		return nil, ErrNotAvailable
	}
	i := min(m.calls-1, len(m.Frames)-1)
	return m.Frames[i], nil
}

// Calls returns how many snapshots were requested.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ Snapshotter = (*Mock)(nil)
