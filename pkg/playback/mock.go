package playback

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/reachy-voice/pkg/tts"
)

// Mock implements Player for testing. By default Play blocks for the
// clip's Duration (or until ctx is cancelled).
type Mock struct {
	// PlayFunc, if set, replaces the default behaviour.
	PlayFunc func(ctx context.Context, audio *tts.AudioResult) error

	mu          sync.Mutex
	played      []*tts.AudioResult
	interrupted int
	started     chan struct{}
}

// NewMock creates a mock player.
func NewMock() *Mock {
	return &Mock{started: make(chan struct{}, 16)}
}

// Play records the clip and simulates playback.
func (m *Mock) Play(ctx context.Context, audio *tts.AudioResult) error {
	m.mu.Lock()
	m.played = append(m.played, audio)
	m.mu.Unlock()

	select {
	case m.started <- struct{}{}:
	default:
	}

	if m.PlayFunc != nil {
		return m.PlayFunc(ctx, audio)
	}

	t := time.NewTimer(audio.Duration)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		m.interrupted++
		m.mu.Unlock()
		return ctx.Err()
	}
}

// Started is signalled each time Play begins.
func (m *Mock) Started() <-chan struct{} {
	return m.started
}

// Played returns the clips passed to Play.
func (m *Mock) Played() []*tts.AudioResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*tts.AudioResult(nil), m.played...)
}

// Interrupted returns how many clips were cut short.
func (m *Mock) Interrupted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interrupted
}

var _ Player = (*Mock)(nil)
