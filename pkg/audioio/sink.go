package audioio

import (
	"context"
	"io"
	"time"
)

// Sink plays audio to a speaker or other output device.
type Sink interface {
	// Write sends a frame to the output device.
	// This may block if the output buffer is full.
	Write(ctx context.Context, frame Frame) error

	// Flush waits for all buffered audio to be played.
	Flush(ctx context.Context) error

	// Clear discards all buffered audio immediately.
	// Used to interrupt playback.
	Clear() error

	// Name returns the backend name.
	Name() string

	io.Closer
}

// PacedSink discards audio but blocks each Write for the frame's duration,
// so callers see real-time playback without a speaker attached. Used for
// dry runs.
type PacedSink struct {
	cleared chan struct{}
}

// NewPacedSink creates a paced sink.
func NewPacedSink() *PacedSink {
	return &PacedSink{cleared: make(chan struct{}, 1)}
}

// Write waits for the frame duration, returning early on Clear or ctx.
func (s *PacedSink) Write(ctx context.Context, frame Frame) error {
	t := time.NewTimer(frame.Duration())
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-s.cleared:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush returns immediately; nothing is buffered.
func (s *PacedSink) Flush(ctx context.Context) error {
	return ctx.Err()
}

// Clear releases a blocked Write.
func (s *PacedSink) Clear() error {
	select {
	case s.cleared <- struct{}{}:
	default:
	}
	return nil
}

func (s *PacedSink) Name() string { return "paced" }

func (s *PacedSink) Close() error { return nil }

var _ Sink = (*PacedSink)(nil)
