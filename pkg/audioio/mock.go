package audioio

import (
	"context"
	"io"
	"math"
	"sync"
	"time"
)

// MockSource replays a scripted list of frames and then reports io.EOF,
// or blocks until closed when Hold is set.
type MockSource struct {
	cfg Config

	mu     sync.Mutex
	frames []Frame
	closed bool

	// Hold keeps Read blocking after the script is exhausted instead of
	// returning io.EOF, mimicking a live microphone.
	Hold bool

	// Interval paces Read like a real device. Zero returns frames as fast
	// as they are read.
	Interval time.Duration

	done chan struct{}
	wake chan struct{}
}

// NewMockSource creates a mock source producing frames in cfg's format.
func NewMockSource(cfg Config, frames ...Frame) *MockSource {
	return &MockSource{
		cfg:    cfg,
		frames: frames,
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}
}

// Append adds frames to the script and wakes a Read waiting on Hold.
func (m *MockSource) Append(frames ...Frame) {
	m.mu.Lock()
	m.frames = append(m.frames, frames...)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Start is a no-op.
func (m *MockSource) Start(ctx context.Context) error {
	return nil
}

// Read returns the next scripted frame.
func (m *MockSource) Read(ctx context.Context) (Frame, error) {
	if m.Interval > 0 {
		select {
		case <-time.After(m.Interval):
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}

	for {
		m.mu.Lock()
		if len(m.frames) > 0 && !m.closed {
			f := m.frames[0]
			m.frames = m.frames[1:]
			m.mu.Unlock()
			return f, nil
		}
		hold := m.Hold && !m.closed
		m.mu.Unlock()

		if !hold {
			return Frame{}, io.EOF
		}
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-m.done:
			return Frame{}, io.EOF
		case <-m.wake:
		}
	}
}

// Remaining returns how many scripted frames have not been read.
func (m *MockSource) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close ends the script.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// ToneFrame returns a mono frame of a sine tone whose RMS is amplitude/sqrt(2).
func ToneFrame(cfg Config, frequency, amplitude float64) Frame {
	n := cfg.FrameSize()
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*frequency*float64(i)/float64(cfg.SampleRate)))
	}
	return Frame{Samples: samples, SampleRate: cfg.SampleRate, Channels: 1}
}

// ConstantFrame returns a mono frame where every sample is v, so its RMS
// is exactly |v|.
func ConstantFrame(cfg Config, v int16) Frame {
	samples := make([]int16, cfg.FrameSize())
	for i := range samples {
		samples[i] = v
	}
	return Frame{Samples: samples, SampleRate: cfg.SampleRate, Channels: 1}
}

// MockSink records written frames. WriteDelay makes each Write take that
// long (or until ctx is cancelled) so playback interruption can be tested.
type MockSink struct {
	WriteDelay time.Duration

	mu      sync.Mutex
	frames  []Frame
	clears  int
	flushes int
	closed  bool
}

// NewMockSink creates a mock sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Write records the frame.
func (m *MockSink) Write(ctx context.Context, frame Frame) error {
	if m.WriteDelay > 0 {
		select {
		case <-time.After(m.WriteDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	m.frames = append(m.frames, frame)
	return nil
}

// Flush records the call.
func (m *MockSink) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

// Clear records the call.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	return nil
}

// Frames returns a copy of the written frames.
func (m *MockSink) Frames() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Frame(nil), m.frames...)
}

// Clears returns how many times Clear was called.
func (m *MockSink) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// Flushes returns how many times Flush was called.
func (m *MockSink) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return "mock"
}

// Close marks the sink closed.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var (
	_ Source = (*MockSource)(nil)
	_ Sink   = (*MockSink)(nil)
)
