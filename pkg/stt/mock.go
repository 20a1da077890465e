package stt

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked.
	// If nil, returns Text.
	TranscribeFunc func(ctx context.Context, wav []byte, sampleRate int) (string, error)

	// Text is returned when TranscribeFunc is nil.
	Text string

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a Transcribe invocation.
type MockCall struct {
	Bytes      int
	SampleRate int
	Time       time.Time
}

// NewMock returns a mock that always transcribes to text.
func NewMock(text string) *Mock {
	return &Mock{Text: text}
}

// WithError returns a mock that always fails.
func WithError(err error) *Mock {
	return &Mock{
		TranscribeFunc: func(ctx context.Context, wav []byte, sampleRate int) (string, error) {
			return "", err
		},
	}
}

// Transcribe records the call and returns the configured result.
func (m *Mock) Transcribe(ctx context.Context, wav []byte, sampleRate int) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Bytes: len(wav), SampleRate: sampleRate, Time: time.Now()})
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, wav, sampleRate)
	}
	return m.Text, nil
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns how many times Transcribe was called.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *Mock) Close() error {
	return nil
}

var _ Provider = (*Mock)(nil)
