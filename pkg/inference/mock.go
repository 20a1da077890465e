package inference

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	// ChatFunc is called when Chat is invoked.
	ChatFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// HealthFunc is called when Health is invoked.
	HealthFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation. Messages is a copy of the request
// history so later mutation by the caller does not change it.
type MockCall struct {
	Method   string
	Messages []Message
	Tools    []Tool
	Time     time.Time
}

// NewMock creates a mock that always answers "Mock response".
func NewMock() *Mock {
	return NewMockReply("Mock response")
}

// NewMockReply creates a mock that always answers text.
func NewMockReply(text string) *Mock {
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return Reply(text), nil
		},
	}
}

// NewMockSequence answers with each response in turn, repeating the last.
func NewMockSequence(responses ...*ChatResponse) *Mock {
	var mu sync.Mutex
	i := 0
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(responses) == 0 {
				return Reply(""), nil
			}
			r := responses[min(i, len(responses)-1)]
			i++
			return r, nil
		},
	}
}

// Reply builds a plain assistant response.
func Reply(text string, calls ...ToolCall) *ChatResponse {
	finish := "stop"
	if len(calls) > 0 {
		finish = "tool_calls"
	}
	return &ChatResponse{
		Message:      Message{Role: RoleAssistant, Content: text, ToolCalls: calls},
		FinishReason: finish,
		Usage:        Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// Chat calls ChatFunc and records the call.
func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{
		Method:   "Chat",
		Messages: append([]Message(nil), req.Messages...),
		Tools:    req.Tools,
		Time:     time.Now(),
	})
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.record("Health")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

func (m *Mock) Close() error {
	m.record("Close")
	return nil
}

func (m *Mock) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Time: time.Now()})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock that always returns the given error.
func WithError(err error) *Mock {
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

var _ Provider = (*Mock)(nil)
