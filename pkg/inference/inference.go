// Package inference wraps chat completion backends behind one interface.
//
// The conversation loop builds a ChatRequest from the system prompt, the
// capped history and the new user message, and reads back the assistant
// text plus any tool calls. OpenAI (and any OpenAI-compatible server via
// WithBaseURL) is the production backend; Chain adds fallback.
//
//	client, _ := inference.NewClient(
//	    inference.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    inference.WithModel("gpt-4o-mini"),
//	)
//	resp, _ := client.Chat(ctx, &inference.ChatRequest{
//	    Messages: []inference.Message{inference.NewUserMessage("Hello!")},
//	})
package inference

import "context"

// Provider generates chat completions.
type Provider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	Close() error
}

// ChatRequest for chat completions.
type ChatRequest struct {
	Messages []Message

	// Model overrides the default model.
	Model string

	// MaxTokens limits the response length. Zero uses the provider default.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0). Zero uses the default.
	Temperature float64

	Tools []Tool

	// ToolChoice controls tool use: "auto", "none", "required".
	ToolChoice string
}

// ChatResponse from chat completion.
type ChatResponse struct {
	// Message is the assistant's reply, possibly carrying tool calls.
	Message Message

	// FinishReason is stop, length or tool_calls.
	FinishReason string

	Usage Usage
	Model string

	LatencyMs int64
}

// Text returns the trimmed assistant content.
func (r *ChatResponse) Text() string {
	if r == nil {
		return ""
	}
	return trim(r.Message.Content)
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
