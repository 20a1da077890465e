package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/teslashibe/reachy-voice/pkg/openai"
)

const providerClient = "openai"

// Client is the go-openai backed provider.
// Works with any OpenAI-compatible API (OpenAI, Ollama, vLLM, Groq, etc.).
type Client struct {
	config *Config
	api    *goopenai.Client
	logger *slog.Logger
}

// NewClient creates a new inference client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		api:    openai.NewClient(openai.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}),
		logger: cfg.Logger.With("component", "inference.client"),
	}, nil
}

// Chat generates a chat completion.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	creq := c.buildRequest(req)
	resp, err := c.doWithRetry(ctx, creq)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, WrapError(providerClient, ErrNoChoices)
	}

	choice := resp.Choices[0]
	out := &ChatResponse{
		Message: Message{
			Role:      RoleAssistant,
			Content:   choice.Message.Content,
			ToolCalls: fromToolCalls(choice.Message.ToolCalls),
		},
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model:     resp.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}

	c.logger.Debug("chat completion",
		"model", out.Model,
		"messages", len(req.Messages),
		"tool_calls", len(out.Message.ToolCalls),
		"tokens", out.Usage.TotalTokens,
		"latency_ms", out.LatencyMs,
	)
	return out, nil
}

// Health lists models to check connectivity and the key.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return WrapError(providerClient, fmt.Errorf("health check: %w", err))
	}
	return nil
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}

func (c *Client) buildRequest(req *ChatRequest) goopenai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.config.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.config.Temperature
	}

	creq := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    toMessages(req.Messages),
		MaxTokens:   maxTokens,
		Temperature: float32(temp),
		Tools:       toTools(req.Tools),
	}
	if len(creq.Tools) > 0 && req.ToolChoice != "" {
		creq.ToolChoice = req.ToolChoice
	}
	return creq
}

func (c *Client) doWithRetry(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return goopenai.ChatCompletionResponse{}, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return goopenai.ChatCompletionResponse{}, ctx.Err()
		}

		lastErr = WrapError(providerClient, err)
		var apiErr *APIError
		if !errors.As(lastErr, &apiErr) || !apiErr.IsRetryable() {
			break
		}
		c.logger.Warn("retrying request", "attempt", attempt+1, "status", apiErr.StatusCode)
	}

	return goopenai.ChatCompletionResponse{}, lastErr
}

func toMessages(msgs []Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = goopenai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			out[i].ToolCalls = append(out[i].ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
	}
	return out
}

func toTools(tools []Tool) []goopenai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]goopenai.Tool, len(tools))
	for i, t := range tools {
		out[i] = goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		}
	}
	return out
}

func fromToolCalls(calls []goopenai.ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}
	}
	return out
}

var _ Provider = (*Client)(nil)
