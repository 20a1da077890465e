package inference

import (
	"log/slog"
	"time"
)

// Config holds provider configuration.
type Config struct {
	BaseURL string // Empty means api.openai.com
	APIKey  string

	Model string

	MaxTokens   int
	Temperature float64

	Timeout time.Duration

	// Retries apply to 429 and 5xx responses only.
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithBaseURL points the client at an OpenAI-compatible server.
// Examples: "https://api.openai.com/v1", "http://localhost:11434/v1"
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults tuned for short spoken replies.
func DefaultConfig() *Config {
	return &Config{
		Model:       "gpt-4o-mini",
		MaxTokens:   300,
		Temperature: 0.8,
		Timeout:     60 * time.Second,
		MaxRetries:  2,
		RetryDelay:  200 * time.Millisecond,
		Logger:      slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present. The key may be
// empty when BaseURL points at a local server.
func (c *Config) Validate() error {
	if c.APIKey == "" && c.BaseURL == "" {
		return ErrNoAPIKey
	}
	if c.Model == "" {
		return ErrNoModel
	}
	return nil
}
