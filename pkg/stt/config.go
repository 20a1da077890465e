package stt

import (
	"log/slog"
	"time"
)

// Config holds STT provider configuration.
type Config struct {
	APIKey  string
	BaseURL string

	// Model defaults to whisper-1.
	Model string

	// Language is an ISO-639-1 hint. Empty lets the model detect it.
	Language string

	// Prompt biases recognition toward expected vocabulary.
	Prompt string

	Timeout time.Duration

	// MinDuration rejects clips too short for the API (it refuses < 0.1 s).
	MinDuration time.Duration

	Logger *slog.Logger
}

// Option is a functional option for configuring STT providers.
type Option func(*Config)

func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

func WithLanguage(lang string) Option {
	return func(c *Config) {
		c.Language = lang
	}
}

func WithPrompt(prompt string) Option {
	return func(c *Config) {
		c.Prompt = prompt
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Model:       "whisper-1",
		Language:    "en",
		Timeout:     30 * time.Second,
		MinDuration: 100 * time.Millisecond,
		Logger:      slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
