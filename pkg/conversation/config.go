package conversation

import (
	"fmt"
	"log/slog"
	"time"
)

// DefaultSystemPrompt is the robot's persona.
const DefaultSystemPrompt = "You are a small friendly robot called Reachy Mini. " +
	"Keep responses SHORT, one or two sentences. Be warm and curious. No emojis. " +
	"Use play_emotion to express yourself and remember to keep facts about the person you are talking to."

// DefaultHistoryLimit caps the chat history, system prompt included.
const DefaultHistoryLimit = 20

// Config holds orchestrator settings.
type Config struct {
	// SystemPrompt is the system instruction sent with every turn.
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`

	// Model overrides the chat provider's default model.
	Model string `yaml:"model" json:"model"`

	// MaxTokens limits the reply length.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`

	// Temperature controls randomness (0.0-2.0).
	Temperature float64 `yaml:"temperature" json:"temperature"`

	// HistoryLimit is the most messages kept, system prompt included.
	HistoryLimit int `yaml:"history_limit" json:"history_limit"`

	// SampleInterval is how often the identity sampler looks at the camera.
	SampleInterval time.Duration `yaml:"sample_interval" json:"sample_interval"`

	// BargeIn interrupts playback when the user talks over the robot.
	// Off by default: without echo cancellation the robot hears itself.
	BargeIn bool `yaml:"barge_in" json:"barge_in"`

	// Per-collaborator timeouts.
	STTTimeout      time.Duration `yaml:"stt_timeout" json:"stt_timeout"`
	ChatTimeout     time.Duration `yaml:"chat_timeout" json:"chat_timeout"`
	TTSTimeout      time.Duration `yaml:"tts_timeout" json:"tts_timeout"`
	MemoryTimeout   time.Duration `yaml:"memory_timeout" json:"memory_timeout"`
	PlaybackTimeout time.Duration `yaml:"playback_timeout" json:"playback_timeout"`
	ToolTimeout     time.Duration `yaml:"tool_timeout" json:"tool_timeout"`

	// Logger is the structured logger to use.
	Logger *slog.Logger `yaml:"-" json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SystemPrompt:    DefaultSystemPrompt,
		MaxTokens:       150,
		Temperature:     0.8,
		HistoryLimit:    DefaultHistoryLimit,
		SampleInterval:  2 * time.Second,
		STTTimeout:      30 * time.Second,
		ChatTimeout:     60 * time.Second,
		TTSTimeout:      30 * time.Second,
		MemoryTimeout:   5 * time.Second,
		PlaybackTimeout: 120 * time.Second,
		ToolTimeout:     10 * time.Second,
		Logger:          slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.HistoryLimit < 2 {
		return &ConfigError{Field: "history_limit", Reason: fmt.Sprintf("must be at least 2, got %d", c.HistoryLimit)}
	}
	if c.SampleInterval <= 0 {
		return &ConfigError{Field: "sample_interval", Reason: "must be positive"}
	}
	timeouts := map[string]time.Duration{
		"stt_timeout":      c.STTTimeout,
		"chat_timeout":     c.ChatTimeout,
		"tts_timeout":      c.TTSTimeout,
		"memory_timeout":   c.MemoryTimeout,
		"playback_timeout": c.PlaybackTimeout,
		"tool_timeout":     c.ToolTimeout,
	}
	for field, d := range timeouts {
		if d <= 0 {
			return &ConfigError{Field: field, Reason: "must be positive"}
		}
	}
	return nil
}

// Option is a functional option for configuring the orchestrator.
type Option func(*Config)

// WithSystemPrompt sets the system instruction.
func WithSystemPrompt(prompt string) Option {
	return func(c *Config) {
		c.SystemPrompt = prompt
	}
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTemperature sets the response temperature.
func WithTemperature(temp float64) Option {
	return func(c *Config) {
		c.Temperature = temp
	}
}

// WithMaxTokens sets the maximum response tokens.
func WithMaxTokens(tokens int) Option {
	return func(c *Config) {
		c.MaxTokens = tokens
	}
}

// WithHistoryLimit caps the chat history.
func WithHistoryLimit(n int) Option {
	return func(c *Config) {
		c.HistoryLimit = n
	}
}

// WithSampleInterval sets the identity sampling period.
func WithSampleInterval(d time.Duration) Option {
	return func(c *Config) {
		c.SampleInterval = d
	}
}

// WithBargeIn enables interrupting playback on user speech.
func WithBargeIn(enabled bool) Option {
	return func(c *Config) {
		c.BargeIn = enabled
	}
}

// WithTimeouts sets the STT, chat, TTS and memory timeouts.
func WithTimeouts(stt, chat, tts, memory time.Duration) Option {
	return func(c *Config) {
		c.STTTimeout = stt
		c.ChatTimeout = chat
		c.TTSTimeout = tts
		c.MemoryTimeout = memory
	}
}

// WithPlaybackTimeout bounds a single reply's playback.
func WithPlaybackTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.PlaybackTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithConfig replaces every setting with cfg, typically one loaded from a
// config file. A nil cfg.Logger keeps the current logger.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		logger := c.Logger
		*c = cfg
		if c.Logger == nil {
			c.Logger = logger
		}
	}
}
