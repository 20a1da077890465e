package tts

import (
	"log/slog"
	"time"
)

// Config holds TTS provider configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	APIKey  string
	BaseURL string

	VoiceID string
	ModelID string

	// Speed is the speaking rate (0.25-4.0, 1.0 normal). Zero leaves the
	// provider default.
	Speed float64

	// Instructions steers tone on models that accept it.
	Instructions string

	Timeout time.Duration

	// Retries apply to 429 and 5xx responses only.
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option is a functional option for configuring TTS providers.
type Option func(*Config)

// WithAPIKey sets the API key for the provider.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithVoice sets the voice.
func WithVoice(voiceID string) Option {
	return func(c *Config) {
		c.VoiceID = voiceID
	}
}

// WithModel sets the model.
func WithModel(modelID string) Option {
	return func(c *Config) {
		c.ModelID = modelID
	}
}

func WithSpeed(speed float64) Option {
	return func(c *Config) {
		c.Speed = speed
	}
}

func WithInstructions(s string) Option {
	return func(c *Config) {
		c.Instructions = s
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithRetry configures retry behavior for failed requests.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the production defaults: tts-1 with the shimmer
// voice, which is what the robot has always sounded like.
func DefaultConfig() *Config {
	return &Config{
		ModelID:    ModelTTS1,
		VoiceID:    VoiceShimmer,
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		Logger:     slog.Default(),
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
	if c.VoiceID == "" {
		return ErrNoVoiceID
	}
	if c.Speed != 0 && (c.Speed < 0.25 || c.Speed > 4.0) {
		return ErrInvalidSpeed
	}
	return nil
}
