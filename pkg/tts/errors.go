package tts

import (
	"errors"
	"fmt"

	"github.com/teslashibe/reachy-voice/pkg/openai"
)

var (
	ErrNoAPIKey     = errors.New("tts: API key required")
	ErrNoVoiceID    = errors.New("tts: voice required")
	ErrInvalidSpeed = errors.New("tts: speed must be between 0.25 and 4.0")
	ErrEmptyText    = errors.New("tts: empty text")

	// ErrProviderUnavailable is returned when no providers are configured.
	ErrProviderUnavailable = errors.New("tts: no providers available")
)

// APIError is a non-2xx answer from a TTS API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tts [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("tts [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable returns true for rate limits and server errors.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context. API failures become
// *APIError so callers can check IsRetryable.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if s, ok := openai.StatusOf(err); ok {
		return &APIError{StatusCode: s.Code, Message: s.Message, Code: s.ErrCode, Provider: provider}
	}
	return &ProviderError{Provider: provider, Err: err}
}

// ChainError aggregates errors from all providers in a chain.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "tts chain: no errors recorded"
	case 1:
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("tts chain: all %d providers failed, last error: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error in the chain.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}
