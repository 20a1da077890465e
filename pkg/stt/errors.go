package stt

import (
	"errors"
	"fmt"

	"github.com/teslashibe/reachy-voice/pkg/openai"
)

var (
	ErrNoAPIKey   = errors.New("stt: API key required")
	ErrEmptyAudio = errors.New("stt: empty audio")
	ErrTooShort   = errors.New("stt: audio too short")
)

// APIError is a non-2xx answer from a transcription API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stt [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("stt [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
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
	return fmt.Sprintf("stt [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if s, ok := openai.StatusOf(err); ok {
		return &APIError{StatusCode: s.Code, Message: s.Message, Code: s.ErrCode, Provider: provider}
	}
	return &ProviderError{Provider: provider, Err: err}
}
