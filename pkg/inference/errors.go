package inference

import (
	"errors"
	"fmt"

	"github.com/teslashibe/reachy-voice/pkg/openai"
)

var (
	ErrNoAPIKey = errors.New("inference: API key required")
	ErrNoModel  = errors.New("inference: model required")

	// ErrNoChoices is returned when the API answers without a completion.
	ErrNoChoices = errors.New("inference: no completion choices")

	ErrProviderUnavailable = errors.New("inference: provider unavailable")
)

// APIError represents an error response from an inference API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("inference [%s]: API error %d (%s): %s",
			e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("inference [%s]: API error %d: %s",
		e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized returns true if this is an authentication error (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.StatusCode >= 500
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("inference [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context. go-openai API failures
// are converted to *APIError.
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
		return "inference chain: no errors recorded"
	case 1:
		return fmt.Sprintf("inference chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("inference chain: all %d providers failed, last error: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error in the chain.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}
