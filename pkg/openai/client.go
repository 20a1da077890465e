// Package openai builds the shared go-openai client used by the speech,
// chat and synthesis providers, and maps its errors onto HTTP status codes.
package openai

import (
	"errors"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// DefaultTimeout bounds a single API request when Config.Timeout is unset.
const DefaultTimeout = 60 * time.Second

// Config holds connection settings shared by every OpenAI-backed provider.
type Config struct {
	APIKey  string
	BaseURL string // Empty means api.openai.com
	Timeout time.Duration
}

// NewClient returns a go-openai client with its own HTTP client so that
// Close on one provider does not affect the others.
func NewClient(cfg Config) *goopenai.Client {
	c := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.HTTPClient = &http.Client{Timeout: timeout}
	return goopenai.NewClientWithConfig(c)
}

// Status describes a failed API call.
type Status struct {
	Code    int    // HTTP status, 0 when the request never got a response
	ErrCode string // OpenAI error code, if any
	Message string
}

// StatusOf extracts the HTTP status from a go-openai error. ok is false for
// transport errors and anything else that never reached the API.
func StatusOf(err error) (Status, bool) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		s := Status{Code: apiErr.HTTPStatusCode, Message: apiErr.Message}
		if code, ok := apiErr.Code.(string); ok {
			s.ErrCode = code
		}
		return s, true
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		msg := reqErr.HTTPStatus
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return Status{Code: reqErr.HTTPStatusCode, Message: msg}, true
	}
	return Status{}, false
}

// Retryable reports whether a status is worth another attempt.
func (s Status) Retryable() bool {
	return s.Code == http.StatusTooManyRequests || s.Code >= 500
}
