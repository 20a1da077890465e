package openai_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/teslashibe/reachy-voice/pkg/openai"
)

func TestStatusOf(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		err := &goopenai.APIError{HTTPStatusCode: 429, Message: "slow down", Code: "rate_limit"}
		s, ok := openai.StatusOf(err)
		if !ok {
			t.Fatal("expected ok")
		}
		if s.Code != 429 || s.ErrCode != "rate_limit" || !s.Retryable() {
			t.Errorf("unexpected status %+v", s)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		if _, ok := openai.StatusOf(errors.New("dial tcp: refused")); ok {
			t.Error("expected not ok")
		}
	})

	t.Run("client error not retryable", func(t *testing.T) {
		s, _ := openai.StatusOf(&goopenai.APIError{HTTPStatusCode: 401})
		if s.Retryable() {
			t.Error("401 should not be retryable")
		}
	})
}

func TestNewClient_UsesBaseURL(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	c := openai.NewClient(openai.Config{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := c.ListModels(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	s, ok := openai.StatusOf(err)
	if !ok || s.Code != 401 || s.ErrCode != "invalid_api_key" {
		t.Errorf("unexpected status %+v (ok=%v)", s, ok)
	}
}
