package stt_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/teslashibe/reachy-voice/internal/log"
	"github.com/teslashibe/reachy-voice/pkg/audioio"
	"github.com/teslashibe/reachy-voice/pkg/stt"
)

func TestIsFalsePositive(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"you", true},
		{"You", true},
		{"Thank you.", true},
		{" thanks. ", true},
		{"Bye.", true},
		{"The end.", true},
		{"Thanks for watching!", true},
		{"Thank you for watching.", true},
		{"bye for now", false},
		{"thank you for coming", false},
		{"Hello Reachy", false},
	}
	for _, tt := range tests {
		if got := stt.IsFalsePositive(tt.text); got != tt.want {
			t.Errorf("IsFalsePositive(%q): expected %v, got %v", tt.text, tt.want, got)
		}
	}
}

func TestMock(t *testing.T) {
	m := stt.NewMock("hello")
	got, err := m.Transcribe(context.Background(), []byte("RIFF"), 16000)
	if err != nil || got != "hello" {
		t.Fatalf("got (%q, %v)", got, err)
	}
	calls := m.Calls()
	if len(calls) != 1 || calls[0].SampleRate != 16000 || calls[0].Bytes != 4 {
		t.Errorf("unexpected calls %+v", calls)
	}

	boom := errors.New("boom")
	if _, err := stt.WithError(boom).Transcribe(context.Background(), nil, 16000); err != boom {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestConfig(t *testing.T) {
	if _, err := stt.NewWhisper(); err != stt.ErrNoAPIKey {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
	cfg := stt.DefaultConfig()
	cfg.Apply(stt.WithModel("gpt-4o-transcribe"), stt.WithLanguage(""))
	if cfg.Model != "gpt-4o-transcribe" || cfg.Language != "" {
		t.Errorf("options not applied: %+v", cfg)
	}
}

func wav(ms int) []byte {
	return audioio.EncodeWAV(make([]int16, 16*ms), 16000, 1)
}

func TestWhisper(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads wav and trims text", func(t *testing.T) {
		var model, filename string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/audio/transcriptions" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse form: %v", err)
			}
			model = r.FormValue("model")
			if _, fh, err := r.FormFile("file"); err == nil {
				filename = fh.Filename
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"text":"  Hello there. "}`))
		}))
		defer srv.Close()

		p, err := stt.NewWhisper(stt.WithAPIKey("k"), stt.WithBaseURL(srv.URL+"/v1"), stt.WithLogger(log.Discard()))
		if err != nil {
			t.Fatalf("NewWhisper failed: %v", err)
		}
		defer p.Close()

		text, err := p.Transcribe(ctx, wav(500), 16000)
		if err != nil {
			t.Fatalf("Transcribe failed: %v", err)
		}
		if text != "Hello there." {
			t.Errorf("expected trimmed text, got %q", text)
		}
		if model != "whisper-1" || filename != "audio.wav" {
			t.Errorf("unexpected upload model=%q file=%q", model, filename)
		}
	})

	t.Run("api error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
		}))
		defer srv.Close()

		p, _ := stt.NewWhisper(stt.WithAPIKey("k"), stt.WithBaseURL(srv.URL+"/v1"), stt.WithLogger(log.Discard()))
		_, err := p.Transcribe(ctx, wav(500), 16000)
		var apiErr *stt.APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			t.Fatalf("expected retryable APIError, got %v", err)
		}
	})

	t.Run("rejects short and empty audio", func(t *testing.T) {
		p, _ := stt.NewWhisper(stt.WithAPIKey("k"), stt.WithLogger(log.Discard()))
		if _, err := p.Transcribe(ctx, nil, 16000); err != stt.ErrEmptyAudio {
			t.Errorf("expected ErrEmptyAudio, got %v", err)
		}
		if _, err := p.Transcribe(ctx, wav(50), 16000); err != stt.ErrTooShort {
			t.Errorf("expected ErrTooShort, got %v", err)
		}
	})
}
