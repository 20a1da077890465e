package stt

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/teslashibe/reachy-voice/pkg/audioio"
	"github.com/teslashibe/reachy-voice/pkg/openai"
)

const providerOpenAI = "openai"

// Whisper implements Provider with the OpenAI transcription endpoint.
type Whisper struct {
	config *Config
	client *goopenai.Client
	logger *slog.Logger
}

// NewWhisper creates a new Whisper provider.
func NewWhisper(opts ...Option) (*Whisper, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Whisper{
		config: cfg,
		client: openai.NewClient(openai.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}),
		logger: cfg.Logger.With("component", "stt.whisper"),
	}, nil
}

// Transcribe uploads the WAV and returns the trimmed transcript.
func (w *Whisper) Transcribe(ctx context.Context, wav []byte, sampleRate int) (string, error) {
	if len(wav) == 0 {
		return "", ErrEmptyAudio
	}
	if d, err := audioio.DecodeWAV(wav); err == nil {
		dur := time.Duration(len(d.Samples)/max(d.Channels, 1)) * time.Second / time.Duration(max(d.SampleRate, 1))
		if dur < w.config.MinDuration {
			return "", ErrTooShort
		}
	}

	start := time.Now()
	resp, err := w.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    w.config.Model,
		Language: w.config.Language,
		Prompt:   w.config.Prompt,
		Format:   goopenai.AudioResponseFormatJSON,
		Reader:   bytes.NewReader(wav),
		FilePath: "audio.wav",
	})
	if err != nil {
		return "", WrapError(providerOpenAI, err)
	}

	text := strings.TrimSpace(resp.Text)
	w.logger.Debug("transcribed",
		"bytes", len(wav),
		"sample_rate", sampleRate,
		"latency_ms", time.Since(start).Milliseconds(),
		"chars", len(text),
	)
	return text, nil
}

// Close is a no-op.
func (w *Whisper) Close() error {
	return nil
}

var _ Provider = (*Whisper)(nil)
