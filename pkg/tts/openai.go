package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/teslashibe/reachy-voice/pkg/openai"
)

const providerOpenAI = "openai"

// OpenAI voices.
const (
	VoiceAlloy   = "alloy"
	VoiceEcho    = "echo"
	VoiceFable   = "fable"
	VoiceOnyx    = "onyx"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
)

// OpenAI speech models.
const (
	ModelTTS1   = "tts-1"    // Standard quality, faster
	ModelTTS1HD = "tts-1-hd" // Higher quality, slower
)

// openAISampleRate is fixed for the pcm response format.
const openAISampleRate = 24000

// OpenAI implements Provider with the OpenAI speech endpoint, requesting raw
// 24 kHz PCM so no decoder is needed on the playback path.
type OpenAI struct {
	config *Config
	client *goopenai.Client
	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI TTS provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &OpenAI{
		config: cfg,
		client: openai.NewClient(openai.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}),
		logger: cfg.Logger.With("component", "tts.openai"),
	}, nil
}

// Synthesize converts text to PCM16 audio.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()

	req := goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(o.config.ModelID),
		Input:          text,
		Voice:          goopenai.SpeechVoice(o.config.VoiceID),
		Instructions:   o.config.Instructions,
		ResponseFormat: goopenai.SpeechResponseFormatPcm,
		Speed:          o.config.Speed,
	}

	audio, err := o.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	// PCM16 must hold whole samples.
	audio = audio[:len(audio)&^1]

	latency := time.Since(start).Milliseconds()
	format := PCMFormat(openAISampleRate)

	o.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", o.config.VoiceID,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    format,
		Duration:  PCMDuration(len(audio), format),
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Health lists models to check the key.
func (o *OpenAI) Health(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return WrapError(providerOpenAI, fmt.Errorf("health check: %w", err))
	}
	return nil
}

// Close is a no-op; the HTTP client is released with the provider.
func (o *OpenAI) Close() error {
	return nil
}

// VoiceID returns the configured voice.
func (o *OpenAI) VoiceID() string {
	return o.config.VoiceID
}

func (o *OpenAI) doWithRetry(ctx context.Context, req goopenai.CreateSpeechRequest) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.config.RetryDelay * time.Duration(attempt)):
			}
		}

		audio, err := o.request(ctx, req)
		if err == nil {
			return audio, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = WrapError(providerOpenAI, err)
		var apiErr *APIError
		if !errors.As(lastErr, &apiErr) || !apiErr.IsRetryable() {
			return nil, lastErr
		}
		o.logger.Warn("retrying request",
			"attempt", attempt+1,
			"status", apiErr.StatusCode,
		)
	}

	return nil, lastErr
}

func (o *OpenAI) request(ctx context.Context, req goopenai.CreateSpeechRequest) ([]byte, error) {
	resp, err := o.client.CreateSpeech(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return audio, nil
}

var _ Provider = (*OpenAI)(nil)
