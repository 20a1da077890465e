// Package tts turns reply text into audio for the robot speaker.
//
// Providers implement Provider; OpenAI is the production backend and Chain
// adds ordered fallback. Audio is returned as raw little-endian PCM16 so it
// can be played without a decoder.
//
//	provider, _ := tts.NewOpenAI(
//	    tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    tts.WithVoice(tts.VoiceShimmer),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Hello there")
package tts

import (
	"context"
	"time"

	"github.com/teslashibe/reachy-voice/pkg/audioio"
)

// Provider synthesizes speech.
type Provider interface {
	// Synthesize converts text to a complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and credentials.
	Health(ctx context.Context) error

	Close() error
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	// Audio is PCM16 little-endian in Format.
	Audio []byte

	Format AudioFormat

	// Duration is the playback length derived from the PCM size.
	Duration time.Duration

	CharCount int

	// LatencyMs is the request round trip in milliseconds.
	LatencyMs int64
}

// AudioFormat describes PCM audio.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// Encoding names a raw PCM layout.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_16000"
	EncodingPCM24 Encoding = "pcm_24000" // OpenAI speech output
	EncodingPCM48 Encoding = "pcm_48000"
)

// PCMFormat returns the mono PCM16 format for a sample rate.
func PCMFormat(sampleRate int) AudioFormat {
	enc := EncodingPCM24
	switch sampleRate {
	case 16000:
		enc = EncodingPCM16
	case 48000:
		enc = EncodingPCM48
	}
	return AudioFormat{Encoding: enc, SampleRate: sampleRate, Channels: 1, BitDepth: 16}
}

// PCMDuration returns how long n bytes of PCM16 last in format f.
func PCMDuration(n int, f AudioFormat) time.Duration {
	ch := f.Channels
	if ch <= 0 {
		ch = 1
	}
	if f.SampleRate <= 0 {
		return 0
	}
	samples := n / (2 * ch)
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Samples decodes Audio into int16 samples.
func (r *AudioResult) Samples() []int16 {
	return audioio.BytesToSamples(r.Audio)
}

// WAV wraps Audio in a RIFF/WAVE container.
func (r *AudioResult) WAV() []byte {
	ch := r.Format.Channels
	if ch <= 0 {
		ch = 1
	}
	return audioio.EncodeWAV(r.Samples(), r.Format.SampleRate, ch)
}

// Empty reports whether there is nothing to play.
func (r *AudioResult) Empty() bool {
	return r == nil || len(r.Audio) < 2
}
