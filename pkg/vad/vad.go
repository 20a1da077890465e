// Package vad turns a continuous stream of microphone frames into discrete
// utterances using an energy gate with hysteresis.
//
// A frame is speech when its RMS energy exceeds a fixed threshold. Speaking
// starts once MinSpeechFrames speech frames have been seen, and an utterance
// ends after MaxSilenceFrames consecutive silent frames. The threshold is not
// adaptive; it depends on the robot and the room, so it is configurable.
//
// Example usage:
//
//	acc := vad.New(vad.WithThreshold(500))
//	for {
//	    frame, err := src.Read(ctx)
//	    if err != nil {
//	        break
//	    }
//	    if utt, ok := acc.AddFrame(frame); ok {
//	        handle(utt)
//	    }
//	}
package vad

import (
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/reachy-voice/pkg/audioio"
)

// Defaults match 20ms frames: 100ms of speech to open, 500ms of silence
// to close.
const (
	DefaultThreshold        = 500.0
	DefaultMinSpeechFrames  = 5
	DefaultMaxSilenceFrames = 25
)

// Config holds accumulator thresholds.
type Config struct {
	// Threshold is the RMS energy (int16 scale) above which a frame is speech.
	Threshold float64 `yaml:"threshold" json:"threshold"`

	// MinSpeechFrames is how many speech frames open an utterance.
	MinSpeechFrames int `yaml:"min_speech_frames" json:"min_speech_frames"`

	// MaxSilenceFrames is how many consecutive silent frames close one.
	MaxSilenceFrames int `yaml:"max_silence_frames" json:"max_silence_frames"`
}

// Option is a functional option for configuring the accumulator.
type Option func(*Config)

// WithThreshold sets the speech energy threshold.
func WithThreshold(threshold float64) Option {
	return func(c *Config) {
		c.Threshold = threshold
	}
}

// WithMinSpeechFrames sets the speech-start hysteresis.
func WithMinSpeechFrames(n int) Option {
	return func(c *Config) {
		c.MinSpeechFrames = n
	}
}

// WithMaxSilenceFrames sets the trailing silence that ends an utterance.
func WithMaxSilenceFrames(n int) Option {
	return func(c *Config) {
		c.MaxSilenceFrames = n
	}
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		Threshold:        DefaultThreshold,
		MinSpeechFrames:  DefaultMinSpeechFrames,
		MaxSilenceFrames: DefaultMaxSilenceFrames,
	}
}

// Validate checks that thresholds are usable.
func (c Config) Validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("vad: threshold must not be negative, got %v", c.Threshold)
	}
	if c.MinSpeechFrames < 1 {
		return fmt.Errorf("vad: min_speech_frames must be at least 1, got %d", c.MinSpeechFrames)
	}
	if c.MaxSilenceFrames < 1 {
		return fmt.Errorf("vad: max_silence_frames must be at least 1, got %d", c.MaxSilenceFrames)
	}
	return nil
}

// ErrEmptyUtterance is returned when encoding an utterance with no frames.
var ErrEmptyUtterance = errors.New("vad: empty utterance")

// Utterance is a completed run of frames from speech start to confirmed
// speech end, including the trailing silence.
type Utterance struct {
	Frames      []audioio.Frame
	CompletedAt time.Time
}

// Len returns the number of frames.
func (u *Utterance) Len() int {
	return len(u.Frames)
}

// SampleRate returns the rate of the first frame, or 0 when empty.
func (u *Utterance) SampleRate() int {
	if len(u.Frames) == 0 {
		return 0
	}
	return u.Frames[0].SampleRate
}

// Samples concatenates all frames.
func (u *Utterance) Samples() []int16 {
	n := 0
	for _, f := range u.Frames {
		n += len(f.Samples)
	}
	out := make([]int16, 0, n)
	for _, f := range u.Frames {
		out = append(out, f.Samples...)
	}
	return out
}

// Duration returns the total audio duration.
func (u *Utterance) Duration() time.Duration {
	var d time.Duration
	for _, f := range u.Frames {
		d += f.Duration()
	}
	return d
}

// WAV encodes the utterance as a mono PCM16 WAV file.
func (u *Utterance) WAV() ([]byte, error) {
	if len(u.Frames) == 0 {
		return nil, ErrEmptyUtterance
	}
	return audioio.EncodeWAV(u.Samples(), u.SampleRate(), 1), nil
}
