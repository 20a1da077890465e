// Package audioio provides microphone capture and speaker playback primitives
// for the voice loop.
//
// Audio moves through the package as fixed-duration Frames of int16 PCM.
// Sources:
//   - WebRTC - the robot's GStreamer WebRTC producer (Opus, 48kHz)
//   - Push - WAV chunks POSTed by the robot-side bridge
//   - Mock - scripted frames for tests
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendWebRTC pulls the microphone track from the robot's WebRTC producer.
	BackendWebRTC Backend = "webrtc"
	// BackendPush receives audio over HTTP from the robot-side bridge.
	BackendPush Backend = "push"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the rate frames are delivered at, in Hz.
	// Default: 16000 (what Whisper is fed)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// FrameDuration is the duration of one frame.
	// Default: 20ms (320 samples at 16kHz)
	FrameDuration time.Duration `yaml:"frame_duration" json:"frame_duration"`

	// QueueFrames bounds how many frames a source buffers before dropping
	// the oldest.
	QueueFrames int `yaml:"queue_frames" json:"queue_frames"`

	// SignalURL is the WebRTC signalling endpoint (ws://robot:8443).
	SignalURL string `yaml:"signal_url" json:"signal_url"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendPush,
		SampleRate:    16000,
		FrameDuration: 20 * time.Millisecond,
		QueueFrames:   500, // 10s at 20ms
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameDuration <= 0 {
		return fmt.Errorf("frame_duration must be positive, got %v", c.FrameDuration)
	}
	if c.QueueFrames <= 0 {
		return fmt.Errorf("queue_frames must be positive, got %d", c.QueueFrames)
	}
	if c.Backend == BackendWebRTC && c.SignalURL == "" {
		return fmt.Errorf("signal_url required for %s backend", c.Backend)
	}
	return nil
}

// FrameSize returns the number of samples in one frame. Sources always
// deliver mono.
func (c *Config) FrameSize() int {
	return int(float64(c.SampleRate) * c.FrameDuration.Seconds())
}
