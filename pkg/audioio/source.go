package audioio

import (
	"context"
	"io"
	"time"
)

// Frame is a fixed-duration buffer of interleaved int16 PCM samples.
type Frame struct {
	// Samples contains interleaved audio samples.
	Samples []int16

	// SampleRate is the sample rate in Hz.
	SampleRate int

	// Channels is the number of audio channels.
	Channels int
}

// Bytes returns the samples as little-endian PCM16.
func (f Frame) Bytes() []byte {
	return SamplesToBytes(f.Samples)
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	perChannel := len(f.Samples) / f.Channels
	return time.Duration(perChannel) * time.Second / time.Duration(f.SampleRate)
}

// RMS returns the root mean square of the frame on the raw int16 scale.
func (f Frame) RMS() float64 {
	return RMS(f.Samples)
}

// FrameFromBytes creates a Frame from little-endian PCM16 bytes.
func FrameFromBytes(data []byte, sampleRate, channels int) Frame {
	return Frame{
		Samples:    BytesToSamples(data),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Source produces microphone frames.
type Source interface {
	// Start begins capture. Read may be called after Start returns.
	Start(ctx context.Context) error

	// Read blocks until the next frame is available.
	// Returns io.EOF once the source is closed and drained.
	Read(ctx context.Context) (Frame, error)

	// Name returns the backend name (e.g., "webrtc", "push", "mock").
	Name() string

	// Close stops capture and releases resources.
	io.Closer
}

// SourceStats contains statistics about an audio source.
type SourceStats struct {
	// FramesRead is the total number of frames delivered.
	FramesRead int64 `json:"frames_read"`

	// Dropped is the number of frames discarded because the queue was full.
	Dropped int64 `json:"dropped"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`
}
