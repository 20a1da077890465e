package vad

import (
	"time"

	"github.com/teslashibe/reachy-voice/pkg/audioio"
)

// Accumulator collects speech frames into utterances.
// It is not safe for concurrent use; the capture loop owns it.
type Accumulator struct {
	cfg Config

	speaking      bool
	speechFrames  int
	silenceFrames int

	// preroll holds frames from the first speech frame until the
	// hysteresis gate opens. It is discarded if the gate never opens.
	preroll []audioio.Frame
	frames  []audioio.Frame

	drainSpeech int
}

// New creates an accumulator with default thresholds adjusted by opts.
func New(opts ...Option) *Accumulator {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates an accumulator from an explicit config.
func NewWithConfig(cfg Config) *Accumulator {
	return &Accumulator{cfg: cfg}
}

// Config returns the thresholds in use.
func (a *Accumulator) Config() Config {
	return a.cfg
}

// IsSpeech reports whether a frame's energy is above the threshold.
func (a *Accumulator) IsSpeech(frame audioio.Frame) bool {
	return frame.RMS() > a.cfg.Threshold
}

// AddFrame feeds one frame. It returns the completed utterance and true
// once trailing silence closes a run of speech; the accumulator is then
// empty again.
func (a *Accumulator) AddFrame(frame audioio.Frame) (*Utterance, bool) {
	if a.IsSpeech(frame) {
		a.speechFrames++
		a.silenceFrames = 0
		if !a.speaking && a.speechFrames >= a.cfg.MinSpeechFrames {
			a.speaking = true
			a.frames = append(a.frames, a.preroll...)
			a.preroll = nil
		}
	} else {
		a.silenceFrames++
	}

	if a.speaking {
		a.frames = append(a.frames, frame)
		if a.silenceFrames >= a.cfg.MaxSilenceFrames {
			utt := &Utterance{Frames: a.frames, CompletedAt: time.Now()}
			a.frames = nil
			a.reset()
			return utt, true
		}
		return nil, false
	}

	if a.speechFrames > 0 {
		a.preroll = append(a.preroll, frame)
		if a.silenceFrames >= a.cfg.MaxSilenceFrames {
			// A blip that never opened the gate.
			a.reset()
		}
	}
	return nil, false
}

// Drain classifies a frame captured while the robot is talking. Nothing is
// buffered and no utterance can result. It returns true when
// MinSpeechFrames consecutive speech frames have been seen, which callers
// may treat as the user talking over the robot.
func (a *Accumulator) Drain(frame audioio.Frame) bool {
	if a.IsSpeech(frame) {
		a.drainSpeech++
	} else {
		a.drainSpeech = 0
	}
	return a.drainSpeech >= a.cfg.MinSpeechFrames
}

// Reset discards any partial utterance.
func (a *Accumulator) Reset() {
	a.frames = nil
	a.reset()
}

func (a *Accumulator) reset() {
	a.speaking = false
	a.speechFrames = 0
	a.silenceFrames = 0
	a.preroll = nil
	a.drainSpeech = 0
}

// State is a read-only view of the accumulator.
type State struct {
	Speaking      bool `json:"speaking"`
	SpeechFrames  int  `json:"speech_frames"`
	SilenceFrames int  `json:"silence_frames"`
	Buffered      int  `json:"buffered"`
}

// State returns the current counters.
func (a *Accumulator) State() State {
	return State{
		Speaking:      a.speaking,
		SpeechFrames:  a.speechFrames,
		SilenceFrames: a.silenceFrames,
		Buffered:      len(a.frames) + len(a.preroll),
	}
}
