package vad

import (
	"testing"

	"github.com/teslashibe/reachy-voice/pkg/audioio"
)

var frameCfg = audioio.DefaultConfig()

func speech() audioio.Frame  { return audioio.ConstantFrame(frameCfg, 2000) }
func silence() audioio.Frame { return audioio.ConstantFrame(frameCfg, 10) }

func newTestAccumulator() *Accumulator {
	return New(WithThreshold(500), WithMinSpeechFrames(5), WithMaxSilenceFrames(25))
}

func assertReset(t *testing.T, a *Accumulator) {
	t.Helper()
	if got := a.State(); got != (State{}) {
		t.Errorf("state not reset: %+v", got)
	}
}

func TestSilenceNeverEmits(t *testing.T) {
	a := newTestAccumulator()
	for i := 0; i < 1000; i++ {
		if utt, ok := a.AddFrame(silence()); ok || utt != nil {
			t.Fatalf("frame %d: unexpected utterance", i)
		}
	}
	if a.State().Buffered != 0 {
		t.Errorf("silence was buffered: %+v", a.State())
	}
}

func TestThresholdIsStrict(t *testing.T) {
	a := New(WithThreshold(500), WithMinSpeechFrames(1), WithMaxSilenceFrames(1))
	if _, ok := a.AddFrame(audioio.ConstantFrame(frameCfg, 500)); ok {
		t.Fatal("unexpected utterance")
	}
	if a.State().SpeechFrames != 0 {
		t.Error("energy equal to threshold must count as silence")
	}
}

func TestShortBlipIsDiscarded(t *testing.T) {
	a := newTestAccumulator()

	for i := 0; i < 4; i++ {
		if _, ok := a.AddFrame(speech()); ok {
			t.Fatal("unexpected utterance during blip")
		}
	}
	if a.State().Speaking {
		t.Fatal("gate opened below MinSpeechFrames")
	}

	for i := 0; i < 25; i++ {
		if _, ok := a.AddFrame(silence()); ok {
			t.Fatal("blip was flushed as an utterance")
		}
	}
	assertReset(t, a)
}

func TestUtteranceContainsSpeechAndTrailingSilence(t *testing.T) {
	tests := []struct {
		name    string
		speech  int
		silence int
	}{
		{"minimum speech", 5, 25},
		{"long speech", 60, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAccumulator()
			for i := 0; i < tt.speech; i++ {
				if _, ok := a.AddFrame(speech()); ok {
					t.Fatal("utterance emitted during speech")
				}
			}
			var (
				utt *Utterance
				ok  bool
			)
			for i := 0; i < tt.silence; i++ {
				utt, ok = a.AddFrame(silence())
				if ok && i != tt.silence-1 {
					t.Fatalf("utterance emitted early at silence frame %d", i)
				}
			}
			if !ok {
				t.Fatal("expected utterance after trailing silence")
			}
			if got, want := utt.Len(), tt.speech+tt.silence; got != want {
				t.Errorf("got %d frames, want %d", got, want)
			}
			for i, f := range utt.Frames {
				isSpeech := f.RMS() > 500
				if isSpeech != (i < tt.speech) {
					t.Fatalf("frame %d out of order", i)
				}
			}
			assertReset(t, a)
		})
	}
}

func TestSpeechResetsSilenceCount(t *testing.T) {
	a := newTestAccumulator()
	for i := 0; i < 5; i++ {
		a.AddFrame(speech())
	}
	for i := 0; i < 24; i++ {
		a.AddFrame(silence())
	}
	a.AddFrame(speech())
	for i := 0; i < 24; i++ {
		if _, ok := a.AddFrame(silence()); ok {
			t.Fatal("pause inside speech ended the utterance")
		}
	}
	utt, ok := a.AddFrame(silence())
	if !ok {
		t.Fatal("expected utterance")
	}
	if got, want := utt.Len(), 5+24+1+25; got != want {
		t.Errorf("got %d frames, want %d", got, want)
	}
}

func TestScatteredSpeechWithinGapOpensGate(t *testing.T) {
	a := newTestAccumulator()
	for i := 0; i < 5; i++ {
		a.AddFrame(speech())
		a.AddFrame(silence())
	}
	if !a.State().Speaking {
		t.Fatal("speech frames separated by short gaps should open the gate")
	}
	// Eight preroll frames, the opening frame, and the silence after it.
	if got := a.State().Buffered; got != 10 {
		t.Errorf("expected 10 buffered frames, got %d", got)
	}
}

func TestDrainNeverBuffers(t *testing.T) {
	a := newTestAccumulator()
	var interrupted bool
	for i := 0; i < 10; i++ {
		if a.Drain(speech()) {
			interrupted = true
			if i != 4 {
				t.Errorf("barge-in detected after %d frames, want 5", i+1)
			}
			break
		}
	}
	if !interrupted {
		t.Error("sustained speech not reported")
	}
	if a.State().Buffered != 0 || a.State().Speaking {
		t.Errorf("drain changed accumulator state: %+v", a.State())
	}

	a.Reset()
	for i := 0; i < 4; i++ {
		a.Drain(speech())
	}
	if a.Drain(silence()) {
		t.Error("silence reported as barge-in")
	}
}

func TestUtteranceWAV(t *testing.T) {
	empty := &Utterance{}
	if _, err := empty.WAV(); err != ErrEmptyUtterance {
		t.Errorf("expected ErrEmptyUtterance, got %v", err)
	}

	u := &Utterance{Frames: []audioio.Frame{speech(), silence()}}
	data, err := u.WAV()
	if err != nil {
		t.Fatalf("WAV failed: %v", err)
	}
	w, err := audioio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if len(w.Samples) != 640 || w.SampleRate != 16000 {
		t.Errorf("got %d samples at %d Hz", len(w.Samples), w.SampleRate)
	}
	if u.Duration().Milliseconds() != 40 {
		t.Errorf("got duration %v, want 40ms", u.Duration())
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := []Config{
		{Threshold: -1, MinSpeechFrames: 1, MaxSilenceFrames: 1},
		{Threshold: 1, MinSpeechFrames: 0, MaxSilenceFrames: 1},
		{Threshold: 1, MinSpeechFrames: 1, MaxSilenceFrames: 0},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("expected error for %+v", c)
		}
	}
}
