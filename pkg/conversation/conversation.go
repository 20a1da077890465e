// Package conversation runs half-duplex voice turns on the robot.
//
// The Orchestrator reads microphone frames, cuts them into utterances with a
// vad.Accumulator, and hands each utterance to a single turn worker:
//
//	transcribe -> filter -> memory context -> chat -> tools -> synthesize -> play
//
// While a reply is playing the microphone is muted: frames only go to the
// accumulator's Drain path so the robot never answers its own voice. A
// separate sampler goroutine keeps the current user up to date from the
// camera.
//
// Example usage:
//
//	orch, err := conversation.New(conversation.Deps{
//	    Source: src,
//	    STT:    whisper,
//	    Chat:   chat,
//	    TTS:    voice,
//	    Player: player,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = orch.Run(ctx)
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/reachy-voice/pkg/audioio"
	"github.com/teslashibe/reachy-voice/pkg/camera"
	"github.com/teslashibe/reachy-voice/pkg/faceid"
	"github.com/teslashibe/reachy-voice/pkg/inference"
	"github.com/teslashibe/reachy-voice/pkg/memory"
	"github.com/teslashibe/reachy-voice/pkg/playback"
	"github.com/teslashibe/reachy-voice/pkg/stt"
	"github.com/teslashibe/reachy-voice/pkg/tts"
	"github.com/teslashibe/reachy-voice/pkg/vad"
)

// Deps are the orchestrator's collaborators. Source, STT, Chat, TTS and
// Player are required. Identity sampling runs only when Identifier,
// Extractor and Camera are all set.
type Deps struct {
	Source      audioio.Source
	Accumulator *vad.Accumulator // nil uses vad defaults

	STT    stt.Provider
	Chat   inference.Provider
	TTS    tts.Provider
	Player playback.Player

	Memory memory.Service // nil disables memory
	Tools  []Tool

	Identifier Identifier
	Extractor  faceid.Extractor
	Camera     camera.Snapshotter

	Events EventSink
}

// Orchestrator coordinates one robot's conversation.
type Orchestrator struct {
	cfg    *Config
	logger *slog.Logger

	source audioio.Source
	acc    *vad.Accumulator
	stt    stt.Provider
	chat   inference.Provider
	tts    tts.Provider
	player playback.Player
	memory memory.Service
	events EventSink

	identifier Identifier
	extractor  faceid.Extractor
	camera     camera.Snapshotter

	tools    map[string]Tool
	toolDefs []inference.Tool

	running atomic.Bool
	pending chan *vad.Utterance
	user    atomic.Value // string

	mu             sync.Mutex
	state          State
	cancelPlayback context.CancelFunc
	interrupted    bool
	history        []inference.Message // excludes the system prompt
	stats          Status

	latency latencyTracker
}

// New creates an orchestrator.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch {
	case deps.Source == nil:
		return nil, ErrMissingSource
	case deps.STT == nil:
		return nil, ErrMissingSTT
	case deps.Chat == nil:
		return nil, ErrMissingChat
	case deps.TTS == nil:
		return nil, ErrMissingTTS
	case deps.Player == nil:
		return nil, ErrMissingPlayer
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		cfg:        cfg,
		logger:     logger.With("component", "conversation"),
		source:     deps.Source,
		acc:        deps.Accumulator,
		stt:        deps.STT,
		chat:       deps.Chat,
		tts:        deps.TTS,
		player:     deps.Player,
		memory:     deps.Memory,
		events:     deps.Events,
		identifier: deps.Identifier,
		extractor:  deps.Extractor,
		camera:     deps.Camera,
		tools:      make(map[string]Tool),
	}
	if o.acc == nil {
		o.acc = vad.New()
	}
	if o.memory == nil {
		o.memory = memory.Nop{}
	}
	for _, t := range deps.Tools {
		o.tools[t.Name] = t
		o.toolDefs = append(o.toolDefs, t.definition())
	}
	o.user.Store("")
	return o, nil
}

// Run captures audio and processes turns until ctx is cancelled or the
// source ends. A pending utterance is still processed after the source
// ends. Returns nil on a clean stop.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer o.running.Store(false)

	if err := o.source.Start(ctx); err != nil {
		return fmt.Errorf("start %s source: %w", o.source.Name(), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.pending = make(chan *vad.Utterance, 1)
	o.acc.Reset()

	var wg sync.WaitGroup
	if o.identifier != nil && o.extractor != nil && o.camera != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.sampleIdentity(ctx)
		}()
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		o.worker(ctx)
	}()

	o.setState(StateListening)
	o.logger.Info("conversation started", "source", o.source.Name(), "tools", len(o.tools))

	err := o.capture(ctx)
	close(o.pending)
	<-workerDone
	cancel()
	wg.Wait()

	o.setState(StateStopped)
	o.logger.Info("conversation stopped")
	return err
}

// capture is the only goroutine that touches the accumulator.
func (o *Orchestrator) capture(ctx context.Context) error {
	muted := false
	for {
		frame, err := o.source.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				o.logger.Info("audio source ended")
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read audio: %w", err)
		}

		if o.State() == StateSpeaking {
			if !muted {
				muted = true
				o.acc.Reset()
			}
			if o.acc.Drain(frame) && o.cfg.BargeIn {
				if o.Interrupt() {
					o.logger.Info("barge-in")
				}
			}
			continue
		}
		if muted {
			muted = false
			o.acc.Reset()
		}

		if utt, ok := o.acc.AddFrame(frame); ok {
			o.offer(utt)
		}
	}
}

// offer puts utt in the pending slot, replacing any older utterance that
// the worker has not picked up yet.
func (o *Orchestrator) offer(utt *vad.Utterance) {
	select {
	case o.pending <- utt:
		return
	default:
	}

	select {
	case old := <-o.pending:
		o.mu.Lock()
		o.stats.TurnsDropped++
		o.mu.Unlock()
		o.logger.Warn("dropping stale utterance", "duration", old.Duration())
		o.publish(EventTurnDropped, map[string]any{"duration_ms": old.Duration().Milliseconds()})
	default:
	}
	o.pending <- utt
}

func (o *Orchestrator) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case utt, ok := <-o.pending:
			if !ok {
				return
			}
			o.handle(ctx, utt)
		}
	}
}

// Interrupt stops the reply that is playing. It reports whether anything
// was interrupted.
func (o *Orchestrator) Interrupt() bool {
	o.mu.Lock()
	if o.state != StateSpeaking || o.cancelPlayback == nil {
		o.mu.Unlock()
		return false
	}
	o.cancelPlayback()
	o.cancelPlayback = nil
	o.interrupted = true
	o.stats.Interruptions++
	o.state = StateListening
	o.mu.Unlock()

	o.logger.Info("playback interrupted")
	o.publish(EventInterrupted, nil)
	o.publish(EventState, map[string]any{"state": StateListening})
	return true
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	if o.state == s {
		o.mu.Unlock()
		return
	}
	o.state = s
	o.mu.Unlock()
	o.logger.Debug("state changed", "state", s)
	o.publish(EventState, map[string]any{"state": s})
}

// CurrentUser returns the most recently identified user, or "".
func (o *Orchestrator) CurrentUser() string {
	return o.user.Load().(string)
}

// SetUser overrides the current user until the next identity sample.
func (o *Orchestrator) SetUser(userID string) {
	prev := o.user.Swap(userID).(string)
	if prev != userID {
		o.logger.Info("user changed", "user", userID, "previous", prev)
		o.publish(EventUser, map[string]any{"user": userID, "previous": prev})
	}
}

// ForgetUser clears the current user if it is userID.
func (o *Orchestrator) ForgetUser(userID string) {
	if o.user.CompareAndSwap(userID, "") {
		o.publish(EventUser, map[string]any{"user": "", "previous": userID})
	}
}

// History returns a copy of the chat history, system prompt excluded.
func (o *Orchestrator) History() []inference.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]inference.Message(nil), o.history...)
}

// ResetHistory forgets the conversation so far.
func (o *Orchestrator) ResetHistory() {
	o.mu.Lock()
	o.history = nil
	o.mu.Unlock()
}

// Status returns a snapshot for the status endpoint.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.stats
	s.State = o.state
	s.User = o.CurrentUser()
	s.HistoryLen = len(o.history)
	s.Latency = o.latency.summary()
	return s
}

func (o *Orchestrator) publish(eventType string, data any) {
	if o.events != nil {
		o.events.Publish(eventType, data)
	}
}
