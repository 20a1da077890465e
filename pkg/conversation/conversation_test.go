package conversation

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/teslashibe/reachy-voice/internal/log"
	"github.com/teslashibe/reachy-voice/pkg/audioio"
	"github.com/teslashibe/reachy-voice/pkg/camera"
	"github.com/teslashibe/reachy-voice/pkg/faceid"
	"github.com/teslashibe/reachy-voice/pkg/inference"
	"github.com/teslashibe/reachy-voice/pkg/memory"
	"github.com/teslashibe/reachy-voice/pkg/playback"
	"github.com/teslashibe/reachy-voice/pkg/robot"
	"github.com/teslashibe/reachy-voice/pkg/stt"
	"github.com/teslashibe/reachy-voice/pkg/tts"
	"github.com/teslashibe/reachy-voice/pkg/vad"
)

var acfg = audioio.DefaultConfig() // 16 kHz, 20 ms frames

const wavHeader = 44

func frames(v int16, n int) []audioio.Frame {
	out := make([]audioio.Frame, n)
	for i := range out {
		out[i] = audioio.ConstantFrame(acfg, v)
	}
	return out
}

// utterance is n speech frames followed by enough silence to close it.
func utterance(n int) []audioio.Frame {
	return append(frames(3000, n), frames(0, 3)...)
}

func wavBytes(nFrames int) int {
	return wavHeader + nFrames*acfg.FrameSize()*2
}

type fixture struct {
	src    *audioio.MockSource
	stt    *stt.Mock
	chat   *inference.Mock
	tts    *tts.Mock
	player *playback.Mock
	mem    *memory.Memory
	robot  *robot.Mock
	events *MockEvents
}

func newFixture(t *testing.T, input ...audioio.Frame) *fixture {
	t.Helper()
	mem, err := memory.New()
	if err != nil {
		t.Fatalf("memory.New failed: %v", err)
	}
	player := playback.NewMock()
	player.PlayFunc = func(ctx context.Context, audio *tts.AudioResult) error { return nil }
	return &fixture{
		src:    audioio.NewMockSource(acfg, input...),
		stt:    stt.NewMock("hello robot"),
		chat:   inference.NewMockReply("Hello human!"),
		tts:    tts.NewMock(),
		player: player,
		mem:    mem,
		robot:  &robot.Mock{},
		events: NewMockEvents(),
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Source:      f.src,
		Accumulator: vad.New(vad.WithMinSpeechFrames(2), vad.WithMaxSilenceFrames(3)),
		STT:         f.stt,
		Chat:        f.chat,
		TTS:         f.tts,
		Player:      f.player,
		Memory:      f.mem,
		Tools:       DefaultTools(f.robot, f.mem),
		Events:      f.events,
	}
}

func (f *fixture) orchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(f.deps(), append([]Option{WithLogger(log.Discard())}, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return o
}

func start(o *Orchestrator) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	return cancel, done
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitStarted(t *testing.T, p *playback.Mock) {
	t.Helper()
	select {
	case <-p.Started():
	case <-time.After(3 * time.Second):
		t.Fatal("playback never started")
	}
}

func TestFullTurn(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	f := newFixture(t, utterance(4)...)
	f.stt.Text = "  What's your name?  "
	f.chat = inference.NewMockReply("I'm Reachy!")
	is.NoErr(f.mem.Conclude(ctx, "kaya", "Likes tea"))

	o := f.orchestrator(t)
	o.SetUser("kaya")
	is.NoErr(o.Run(ctx))

	// The utterance carries every speech frame plus the closing silence.
	is.Equal(f.stt.CallCount(), 1)
	call := f.stt.Calls()[0]
	is.Equal(call.Bytes, wavBytes(4+3))
	is.Equal(call.SampleRate, 16000)

	req := f.chat.LastCall()
	is.Equal(len(req.Messages), 2)
	is.Equal(req.Messages[0].Role, inference.RoleSystem)
	is.True(strings.HasPrefix(req.Messages[0].Content, DefaultSystemPrompt))
	is.True(strings.Contains(req.Messages[0].Content, "Likes tea"))
	is.Equal(req.Messages[1].Content, "What's your name?")
	is.Equal(len(req.Tools), 4)

	is.Equal(f.tts.LastCall().Text, "I'm Reachy!")
	is.Equal(len(f.player.Played()), 1)

	p := f.mem.Person("kaya")
	is.True(p != nil)
	is.Equal(len(p.Exchanges), 1)

	st := o.Status()
	is.Equal(st.State, StateStopped)
	is.Equal(st.TurnsCompleted, int64(1))
	is.Equal(st.LastTranscript, "What's your name?")
	is.Equal(st.LastResponse, "I'm Reachy!")
	is.Equal(st.HistoryLen, 2)
	is.Equal(st.Latency.Turns, 1)
	lat := st.Latency.Last
	is.True(lat.Transcribe <= lat.Chat)
	is.True(lat.Chat <= lat.Synthesize)
	is.True(lat.Synthesize <= lat.FirstAudio)
	is.True(lat.FirstAudio <= lat.Total)

	is.Equal(f.events.States(), []State{
		StateListening, StateProcessing, StateSpeaking, StateListening, StateStopped,
	})
	is.Equal(f.events.Count(EventTranscript), 1)
	is.Equal(f.events.Count(EventResponse), 1)
}

func TestSilenceNeverTriggersATurn(t *testing.T) {
	is := is.New(t)
	f := newFixture(t, frames(100, 50)...)
	o := f.orchestrator(t)

	is.NoErr(o.Run(context.Background()))
	is.Equal(f.stt.CallCount(), 0)
	is.Equal(o.Status().TurnsCompleted, int64(0))
}

func TestFalsePositiveTranscriptIsSkipped(t *testing.T) {
	for _, text := range []string{"", "you", "Thank you.", " thanks. "} {
		t.Run(text, func(t *testing.T) {
			is := is.New(t)
			f := newFixture(t, utterance(3)...)
			f.stt.Text = text
			o := f.orchestrator(t)

			is.NoErr(o.Run(context.Background()))
			is.Equal(f.chat.CallCount("Chat"), 0)
			is.Equal(f.tts.CallCount("Synthesize"), 0)
			is.Equal(o.Status().TurnsSkipped, int64(1))
			is.Equal(o.Status().TurnsFailed, int64(0))
		})
	}
}

func TestEmptyCompletionIsSkipped(t *testing.T) {
	is := is.New(t)
	f := newFixture(t, utterance(3)...)
	f.chat = inference.NewMockReply("   ")
	o := f.orchestrator(t)

	is.NoErr(o.Run(context.Background()))
	is.Equal(f.tts.CallCount("Synthesize"), 0)
	is.Equal(len(f.player.Played()), 0)
	is.Equal(o.Status().TurnsSkipped, int64(1))
	is.Equal(o.Status().HistoryLen, 0)
}

func TestCollaboratorFailuresAbandonTheTurn(t *testing.T) {
	boom := errors.New("boom")

	t.Run("transcribe", func(t *testing.T) {
		is := is.New(t)
		f := newFixture(t, utterance(3)...)
		f.stt = stt.WithError(boom)
		o := f.orchestrator(t)

		is.NoErr(o.Run(context.Background()))
		is.Equal(f.chat.CallCount("Chat"), 0)
		is.Equal(o.Status().TurnsFailed, int64(1))
		is.Equal(f.events.Count(EventTurnFailed), 1)
	})

	t.Run("chat timeout", func(t *testing.T) {
		is := is.New(t)
		f := newFixture(t, utterance(3)...)
		f.chat = &inference.Mock{ChatFunc: func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}
		o := f.orchestrator(t, WithTimeouts(time.Second, 50*time.Millisecond, time.Second, time.Second))

		began := time.Now()
		is.NoErr(o.Run(context.Background()))
		is.True(time.Since(began) < 2*time.Second)
		is.Equal(f.tts.CallCount("Synthesize"), 0)
		is.Equal(o.Status().TurnsFailed, int64(1))

		for _, e := range f.events.Events() {
			if e.Type == EventTurnFailed {
				is.Equal(e.Data.(map[string]any)["stage"], "chat")
			}
		}
	})

	t.Run("synthesize", func(t *testing.T) {
		is := is.New(t)
		f := newFixture(t, utterance(3)...)
		f.tts = tts.WithError(boom)
		o := f.orchestrator(t)

		is.NoErr(o.Run(context.Background()))
		is.Equal(len(f.player.Played()), 0)
		is.Equal(o.Status().TurnsFailed, int64(1))
		is.Equal(o.State(), StateStopped)
	})

	t.Run("playback", func(t *testing.T) {
		is := is.New(t)
		f := newFixture(t, utterance(3)...)
		f.player.PlayFunc = func(ctx context.Context, audio *tts.AudioResult) error { return boom }
		o := f.orchestrator(t)

		is.NoErr(o.Run(context.Background()))
		is.Equal(o.Status().TurnsFailed, int64(1))
	})

	t.Run("memory is best effort", func(t *testing.T) {
		is := is.New(t)
		f := newFixture(t, utterance(3)...)
		deps := f.deps()
		deps.Memory = failingMemory{err: boom}
		o, err := New(deps, WithLogger(log.Discard()))
		is.NoErr(err)
		o.SetUser("kaya")

		is.NoErr(o.Run(context.Background()))
		is.Equal(o.Status().TurnsCompleted, int64(1))
		is.Equal(len(f.player.Played()), 1)
	})
}

type failingMemory struct{ err error }

func (m failingMemory) Context(context.Context, string) (string, error) { return "", m.err }

func (m failingMemory) SaveExchange(context.Context, string, string, string) error { return m.err }

func (m failingMemory) Conclude(context.Context, string, string) error { return m.err }

func TestToolCalls(t *testing.T) {
	is := is.New(t)
	f := newFixture(t, utterance(3)...)
	f.chat = inference.NewMockSequence(inference.Reply("",
		inference.ToolCall{ID: "1", Name: "play_emotion", Arguments: `{"emotion":"happy"}`},
		inference.ToolCall{ID: "2", Name: "remember", Arguments: `{"fact":"Likes tea"}`},
		inference.ToolCall{ID: "3", Name: "launch_rockets", Arguments: `{}`},
	))
	o := f.orchestrator(t)
	o.SetUser("kaya")

	is.NoErr(o.Run(context.Background()))

	is.Equal(f.robot.Calls(), []string{"PlayEmotion:happy"})
	p := f.mem.Person("kaya")
	is.True(p != nil)
	is.True(p.HasFact("likes tea"))

	// Tools only: nothing to say.
	is.Equal(f.tts.CallCount("Synthesize"), 0)
	is.Equal(o.Status().TurnsCompleted, int64(1))
	is.Equal(f.events.Count(EventToolCall), 2)
	is.Equal(o.Status().HistoryLen, 1)
}

func TestMicrophoneMutedWhileSpeaking(t *testing.T) {
	is := is.New(t)
	f := newFixture(t, utterance(4)...)
	f.src.Hold = true
	release := make(chan struct{})
	f.player.PlayFunc = func(ctx context.Context, audio *tts.AudioResult) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	o := f.orchestrator(t)
	cancel, done := start(o)
	defer cancel()

	waitStarted(t, f.player)
	is.Equal(o.State(), StateSpeaking)

	// A complete utterance while the robot talks must not start a turn.
	f.src.Append(utterance(6)...)
	waitFor(t, "frames consumed", func() bool { return f.src.Remaining() == 0 })
	time.Sleep(20 * time.Millisecond)
	close(release)

	waitFor(t, "listening", func() bool { return o.State() == StateListening })
	f.src.Close()
	is.NoErr(<-done)

	is.Equal(f.stt.CallCount(), 1)
	is.Equal(o.Status().TurnsCompleted, int64(1))
}

func TestInterrupt(t *testing.T) {
	is := is.New(t)
	f := newFixture(t, utterance(3)...)
	f.src.Hold = true
	f.chat = inference.NewMockReply(strings.Repeat("la ", 100))
	f.player.PlayFunc = nil // play for the clip's full duration
	o := f.orchestrator(t)

	is.True(!o.Interrupt()) // nothing playing yet

	cancel, done := start(o)
	defer cancel()
	waitStarted(t, f.player)

	is.True(o.Interrupt())
	is.True(!o.Interrupt())
	waitFor(t, "playback stopped", func() bool { return f.player.Interrupted() == 1 })
	is.Equal(o.State(), StateListening)

	f.src.Close()
	is.NoErr(<-done)
	st := o.Status()
	is.Equal(st.Interruptions, int64(1))
	is.Equal(st.TurnsCompleted, int64(1))
	is.Equal(st.TurnsFailed, int64(0))
	is.Equal(f.events.Count(EventInterrupted), 1)
}

func TestBargeIn(t *testing.T) {
	is := is.New(t)
	f := newFixture(t, utterance(3)...)
	f.src.Hold = true
	f.chat = inference.NewMockReply(strings.Repeat("la ", 100))
	f.player.PlayFunc = nil
	o := f.orchestrator(t, WithBargeIn(true))

	cancel, done := start(o)
	defer cancel()
	waitStarted(t, f.player)

	// Two speech frames is sustained speech for this accumulator.
	f.src.Append(frames(3000, 2)...)
	waitFor(t, "barge-in", func() bool { return f.player.Interrupted() == 1 })

	f.src.Close()
	is.NoErr(<-done)
	is.Equal(o.Status().Interruptions, int64(1))
	is.Equal(f.stt.CallCount(), 1)
}

func TestPendingSlotDropsOlderUtterances(t *testing.T) {
	is := is.New(t)
	f := newFixture(t, utterance(2)...)
	f.src.Hold = true

	entered := make(chan struct{}, 8)
	release := make(chan struct{})
	var n atomic.Int32
	f.stt.TranscribeFunc = func(ctx context.Context, wav []byte, rate int) (string, error) {
		entered <- struct{}{}
		if n.Add(1) == 1 {
			<-release
		}
		return "hello", nil
	}
	o := f.orchestrator(t)
	cancel, done := start(o)
	defer cancel()

	<-entered
	f.src.Append(utterance(3)...)
	f.src.Append(utterance(4)...)
	f.src.Append(utterance(5)...)
	waitFor(t, "two drops", func() bool { return o.Status().TurnsDropped == 2 })

	close(release)
	waitFor(t, "second turn", func() bool { return o.Status().TurnsCompleted == 2 })
	f.src.Close()
	is.NoErr(<-done)

	calls := f.stt.Calls()
	is.Equal(len(calls), 2)
	is.Equal(calls[1].Bytes, wavBytes(5+3)) // newest utterance wins
	is.Equal(f.events.Count(EventTurnDropped), 2)
}

func TestIdentitySampling(t *testing.T) {
	t.Run("face", func(t *testing.T) {
		is := is.New(t)
		f := newFixture(t)
		f.src.Hold = true
		deps := f.deps()
		deps.Camera = &camera.Mock{Frames: [][]byte{[]byte("jpeg")}}
		deps.Extractor = &faceid.MockExtractor{ExtractFunc: func(ctx context.Context, jpeg []byte) (faceid.Embedding, error) {
			return faceid.Embedding{1, 0}, nil
		}}
		var samples atomic.Int32
		deps.Identifier = IdentifierFunc(func(ctx context.Context, e faceid.Embedding) string {
			samples.Add(1)
			if e == nil {
				return "anon"
			}
			return "kaya"
		})
		o, err := New(deps, WithLogger(log.Discard()), WithSampleInterval(10*time.Millisecond))
		is.NoErr(err)

		cancel, done := start(o)
		waitFor(t, "user", func() bool { return o.CurrentUser() == "kaya" })
		waitFor(t, "repeated samples", func() bool { return samples.Load() >= 3 })
		cancel()
		is.NoErr(<-done)
		is.Equal(f.events.Count(EventUser), 1)
	})

	t.Run("extraction failure means no face", func(t *testing.T) {
		is := is.New(t)
		f := newFixture(t)
		f.src.Hold = true
		deps := f.deps()
		deps.Camera = &camera.Mock{Err: camera.ErrNotAvailable}
		deps.Extractor = &faceid.MockExtractor{}
		deps.Identifier = IdentifierFunc(func(ctx context.Context, e faceid.Embedding) string {
			if e == nil {
				return "anon"
			}
			return "kaya"
		})
		o, err := New(deps, WithLogger(log.Discard()), WithSampleInterval(10*time.Millisecond))
		is.NoErr(err)

		cancel, done := start(o)
		waitFor(t, "anonymous user", func() bool { return o.CurrentUser() == "anon" })
		cancel()
		is.NoErr(<-done)
	})

	t.Run("registry", func(t *testing.T) {
		is := is.New(t)
		ctx := context.Background()
		reg, err := faceid.NewRegistry(ctx, faceid.NewMemoryStore(), faceid.WithLogger(log.Discard()))
		is.NoErr(err)
		is.NoErr(reg.RegisterUser(ctx, "kaya", faceid.Embedding{1, 0}))

		f := newFixture(t)
		f.src.Hold = true
		deps := f.deps()
		deps.Identifier = reg
		deps.Camera = &camera.Mock{Frames: [][]byte{[]byte("jpeg")}}
		deps.Extractor = &faceid.MockExtractor{ExtractFunc: func(ctx context.Context, jpeg []byte) (faceid.Embedding, error) {
			return faceid.Embedding{1, 0}, nil
		}}
		o, err := New(deps, WithLogger(log.Discard()), WithSampleInterval(10*time.Millisecond))
		is.NoErr(err)

		cancel, done := start(o)
		waitFor(t, "kaya", func() bool { return o.CurrentUser() == "kaya" })
		cancel()
		is.NoErr(<-done)
	})
}

func TestUserOverrides(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	o := f.orchestrator(t)

	o.SetUser("kaya")
	is.Equal(o.CurrentUser(), "kaya")
	o.ForgetUser("ben")
	is.Equal(o.CurrentUser(), "kaya")
	o.ForgetUser("kaya")
	is.Equal(o.CurrentUser(), "")
	is.Equal(f.events.Count(EventUser), 2)
}

func TestRunTwice(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.src.Hold = true
	o := f.orchestrator(t)

	cancel, done := start(o)
	waitFor(t, "listening", func() bool { return o.State() == StateListening })
	is.True(errors.Is(o.Run(context.Background()), ErrAlreadyRunning))
	cancel()
	is.NoErr(<-done)
}

func TestNewValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*Deps)
		want   error
	}{
		{"source", func(d *Deps) { d.Source = nil }, ErrMissingSource},
		{"stt", func(d *Deps) { d.STT = nil }, ErrMissingSTT},
		{"chat", func(d *Deps) { d.Chat = nil }, ErrMissingChat},
		{"tts", func(d *Deps) { d.TTS = nil }, ErrMissingTTS},
		{"player", func(d *Deps) { d.Player = nil }, ErrMissingPlayer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := f.deps()
			tt.mutate(&deps)
			if _, err := New(deps); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("config", func(t *testing.T) {
		_, err := New(f.deps(), WithHistoryLimit(1))
		var ce *ConfigError
		if !errors.As(err, &ce) || ce.Field != "history_limit" {
			t.Errorf("expected history_limit ConfigError, got %v", err)
		}
	})

	t.Run("whole config", func(t *testing.T) {
		cfg := *DefaultConfig()
		cfg.Logger = nil
		cfg.BargeIn = true
		cfg.Model = "gpt-4o"

		c := DefaultConfig()
		logger := c.Logger
		c.Apply(WithConfig(cfg))
		if !c.BargeIn || c.Model != "gpt-4o" {
			t.Errorf("settings not replaced: %+v", c)
		}
		if c.Logger != logger {
			t.Error("nil logger should keep the current one")
		}
	})
}

func TestTrimHistory(t *testing.T) {
	msgs := func(n int) []inference.Message {
		out := make([]inference.Message, n)
		for i := range out {
			out[i] = inference.NewUserMessage(string(rune('a' + i)))
		}
		return out
	}

	if got := trimHistory(msgs(19), 20); len(got) != 19 {
		t.Errorf("19 messages plus system fit in 20, got %d", len(got))
	}

	got := trimHistory(msgs(20), 20)
	if len(got) != 18 {
		t.Fatalf("expected 18 after trimming, got %d", len(got))
	}
	if got[0].Content != "c" || got[17].Content != "t" {
		t.Errorf("expected the most recent messages, got %q..%q", got[0].Content, got[17].Content)
	}
}

func TestHistoryAcrossTurns(t *testing.T) {
	is := is.New(t)
	var input []audioio.Frame
	for i := 0; i < 4; i++ {
		input = append(input, utterance(2)...)
	}
	f := newFixture(t, input...)
	f.src.Interval = 2 * time.Millisecond // let each turn finish before the next
	o := f.orchestrator(t, WithHistoryLimit(6))

	is.NoErr(o.Run(context.Background()))
	st := o.Status()
	is.Equal(st.TurnsCompleted+st.TurnsDropped, int64(4))
	is.True(st.HistoryLen <= 5)

	last := f.chat.LastCall()
	is.True(len(last.Messages) <= 6)
	is.Equal(last.Messages[0].Role, inference.RoleSystem)
}

func TestRecallKeptInHistory(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	f := newFixture(t, append(utterance(2), utterance(2)...)...)
	f.src.Interval = 2 * time.Millisecond
	f.chat = inference.NewMockSequence(
		inference.Reply("", inference.ToolCall{ID: "1", Name: "recall", Arguments: `{"question":"my dog"}`}),
		inference.Reply("Your dog is Biscuit."),
	)
	is.NoErr(f.mem.Conclude(ctx, "kaya", "Has a dog named Biscuit"))

	o := f.orchestrator(t)
	o.SetUser("kaya")
	is.NoErr(o.Run(ctx))

	is.Equal(f.chat.CallCount("Chat"), 2)
	msgs := f.chat.LastCall().Messages
	// system, user, recall note, user
	is.Equal(len(msgs), 4)
	is.Equal(msgs[2].Role, inference.RoleSystem)
	is.Equal(msgs[2].Content, "recall: Has a dog named Biscuit")
	is.Equal(o.Status().HistoryLen, 4)
}

func TestTools(t *testing.T) {
	ctx := context.Background()

	t.Run("set_volume", func(t *testing.T) {
		is := is.New(t)
		r := &robot.Mock{}
		tool := VolumeTool(r)
		_, err := tool.Handler(ctx, "", map[string]any{"level": "loud"})
		is.True(err != nil)
		res, err := tool.Handler(ctx, "", map[string]any{"level": 40.0})
		is.NoErr(err)
		is.Equal(res, "volume 40")
		is.Equal(r.Calls(), []string{"SetVolume:40"})
	})

	t.Run("remember needs a user", func(t *testing.T) {
		is := is.New(t)
		mem, _ := memory.New()
		_, err := RememberTool(mem).Handler(ctx, "", map[string]any{"fact": "x"})
		is.True(errors.Is(err, ErrNoUser))
	})

	t.Run("recall", func(t *testing.T) {
		is := is.New(t)
		mem, _ := memory.New()
		tool := RecallTool(mem)
		is.True(tool.KeepResult)
		_, err := tool.Handler(ctx, "", map[string]any{"question": "tea"})
		is.True(errors.Is(err, ErrNoUser))
		res, err := tool.Handler(ctx, "kaya", map[string]any{"question": "tea"})
		is.NoErr(err)
		is.Equal(res, "nothing remembered about kaya")
		is.NoErr(mem.Conclude(ctx, "kaya", "Likes tea"))
		res, err = tool.Handler(ctx, "kaya", map[string]any{"question": "tea"})
		is.NoErr(err)
		is.Equal(res, "Likes tea")
	})

	t.Run("emotion defaults to happy", func(t *testing.T) {
		is := is.New(t)
		r := &robot.Mock{}
		_, err := EmotionTool(r).Handler(ctx, "", map[string]any{})
		is.NoErr(err)
		is.Equal(r.Calls(), []string{"PlayEmotion:happy"})
	})

	t.Run("default set", func(t *testing.T) {
		is := is.New(t)
		is.Equal(len(DefaultTools(nil, nil)), 0)
		mem, _ := memory.New()
		is.Equal(len(DefaultTools(&robot.Mock{}, mem)), 4)
		is.Equal(len(DefaultTools(&robot.Mock{}, memory.Nop{})), 3) // Nop cannot recall
	})
}

// slowSpeakingEvents stalls the switch into Speaking so the gap between
// synthesis and playback start is measurable.
type slowSpeakingEvents struct {
	*MockEvents
	delay time.Duration
}

func (s slowSpeakingEvents) Publish(eventType string, data any) {
	if d, ok := data.(map[string]any); ok && eventType == EventState && d["state"] == StateSpeaking {
		time.Sleep(s.delay)
	}
	s.MockEvents.Publish(eventType, data)
}

func TestFirstAudioMeasuredAtPlaybackStart(t *testing.T) {
	is := is.New(t)

	f := newFixture(t, utterance(4)...)
	f.player.PlayFunc = func(ctx context.Context, audio *tts.AudioResult) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	deps := f.deps()
	deps.Events = slowSpeakingEvents{MockEvents: f.events, delay: 30 * time.Millisecond}

	o, err := New(deps, WithLogger(log.Discard()))
	is.NoErr(err)
	is.NoErr(o.Run(context.Background()))

	lat := o.Status().Latency.Last
	is.True(lat.FirstAudio-lat.Synthesize >= 30*time.Millisecond) // stamped after muting
	is.True(lat.Total-lat.FirstAudio >= 50*time.Millisecond)      // playback excluded
}

func TestLatencyTracker(t *testing.T) {
	var tr latencyTracker
	if s := tr.summary(); s.Turns != 0 || s.Average.Total != 0 {
		t.Errorf("expected empty summary, got %+v", s)
	}

	tr.record(Latency{Transcribe: 100 * time.Millisecond, Total: 1 * time.Second})
	tr.record(Latency{Transcribe: 300 * time.Millisecond, Total: 3 * time.Second})
	s := tr.summary()
	if s.Turns != 2 {
		t.Errorf("expected 2 turns, got %d", s.Turns)
	}
	if s.Average.Transcribe != 200*time.Millisecond || s.Average.Total != 2*time.Second {
		t.Errorf("unexpected average %+v", s.Average)
	}
	if s.Last.Total != 3*time.Second {
		t.Errorf("expected last total 3s, got %v", s.Last.Total)
	}

	for i := 0; i < maxLatencyHistory+10; i++ {
		tr.record(Latency{Total: time.Second})
	}
	if s := tr.summary(); s.Turns != maxLatencyHistory || s.Average.Total != time.Second {
		t.Errorf("history should be capped at %d, got %+v", maxLatencyHistory, s)
	}

	if got := (Latency{Chat: 1500 * time.Microsecond}).String(); !strings.Contains(got, "---ms STT") || !strings.Contains(got, "2ms LLM") {
		t.Errorf("unexpected format %q", got)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateStopped:    "stopped",
		StateListening:  "listening",
		StateProcessing: "processing",
		StateSpeaking:   "speaking",
		State(99):       "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("expected %s, got %s", want, s.String())
		}
	}
}
