package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/teslashibe/reachy-voice/internal/config"
	"github.com/teslashibe/reachy-voice/pkg/audioio"
	"github.com/teslashibe/reachy-voice/pkg/camera"
	"github.com/teslashibe/reachy-voice/pkg/conversation"
	"github.com/teslashibe/reachy-voice/pkg/faceid"
	"github.com/teslashibe/reachy-voice/pkg/hub"
	"github.com/teslashibe/reachy-voice/pkg/inference"
	"github.com/teslashibe/reachy-voice/pkg/memory"
	"github.com/teslashibe/reachy-voice/pkg/playback"
	"github.com/teslashibe/reachy-voice/pkg/robot"
	"github.com/teslashibe/reachy-voice/pkg/stt"
	"github.com/teslashibe/reachy-voice/pkg/tts"
	"github.com/teslashibe/reachy-voice/pkg/vad"
	"github.com/teslashibe/reachy-voice/pkg/web"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the conversation loop and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		ephemeral, _ := cmd.Flags().GetBool("ephemeral")

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if dryRun {
			cfg.Playback.Mode = config.PlaybackPaced
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		a := &app{cfg: cfg, logger: logger, ephemeral: ephemeral}
		defer a.Shutdown()
		if err := a.Init(ctx); err != nil {
			return err
		}
		return a.Run(ctx)
	},
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "play speech into a local paced sink instead of the robot")
	runCmd.Flags().Bool("ephemeral", false, "keep identities and memory in memory only")
}

// app owns every component of a running robot.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	ephemeral bool

	source    audioio.Source
	push      *audioio.PushSource
	registry  *faceid.Registry
	extractor faceid.Extractor
	camera    camera.Snapshotter
	memory    *memory.Memory
	hub       *hub.Hub
	orch      *conversation.Orchestrator
	server    *web.Server

	closers []func() error
}

// Init builds every component. Identity is optional: a missing camera or
// face model disables sampling but the conversation still runs.
func (a *app) Init(ctx context.Context) error {
	cfg := a.cfg
	a.logger.Info("starting reachy-voice",
		"robot", cfg.Robot.Host,
		"daemon", config.RobotAPIURL(cfg.Robot.Host),
		"audio", cfg.Audio.Backend,
		"playback", cfg.Playback.Mode,
	)

	if err := a.initAudio(); err != nil {
		return fmt.Errorf("audio init: %w", err)
	}
	if err := a.initMemory(); err != nil {
		return fmt.Errorf("memory init: %w", err)
	}
	if cfg.FaceID.Enabled {
		if err := a.initIdentity(ctx); err != nil {
			return fmt.Errorf("identity init: %w", err)
		}
	}

	chat, err := newChat(cfg.OpenAI, a.logger)
	if err != nil {
		return fmt.Errorf("chat init: %w", err)
	}
	a.closers = append(a.closers, chat.Close)

	transcriber, err := stt.NewWhisper(
		stt.WithAPIKey(cfg.OpenAI.APIKey),
		stt.WithBaseURL(cfg.OpenAI.BaseURL),
		stt.WithModel(cfg.OpenAI.STTModel),
		stt.WithLanguage(cfg.OpenAI.Language),
		stt.WithLogger(a.logger),
	)
	if err != nil {
		return fmt.Errorf("stt init: %w", err)
	}
	a.closers = append(a.closers, transcriber.Close)

	speech, err := a.newTTS()
	if err != nil {
		return fmt.Errorf("tts init: %w", err)
	}
	a.closers = append(a.closers, speech.Close)

	a.hub = hub.New(a.logger)

	var mem memory.Service = memory.Nop{}
	if a.memory != nil {
		mem = a.memory
	}

	deps := conversation.Deps{
		Source:      a.source,
		Accumulator: vad.NewWithConfig(cfg.VAD),
		STT:         transcriber,
		Chat:        chat,
		TTS:         speech,
		Player:      a.newPlayer(),
		Memory:      mem,
		Tools:       conversation.DefaultTools(robot.NewHTTPController(cfg.Robot.Host), mem),
		Events:      a.hub,
	}
	if a.registry != nil && a.extractor != nil && a.camera != nil {
		deps.Identifier = a.registry
		deps.Extractor = a.extractor
		deps.Camera = a.camera
	}

	a.orch, err = conversation.New(deps,
		conversation.WithConfig(cfg.Conversation),
		conversation.WithLogger(a.logger),
	)
	if err != nil {
		return fmt.Errorf("conversation init: %w", err)
	}

	a.server = web.NewServer(cfg.Server, a.webDeps())
	return nil
}

func (a *app) initAudio() error {
	cfg := a.cfg.Audio
	if cfg.Backend == audioio.BackendPush {
		a.push = audioio.NewPushSource(cfg, a.logger)
		a.source = a.push
		a.closers = append(a.closers, a.push.Close)
		return nil
	}
	src, err := audioio.NewSource(cfg, a.logger)
	if err != nil {
		return err
	}
	a.source = src
	a.closers = append(a.closers, src.Close)
	return nil
}

func (a *app) initMemory() error {
	cfg := a.cfg.Memory
	if !cfg.Enabled {
		return nil
	}
	opts := []memory.Option{
		memory.WithMaxExchanges(cfg.MaxExchanges),
		memory.WithLogger(a.logger),
	}
	if !a.ephemeral {
		opts = append(opts, memory.WithStore(memory.NewJSONStore(cfg.Path)))
	}
	m, err := memory.New(opts...)
	if err != nil {
		return err
	}
	a.memory = m
	a.closers = append(a.closers, m.Close)
	return nil
}

func (a *app) initIdentity(ctx context.Context) error {
	reg, err := openRegistry(ctx, a.cfg, a.ephemeral, a.logger)
	if err != nil {
		return err
	}
	a.registry = reg
	a.closers = append(a.closers, reg.Close)

	x, err := faceid.NewSFaceExtractor(a.cfg.FaceID.Extractor)
	if err != nil {
		a.logger.Warn("face extractor unavailable, identity sampling disabled", "error", err)
	} else {
		a.extractor = x
		a.closers = append(a.closers, x.Close)
	}

	cam, err := camera.New(a.cfg.Camera, a.logger)
	if err != nil {
		a.logger.Warn("camera unavailable, identity sampling disabled", "error", err)
		return nil
	}
	a.camera = cam
	return nil
}

// newChat chains the configured chat model with the fallback model.
func newChat(cfg config.OpenAI, logger *slog.Logger) (inference.Provider, error) {
	build := func(model string) (*inference.Client, error) {
		return inference.NewClient(
			inference.WithAPIKey(cfg.APIKey),
			inference.WithBaseURL(cfg.BaseURL),
			inference.WithModel(model),
			inference.WithLogger(logger),
		)
	}

	primary, err := build(cfg.ChatModel)
	if err != nil {
		return nil, err
	}
	if cfg.ChatFallbackModel == "" || cfg.ChatFallbackModel == cfg.ChatModel {
		return primary, nil
	}
	fallback, err := build(cfg.ChatFallbackModel)
	if err != nil {
		return nil, err
	}
	return inference.NewChain(logger, primary, fallback)
}

// newTTS chains the configured model with tts-1 as a fallback.
func (a *app) newTTS() (tts.Provider, error) {
	cfg := a.cfg.OpenAI
	build := func(model string) (*tts.OpenAI, error) {
		return tts.NewOpenAI(
			tts.WithAPIKey(cfg.APIKey),
			tts.WithBaseURL(cfg.BaseURL),
			tts.WithModel(model),
			tts.WithVoice(cfg.Voice),
			tts.WithSpeed(cfg.Speed),
			tts.WithLogger(a.logger),
		)
	}

	primary, err := build(cfg.TTSModel)
	if err != nil {
		return nil, err
	}
	if cfg.TTSModel == tts.ModelTTS1 {
		return primary, nil
	}
	fallback, err := build(tts.ModelTTS1)
	if err != nil {
		return nil, err
	}
	return tts.NewChain(a.logger, primary, fallback)
}

func (a *app) newPlayer() playback.Player {
	if a.cfg.Playback.Mode == config.PlaybackPaced {
		return playback.NewSinkPlayer(audioio.NewPacedSink())
	}
	return playback.NewBridgePlayer(a.cfg.Robot.Host, a.logger)
}

// webDeps leaves unset collaborators as untyped nils so the API answers 503
// for them.
func (a *app) webDeps() web.Deps {
	deps := web.Deps{
		Conversation: a.orch,
		Hub:          a.hub,
		Logger:       a.logger,
	}
	if a.registry != nil {
		deps.Users = a.registry
	}
	if a.extractor != nil {
		deps.Extractor = a.extractor
	}
	if a.push != nil {
		deps.Audio = a.push
	}
	if a.memory != nil {
		deps.Memory = a.memory
	}
	return deps
}

// Run blocks until ctx is cancelled or a component fails.
func (a *app) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.hub.Run(ctx)

	errc := make(chan error, 2)
	go func() { errc <- a.server.Run(ctx) }()
	go func() { errc <- a.orch.Run(ctx) }()

	a.logger.Info("listening, speak to start a conversation", "api", a.cfg.Server.Addr)

	err := <-errc
	cancel()
	if err2 := <-errc; err == nil {
		err = err2
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown releases every component in reverse order.
func (a *app) Shutdown() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("shutdown", "error", err)
		}
	}
	a.closers = nil
	a.logger.Info("goodbye")
}
