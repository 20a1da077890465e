// Package web serves the robot's HTTP API: audio ingress from the on-robot
// bridge, status, interruption, user administration and a websocket event
// stream.
package web

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/reachy-voice/pkg/conversation"
	"github.com/teslashibe/reachy-voice/pkg/faceid"
	"github.com/teslashibe/reachy-voice/pkg/hub"
)

// DefaultAddr is where the API listens.
const DefaultAddr = ":8080"

// Config holds server settings.
type Config struct {
	Addr string `yaml:"addr" json:"addr"`

	// AccessLog enables per-request logging.
	AccessLog bool `yaml:"access_log" json:"access_log"`

	// BodyLimit caps request bodies (WAV chunks, JPEG snapshots).
	BodyLimit int `yaml:"body_limit" json:"body_limit"`
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Addr:      DefaultAddr,
		BodyLimit: 16 * 1024 * 1024,
	}
}

// Conversation is what the API needs from the orchestrator.
type Conversation interface {
	Status() conversation.Status
	Interrupt() bool
	SetUser(userID string)
	ForgetUser(userID string)
}

// Users is what the API needs from the face registry.
type Users interface {
	ListUsers() []faceid.UserSummary
	RegisterUser(ctx context.Context, userID string, embedding faceid.Embedding) error
	DeleteUser(ctx context.Context, userID string) (bool, error)
	Len() int
	Degraded() bool
}

// AudioInput accepts WAV chunks from the bridge.
type AudioInput interface {
	PushWAV(data []byte) error
}

// Forgetter deletes a user's memory.
type Forgetter interface {
	Forget(userID string) (bool, error)
}

// Deps are the server's collaborators. Any of them may be nil; the
// matching routes then answer 503.
type Deps struct {
	Conversation Conversation
	Users        Users
	Extractor    faceid.Extractor
	Audio        AudioInput
	Memory       Forgetter
	Hub          *hub.Hub
	Logger       *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	app    *fiber.App
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

// ErrUnavailable is returned by routes whose collaborator is not wired.
var ErrUnavailable = errors.New("web: not available")

// NewServer builds the app and its routes.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultConfig().BodyLimit
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: log.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "reachy-voice",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New())
	if cfg.AccessLog {
		app.Use(logger.New())
	}

	app.Get("/health", s.handleHealth)
	app.Get("/status", s.handleStatus)
	app.Post("/audio", s.handleAudio)

	api := app.Group("/api")
	api.Post("/interrupt", s.handleInterrupt)
	api.Get("/users", s.handleListUsers)
	api.Delete("/users/:id", s.handleDeleteUser)
	api.Post("/users/:id/enroll", s.handleEnroll)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", s.cfg.Addr)
		errc <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return s.app.Shutdown()
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, ErrUnavailable):
		code = fiber.StatusServiceUnavailable
	}
	if code >= 500 {
		s.logger.Warn("request failed", "path", c.Path(), "status", code, "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
