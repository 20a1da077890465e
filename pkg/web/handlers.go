package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/reachy-voice/pkg/audioio"
	"github.com/teslashibe/reachy-voice/pkg/conversation"
	"github.com/teslashibe/reachy-voice/pkg/faceid"
	"github.com/teslashibe/reachy-voice/pkg/hub"
)

// enrollTimeout bounds extraction plus the registry save.
const enrollTimeout = 10 * time.Second

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Conversation *conversation.Status `json:"conversation,omitempty"`
	Users        int                  `json:"users"`
	Degraded     bool                 `json:"registry_degraded"`
	Clients      int                  `json:"event_clients"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	var resp StatusResponse
	if s.deps.Conversation != nil {
		st := s.deps.Conversation.Status()
		resp.Conversation = &st
	}
	if s.deps.Users != nil {
		resp.Users = s.deps.Users.Len()
		resp.Degraded = s.deps.Users.Degraded()
	}
	if s.deps.Hub != nil {
		resp.Clients = s.deps.Hub.ClientCount()
	}
	return c.JSON(resp)
}

// handleAudio accepts a WAV chunk from the bridge.
func (s *Server) handleAudio(c *fiber.Ctx) error {
	if s.deps.Audio == nil {
		return ErrUnavailable
	}
	body := c.Body()
	if len(body) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "empty body")
	}
	// fasthttp reuses the body buffer after the handler returns.
	data := append([]byte(nil), body...)
	if err := s.deps.Audio.PushWAV(data); err != nil {
		if errors.Is(err, audioio.ErrClosed) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) handleInterrupt(c *fiber.Ctx) error {
	if s.deps.Conversation == nil {
		return ErrUnavailable
	}
	return c.JSON(fiber.Map{"interrupted": s.deps.Conversation.Interrupt()})
}

func (s *Server) handleListUsers(c *fiber.Ctx) error {
	if s.deps.Users == nil {
		return ErrUnavailable
	}
	users := s.deps.Users.ListUsers()
	if users == nil {
		users = []faceid.UserSummary{}
	}
	return c.JSON(users)
}

// handleDeleteUser removes the face identity and, if wired, the user's
// memory.
func (s *Server) handleDeleteUser(c *fiber.Ctx) error {
	if s.deps.Users == nil {
		return ErrUnavailable
	}
	id := c.Params("id")

	deleted, err := s.deps.Users.DeleteUser(c.UserContext(), id)
	if !deleted {
		return fiber.NewError(fiber.StatusNotFound, "unknown user "+id)
	}

	resp := fiber.Map{"deleted": id}
	if err != nil {
		// Removed in memory, not on disk.
		resp["warning"] = err.Error()
	}
	if s.deps.Memory != nil {
		if _, merr := s.deps.Memory.Forget(id); merr != nil {
			s.logger.Warn("forgetting user memory failed", "user", id, "error", merr)
		}
	}
	if s.deps.Conversation != nil {
		s.deps.Conversation.ForgetUser(id)
	}
	s.logger.Info("user deleted", "user", id)
	return c.JSON(resp)
}

// handleEnroll registers the face in a JPEG body under the given id.
func (s *Server) handleEnroll(c *fiber.Ctx) error {
	if s.deps.Users == nil || s.deps.Extractor == nil {
		return ErrUnavailable
	}
	id := c.Params("id")
	body := c.Body()
	if len(body) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "JPEG body required")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), enrollTimeout)
	defer cancel()

	emb, err := s.deps.Extractor.Extract(ctx, append([]byte(nil), body...))
	if err != nil {
		if errors.Is(err, faceid.ErrNoFace) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	resp := fiber.Map{"user_id": id}
	if err := s.deps.Users.RegisterUser(ctx, id, emb); err != nil {
		if errors.Is(err, faceid.ErrInvalidUserID) || errors.Is(err, faceid.ErrEmptyEmbedding) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		// Registered in memory; the save failed.
		resp["warning"] = err.Error()
	}
	if s.deps.Conversation != nil {
		s.deps.Conversation.SetUser(id)
	}
	s.logger.Info("user enrolled", "user", id)
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (s *Server) handleEventsWS(c *websocket.Conn) {
	if s.deps.Hub == nil {
		c.Close()
		return
	}
	hub.NewClient(s.deps.Hub, c).Run()
}
