package conversation

import (
	"context"
	"time"

	"github.com/teslashibe/reachy-voice/pkg/faceid"
)

// State is where the orchestrator is in the turn cycle.
type State int

const (
	// StateStopped means Run is not active.
	StateStopped State = iota
	// StateListening accumulates microphone audio.
	StateListening
	// StateProcessing runs transcription, chat and synthesis.
	StateProcessing
	// StateSpeaking plays a reply; the microphone is muted.
	StateSpeaking
)

// String returns a human-readable state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Identifier resolves a face embedding to a user id. A nil embedding means
// no face this tick. *faceid.Registry implements it.
type Identifier interface {
	Identify(ctx context.Context, embedding faceid.Embedding) string
}

// EventSink receives orchestrator events. Publish must not block.
type EventSink interface {
	Publish(eventType string, data any)
}

// Event types.
const (
	EventState       = "state"
	EventTranscript  = "transcript"
	EventResponse    = "response"
	EventToolCall    = "tool_call"
	EventTurnFailed  = "turn_failed"
	EventTurnDropped = "turn_dropped"
	EventUser        = "user"
	EventInterrupted = "interrupted"
)

// TurnResult describes a finished turn.
type TurnResult struct {
	UserID     string        `json:"user_id,omitempty"`
	Transcript string        `json:"transcript,omitempty"`
	Response   string        `json:"response,omitempty"`
	Tools      []string      `json:"tools,omitempty"`
	Skipped    bool          `json:"skipped,omitempty"`
	Duration   time.Duration `json:"duration"`
	Latency    Latency       `json:"latency"`

	spoke bool
}

// Status is a point-in-time snapshot for the status endpoint.
type Status struct {
	State          State     `json:"state"`
	User           string    `json:"user,omitempty"`
	TurnsCompleted int64     `json:"turns_completed"`
	TurnsFailed    int64     `json:"turns_failed"`
	TurnsDropped   int64     `json:"turns_dropped"`
	TurnsSkipped   int64     `json:"turns_skipped"`
	Interruptions  int64     `json:"interruptions"`
	LastTranscript string    `json:"last_transcript,omitempty"`
	LastResponse   string    `json:"last_response,omitempty"`
	LastTurnAt     time.Time `json:"last_turn_at,omitempty"`
	HistoryLen     int       `json:"history_len"`

	Latency LatencySummary `json:"latency"`
}
