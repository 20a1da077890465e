// Package hub fans orchestrator events out to websocket clients using the
// channel-based broadcast pattern: one goroutine owns the client set, each
// client has its own write pump.
package hub

import (
	"encoding/json"
	"time"
)

// Event is the JSON envelope sent to clients.
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	Time time.Time `json:"time"`
}

// Message is an encoded event ready to be written.
type Message struct {
	Data []byte
}

// NewEventMessage encodes an event.
func NewEventMessage(eventType string, data any, now time.Time) (Message, error) {
	b, err := json.Marshal(Event{Type: eventType, Data: data, Time: now})
	if err != nil {
		return Message{}, err
	}
	return Message{Data: b}, nil
}
