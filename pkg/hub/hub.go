package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Hub maintains the set of active clients and broadcasts events to them.
type Hub struct {
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// mu guards count for readers outside the Run goroutine.
	mu    sync.RWMutex
	count int

	dropped sync.Mutex
	drops   int64
}

// New creates a hub. Call Run before registering clients.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger.With("component", "hub"),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled, then disconnects
// everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.setCount()
			h.logger.Info("client connected", "clients", len(h.clients))

		case c := <-h.unregister:
			if h.clients[c] {
				h.remove(c)
				h.logger.Info("client disconnected", "clients", len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.remove(c)
					h.logger.Warn("dropped slow client")
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

// Broadcast queues a message for every client. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Lock()
		h.drops++
		h.dropped.Unlock()
		h.logger.Debug("broadcast queue full, dropping event")
	}
}

// Publish encodes an event and broadcasts it. It satisfies the
// orchestrator's event sink.
func (h *Hub) Publish(eventType string, data any) {
	msg, err := NewEventMessage(eventType, data, time.Now())
	if err != nil {
		h.logger.Warn("encoding event failed", "type", eventType, "error", err)
		return
	}
	h.Broadcast(msg)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Dropped returns how many events were dropped because the queue was full.
func (h *Hub) Dropped() int64 {
	h.dropped.Lock()
	defer h.dropped.Unlock()
	return h.drops
}
