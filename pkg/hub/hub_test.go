package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/reachy-voice/internal/log"
)

// fakeConn records writes; ReadMessage blocks until Close.
type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) SetReadLimit(int64) {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(appData string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(mt int, data []byte) error {
	if mt != websocket.TextMessage {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) Writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishReachesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New(log.Discard())
	go h.Run(ctx)

	conns := []*fakeConn{newFakeConn(), newFakeConn()}
	for _, c := range conns {
		go NewClient(h, c).Run()
	}
	waitFor(t, "clients", func() bool { return h.ClientCount() == 2 })

	h.Publish("state", map[string]any{"state": "listening"})

	for i, c := range conns {
		waitFor(t, "write", func() bool { return len(c.Writes()) == 1 })
		var ev struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(c.Writes()[0], &ev); err != nil {
			t.Fatalf("client %d: invalid JSON: %v", i, err)
		}
		if ev.Type != "state" || ev.Data["state"] != "listening" {
			t.Errorf("client %d: unexpected event %+v", i, ev)
		}
	}
}

func TestClientDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New(log.Discard())
	go h.Run(ctx)

	c := newFakeConn()
	go NewClient(h, c).Run()
	waitFor(t, "connect", func() bool { return h.ClientCount() == 1 })

	c.Close()
	waitFor(t, "disconnect", func() bool { return h.ClientCount() == 0 })
}

func TestShutdownDisconnectsClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New(log.Discard())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	c := newFakeConn()
	done := make(chan struct{})
	go func() {
		NewClient(h, c).Run()
		close(done)
	}()
	waitFor(t, "connect", func() bool { return h.ClientCount() == 1 })

	cancel()
	<-stopped
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not exit after hub shutdown")
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", h.ClientCount())
	}
}

func TestBroadcastNeverBlocks(t *testing.T) {
	h := New(log.Discard()) // not running: the queue fills up
	for i := 0; i < 300; i++ {
		h.Publish("tick", i)
	}
	if h.Dropped() != 300-256 {
		t.Errorf("expected %d drops, got %d", 300-256, h.Dropped())
	}
}
