package robot_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/teslashibe/reachy-voice/pkg/robot"
)

func newController(t *testing.T, h http.HandlerFunc) *robot.HTTPController {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := robot.NewHTTPController("127.0.0.1")
	c.BaseURL = srv.URL
	return c
}

func TestPlayEmotion(t *testing.T) {
	var gotPath, gotMethod string
	c := newController(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.Write([]byte(`{"uuid":"x"}`))
	})

	if err := c.PlayEmotion(context.Background(), "happy"); err != nil {
		t.Fatalf("PlayEmotion failed: %v", err)
	}
	want := "/api/move/play/recorded-move-dataset/pollen-robotics/reachy-mini-emotions-library/happy"
	if gotPath != want || gotMethod != http.MethodPost {
		t.Errorf("got %s %s, want POST %s", gotMethod, gotPath, want)
	}

	if err := c.PlayEmotion(context.Background(), "moonwalk"); !errors.Is(err, robot.ErrUnknownEmotion) {
		t.Errorf("expected ErrUnknownEmotion, got %v", err)
	}
}

func TestSetVolume(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{50, 50},
		{-10, 0},
		{150, 100},
	}
	for _, tt := range tests {
		var body map[string]int
		c := newController(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/volume/set" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			json.NewDecoder(r.Body).Decode(&body)
		})
		if err := c.SetVolume(context.Background(), tt.level); err != nil {
			t.Fatalf("SetVolume failed: %v", err)
		}
		if body["volume"] != tt.want {
			t.Errorf("SetVolume(%d): expected %d, got %d", tt.level, tt.want, body["volume"])
		}
	}
}

func TestDaemonStatus(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		c := newController(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"state":"running","version":"1.0"}`))
		})
		state, err := c.DaemonStatus(context.Background())
		if err != nil || state != "running" {
			t.Errorf("got (%q, %v)", state, err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		c := newController(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		if _, err := c.DaemonStatus(context.Background()); err == nil {
			t.Error("expected error")
		}
	})
}

func TestMock(t *testing.T) {
	m := &robot.Mock{}
	ctx := context.Background()
	m.PlayEmotion(ctx, "sad")
	m.SetVolume(ctx, 30)
	state, _ := m.DaemonStatus(ctx)

	if state != "running" {
		t.Errorf("expected running, got %q", state)
	}
	calls := m.Calls()
	if len(calls) != 3 || calls[0] != "PlayEmotion:sad" || calls[1] != "SetVolume:30" {
		t.Errorf("unexpected calls %v", calls)
	}
}
