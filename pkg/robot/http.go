package robot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/teslashibe/reachy-voice/internal/httpc"
)

// DefaultPort is the daemon's HTTP port.
const DefaultPort = 8000

const emotionsDataset = "pollen-robotics/reachy-mini-emotions-library"

// ErrUnknownEmotion is returned for moves outside Emotions.
var ErrUnknownEmotion = errors.New("robot: unknown emotion")

// HTTPController implements Controller using the daemon's HTTP API.
type HTTPController struct {
	BaseURL string
	client  *http.Client
}

// NewHTTPController creates a controller for the daemon at robotIP:8000.
func NewHTTPController(robotIP string) *HTTPController {
	return &HTTPController{
		BaseURL: fmt.Sprintf("http://%s:%d", robotIP, DefaultPort),
		client:  httpc.NewClient(5 * time.Second),
	}
}

// PlayEmotion starts a recorded emotion move. The daemon returns as soon as
// the move is queued.
func (r *HTTPController) PlayEmotion(ctx context.Context, emotion string) error {
	if !IsEmotion(emotion) {
		return fmt.Errorf("%w: %q", ErrUnknownEmotion, emotion)
	}
	u := fmt.Sprintf("%s/api/move/play/recorded-move-dataset/%s/%s", r.BaseURL, emotionsDataset, url.PathEscape(emotion))
	if _, err := httpc.PostBytes(ctx, r.client, u, "application/json", nil); err != nil {
		return fmt.Errorf("play emotion: %w", err)
	}
	return nil
}

// SetVolume sets the robot's speaker volume, clamped to 0-100.
func (r *HTTPController) SetVolume(ctx context.Context, level int) error {
	level = max(0, min(100, level))

	payload, _ := json.Marshal(map[string]int{"volume": level})
	if _, err := httpc.PostBytes(ctx, r.client, r.BaseURL+"/api/volume/set", "application/json", payload); err != nil {
		return fmt.Errorf("volume set request failed: %w", err)
	}
	return nil
}

// DaemonStatus returns the daemon state string (e.g. "running").
func (r *HTTPController) DaemonStatus(ctx context.Context) (string, error) {
	body, err := httpc.GetBytes(ctx, r.client, r.BaseURL+"/api/daemon/status")
	if err != nil {
		return "", fmt.Errorf("daemon status request failed: %w", err)
	}

	var status struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return "", fmt.Errorf("failed to decode daemon status: %w", err)
	}
	return status.State, nil
}
