package playback

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/reachy-voice/internal/httpc"
	"github.com/teslashibe/reachy-voice/pkg/tts"
)

// DefaultBridgePort is where the on-robot audio bridge listens.
const DefaultBridgePort = 9000

// stopTimeout bounds the best-effort /stop call after an interrupt.
const stopTimeout = 2 * time.Second

// BridgePlayer posts WAV audio to the HTTP bridge running on the robot.
// The bridge answers /play once the clip has finished playing.
type BridgePlayer struct {
	BaseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewBridgePlayer creates a player for the bridge at host:9000.
func NewBridgePlayer(host string, logger *slog.Logger) *BridgePlayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BridgePlayer{
		BaseURL: fmt.Sprintf("http://%s:%d", host, DefaultBridgePort),
		// Deadline comes from the caller's ctx.
		client: httpc.NewClient(0),
		logger: logger.With("component", "playback.bridge"),
	}
}

// Play uploads the clip and waits for the bridge to finish it. On
// cancellation the upload is aborted and /stop is sent so the speaker goes
// quiet immediately.
func (p *BridgePlayer) Play(ctx context.Context, audio *tts.AudioResult) error {
	if audio.Empty() {
		return nil
	}

	_, err := httpc.PostBytes(ctx, p.client, p.BaseURL+"/play", "audio/wav", audio.WAV())
	if ctx.Err() != nil {
		p.stop()
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("bridge play: %w", err)
	}
	return nil
}

func (p *BridgePlayer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if _, err := httpc.PostBytes(ctx, p.client, p.BaseURL+"/stop", "", nil); err != nil {
		p.logger.Debug("bridge stop failed", "error", err)
	}
}

var _ Player = (*BridgePlayer)(nil)
