package audioio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"gopkg.in/hraban/opus.v2"
)

const (
	// ProducerName is the meta name the robot's GStreamer producer announces.
	ProducerName = "reachymini"

	opusSampleRate = 48000
	// 120ms is the longest Opus frame.
	maxOpusFrame = opusSampleRate * 120 / 1000
)

// signalMessage covers every message exchanged with the GStreamer
// signalling server.
type signalMessage struct {
	Type      string     `json:"type"`
	PeerID    string     `json:"peerId,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	Producers []producer `json:"producers,omitempty"`
	SDP       *sdpBody   `json:"sdp,omitempty"`
	ICE       *iceBody   `json:"ice,omitempty"`
}

type producer struct {
	ID   string            `json:"id"`
	Meta map[string]string `json:"meta"`
}

type sdpBody struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type iceBody struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

// findProducer returns the id of the producer announcing name.
func findProducer(list []producer, name string) (string, error) {
	for _, p := range list {
		if p.Meta["name"] == name {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("%s producer not found in %d producers", name, len(list))
}

// WebRTCSource receives the robot microphone over WebRTC. The Opus track is
// decoded at 48kHz on a dedicated goroutine, downmixed and resampled into
// frames.
type WebRTCSource struct {
	cfg    Config
	logger *slog.Logger
	q      *frameQueue

	ws   *websocket.Conn
	wsMu sync.Mutex
	pc   *webrtc.PeerConnection

	mu         sync.Mutex
	peerID     string
	producerID string
	sessionID  string

	trackReady chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

// NewWebRTCSource creates a source for the producer behind cfg.SignalURL.
func NewWebRTCSource(cfg Config, logger *slog.Logger) *WebRTCSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebRTCSource{
		cfg:        cfg,
		logger:     logger.With("component", "audioio.webrtc"),
		q:          newFrameQueue(cfg),
		trackReady: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Start connects to the signalling server, negotiates a receive-only audio
// session and waits for the microphone track.
func (w *WebRTCSource) Start(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, w.cfg.SignalURL, nil)
	if err != nil {
		return fmt.Errorf("signalling connect failed: %w", err)
	}
	w.ws = ws

	welcome, err := w.readMessage(10 * time.Second)
	if err != nil {
		return fmt.Errorf("welcome failed: %w", err)
	}
	if welcome.Type != "welcome" {
		return fmt.Errorf("expected welcome, got %s", welcome.Type)
	}
	w.peerID = welcome.PeerID

	if err := w.send(signalMessage{Type: "list"}); err != nil {
		return err
	}
	list, err := w.readMessage(5 * time.Second)
	if err != nil {
		return fmt.Errorf("list producers: %w", err)
	}
	if w.producerID, err = findProducer(list.Producers, ProducerName); err != nil {
		return err
	}

	if err := w.createPeerConnection(); err != nil {
		return fmt.Errorf("peer connection failed: %w", err)
	}
	if err := w.send(signalMessage{Type: "startSession", PeerID: w.producerID}); err != nil {
		return fmt.Errorf("start session failed: %w", err)
	}

	go w.signalLoop()

	w.logger.Info("waiting for audio track", "producer", w.producerID)
	select {
	case <-w.trackReady:
		w.logger.Info("audio track connected")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(15 * time.Second):
		return errors.New("timeout waiting for audio track")
	}
}

func (w *WebRTCSource) createPeerConnection() error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}
	w.pc = pc

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		w.logger.Info("track received", "kind", track.Kind(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			go w.readTrack(track)
		}
	})
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			w.sendCandidate(c)
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		w.logger.Debug("connection state", "state", s)
	})
	return nil
}

func (w *WebRTCSource) signalLoop() {
	for {
		var msg signalMessage
		if err := w.ws.ReadJSON(&msg); err != nil {
			select {
			case <-w.done:
			default:
				w.logger.Warn("signalling read failed", "error", err)
			}
			return
		}

		switch msg.Type {
		case "sessionStarted":
			w.mu.Lock()
			w.sessionID = msg.SessionID
			w.mu.Unlock()
		case "peer":
			if err := w.handlePeer(msg); err != nil {
				w.logger.Warn("peer message failed", "error", err)
			}
		case "endSession":
			w.logger.Info("session ended by producer")
			w.q.close()
			return
		}
	}
}

func (w *WebRTCSource) handlePeer(msg signalMessage) error {
	if msg.SDP != nil && msg.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP.SDP}
		if err := w.pc.SetRemoteDescription(offer); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}
		answer, err := w.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := w.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set local description: %w", err)
		}
		return w.send(signalMessage{
			Type:      "peer",
			SessionID: w.session(),
			SDP:       &sdpBody{Type: answer.Type.String(), SDP: answer.SDP},
		})
	}
	if msg.ICE != nil {
		return w.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     msg.ICE.Candidate,
			SDPMid:        msg.ICE.SDPMid,
			SDPMLineIndex: msg.ICE.SDPMLineIndex,
		})
	}
	return nil
}

func (w *WebRTCSource) sendCandidate(c *webrtc.ICECandidate) {
	session := w.session()
	if session == "" {
		return
	}
	init := c.ToJSON()
	err := w.send(signalMessage{
		Type:      "peer",
		SessionID: session,
		ICE: &iceBody{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		},
	})
	if err != nil {
		w.logger.Debug("send candidate failed", "error", err)
	}
}

// readTrack decodes Opus packets until the track ends.
func (w *WebRTCSource) readTrack(track *webrtc.TrackRemote) {
	channels := int(track.Codec().Channels)
	if channels <= 0 {
		channels = 1
	}
	dec, err := opus.NewDecoder(opusSampleRate, channels)
	if err != nil {
		w.logger.Error("opus decoder init failed", "error", err)
		return
	}

	select {
	case w.trackReady <- struct{}{}:
	default:
	}

	pcm := make([]int16, maxOpusFrame*channels)
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			w.logger.Info("audio track closed", "error", err)
			w.q.close()
			return
		}
		samples, err := w.decode(dec, pkt, pcm, channels)
		if err != nil {
			w.logger.Debug("opus decode failed", "seq", pkt.SequenceNumber, "error", err)
			continue
		}
		if err := w.q.push(samples); err != nil {
			return
		}
	}
}

func (w *WebRTCSource) decode(dec *opus.Decoder, pkt *rtp.Packet, pcm []int16, channels int) ([]int16, error) {
	if len(pkt.Payload) == 0 {
		return nil, errors.New("empty payload")
	}
	n, err := dec.Decode(pkt.Payload, pcm)
	if err != nil {
		return nil, err
	}
	mono := ToMono(pcm[:n*channels], channels)
	return Resample(mono, opusSampleRate, w.cfg.SampleRate), nil
}

func (w *WebRTCSource) readMessage(timeout time.Duration) (signalMessage, error) {
	var msg signalMessage
	w.ws.SetReadDeadline(time.Now().Add(timeout))
	defer w.ws.SetReadDeadline(time.Time{})
	_, data, err := w.ws.ReadMessage()
	if err != nil {
		return msg, err
	}
	err = json.Unmarshal(data, &msg)
	return msg, err
}

func (w *WebRTCSource) send(msg signalMessage) error {
	w.wsMu.Lock()
	defer w.wsMu.Unlock()
	return w.ws.WriteJSON(msg)
}

func (w *WebRTCSource) session() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionID
}

// Read returns the next decoded frame.
func (w *WebRTCSource) Read(ctx context.Context) (Frame, error) {
	return w.q.read(ctx)
}

// Stats returns delivery counters.
func (w *WebRTCSource) Stats() SourceStats {
	return w.q.stats(w.Name())
}

// Name returns "webrtc".
func (w *WebRTCSource) Name() string {
	return "webrtc"
}

// Close tears down the peer connection and the signalling socket.
func (w *WebRTCSource) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		if w.pc != nil {
			err = w.pc.Close()
		}
		if w.ws != nil {
			w.ws.Close()
		}
		w.q.close()
	})
	return err
}

var _ Source = (*WebRTCSource)(nil)
