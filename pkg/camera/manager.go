package camera

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/teslashibe/reachy-voice/internal/httpc"
)

// Snapshotter returns a single JPEG frame.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// ErrNotAvailable is returned when no endpoint produced an image.
var ErrNotAvailable = errors.New("camera: no snapshot endpoint available")

// Outcome of a single probe.
type Outcome int

const (
	NotAvailable Outcome = iota
	Found
)

func (o Outcome) String() string {
	if o == Found {
		return "found"
	}
	return "not_available"
}

// ProbeResult is what one endpoint returned.
type ProbeResult struct {
	Outcome Outcome
	Data    []byte
}

// Probe tries one endpoint.
type Probe func(ctx context.Context) ProbeResult

// HTTPProbe fetches url and reports Found when the body looks like a JPEG.
func HTTPProbe(client *http.Client, url string) Probe {
	return func(ctx context.Context) ProbeResult {
		data, err := httpc.GetBytes(ctx, client, url)
		if err != nil || !isJPEG(data) {
			return ProbeResult{Outcome: NotAvailable}
		}
		return ProbeResult{Outcome: Found, Data: data}
	}
}

func isJPEG(b []byte) bool {
	return len(b) > 3 && bytes.HasPrefix(b, []byte{0xFF, 0xD8})
}

// ProbeSnapshotter tries its probes in order. Once one is Found it is tried
// first on later calls; if it stops answering the full list is walked again.
type ProbeSnapshotter struct {
	names  []string
	probes []Probe
	logger *slog.Logger

	mu      sync.Mutex
	current int // index of the remembered probe, -1 if none
}

// NewProbeSnapshotter builds a snapshotter from named probes. names and
// probes must have the same length.
func NewProbeSnapshotter(names []string, probes []Probe, logger *slog.Logger) *ProbeSnapshotter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProbeSnapshotter{
		names:   names,
		probes:  probes,
		logger:  logger.With("component", "camera"),
		current: -1,
	}
}

// New creates an HTTP snapshotter from cfg.
func New(cfg Config, logger *slog.Logger) (*ProbeSnapshotter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	client := httpc.NewClient(timeout)
	urls := cfg.endpoints()
	probes := make([]Probe, len(urls))
	for i, u := range urls {
		probes[i] = HTTPProbe(client, u)
	}
	return NewProbeSnapshotter(urls, probes, logger), nil
}

// Snapshot returns a JPEG from the remembered endpoint, or probes the list.
func (s *ProbeSnapshotter) Snapshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()

	if cur >= 0 {
		if r := s.probes[cur](ctx); r.Outcome == Found {
			return r.Data, nil
		}
		s.logger.Warn("camera endpoint stopped answering", "endpoint", s.names[cur])
	}

	for i, probe := range s.probes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i == cur {
			continue
		}
		if r := probe(ctx); r.Outcome == Found {
			s.mu.Lock()
			s.current = i
			s.mu.Unlock()
			s.logger.Info("camera endpoint found", "endpoint", s.names[i])
			return r.Data, nil
		}
	}

	s.mu.Lock()
	s.current = -1
	s.mu.Unlock()
	return nil, ErrNotAvailable
}

// Endpoint returns the remembered endpoint, or "" before the first success.
func (s *ProbeSnapshotter) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current < 0 {
		return ""
	}
	return s.names[s.current]
}

var _ Snapshotter = (*ProbeSnapshotter)(nil)
