package audioio

import (
	"context"
	"log/slog"
)

// PushSource is fed by an external producer, typically the robot-side bridge
// POSTing WAV chunks. Pushed audio is downmixed, resampled and cut into
// frames at the configured rate.
type PushSource struct {
	cfg    Config
	logger *slog.Logger
	q      *frameQueue
}

// NewPushSource creates a source that frames whatever is pushed into it.
func NewPushSource(cfg Config, logger *slog.Logger) *PushSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.push"),
		q:      newFrameQueue(cfg),
	}
}

// Start is a no-op; audio arrives through Push.
func (p *PushSource) Start(ctx context.Context) error {
	return nil
}

// Push adds interleaved samples recorded at sampleRate with the given
// channel count.
func (p *PushSource) Push(samples []int16, sampleRate, channels int) error {
	if err := checkFormat(sampleRate, channels); err != nil {
		return err
	}
	mono := ToMono(samples, channels)
	return p.q.push(Resample(mono, sampleRate, p.cfg.SampleRate))
}

// PushWAV decodes a WAV chunk and pushes its samples.
func (p *PushSource) PushWAV(data []byte) error {
	w, err := DecodeWAV(data)
	if err != nil {
		return err
	}
	p.logger.Debug("wav chunk received",
		"samples", len(w.Samples),
		"sample_rate", w.SampleRate,
		"channels", w.Channels,
	)
	return p.Push(w.Samples, w.SampleRate, w.Channels)
}

// Read returns the next frame.
func (p *PushSource) Read(ctx context.Context) (Frame, error) {
	return p.q.read(ctx)
}

// Stats returns delivery counters.
func (p *PushSource) Stats() SourceStats {
	return p.q.stats(p.Name())
}

// Name returns "push".
func (p *PushSource) Name() string {
	return "push"
}

// Close stops accepting audio. Buffered frames can still be read.
func (p *PushSource) Close() error {
	p.q.close()
	return nil
}

var _ Source = (*PushSource)(nil)
