package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource creates a microphone source for cfg.Backend.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating audio source",
		"backend", cfg.Backend,
		"sample_rate", cfg.SampleRate,
		"frame_ms", cfg.FrameDuration.Milliseconds(),
	)

	switch cfg.Backend {
	case BackendMock:
		return NewMockSource(cfg), nil
	case BackendPush:
		return NewPushSource(cfg, logger), nil
	case BackendWebRTC:
		return NewWebRTCSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// AvailableBackends returns the list of supported backends.
func AvailableBackends() []Backend {
	return []Backend{BackendPush, BackendWebRTC, BackendMock}
}
