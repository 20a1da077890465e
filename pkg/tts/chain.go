package tts

import (
	"context"
	"fmt"
	"log/slog"
)

// Chain implements Provider by trying multiple providers in order.
// The first successful provider wins; if all fail, returns a *ChainError.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain creates a provider chain. At least one provider is required.
func NewChain(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "tts.chain"),
	}, nil
}

// Synthesize tries each provider until one succeeds.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	var errs []error

	for i, p := range c.providers {
		result, err := p.Synthesize(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback provider succeeded", "provider_index", i, "chars", len(text))
			}
			return result, nil
		}

		errs = append(errs, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("provider failed, trying next", "provider_index", i, "error", err)
	}

	return nil, &ChainError{Errors: errs}
}

// Health succeeds when at least one provider is healthy.
func (c *Chain) Health(ctx context.Context) error {
	var healthy int
	var lastErr error

	for _, p := range c.providers {
		if err := p.Health(ctx); err != nil {
			lastErr = err
		} else {
			healthy++
		}
	}

	if healthy == 0 {
		return fmt.Errorf("all %d providers unhealthy: %w", len(c.providers), lastErr)
	}
	return nil
}

// Close closes all providers.
func (c *Chain) Close() error {
	var lastErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Providers returns the providers in order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

var _ Provider = (*Chain)(nil)
