package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/reachy-voice/internal/config"
	"github.com/teslashibe/reachy-voice/pkg/faceid"
)

// openRegistry loads the identity registry from the configured store.
// ephemeral keeps identities in memory only.
func openRegistry(ctx context.Context, cfg *config.Config, ephemeral bool, logger *slog.Logger) (*faceid.Registry, error) {
	var store faceid.Store
	switch {
	case ephemeral:
		store = faceid.NewMemoryStore()
	case cfg.FaceID.Store == config.StoreBadger:
		bs, err := faceid.NewBadgerStore(faceid.BadgerOptions{Dir: cfg.FaceID.BadgerDir, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		store = bs
	default:
		store = faceid.NewJSONStore(cfg.FaceID.RegistryPath)
	}

	opts := append(cfg.FaceID.Options(), faceid.WithLogger(logger))
	reg, err := faceid.NewRegistry(ctx, store, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return reg, nil
}
