package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/reachy-voice/pkg/camera"
	"github.com/teslashibe/reachy-voice/pkg/faceid"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Register a named user from camera snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		samples, _ := cmd.Flags().GetInt("samples")
		endpoint, _ := cmd.Flags().GetString("endpoint")
		interval, _ := cmd.Flags().GetDuration("interval")

		if name == "" {
			return fmt.Errorf("--name is required")
		}
		if samples < 1 {
			return fmt.Errorf("--samples must be at least 1")
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if endpoint == "" {
			if cfg.Robot.Host == "" {
				return fmt.Errorf("robot host required (set ROBOT_IP or --endpoint)")
			}
			endpoint = camera.EnrollEndpoint(cfg.Robot.Host)
		}

		ctx, cancel := signalContext()
		defer cancel()

		reg, err := openRegistry(ctx, cfg, false, logger)
		if err != nil {
			return err
		}
		defer reg.Close()

		x, err := faceid.NewSFaceExtractor(cfg.FaceID.Extractor)
		if err != nil {
			return fmt.Errorf("load face models: %w", err)
		}
		defer x.Close()

		cam, err := camera.New(camera.Config{Endpoints: []string{endpoint}, Timeout: cfg.Camera.Timeout}, logger)
		if err != nil {
			return err
		}

		n, err := enroll(ctx, enrollment{
			camera:    cam,
			extractor: x,
			users:     reg,
			userID:    name,
			samples:   samples,
			interval:  interval,
			logger:    logger,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Enrolled %s with %d samples (%d users registered)\n", name, n, reg.Len())
		return nil
	},
}

func init() {
	enrollCmd.Flags().String("name", "", "user id to register (required)")
	enrollCmd.Flags().Int("samples", 3, "face samples to capture")
	enrollCmd.Flags().String("endpoint", "", "snapshot URL (default http://<robot>:9001/snapshot)")
	enrollCmd.Flags().Duration("interval", time.Second, "pause between samples")
}

// registrar is the part of the registry enrollment needs.
type registrar interface {
	RegisterUser(ctx context.Context, userID string, embedding faceid.Embedding) error
}

type enrollment struct {
	camera    camera.Snapshotter
	extractor faceid.Extractor
	users     registrar
	userID    string
	samples   int
	interval  time.Duration
	logger    *slog.Logger
}

// maxAttemptsPerSample bounds snapshots taken while nobody is in frame.
const maxAttemptsPerSample = 5

// enroll captures e.samples faces and registers each one under e.userID.
// Frames without a face are retried. It returns how many samples were
// registered.
func enroll(ctx context.Context, e enrollment) (int, error) {
	registered := 0
	attempts := 0
	for registered < e.samples {
		if attempts >= e.samples*maxAttemptsPerSample {
			return registered, fmt.Errorf("enroll %s: no face after %d snapshots: %w", e.userID, attempts, faceid.ErrNoFace)
		}
		if attempts > 0 {
			select {
			case <-ctx.Done():
				return registered, ctx.Err()
			case <-time.After(e.interval):
			}
		}
		attempts++

		jpeg, err := e.camera.Snapshot(ctx)
		if err != nil {
			return registered, fmt.Errorf("snapshot: %w", err)
		}
		emb, err := e.extractor.Extract(ctx, jpeg)
		if errors.Is(err, faceid.ErrNoFace) {
			e.logger.Info("no face in frame, look at the camera", "attempt", attempts)
			continue
		}
		if err != nil {
			return registered, fmt.Errorf("extract: %w", err)
		}
		if err := e.users.RegisterUser(ctx, e.userID, emb); err != nil {
			return registered, fmt.Errorf("register: %w", err)
		}
		registered++
		e.logger.Info("sample registered", "user_id", e.userID, "sample", registered, "of", e.samples)
	}
	return registered, nil
}
