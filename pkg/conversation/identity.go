package conversation

import (
	"context"
	"time"

	"github.com/teslashibe/reachy-voice/pkg/faceid"
)

// sampleIdentity looks at the camera every SampleInterval and updates the
// current user. It is the only caller of Identifier.Identify while Run is
// active.
func (o *Orchestrator) sampleIdentity(ctx context.Context) {
	logger := o.logger.With("loop", "identity")
	logger.Debug("identity sampling started", "interval", o.cfg.SampleInterval)

	ticker := time.NewTicker(o.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		o.sampleOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) sampleOnce(ctx context.Context) {
	emb, err := o.grabEmbedding(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		// No face this tick; the registry decides whether to keep the
		// previous user.
		emb = nil
	}
	o.SetUser(o.identifier.Identify(ctx, emb))
}

func (o *Orchestrator) grabEmbedding(ctx context.Context) (faceid.Embedding, error) {
	jpeg, err := o.camera.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return o.extractor.Extract(ctx, jpeg)
}
