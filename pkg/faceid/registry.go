package faceid

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Registry holds known identities and the transient matching state.
//
// Identify is meant to be driven by a single sampling loop; the mutex
// only protects readers (status, admin API) and operator enrollment.
// The backing store assumes it is the only writer.
type Registry struct {
	cfg    *Config
	logger *slog.Logger
	store  Store

	mu         sync.RWMutex
	identities []Identity
	lastUser   string
	misses     int

	// degraded is set after a failed load or automatic save; automatic
	// saves are skipped from then on.
	degraded bool
}

// NewRegistry loads identities from store. A failing store is logged and
// the registry starts empty in memory-only mode; it never fails the caller.
func NewRegistry(ctx context.Context, store Store, opts ...Option) (*Registry, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.MatchThreshold <= 0 {
		return nil, fmt.Errorf("faceid: match threshold must be positive, got %v", cfg.MatchThreshold)
	}
	if cfg.MaxEmbeddingsPerUser < 1 {
		return nil, fmt.Errorf("faceid: max embeddings per user must be at least 1, got %d", cfg.MaxEmbeddingsPerUser)
	}
	if cfg.NewUserConsecutiveMisses < 1 {
		return nil, fmt.Errorf("faceid: new user misses must be at least 1, got %d", cfg.NewUserConsecutiveMisses)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.idGen == nil {
		cfg.idGen = NewUserID
	}
	if store == nil {
		store = NewMemoryStore()
	}

	r := &Registry{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "faceid.registry"),
		store:  store,
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		r.logger.Error("failed to load face registry, continuing in memory only", "error", err)
		r.degraded = true
		return r, nil
	}
	for _, id := range loaded {
		if id.UserID == "" || len(id.Embeddings) == 0 {
			r.logger.Warn("skipping malformed identity", "user_id", id.UserID)
			continue
		}
		r.identities = append(r.identities, id.clone())
	}
	r.logger.Info("loaded faces from registry", "count", len(r.identities))
	return r, nil
}

// Identify returns the user id for embedding. A nil embedding means no face
// is visible this tick.
func (r *Registry) Identify(ctx context.Context, embedding Embedding) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(embedding) == 0 {
		if r.lastUser != "" {
			r.logger.Debug("no face, using last user", "user_id", r.lastUser)
			return r.lastUser
		}
		// Anonymous: no embedding to store, so it only lives as the
		// sticky user until someone is matched or minted.
		r.lastUser = r.cfg.idGen()
		r.misses = 0
		r.logger.Info("no face and no last user, created anonymous user", "user_id", r.lastUser)
		return r.lastUser
	}

	best, bestDist := -1, math.Inf(1)
	for i := range r.identities {
		if d := r.identities[i].bestDistance(embedding); d < bestDist {
			best, bestDist = i, d
		}
	}

	if best >= 0 && bestDist < r.cfg.MatchThreshold {
		id := &r.identities[best]
		r.lastUser = id.UserID
		r.misses = 0
		id.add(embedding, r.cfg.MaxEmbeddingsPerUser)
		r.logger.Info("matched face", "user_id", id.UserID, "distance", bestDist)
		r.autoSave(ctx)
		return id.UserID
	}

	r.misses++
	r.logger.Info("no face match",
		"best_distance", bestDist,
		"threshold", r.cfg.MatchThreshold,
		"miss", r.misses,
		"of", r.cfg.NewUserConsecutiveMisses,
	)

	if r.misses >= r.cfg.NewUserConsecutiveMisses || r.lastUser == "" {
		return r.mint(ctx, embedding)
	}

	r.logger.Debug("below miss threshold, keeping last user", "user_id", r.lastUser)
	return r.lastUser
}

// mint creates a new identity seeded with embedding. Callers hold mu.
func (r *Registry) mint(ctx context.Context, embedding Embedding) string {
	id := Identity{UserID: r.cfg.idGen()}
	id.add(embedding, r.cfg.MaxEmbeddingsPerUser)
	r.identities = append(r.identities, id)
	r.lastUser = id.UserID
	r.misses = 0
	r.logger.Info("registered new face", "user_id", id.UserID)
	r.autoSave(ctx)
	return id.UserID
}

// RegisterUser enrolls embedding under userID, appending to an existing
// identity or creating one with exactly that id. It always saves.
func (r *Registry) RegisterUser(ctx context.Context, userID string, embedding Embedding) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	if len(embedding) == 0 {
		return ErrEmptyEmbedding
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(userID); i >= 0 {
		r.identities[i].add(embedding, r.cfg.MaxEmbeddingsPerUser)
		r.logger.Info("updated existing user", "user_id", userID, "embeddings", len(r.identities[i].Embeddings))
	} else {
		id := Identity{UserID: userID}
		id.add(embedding, r.cfg.MaxEmbeddingsPerUser)
		r.identities = append(r.identities, id)
		r.logger.Info("registered new user", "user_id", userID)
	}
	return r.save(ctx)
}

// DeleteUser removes userID. It reports whether the user existed.
func (r *Registry) DeleteUser(ctx context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(userID)
	if i < 0 {
		r.logger.Warn("user not found", "user_id", userID)
		return false, nil
	}
	r.identities = append(r.identities[:i], r.identities[i+1:]...)
	if r.lastUser == userID {
		r.lastUser = ""
	}
	r.logger.Info("deleted user", "user_id", userID)
	return true, r.save(ctx)
}

// ListUsers returns every stored identity in registry order.
func (r *Registry) ListUsers() []UserSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]UserSummary, len(r.identities))
	for i, id := range r.identities {
		out[i] = UserSummary{UserID: id.UserID, Embeddings: len(id.Embeddings)}
	}
	return out
}

// Embeddings returns a copy of userID's embeddings, oldest first.
func (r *Registry) Embeddings(userID string) ([]Embedding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(userID)
	if i < 0 {
		return nil, false
	}
	return r.identities[i].clone().Embeddings, true
}

// LastUser returns the sticky user, or "" if nobody has been identified.
func (r *Registry) LastUser() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastUser
}

// Len returns the number of stored identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identities)
}

// Degraded reports whether persistence has failed and the registry is
// running in memory only.
func (r *Registry) Degraded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.degraded
}

// Close releases the store.
func (r *Registry) Close() error {
	return r.store.Close()
}

func (r *Registry) indexOf(userID string) int {
	for i := range r.identities {
		if r.identities[i].UserID == userID {
			return i
		}
	}
	return -1
}

// autoSave persists after an identification update. The first failure is
// logged and switches the registry to memory-only.
func (r *Registry) autoSave(ctx context.Context) {
	if r.degraded {
		return
	}
	if err := r.store.Save(ctx, r.snapshot()); err != nil {
		r.degraded = true
		r.logger.Error("failed to save face registry, continuing in memory only", "error", err)
	}
}

// save persists after an operator action and reports the error.
func (r *Registry) save(ctx context.Context) error {
	if err := r.store.Save(ctx, r.snapshot()); err != nil {
		return fmt.Errorf("faceid: save registry: %w", err)
	}
	if r.degraded {
		r.logger.Info("face registry persistence recovered")
		r.degraded = false
	}
	return nil
}

func (r *Registry) snapshot() []Identity {
	out := make([]Identity, len(r.identities))
	for i, id := range r.identities {
		out[i] = id.clone()
	}
	return out
}
