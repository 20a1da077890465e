// Package faceid maps face embeddings to stable user identifiers.
//
// The Registry keeps every known identity with a bounded, FIFO list of
// embeddings. Identify matches a new embedding against all of them by
// Euclidean distance. A new identity is only minted after several
// consecutive misses, so one bad frame (lighting, angle) does not spawn a
// spurious user while a known one is still in view.
//
// Example usage:
//
//	store := faceid.NewJSONStore(faceid.DefaultRegistryPath())
//	reg, _ := faceid.NewRegistry(ctx, store, faceid.WithLogger(logger))
//
//	emb, err := extractor.Extract(ctx, jpeg)
//	if err != nil {
//	    emb = nil // no face this tick
//	}
//	userID := reg.Identify(ctx, emb)
package faceid

import (
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Defaults for the matching policy.
const (
	// DefaultMatchThreshold is the L2 distance below which two embeddings
	// belong to the same person.
	DefaultMatchThreshold = 0.6

	// DefaultMaxEmbeddingsPerUser bounds each identity's embedding list.
	DefaultMaxEmbeddingsPerUser = 10

	// DefaultNewUserConsecutiveMisses is how many non-matching samples in a
	// row mint a new identity.
	DefaultNewUserConsecutiveMisses = 3
)

// Sentinel errors.
var (
	// ErrNoFace is returned by extractors when no face is visible.
	ErrNoFace = errors.New("faceid: no face detected")

	// ErrInvalidUserID is returned for an empty user id.
	ErrInvalidUserID = errors.New("faceid: user id required")

	// ErrEmptyEmbedding is returned when enrolling without an embedding.
	ErrEmptyEmbedding = errors.New("faceid: embedding required")

	// ErrDimensionMismatch is returned when embeddings of different lengths
	// are compared.
	ErrDimensionMismatch = errors.New("faceid: embedding dimension mismatch")
)

// Embedding is a face feature vector, typically 128 floats.
type Embedding []float64

// Clone returns a copy that does not share storage with e.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	return append(Embedding(nil), e...)
}

// Distance returns the Euclidean distance between two embeddings.
func Distance(a, b Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Normalize scales e to unit length in place and returns it.
func Normalize(e Embedding) Embedding {
	var sum float64
	for _, v := range e {
		sum += v * v
	}
	if sum == 0 {
		return e
	}
	n := math.Sqrt(sum)
	for i := range e {
		e[i] /= n
	}
	return e
}

// Identity is a known user and the embeddings seen for them, oldest first.
type Identity struct {
	UserID     string      `json:"user_id" msgpack:"user_id"`
	Embeddings []Embedding `json:"embeddings" msgpack:"embeddings"`
}

// bestDistance returns the smallest distance from e to any stored embedding.
// Embeddings of a different dimension are skipped.
func (id *Identity) bestDistance(e Embedding) float64 {
	best := math.Inf(1)
	for _, stored := range id.Embeddings {
		d, err := Distance(e, stored)
		if err != nil {
			continue
		}
		if d < best {
			best = d
		}
	}
	return best
}

func (id *Identity) add(e Embedding, max int) {
	if max > 0 && len(id.Embeddings) >= max {
		id.Embeddings = append(id.Embeddings[:0:0], id.Embeddings[len(id.Embeddings)-max+1:]...)
	}
	id.Embeddings = append(id.Embeddings, e.Clone())
}

func (id Identity) clone() Identity {
	out := Identity{UserID: id.UserID, Embeddings: make([]Embedding, len(id.Embeddings))}
	for i, e := range id.Embeddings {
		out.Embeddings[i] = e.Clone()
	}
	return out
}

// UserSummary describes an identity without its embeddings.
type UserSummary struct {
	UserID     string `json:"user_id"`
	Embeddings int    `json:"embeddings"`
}

// NewUserID mints an identifier of the form user_<8 hex digits>.
func NewUserID() string {
	return "user_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// DefaultRegistryPath returns ~/.reachy/face_registry.json.
func DefaultRegistryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".reachy", "face_registry.json")
}

// Config holds registry policy.
type Config struct {
	MatchThreshold           float64
	MaxEmbeddingsPerUser     int
	NewUserConsecutiveMisses int
	Logger                   *slog.Logger

	// idGen mints user ids; replaced in tests.
	idGen func() string
}

// Option is a functional option for configuring the registry.
type Option func(*Config)

// WithMatchThreshold sets the L2 match threshold.
func WithMatchThreshold(t float64) Option {
	return func(c *Config) {
		c.MatchThreshold = t
	}
}

// WithMaxEmbeddingsPerUser sets the per-identity embedding cap.
func WithMaxEmbeddingsPerUser(n int) Option {
	return func(c *Config) {
		c.MaxEmbeddingsPerUser = n
	}
}

// WithNewUserConsecutiveMisses sets the miss count that mints a new user.
func WithNewUserConsecutiveMisses(n int) Option {
	return func(c *Config) {
		c.NewUserConsecutiveMisses = n
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// withIDGenerator overrides user id generation.
func withIDGenerator(gen func() string) Option {
	return func(c *Config) {
		c.idGen = gen
	}
}

// DefaultConfig returns the default matching policy.
func DefaultConfig() *Config {
	return &Config{
		MatchThreshold:           DefaultMatchThreshold,
		MaxEmbeddingsPerUser:     DefaultMaxEmbeddingsPerUser,
		NewUserConsecutiveMisses: DefaultNewUserConsecutiveMisses,
		Logger:                   slog.Default(),
		idGen:                    NewUserID,
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
