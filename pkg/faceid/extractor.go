package faceid

import (
	"context"
	"sync"
)

// Extractor turns a camera frame into a face embedding.
// Implementations return ErrNoFace (or any error) when no usable face is
// visible; callers treat every error as "no face this tick".
type Extractor interface {
	Extract(ctx context.Context, jpeg []byte) (Embedding, error)
	Close() error
}

// Detection is a face bounding box in normalized (0-1) image coordinates.
type Detection struct {
	X, Y       float64 // Top-left corner
	W, H       float64 // Width and height
	Confidence float64 // Detection score (0-1)
}

// Area returns the area of the bounding box.
func (d Detection) Area() float64 {
	return d.W * d.H
}

// SelectBest picks the face to identify when several are visible.
// Score is confidence * 0.7 + relative area * 0.3, so the closest
// confident face wins.
func SelectBest(dets []Detection) int {
	if len(dets) == 0 {
		return -1
	}
	maxArea := 0.0
	for _, d := range dets {
		if d.Area() > maxArea {
			maxArea = d.Area()
		}
	}
	best, bestScore := 0, -1.0
	for i, d := range dets {
		score := d.Confidence * 0.7
		if maxArea > 0 {
			score += d.Area() / maxArea * 0.3
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// MockExtractor implements Extractor for testing.
type MockExtractor struct {
	// ExtractFunc is called when Extract is invoked.
	// If nil, returns ErrNoFace.
	ExtractFunc func(ctx context.Context, jpeg []byte) (Embedding, error)

	mu    sync.Mutex
	calls int
}

// Extract calls ExtractFunc and counts the call.
func (m *MockExtractor) Extract(ctx context.Context, jpeg []byte) (Embedding, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, jpeg)
	}
	return nil, ErrNoFace
}

// Calls returns how many times Extract was called.
func (m *MockExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close is a no-op.
func (m *MockExtractor) Close() error {
	return nil
}

var _ Extractor = (*MockExtractor)(nil)
