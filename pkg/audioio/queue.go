package audioio

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when writing to a closed source.
var ErrClosed = errors.New("audioio: source closed")

// frameQueue re-chunks arbitrary-length mono PCM into fixed frames and
// buffers them for a single reader. When the buffer is full the oldest
// frame is dropped: stale microphone audio is worth less than fresh audio.
type frameQueue struct {
	sampleRate int
	frameSize  int

	mu     sync.Mutex
	rest   []int16
	closed bool
	ch     chan Frame

	framesRead atomic.Int64
	dropped    atomic.Int64
}

func newFrameQueue(cfg Config) *frameQueue {
	return &frameQueue{
		sampleRate: cfg.SampleRate,
		frameSize:  cfg.FrameSize(),
		ch:         make(chan Frame, cfg.QueueFrames),
	}
}

// push appends mono samples already at the queue's sample rate.
func (q *frameQueue) push(samples []int16) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	buf := append(q.rest, samples...)
	frames, rest := Split(buf, q.frameSize, 1)
	q.rest = append([]int16(nil), rest...)

	for _, s := range frames {
		f := Frame{Samples: append([]int16(nil), s...), SampleRate: q.sampleRate, Channels: 1}
		select {
		case q.ch <- f:
		default:
			select {
			case <-q.ch:
				q.dropped.Add(1)
			default:
			}
			q.ch <- f
		}
	}
	return nil
}

func (q *frameQueue) read(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case f, ok := <-q.ch:
		if !ok {
			return Frame{}, io.EOF
		}
		q.framesRead.Add(1)
		return f, nil
	}
}

func (q *frameQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

func (q *frameQueue) stats(backend string) SourceStats {
	return SourceStats{
		FramesRead: q.framesRead.Load(),
		Dropped:    q.dropped.Load(),
		Backend:    backend,
	}
}
