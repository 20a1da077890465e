package playback

import (
	"context"
	"fmt"

	"github.com/teslashibe/reachy-voice/pkg/audioio"
	"github.com/teslashibe/reachy-voice/pkg/tts"
)

// chunkMillis is how much audio each Write carries. Cancellation is checked
// between chunks.
const chunkMillis = 20

// SinkPlayer streams PCM into an audioio.Sink chunk by chunk.
type SinkPlayer struct {
	sink audioio.Sink
}

// NewSinkPlayer wraps a sink.
func NewSinkPlayer(sink audioio.Sink) *SinkPlayer {
	return &SinkPlayer{sink: sink}
}

// Play writes the clip and flushes. On cancellation the sink is cleared so
// buffered audio stops at once.
func (p *SinkPlayer) Play(ctx context.Context, audio *tts.AudioResult) error {
	if audio.Empty() {
		return nil
	}

	rate := audio.Format.SampleRate
	ch := max(audio.Format.Channels, 1)
	samples := audioio.ToMono(audio.Samples(), ch)
	chunk := rate * chunkMillis / 1000
	if chunk <= 0 {
		return fmt.Errorf("invalid sample rate %d", rate)
	}

	for off := 0; off < len(samples); off += chunk {
		if err := ctx.Err(); err != nil {
			p.sink.Clear()
			return err
		}
		end := min(off+chunk, len(samples))
		frame := audioio.Frame{Samples: samples[off:end], SampleRate: rate, Channels: 1}
		if err := p.sink.Write(ctx, frame); err != nil {
			if ctx.Err() != nil {
				p.sink.Clear()
				return ctx.Err()
			}
			return fmt.Errorf("sink write: %w", err)
		}
	}

	if err := p.sink.Flush(ctx); err != nil {
		if ctx.Err() != nil {
			p.sink.Clear()
			return ctx.Err()
		}
		return fmt.Errorf("sink flush: %w", err)
	}
	return nil
}

var _ Player = (*SinkPlayer)(nil)
