// Package playback plays synthesized replies on the robot speaker.
//
// Play blocks until the audio has finished or ctx is cancelled; cancelling
// ctx is how the conversation loop interrupts the robot mid-sentence.
package playback

import (
	"context"

	"github.com/teslashibe/reachy-voice/pkg/tts"
)

// Player plays one synthesized reply.
type Player interface {
	// Play returns nil when playback completed, ctx.Err() when it was
	// cancelled, or the transport error.
	Play(ctx context.Context, audio *tts.AudioResult) error
}
