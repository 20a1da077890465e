// Package robot talks to the Reachy Mini daemon's HTTP API.
//
// Interfaces are kept small so consumers depend only on what they use: the
// conversation tools need EmotionPlayer and VolumeController, the status
// endpoint needs StatusController.
package robot

import "context"

// EmotionPlayer plays a recorded emotion move.
type EmotionPlayer interface {
	PlayEmotion(ctx context.Context, emotion string) error
}

// VolumeController provides audio volume control.
type VolumeController interface {
	SetVolume(ctx context.Context, level int) error
}

// StatusController provides robot status queries.
type StatusController interface {
	DaemonStatus(ctx context.Context) (string, error)
}

// Controller is everything this repo asks of the robot.
type Controller interface {
	EmotionPlayer
	VolumeController
	StatusController
}

// Emotions are the moves in the Pollen emotions library.
var Emotions = []string{
	"happy",
	"sad",
	"surprised",
	"angry",
	"confused",
	"thinking",
	"curious",
	"sleepy",
	"excited",
}

// IsEmotion reports whether name is a known emotion.
func IsEmotion(name string) bool {
	for _, e := range Emotions {
		if e == name {
			return true
		}
	}
	return false
}

var (
	_ Controller = (*HTTPController)(nil)
	_ Controller = (*Mock)(nil)
)
