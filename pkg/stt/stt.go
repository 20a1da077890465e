// Package stt transcribes completed utterances.
//
// Providers receive a whole utterance as a WAV file; there is no streaming.
// IsFalsePositive filters the phrases Whisper hallucinates on near-silent
// input so the orchestrator can drop them.
package stt

import (
	"context"
	"strings"
)

// Provider transcribes audio.
type Provider interface {
	// Transcribe returns the text spoken in a PCM16 WAV file recorded at
	// sampleRate. An empty string means nothing intelligible was said.
	Transcribe(ctx context.Context, wav []byte, sampleRate int) (string, error)

	Close() error
}

// falsePositives are transcripts Whisper returns for silence and noise.
var falsePositives = map[string]bool{
	"":                        true,
	"you":                     true,
	"thank you.":              true,
	"thanks.":                 true,
	"bye.":                    true,
	"the end.":                true,
	"thanks for watching.":    true,
	"thanks for watching!":    true,
	"thank you for watching.": true,
}

// IsFalsePositive reports whether a transcript should be discarded.
// Matching is case-insensitive and ignores surrounding whitespace.
func IsFalsePositive(text string) bool {
	return falsePositives[strings.ToLower(strings.TrimSpace(text))]
}
