package conversation

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conversation package.
var (
	// ErrMissingSource indicates no audio source was provided.
	ErrMissingSource = errors.New("conversation: audio source is required")

	// ErrMissingSTT indicates no transcription provider was provided.
	ErrMissingSTT = errors.New("conversation: stt provider is required")

	// ErrMissingChat indicates no chat provider was provided.
	ErrMissingChat = errors.New("conversation: chat provider is required")

	// ErrMissingTTS indicates no synthesis provider was provided.
	ErrMissingTTS = errors.New("conversation: tts provider is required")

	// ErrMissingPlayer indicates no playback sink was provided.
	ErrMissingPlayer = errors.New("conversation: player is required")

	// ErrAlreadyRunning is returned by a second concurrent Run.
	ErrAlreadyRunning = errors.New("conversation: already running")

	// ErrUnknownTool indicates the model called a tool that is not registered.
	ErrUnknownTool = errors.New("conversation: unknown tool")

	// ErrNoUser indicates a per-user tool ran with nobody identified.
	ErrNoUser = errors.New("conversation: no identified user")
)

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("conversation: invalid %s: %s", e.Field, e.Reason)
}

// StageError records which step of a turn failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("conversation: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
