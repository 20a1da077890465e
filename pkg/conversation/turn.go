package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/teslashibe/reachy-voice/pkg/inference"
	"github.com/teslashibe/reachy-voice/pkg/stt"
	"github.com/teslashibe/reachy-voice/pkg/tts"
	"github.com/teslashibe/reachy-voice/pkg/vad"
)

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

// handle runs one turn and records its outcome. Nothing escapes it.
func (o *Orchestrator) handle(ctx context.Context, utt *vad.Utterance) {
	clock := startStopwatch()
	res, err := o.runTurn(ctx, clock, utt)
	res.Duration = clock.elapsed()

	o.mu.Lock()
	switch {
	case err != nil:
		o.stats.TurnsFailed++
	case res.Skipped:
		o.stats.TurnsSkipped++
	default:
		o.stats.TurnsCompleted++
		o.stats.LastTurnAt = time.Now()
	}
	if res.Transcript != "" {
		o.stats.LastTranscript = res.Transcript
	}
	if res.Response != "" {
		o.stats.LastResponse = res.Response
	}
	o.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			o.logger.Info("turn cancelled", "error", err)
		} else {
			o.logger.Warn("turn failed", "error", err, "duration", res.Duration)
		}
		stage := ""
		var se *StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		o.publish(EventTurnFailed, map[string]any{"stage": stage, "error": err.Error()})
		return
	}
	o.logger.Info("turn finished",
		"user", res.UserID,
		"skipped", res.Skipped,
		"tools", len(res.Tools),
		"duration", res.Duration,
	)
	if res.spoke {
		res.Latency.Total = res.Duration
		o.latency.record(res.Latency)
		o.logger.Debug("turn latency", "latency", res.Latency.String())
	}
}

func (o *Orchestrator) runTurn(ctx context.Context, clock stopwatch, utt *vad.Utterance) (TurnResult, error) {
	res := TurnResult{UserID: o.CurrentUser()}

	o.setState(StateProcessing)
	defer o.setState(StateListening)

	wav, err := utt.WAV()
	if err != nil {
		return res, stageErr("encode", err)
	}
	o.logger.Debug("processing utterance", "frames", utt.Len(), "duration", utt.Duration())

	text, err := withTimeout(ctx, o.cfg.STTTimeout, func(ctx context.Context) (string, error) {
		return o.stt.Transcribe(ctx, wav, utt.SampleRate())
	})
	if err != nil {
		return res, stageErr("transcribe", err)
	}
	res.Latency.Transcribe = clock.elapsed()
	text = strings.TrimSpace(text)
	if stt.IsFalsePositive(text) {
		o.logger.Debug("ignoring transcript", "text", text)
		res.Skipped = true
		return res, nil
	}
	res.Transcript = text
	o.logger.Info("heard", "text", text, "user", res.UserID)
	o.publish(EventTranscript, map[string]any{"text": text, "user": res.UserID})

	memCtx := o.memoryContext(ctx, res.UserID)

	resp, err := withTimeout(ctx, o.cfg.ChatTimeout, func(ctx context.Context) (*inference.ChatResponse, error) {
		return o.chat.Chat(ctx, &inference.ChatRequest{
			Messages:    o.buildMessages(memCtx, text),
			Model:       o.cfg.Model,
			MaxTokens:   o.cfg.MaxTokens,
			Temperature: o.cfg.Temperature,
			Tools:       o.toolDefs,
		})
	})
	if err != nil {
		return res, stageErr("chat", err)
	}
	res.Latency.Chat = clock.elapsed()

	reply := resp.Text()
	calls := resp.Message.ToolCalls
	if reply == "" && len(calls) == 0 {
		o.logger.Debug("empty completion")
		res.Skipped = true
		return res, nil
	}

	var notes []string
	for _, call := range calls {
		res.Tools = append(res.Tools, call.Name)
		if note := o.runTool(ctx, res.UserID, call); note != "" {
			notes = append(notes, note)
		}
	}

	o.appendHistory(text, reply, notes...)
	if reply == "" {
		return res, nil
	}
	res.Response = reply
	o.logger.Info("replying", "text", reply)
	o.publish(EventResponse, map[string]any{"text": reply, "user": res.UserID})

	o.saveExchange(ctx, res.UserID, text, reply)

	audio, err := withTimeout(ctx, o.cfg.TTSTimeout, func(ctx context.Context) (*tts.AudioResult, error) {
		return o.tts.Synthesize(ctx, reply)
	})
	if err != nil {
		return res, stageErr("synthesize", err)
	}
	res.Latency.Synthesize = clock.elapsed()
	if audio.Empty() {
		return res, nil
	}

	res.spoke = true
	err = o.speak(ctx, audio, func() { res.Latency.FirstAudio = clock.elapsed() })
	return res, err
}

// speak plays audio with the microphone muted. started runs once the
// microphone is muted, right before playback begins. An interrupted playback
// is not an error.
func (o *Orchestrator) speak(ctx context.Context, audio *tts.AudioResult, started func()) error {
	playCtx, cancel := context.WithTimeout(ctx, o.cfg.PlaybackTimeout)
	defer cancel()

	o.mu.Lock()
	o.cancelPlayback = cancel
	o.interrupted = false
	o.mu.Unlock()
	o.setState(StateSpeaking)
	started()

	err := o.player.Play(playCtx, audio)

	o.mu.Lock()
	interrupted := o.interrupted
	o.cancelPlayback = nil
	o.mu.Unlock()

	if interrupted {
		return nil
	}
	return stageErr("playback", err)
}

func (o *Orchestrator) memoryContext(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	text, err := withTimeout(ctx, o.cfg.MemoryTimeout, func(ctx context.Context) (string, error) {
		return o.memory.Context(ctx, userID)
	})
	if err != nil {
		o.logger.Warn("memory lookup failed", "user", userID, "error", err)
		return ""
	}
	return text
}

func (o *Orchestrator) saveExchange(ctx context.Context, userID, userText, reply string) {
	if userID == "" {
		return
	}
	_, err := withTimeout(ctx, o.cfg.MemoryTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.memory.SaveExchange(ctx, userID, userText, reply)
	})
	if err != nil {
		o.logger.Warn("saving exchange failed", "user", userID, "error", err)
	}
}
