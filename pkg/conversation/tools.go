package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/teslashibe/reachy-voice/pkg/inference"
	"github.com/teslashibe/reachy-voice/pkg/memory"
	"github.com/teslashibe/reachy-voice/pkg/robot"
)

// Tool is a function the model can call during a turn.
type Tool struct {
	// Name is the unique identifier for the tool.
	Name string

	// Description explains what the tool does (shown to the model).
	Description string

	// Parameters is the JSON Schema for the arguments.
	Parameters map[string]any

	// Handler runs the tool for the user identified at the start of the
	// turn ("" if nobody). The result is logged.
	Handler func(ctx context.Context, userID string, args map[string]any) (string, error)

	// KeepResult adds a non-empty result to the history as a system note,
	// so the following turns can use it.
	KeepResult bool
}

func (t Tool) definition() inference.Tool {
	return inference.NewTool(t.Name, t.Description, t.Parameters)
}

// runTool runs one call and returns the note to keep in history, if any.
func (o *Orchestrator) runTool(ctx context.Context, userID string, call inference.ToolCall) string {
	tool, ok := o.tools[call.Name]
	if !ok {
		o.logger.Warn("tool call failed", "tool", call.Name, "error", ErrUnknownTool)
		return ""
	}

	var args map[string]any
	if err := call.DecodeArgs(&args); err != nil {
		// Models occasionally emit broken JSON; run with no arguments.
		o.logger.Debug("bad tool arguments", "tool", call.Name, "arguments", call.Arguments)
		args = map[string]any{}
	}

	o.publish(EventToolCall, map[string]any{"tool": call.Name, "args": args})
	result, err := withTimeout(ctx, o.cfg.ToolTimeout, func(ctx context.Context) (string, error) {
		return tool.Handler(ctx, userID, args)
	})
	if err != nil {
		o.logger.Warn("tool call failed", "tool", call.Name, "error", err)
		return ""
	}
	o.logger.Info("tool call", "tool", call.Name, "result", result)

	if !tool.KeepResult || result == "" {
		return ""
	}
	return call.Name + ": " + result
}

// EmotionTool plays a recorded emotion move on the robot.
func EmotionTool(player robot.EmotionPlayer) Tool {
	return Tool{
		Name:        "play_emotion",
		Description: "Play an emotion animation on the robot to express how you feel.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"emotion": map[string]any{
					"type": "string",
					"enum": robot.Emotions,
				},
			},
			"required": []string{"emotion"},
		},
		Handler: func(ctx context.Context, _ string, args map[string]any) (string, error) {
			emotion, _ := args["emotion"].(string)
			if emotion == "" {
				emotion = "happy"
			}
			if err := player.PlayEmotion(ctx, emotion); err != nil {
				return "", err
			}
			return "playing " + emotion, nil
		},
	}
}

// RememberTool stores a fact about the current user.
func RememberTool(mem memory.Service) Tool {
	return Tool{
		Name:        "remember",
		Description: "Remember a fact about the person you are talking to, such as their name or what they like.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"fact": map[string]any{
					"type":        "string",
					"description": "A short fact, e.g. 'Their name is Kaya'.",
				},
			},
			"required": []string{"fact"},
		},
		Handler: func(ctx context.Context, userID string, args map[string]any) (string, error) {
			if userID == "" {
				return "", ErrNoUser
			}
			fact, _ := args["fact"].(string)
			fact = strings.TrimSpace(fact)
			if fact == "" {
				return "", fmt.Errorf("remember: empty fact")
			}
			if err := mem.Conclude(ctx, userID, fact); err != nil {
				return "", err
			}
			return "remembered", nil
		},
	}
}

// RecallTool looks up what memory holds about the current user. The answer
// is kept in history for the next turn.
func RecallTool(r memory.Recaller) Tool {
	return Tool{
		Name:        "recall",
		Description: "Search your memory about the person you are talking to.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "What to remember, e.g. 'their favourite drink'.",
				},
			},
			"required": []string{"question"},
		},
		KeepResult: true,
		Handler: func(ctx context.Context, userID string, args map[string]any) (string, error) {
			if userID == "" {
				return "", ErrNoUser
			}
			question, _ := args["question"].(string)
			answer, err := r.Recall(ctx, userID, question)
			if err != nil {
				return "", err
			}
			if answer == "" {
				return "nothing remembered about " + userID, nil
			}
			return answer, nil
		},
	}
}

// VolumeTool sets the speaker volume (0-100).
func VolumeTool(vc robot.VolumeController) Tool {
	return Tool{
		Name:        "set_volume",
		Description: "Set the robot's speaker volume from 0 (mute) to 100 (loudest).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"level": map[string]any{
					"type":    "integer",
					"minimum": 0,
					"maximum": 100,
				},
			},
			"required": []string{"level"},
		},
		Handler: func(ctx context.Context, _ string, args map[string]any) (string, error) {
			level, ok := args["level"].(float64)
			if !ok {
				return "", fmt.Errorf("set_volume: level must be a number")
			}
			if err := vc.SetVolume(ctx, int(level)); err != nil {
				return "", err
			}
			return fmt.Sprintf("volume %d", int(level)), nil
		},
	}
}

// DefaultTools returns the standard tool set. A nil robot leaves out the
// robot tools. recall is offered when mem can answer questions.
func DefaultTools(r robot.Controller, mem memory.Service) []Tool {
	var tools []Tool
	if r != nil {
		tools = append(tools, EmotionTool(r), VolumeTool(r))
	}
	if mem != nil {
		tools = append(tools, RememberTool(mem))
		if r, ok := mem.(memory.Recaller); ok {
			tools = append(tools, RecallTool(r))
		}
	}
	return tools
}
