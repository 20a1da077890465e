package inference

import (
	"encoding/json"
	"strings"
)

// Role defines message roles in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Name is optional, used for tool messages.
	Name string `json:"name,omitempty"`

	// ToolCalls are function calls requested by the assistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID identifies which tool call this message answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Arguments is a JSON object encoded as a string.
	Arguments string `json:"arguments"`
}

// DecodeArgs unmarshals Arguments into v. Empty arguments decode as {}.
func (tc ToolCall) DecodeArgs(v any) error {
	args := strings.TrimSpace(tc.Arguments)
	if args == "" {
		args = "{}"
	}
	return json.Unmarshal([]byte(args), v)
}

// Tool is a function the model may call.
type Tool struct {
	// Type is always "function".
	Type string

	Function ToolFunction
}

// ToolFunction describes a function the model can call.
type ToolFunction struct {
	Name        string
	Description string

	// Parameters as JSON Schema.
	Parameters map[string]interface{}
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolMessage creates a tool result message.
func NewToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: toolCallID, Content: content}
}

// NewTool creates a function tool definition.
func NewTool(name, description string, parameters map[string]interface{}) Tool {
	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
