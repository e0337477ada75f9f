// Package llm defines the chat-completion wire model shared by the
// recommendation pipeline and the model backends. Field names and JSON tags
// follow the OpenAI chat completions format so the proxy client can send
// messages unchanged.
package llm

import "context"

// Role tags a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one conversation turn. Assistant turns may carry tool calls;
// tool turns reference the call they answer through ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a model request to invoke a named tool. Arguments is the raw
// JSON text produced by the model and may be malformed.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool describes a callable function exposed to the model.
type Tool struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Tool choice values.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceNone = "none"
)

// Request is a single completion call.
type Request struct {
	Model       string
	Messages    []Message
	Tools       []Tool
	ToolChoice  string
	Temperature float64
	// ResponseSchema constrains the reply to a JSON document when the backend
	// supports it. Backends without schema support ignore it.
	ResponseSchema map[string]any
}

// Completion is the assistant reply: free text plus any requested tool calls
// in the order the model emitted them.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// Completer runs one chat completion. Implementations must not retain the
// request messages after returning.
type Completer interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (Completion, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (Completion, error) {
	return f(ctx, req)
}
