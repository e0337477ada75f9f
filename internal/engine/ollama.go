package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/kalambet/librarian/internal/llm"
	"github.com/kalambet/librarian/internal/ollama"
)

var _ Engine = (*OllamaEngine)(nil)

// OllamaEngine adapts the internal/ollama.Client to the Engine interface.
type OllamaEngine struct {
	client *ollama.Client
}

// NewOllamaEngine creates an OllamaEngine backed by an Ollama server at baseURL.
func NewOllamaEngine(baseURL string) *OllamaEngine {
	return &OllamaEngine{client: ollama.New(baseURL)}
}

// Complete runs a chat completion against Ollama. Ollama does not assign
// tool call IDs, so each returned call gets a fresh one, and argument objects
// are re-encoded as the JSON strings the rest of the pipeline expects.
func (e *OllamaEngine) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	cr := ollama.ChatRequest{
		Model:    req.Model,
		Messages: toOllamaMessages(req.Messages),
		Format:   req.ResponseSchema,
	}
	if req.ToolChoice != llm.ToolChoiceNone {
		for _, t := range req.Tools {
			cr.Tools = append(cr.Tools, ollama.Tool{
				Type: "function",
				Function: ollama.ToolFunction{
					Name:        t.Function.Name,
					Description: t.Function.Description,
					Parameters:  t.Function.Parameters,
				},
			})
		}
	}
	temp := req.Temperature
	cr.Temperature = &temp

	msg, err := e.client.Chat(ctx, cr)
	if err != nil {
		return llm.Completion{}, err
	}

	out := llm.Completion{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := strings.TrimSpace(string(tc.Function.Arguments))
		if args == "" || args == "null" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:   "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24],
			Type: "function",
			Function: llm.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: args,
			},
		})
	}
	return out, nil
}

func toOllamaMessages(messages []llm.Message) []ollama.Message {
	// Tool results carry the tool name; the IDs they answer are resolved to
	// names through the preceding assistant turns.
	names := make(map[string]string)
	out := make([]ollama.Message, 0, len(messages))
	for _, m := range messages {
		om := ollama.Message{Role: string(m.Role), Content: m.Content}
		for _, tc := range m.ToolCalls {
			names[tc.ID] = tc.Function.Name
			om.ToolCalls = append(om.ToolCalls, ollama.ToolCall{
				Function: ollama.ToolCallFunction{
					Name:      tc.Function.Name,
					Arguments: argumentObject(tc.Function.Arguments),
				},
			})
		}
		if m.Role == llm.RoleTool {
			om.ToolName = m.Name
			if om.ToolName == "" {
				om.ToolName = names[m.ToolCallID]
			}
		}
		out = append(out, om)
	}
	return out
}

// argumentObject returns args when it is a JSON object, otherwise an empty
// object. Ollama rejects tool calls whose arguments are not objects.
func argumentObject(args string) json.RawMessage {
	var obj map[string]any
	if err := json.Unmarshal([]byte(args), &obj); err != nil || obj == nil {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(args)
}

func (e *OllamaEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	return e.client.Embed(ctx, model, text)
}

func (e *OllamaEngine) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}

func (e *OllamaEngine) ListModels(ctx context.Context) ([]string, error) {
	return e.client.ListModels(ctx)
}

func (e *OllamaEngine) HasModel(ctx context.Context, name string) bool {
	return e.client.HasModel(ctx, name)
}

func (e *OllamaEngine) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	var cb func(ollama.PullProgress)
	if onProgress != nil {
		cb = func(p ollama.PullProgress) {
			onProgress(PullProgress{Status: p.Status, Total: p.Total, Completed: p.Completed})
		}
	}
	return e.client.PullModel(ctx, name, cb)
}
