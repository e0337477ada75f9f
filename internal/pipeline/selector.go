package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/kalambet/librarian/internal/composer"
	"github.com/kalambet/librarian/internal/llm"
	"github.com/kalambet/librarian/internal/tools"
)

// Tool result texts returned to the model for rejected calls.
const (
	ResultUnsupportedTool = "Unsupported tool."
	ResultLimitReached    = "Skipped: limit reached."
	ResultIneligible      = "Ineligible or duplicate title."
)

const (
	unknownToolName   = "unknown_tool"
	selectTemperature = 0.4
)

// ToolResult answers exactly one tool call.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
}

// Exchange is the state handed from the tool round to finalization.
type Exchange struct {
	Conversation []llm.Message
	Results      []ToolResult
	// Validated holds the titles accepted during the tool round, in call order.
	Validated []string
}

// Selector runs the tool round: the model picks titles by calling the
// detail tool and every call is answered in order.
type Selector struct {
	model    llm.Completer
	modelID  string
	tool     *tools.DetailTool
	composer *composer.Composer
}

// NewSelector creates a Selector. modelID may be empty to use the
// completer's default model.
func NewSelector(model llm.Completer, modelID string, tool *tools.DetailTool, comp *composer.Composer) *Selector {
	return &Selector{model: model, modelID: modelID, tool: tool, composer: comp}
}

// Select seeds the conversation, performs one model call exposing the detail
// tool and executes the returned calls. Only a failing model call is an error.
func (s *Selector) Select(ctx context.Context, query string, numRecs int, allowed []string, block string) (Exchange, error) {
	conv := s.composer.Seed(query, numRecs, allowed, block)

	reply, err := s.model.Complete(ctx, llm.Request{
		Model:       s.modelID,
		Messages:    slices.Clone(conv),
		Tools:       []llm.Tool{s.tool.Definition()},
		ToolChoice:  llm.ToolChoiceAuto,
		Temperature: selectTemperature,
	})
	if err != nil {
		return Exchange{}, fmt.Errorf("requesting tool calls: %w", err)
	}

	conv = append(conv, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   reply.Content,
		ToolCalls: reply.ToolCalls,
	})

	results, validated := s.execute(reply.ToolCalls, numRecs, allowed)
	for _, r := range results {
		conv = append(conv, llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: r.CallID,
			Name:       r.Name,
			Content:    r.Content,
		})
	}

	return Exchange{Conversation: conv, Results: results, Validated: validated}, nil
}

// execute answers each call in order. A title is accepted when it is in the
// allowed set, not yet used and the per-run limit is not reached.
func (s *Selector) execute(calls []llm.ToolCall, numRecs int, allowed []string) ([]ToolResult, []string) {
	results := make([]ToolResult, 0, len(calls))
	var used []string

	for _, call := range calls {
		name := call.Function.Name
		if name != s.tool.Name() {
			if name == "" {
				name = unknownToolName
			}
			slog.Debug("tool call rejected", "reason", "unsupported", "tool", name, "call_id", call.ID)
			results = append(results, ToolResult{CallID: call.ID, Name: name, Content: ResultUnsupportedTool})
			continue
		}

		if len(used) >= numRecs {
			slog.Debug("tool call skipped", "reason", "limit", "call_id", call.ID)
			results = append(results, ToolResult{CallID: call.ID, Name: name, Content: ResultLimitReached})
			continue
		}

		title, err := s.tool.ParseTitle(call.Function.Arguments)
		if err != nil {
			slog.Debug("tool call arguments rejected", "call_id", call.ID, "error", err)
			title = ""
		}
		if title == "" || !slices.Contains(allowed, title) || slices.Contains(used, title) {
			slog.Debug("tool call rejected", "reason", "ineligible", "title", title, "call_id", call.ID)
			results = append(results, ToolResult{CallID: call.ID, Name: name, Content: ResultIneligible})
			continue
		}

		used = append(used, title)
		results = append(results, ToolResult{CallID: call.ID, Name: name, Content: s.tool.Lookup(title)})
	}
	return results, used
}
