package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/kalambet/librarian/internal/composer"
	"github.com/kalambet/librarian/internal/llm"
	"github.com/kalambet/librarian/internal/tools"
)

// FallbackRationale is used for drafts rebuilt from validated tool calls.
const FallbackRationale = "High thematic match based on RAG."

const finalizeTemperature = 0.2

// Finalizer asks the model for the JSON answer and turns whatever it returns
// into at most numRecs drafts.
type Finalizer struct {
	model    llm.Completer
	modelID  string
	tool     *tools.DetailTool
	composer *composer.Composer
	schema   map[string]any
}

// NewFinalizer creates a Finalizer. It fails if the draft list schema
// cannot be reflected.
func NewFinalizer(model llm.Completer, modelID string, tool *tools.DetailTool, comp *composer.Composer) (*Finalizer, error) {
	schema, err := tools.SchemaFor([]Draft{})
	if err != nil {
		return nil, fmt.Errorf("building final answer schema: %w", err)
	}
	return &Finalizer{
		model:    model,
		modelID:  modelID,
		tool:     tool,
		composer: comp,
		schema:   schema,
	}, nil
}

// Finalize makes the closing model call. Unusable model output never fails:
// it yields drafts rebuilt from ex.Validated, or an empty list.
//
// Returned titles are always members of allowed, in its spelling. Entries
// naming other titles are dropped and case variants are mapped to the
// allowed form before deduplication and truncation to numRecs.
func (f *Finalizer) Finalize(ctx context.Context, ex Exchange, numRecs int, allowed []string) ([]Draft, error) {
	messages := append(slices.Clone(ex.Conversation), f.composer.FinalizeInstruction(numRecs))

	reply, err := f.model.Complete(ctx, llm.Request{
		Model:          f.modelID,
		Messages:       messages,
		Temperature:    finalizeTemperature,
		ResponseSchema: f.schema,
	})
	if err != nil {
		return nil, fmt.Errorf("requesting final answer: %w", err)
	}

	drafts := keepAllowed(parseDrafts(reply.Content), allowed)
	drafts = truncate(drafts, numRecs)

	if len(drafts) == 0 && len(ex.Validated) > 0 {
		slog.Debug("rebuilding drafts from validated titles", "count", len(ex.Validated))
		for _, title := range ex.Validated {
			drafts = append(drafts, Draft{
				Title:           title,
				Rationale:       FallbackRationale,
				DetailedSummary: f.tool.Lookup(title),
			})
		}
	}
	return truncate(drafts, numRecs), nil
}

// parseDrafts decodes a JSON array of draft objects. Empty content counts as
// an empty array. Anything else that is not an array of objects yields nil.
func parseDrafts(content string) []Draft {
	content = stripCodeFence(strings.TrimSpace(content))
	if content == "" {
		return nil
	}

	var raw any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		slog.Warn("final answer is not valid JSON", "error", err)
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		slog.Warn("final answer is not a JSON array")
		return nil
	}

	drafts := make([]Draft, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			slog.Warn("final answer contains a non-object element")
			return nil
		}
		d := Draft{
			Title:           strings.TrimSpace(coerceString(obj["title"])),
			Rationale:       strings.TrimSpace(coerceString(obj["rationale"])),
			DetailedSummary: strings.TrimSpace(coerceString(obj["detailed_summary"])),
		}
		if d.Title != "" {
			drafts = append(drafts, d)
		}
	}
	return drafts
}

// keepAllowed drops titles outside allowed and repeated titles. A title that
// matches an allowed one case-insensitively takes the allowed spelling.
func keepAllowed(drafts []Draft, allowed []string) []Draft {
	canonical := make(map[string]string, len(allowed))
	for i := len(allowed) - 1; i >= 0; i-- {
		canonical[strings.ToLower(allowed[i])] = allowed[i]
	}

	seen := make(map[string]bool, len(drafts))
	out := drafts[:0]
	for _, d := range drafts {
		title := d.Title
		if !slices.Contains(allowed, title) {
			c, ok := canonical[strings.ToLower(title)]
			if !ok {
				slog.Debug("final answer title dropped", "title", title)
				continue
			}
			title = c
		}
		if seen[title] {
			continue
		}
		seen[title] = true
		d.Title = title
		out = append(out, d)
	}
	return out
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func truncate(drafts []Draft, n int) []Draft {
	if len(drafts) > n {
		return drafts[:n]
	}
	return drafts
}
