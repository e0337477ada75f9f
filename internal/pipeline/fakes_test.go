package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kalambet/librarian/internal/composer"
	"github.com/kalambet/librarian/internal/llm"
	"github.com/kalambet/librarian/internal/retrieval"
	"github.com/kalambet/librarian/internal/tools"
)

// scriptedModel replays replies in order and records every request.
type scriptedModel struct {
	replies  []llm.Completion
	errs     []error
	requests []llm.Request
}

func (m *scriptedModel) Complete(_ context.Context, req llm.Request) (llm.Completion, error) {
	i := len(m.requests)
	m.requests = append(m.requests, req)
	if i < len(m.errs) && m.errs[i] != nil {
		return llm.Completion{}, m.errs[i]
	}
	if i >= len(m.replies) {
		return llm.Completion{}, errors.New("unexpected model call")
	}
	return m.replies[i], nil
}

type detailMap map[string]string

func (d detailMap) Detail(title string) string {
	for k, v := range d {
		if strings.EqualFold(k, title) {
			return v
		}
	}
	return "indisponibil"
}

var testDetails = detailMap{
	"The Hobbit":        "Bilbo pleacă într-o aventură.",
	"The Little Prince": "Un prinț de pe un asteroid.",
	"1984":              "Winston sub Big Brother.",
}

func newTestTool(t *testing.T) *tools.DetailTool {
	t.Helper()
	tool, err := tools.NewDetailTool(testDetails)
	require.NoError(t, err)
	return tool
}

func newTestComposer() *composer.Composer {
	return composer.New("", tools.DetailToolName)
}

func call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Type: "function", Function: llm.FunctionCall{Name: name, Arguments: args}}
}

func titleCall(id, title string) llm.ToolCall {
	return call(id, tools.DetailToolName, fmt.Sprintf(`{"title":%q}`, title))
}

type fakeFilter struct{ blocked bool }

func (f fakeFilter) Blocked(string) bool { return f.blocked }

type fakeRetriever struct {
	hits  []retrieval.Hit
	err   error
	calls int
	topK  int
}

func (r *fakeRetriever) Retrieve(_ context.Context, _ string, topK int) ([]retrieval.Hit, error) {
	r.calls++
	r.topK = topK
	return r.hits, r.err
}
