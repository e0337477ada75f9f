package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/librarian/internal/llm"
	"github.com/kalambet/librarian/internal/tools"
)

var allowedTitles = []string{"The Hobbit", "The Little Prince", "1984"}

func runSelect(t *testing.T, numRecs int, calls ...llm.ToolCall) (Exchange, *scriptedModel) {
	t.Helper()
	model := &scriptedModel{replies: []llm.Completion{{Content: "alege", ToolCalls: calls}}}
	s := NewSelector(model, "test-model", newTestTool(t), newTestComposer())
	ex, err := s.Select(context.Background(), "prietenie și magie", numRecs, allowedTitles, "[#1] The Hobbit\ndoc")
	require.NoError(t, err)
	return ex, model
}

func contents(results []ToolResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Content
	}
	return out
}

func TestSelect_RequestShape(t *testing.T) {
	_, model := runSelect(t, 1)

	require.Len(t, model.requests, 1)
	req := model.requests[0]
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, llm.ToolChoiceAuto, req.ToolChoice)
	assert.InDelta(t, 0.4, req.Temperature, 1e-9)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, tools.DetailToolName, req.Tools[0].Function.Name)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, llm.RoleUser, req.Messages[1].Role)
	assert.Contains(t, req.Messages[1].Content, "prietenie și magie")
}

func TestSelect_AcceptsAllowedTitles(t *testing.T) {
	ex, _ := runSelect(t, 2,
		titleCall("c1", "The Hobbit"),
		titleCall("c2", "1984"),
	)

	assert.Equal(t, []string{"The Hobbit", "1984"}, ex.Validated)
	assert.Equal(t, []string{testDetails["The Hobbit"], testDetails["1984"]}, contents(ex.Results))
}

func TestSelect_OneResultPerCallInOrder(t *testing.T) {
	ex, _ := runSelect(t, 2,
		call("c1", "web_search", `{"q":"x"}`),
		titleCall("c2", "The Hobbit"),
		titleCall("c3", "The Hobbit"),
		titleCall("c4", "Dune"),
		call("c5", tools.DetailToolName, `{"title":`),
		titleCall("c6", "The Little Prince"),
		titleCall("c7", "1984"),
	)

	require.Len(t, ex.Results, 7)
	for i, id := range []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7"} {
		assert.Equal(t, id, ex.Results[i].CallID)
	}
	assert.Equal(t, []string{
		ResultUnsupportedTool,
		testDetails["The Hobbit"],
		ResultIneligible,
		ResultIneligible,
		ResultIneligible,
		testDetails["The Little Prince"],
		ResultLimitReached,
	}, contents(ex.Results))
	assert.Equal(t, "web_search", ex.Results[0].Name)
	assert.Equal(t, []string{"The Hobbit", "The Little Prince"}, ex.Validated)
}

func TestSelect_UnknownToolName(t *testing.T) {
	ex, _ := runSelect(t, 1, call("c1", "", `{}`))

	require.Len(t, ex.Results, 1)
	assert.Equal(t, "unknown_tool", ex.Results[0].Name)
	assert.Equal(t, ResultUnsupportedTool, ex.Results[0].Content)
}

func TestSelect_TitleMatchIsExact(t *testing.T) {
	ex, _ := runSelect(t, 1, titleCall("c1", "the hobbit"), titleCall("c2", "  The Hobbit  "))

	assert.Equal(t, []string{ResultIneligible, testDetails["The Hobbit"]}, contents(ex.Results))
	assert.Equal(t, []string{"The Hobbit"}, ex.Validated)
}

func TestSelect_LimitCheckedBeforeArguments(t *testing.T) {
	ex, _ := runSelect(t, 1, titleCall("c1", "1984"), call("c2", tools.DetailToolName, `not json`))

	assert.Equal(t, []string{testDetails["1984"], ResultLimitReached}, contents(ex.Results))
}

func TestSelect_ConversationLayout(t *testing.T) {
	ex, _ := runSelect(t, 1, titleCall("c1", "1984"), call("c2", "other", `{}`))

	conv := ex.Conversation
	require.Len(t, conv, 5)
	assistant := conv[2]
	assert.Equal(t, llm.RoleAssistant, assistant.Role)
	assert.Equal(t, "alege", assistant.Content)
	assert.Len(t, assistant.ToolCalls, 2)

	assert.Equal(t, llm.RoleTool, conv[3].Role)
	assert.Equal(t, "c1", conv[3].ToolCallID)
	assert.Equal(t, testDetails["1984"], conv[3].Content)
	assert.Equal(t, "c2", conv[4].ToolCallID)
	assert.Equal(t, ResultUnsupportedTool, conv[4].Content)
}

func TestSelect_NoToolCalls(t *testing.T) {
	ex, _ := runSelect(t, 2)

	assert.Empty(t, ex.Results)
	assert.Empty(t, ex.Validated)
	assert.Len(t, ex.Conversation, 3)
}

func TestSelect_ModelError(t *testing.T) {
	boom := errors.New("rate limited")
	model := &scriptedModel{errs: []error{boom}}
	s := NewSelector(model, "", newTestTool(t), newTestComposer())

	_, err := s.Select(context.Background(), "q", 1, allowedTitles, "")
	require.ErrorIs(t, err, boom)
}
