package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/librarian/internal/filter"
	"github.com/kalambet/librarian/internal/llm"
	"github.com/kalambet/librarian/internal/retrieval"
)

func newTestRecommender(t *testing.T, f QueryFilter, r Retriever, model llm.Completer) *Recommender {
	t.Helper()
	rec, err := NewRecommender(f, r, model, newTestTool(t), newTestComposer(), Options{})
	require.NoError(t, err)
	return rec
}

func TestRun_BlockedMakesNoCalls(t *testing.T) {
	retriever := &fakeRetriever{hits: []retrieval.Hit{{ID: "1", Title: "1984"}}}
	model := &scriptedModel{}
	rec := newTestRecommender(t, filter.New(filter.DefaultWords), retriever, model)

	out, err := rec.Run(context.Background(), Request{
		Query:          "ești prost!",
		TopK:           3,
		NumRecs:        1,
		LanguageFilter: true,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, out.Kind)
	assert.Zero(t, retriever.calls)
	assert.Empty(t, model.requests)
}

func TestRun_FilterDisabled(t *testing.T) {
	retriever := &fakeRetriever{}
	rec := newTestRecommender(t, fakeFilter{blocked: true}, retriever, &scriptedModel{})

	out, err := rec.Run(context.Background(), Request{Query: "prost", LanguageFilter: false})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatches, out.Kind)
	assert.Equal(t, 1, retriever.calls)
}

func TestRun_NoMatchesMakesNoModelCall(t *testing.T) {
	model := &scriptedModel{}
	rec := newTestRecommender(t, fakeFilter{}, &fakeRetriever{hits: []retrieval.Hit{}}, model)

	out, err := rec.Run(context.Background(), Request{Query: "spațiu", TopK: 4, NumRecs: 1, LanguageFilter: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatches, out.Kind)
	assert.Empty(t, model.requests)
}

func TestRun_Defaults(t *testing.T) {
	retriever := &fakeRetriever{}
	rec := newTestRecommender(t, fakeFilter{}, retriever, &scriptedModel{})

	_, err := rec.Run(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, 4, retriever.topK)
}

func TestRun_FriendshipAndMagic(t *testing.T) {
	retriever := &fakeRetriever{hits: []retrieval.Hit{
		{ID: "hobbit", Title: "The Hobbit", Document: "Title: The Hobbit"},
		{ID: "prince", Title: "The Little Prince", Document: "Title: The Little Prince"},
		{ID: "hobbit-2", Title: "The Hobbit", Document: "Title: The Hobbit"},
	}}
	model := &scriptedModel{replies: []llm.Completion{
		{ToolCalls: []llm.ToolCall{
			titleCall("c1", "The Hobbit"),
			titleCall("c2", "The Hobbit"),
			titleCall("c3", "The Little Prince"),
		}},
		{Content: "oops, not JSON"},
	}}
	rec := newTestRecommender(t, filter.New(filter.DefaultWords), retriever, model)

	out, err := rec.Run(context.Background(), Request{
		Query:          "prietenie și magie",
		TopK:           3,
		NumRecs:        2,
		LanguageFilter: true,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeRecommendations, out.Kind)
	assert.Equal(t, 3, retriever.topK)

	require.Len(t, model.requests, 2)
	user := model.requests[0].Messages[1].Content
	assert.Contains(t, user, `Titluri eligibile: ["The Hobbit", "The Little Prince"]`)
	assert.Contains(t, user, "[#3] The Hobbit")

	final := model.requests[1].Messages
	require.Len(t, final, 7)
	assert.Equal(t, ResultIneligible, final[4].Content)

	assert.Equal(t, []Draft{
		{Title: "The Hobbit", Rationale: FallbackRationale, DetailedSummary: testDetails["The Hobbit"]},
		{Title: "The Little Prince", Rationale: FallbackRationale, DetailedSummary: testDetails["The Little Prince"]},
	}, out.Drafts)
}

func TestRun_UnderFillIsNotAnError(t *testing.T) {
	retriever := &fakeRetriever{hits: []retrieval.Hit{{ID: "1", Title: "1984"}}}
	model := &scriptedModel{replies: []llm.Completion{
		{ToolCalls: []llm.ToolCall{titleCall("c1", "1984")}},
		{Content: `[{"title":"1984","rationale":"distopie","detailed_summary":"Winston"}]`},
	}}
	rec := newTestRecommender(t, fakeFilter{}, retriever, model)

	out, err := rec.Run(context.Background(), Request{Query: "distopie", TopK: 4, NumRecs: 3})
	require.NoError(t, err)
	assert.Equal(t, []Draft{{Title: "1984", Rationale: "distopie", DetailedSummary: "Winston"}}, out.Drafts)
}

func TestRun_RetrievalError(t *testing.T) {
	boom := errors.New("store down")
	model := &scriptedModel{}
	rec := newTestRecommender(t, fakeFilter{}, &fakeRetriever{err: boom}, model)

	_, err := rec.Run(context.Background(), Request{Query: "q"})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, model.requests)
}

func TestRun_FinalizeError(t *testing.T) {
	boom := errors.New("timeout")
	retriever := &fakeRetriever{hits: []retrieval.Hit{{ID: "1", Title: "1984"}}}
	model := &scriptedModel{
		replies: []llm.Completion{{}},
		errs:    []error{nil, boom},
	}
	rec := newTestRecommender(t, fakeFilter{}, retriever, model)

	_, err := rec.Run(context.Background(), Request{Query: "q"})
	require.ErrorIs(t, err, boom)
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "recommendations", OutcomeRecommendations.String())
	assert.Equal(t, "blocked", OutcomeBlocked.String())
	assert.Equal(t, "no_matches", OutcomeNoMatches.String())
}
