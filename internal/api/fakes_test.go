package api

import (
	"context"
	"errors"
	"strings"

	"github.com/kalambet/librarian/internal/catalog"
	"github.com/kalambet/librarian/internal/pipeline"
	"github.com/kalambet/librarian/internal/retrieval"
	"github.com/kalambet/librarian/internal/storage"
)

type fakeRecommender struct {
	runFn func(ctx context.Context, req pipeline.Request) (pipeline.Outcome, error)
	last  pipeline.Request
}

func (f *fakeRecommender) Run(ctx context.Context, req pipeline.Request) (pipeline.Outcome, error) {
	f.last = req
	return f.runFn(ctx, req)
}

type fakeSearcher struct {
	hits    []retrieval.Hit
	err     error
	lastTop int
}

func (f *fakeSearcher) Retrieve(_ context.Context, _ string, topK int) ([]retrieval.Hit, error) {
	f.lastTop = topK
	return f.hits, f.err
}

type fakeMedia struct {
	speechFn func(text, filename string) (string, error)
	coverFn  func(title, themes, filename string) (string, error)
}

func (f *fakeMedia) Speech(_ context.Context, text, filename string) (string, error) {
	return f.speechFn(text, filename)
}

func (f *fakeMedia) Cover(_ context.Context, title, themes, filename string) (string, error) {
	return f.coverFn(title, themes, filename)
}

type fakeBooks struct {
	books      []storage.Book
	lastLimit  int
	lastOffset int
}

func (f *fakeBooks) ListBooks(_ context.Context, limit, offset int) ([]storage.Book, error) {
	f.lastLimit, f.lastOffset = limit, offset
	return f.books, nil
}

func (f *fakeBooks) CountBooks(_ context.Context) (int, error) {
	return len(f.books), nil
}

type fakeCatalog map[string]catalog.Book

func (c fakeCatalog) Lookup(title string) (catalog.Book, bool) {
	b, ok := c[strings.ToLower(title)]
	return b, ok
}

func (c fakeCatalog) Detail(title string) string {
	b, ok := c.Lookup(title)
	if !ok {
		return catalog.UnavailableDetail
	}
	return b.Detail
}

var errBackend = errors.New("backend unavailable")

func hobbitOutcome() pipeline.Outcome {
	return pipeline.Outcome{
		Kind: pipeline.OutcomeRecommendations,
		Drafts: []pipeline.Draft{{
			Title:           "The Hobbit",
			Rationale:       "O aventură clasică.",
			DetailedSummary: "Bilbo pleacă într-o călătorie.",
		}},
	}
}

func newTestDeps() (Deps, *fakeRecommender) {
	rec := &fakeRecommender{runFn: func(context.Context, pipeline.Request) (pipeline.Outcome, error) {
		return hobbitOutcome(), nil
	}}
	cat := fakeCatalog{
		"the hobbit": {ID: "hobbit", Title: "The Hobbit", Themes: []string{"adventure", "friendship"}, Detail: "Bilbo pleacă într-o călătorie."},
	}
	return Deps{
		Recommender: rec,
		Search:      &fakeSearcher{},
		Books:       &fakeBooks{},
		Catalog:     cat,
	}, rec
}
