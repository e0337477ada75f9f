// Package pipeline implements the recommendation run: content filter,
// retrieval, the tool round and finalization.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/librarian/internal/composer"
	"github.com/kalambet/librarian/internal/llm"
	"github.com/kalambet/librarian/internal/retrieval"
	"github.com/kalambet/librarian/internal/tools"
)

const (
	defaultTopK    = 4
	defaultNumRecs = 1
)

// QueryFilter reports whether a query must be rejected.
type QueryFilter interface {
	Blocked(query string) bool
}

// Retriever returns ranked hits for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Hit, error)
}

// Options tune a Recommender. Zero values select the defaults.
type Options struct {
	// Model is passed to the completer; empty uses its default model.
	Model          string
	DefaultTopK    int
	DefaultNumRecs int
}

// Request is one recommendation query.
type Request struct {
	Query          string
	TopK           int
	NumRecs        int
	LanguageFilter bool
}

// Recommender runs the full pipeline. It holds no per-run state and is safe
// for concurrent use when its collaborators are.
type Recommender struct {
	filter    QueryFilter
	retriever Retriever
	selector  *Selector
	finalizer *Finalizer
	topK      int
	numRecs   int
}

// NewRecommender wires the pipeline around an explicitly constructed model
// client.
func NewRecommender(
	filter QueryFilter,
	retriever Retriever,
	model llm.Completer,
	tool *tools.DetailTool,
	comp *composer.Composer,
	opts Options,
) (*Recommender, error) {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = defaultTopK
	}
	if opts.DefaultNumRecs <= 0 {
		opts.DefaultNumRecs = defaultNumRecs
	}
	finalizer, err := NewFinalizer(model, opts.Model, tool, comp)
	if err != nil {
		return nil, err
	}
	return &Recommender{
		filter:    filter,
		retriever: retriever,
		selector:  NewSelector(model, opts.Model, tool, comp),
		finalizer: finalizer,
		topK:      opts.DefaultTopK,
		numRecs:   opts.DefaultNumRecs,
	}, nil
}

// Run executes one recommendation. Blocked queries make no external call and
// an empty retrieval makes no model call. Errors are infrastructure failures
// of retrieval or the model.
func (r *Recommender) Run(ctx context.Context, req Request) (Outcome, error) {
	start := time.Now()

	if req.LanguageFilter && r.filter.Blocked(req.Query) {
		slog.Info("recommendation blocked by content filter")
		return Outcome{Kind: OutcomeBlocked}, nil
	}

	topK := req.TopK
	if topK <= 0 {
		topK = r.topK
	}
	numRecs := req.NumRecs
	if numRecs <= 0 {
		numRecs = r.numRecs
	}

	hits, err := r.retriever.Retrieve(ctx, req.Query, topK)
	if err != nil {
		return Outcome{}, fmt.Errorf("retrieving books: %w", err)
	}
	if len(hits) == 0 {
		return Outcome{Kind: OutcomeNoMatches}, nil
	}

	allowed, block := composer.BuildContext(hits)

	ex, err := r.selector.Select(ctx, req.Query, numRecs, allowed, block)
	if err != nil {
		return Outcome{}, err
	}

	drafts, err := r.finalizer.Finalize(ctx, ex, numRecs, allowed)
	if err != nil {
		return Outcome{}, err
	}

	slog.Debug("recommendation complete",
		"hits", len(hits),
		"validated", len(ex.Validated),
		"drafts", len(drafts),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return Outcome{Kind: OutcomeRecommendations, Drafts: drafts}, nil
}
