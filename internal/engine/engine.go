package engine

import (
	"context"

	"github.com/kalambet/librarian/internal/llm"
)

// Engine abstracts the local inference backend. The retrieval layer uses it
// for embeddings; when the local provider is selected it also serves the
// recommendation pipeline as an llm.Completer.
type Engine interface {
	llm.Completer

	// Embed returns the embedding vector for the given text using the specified model.
	Embed(ctx context.Context, model string, text string) ([]float32, error)

	// IsRunning reports whether the inference backend is reachable.
	IsRunning(ctx context.Context) bool

	// ListModels returns the names of all locally available models.
	ListModels(ctx context.Context) ([]string, error)

	// HasModel reports whether the given model name is available locally.
	HasModel(ctx context.Context, name string) bool

	// PullModel downloads a model. The optional callback receives progress updates.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}

// PullProgress reports download progress for a model pull operation.
type PullProgress struct {
	Status    string
	Total     int64
	Completed int64
}
