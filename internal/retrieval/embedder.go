package retrieval

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const embedConcurrency = 4

// EmbeddingModel is the part of the inference engine the embedder needs.
type EmbeddingModel interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Embedder turns catalog documents and queries into vectors with one model.
type Embedder struct {
	backend EmbeddingModel
	model   string
}

func NewEmbedder(backend EmbeddingModel, model string) *Embedder {
	return &Embedder{backend: backend, model: model}
}

// Embed returns the vector for a single text. An empty vector is an error.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.backend.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(vec) == 0 {
		return nil, errors.New("embedding text: model returned an empty vector")
	}
	return vec, nil
}

// EmbedBatch embeds texts with bounded concurrency and returns vectors in
// input order. All vectors must share one dimension. Empty input returns nil.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(results[0])
	for i, vec := range results[1:] {
		if len(vec) != dim {
			return nil, fmt.Errorf("embedding dimension mismatch: text %d has %d, text 0 has %d", i+1, len(vec), dim)
		}
	}
	return results, nil
}
