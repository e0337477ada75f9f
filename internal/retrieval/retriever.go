package retrieval

import (
	"context"
	"fmt"
)

// Hit is one retrieved book document in rank order.
type Hit struct {
	ID       string
	Title    string
	Document string
	Score    float32
}

// Retriever combines embedding and vector search.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds the query and returns up to topK hits ordered by
// descending similarity. An empty store yields an empty, non-nil slice.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	scored, err := r.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}

	hits := make([]Hit, 0, len(scored))
	for _, s := range scored {
		hits = append(hits, Hit{
			ID:       s.ID,
			Title:    s.Title,
			Document: s.Document,
			Score:    s.Score,
		})
	}
	return hits, nil
}
