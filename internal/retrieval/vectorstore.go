package retrieval

import (
	"context"
	"time"
)

// VectorStore is the similarity-search backend for book vectors. The SQLite
// implementation does brute-force cosine similarity; an ANN-capable store
// can replace it behind the same interface.
type VectorStore interface {
	// Upsert inserts records, replacing any existing record with the same ID.
	Upsert(ctx context.Context, records []Record) error

	// Search returns up to topK records ordered by descending similarity.
	// Records with equal scores keep their storage order.
	Search(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error)

	// Delete removes a record by ID.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// Record is one embedded book document.
type Record struct {
	ID        string
	BookID    string
	Title     string
	Document  string
	Embedding []float32
	CreatedAt time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
