package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kalambet/librarian/internal/catalog"
	"github.com/kalambet/librarian/internal/storage"
)

// BookStore is the storage needed to seed the catalog.
type BookStore interface {
	UpsertBook(ctx context.Context, b storage.Book) error
	EnqueueJob(ctx context.Context, job storage.Job) error
	CountJobs(ctx context.Context, jobType, status string) (int, error)
}

// VectorCounter reports how many vectors are stored.
type VectorCounter interface {
	Count(ctx context.Context) (int, error)
}

// Seed upserts every catalog book and, when the vector store is empty and
// no indexing is pending, enqueues one index_book job per book. force
// enqueues jobs regardless. It returns the number of jobs enqueued.
func Seed(ctx context.Context, store BookStore, cat *catalog.Catalog, vectors VectorCounter, force bool) (int, error) {
	books := cat.Books()
	for _, b := range books {
		err := store.UpsertBook(ctx, storage.Book{
			ID:      b.ID,
			Title:   b.Title,
			Summary: b.Summary,
			Themes:  b.Themes,
			Detail:  b.Detail,
		})
		if err != nil {
			return 0, fmt.Errorf("seeding book %s: %w", b.ID, err)
		}
	}

	if !force {
		n, err := vectors.Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("counting vectors: %w", err)
		}
		pending, err := store.CountJobs(ctx, JobIndexBook, storage.JobPending)
		if err != nil {
			return 0, err
		}
		if n > 0 || pending > 0 {
			return 0, nil
		}
	}

	for _, b := range books {
		payload, err := json.Marshal(indexPayload{BookID: b.ID})
		if err != nil {
			return 0, fmt.Errorf("encoding payload: %w", err)
		}
		err = store.EnqueueJob(ctx, storage.Job{
			ID:          uuid.New().String(),
			Type:        JobIndexBook,
			PayloadJSON: string(payload),
		})
		if err != nil {
			return 0, fmt.Errorf("enqueueing %s: %w", b.ID, err)
		}
	}
	return len(books), nil
}
