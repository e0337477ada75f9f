// Package ingest loads the catalog into storage and indexes book vectors
// through the job queue.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/librarian/internal/catalog"
	"github.com/kalambet/librarian/internal/retrieval"
	"github.com/kalambet/librarian/internal/storage"
)

// JobIndexBook embeds one book into the vector store.
const JobIndexBook = "index_book"

const defaultBatchSize = 8

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
	GetBook(ctx context.Context, id string) (storage.Book, error)
}

// BatchEmbedder generates embeddings for several texts, preserving order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorWriter inserts or replaces records in the vector store.
type VectorWriter interface {
	Upsert(ctx context.Context, records []retrieval.Record) error
}

// Worker processes index_book jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	embedder BatchEmbedder
	vectors  VectorWriter
	batch    int
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// batchSize <= 0 defaults to 8 jobs per iteration, pollInterval <= 0 to 500ms.
func NewWorker(store JobStore, embedder BatchEmbedder, vectors VectorWriter, batchSize int, pollInterval time.Duration) *Worker {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		embedder: embedder,
		vectors:  vectors,
		batch:    batchSize,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		n, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if n > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// Drain processes jobs until none is due and returns how many were handled.
// Jobs rescheduled with backoff after a failure are left in the queue.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := w.RunOnce(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}
}

// RunOnce claims up to a batch of index_book jobs, embeds their books in one
// batch and stores the vectors. It returns the number of jobs claimed,
// regardless of success or failure.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	var jobs []*storage.Job
	var books []storage.Book
	claimed := 0

	for claimed < w.batch {
		job, err := w.store.ClaimNextJob(ctx, []string{JobIndexBook})
		if err != nil {
			return claimed, fmt.Errorf("claiming job: %w", err)
		}
		if job == nil {
			break
		}
		claimed++
		book, err := w.loadBook(ctx, job)
		if err != nil {
			w.fail(ctx, job, err)
			continue
		}
		jobs = append(jobs, job)
		books = append(books, book)
	}
	if len(jobs) == 0 {
		return claimed, nil
	}

	if err := w.index(ctx, books); err != nil {
		for _, job := range jobs {
			w.fail(ctx, job, err)
		}
		return claimed, nil
	}

	for _, job := range jobs {
		if err := w.store.CompleteJob(ctx, job.ID); err != nil {
			return claimed, fmt.Errorf("completing job %s: %w", job.ID, err)
		}
	}
	w.logger.Debug("indexed books", "count", len(books))
	return claimed, nil
}

type indexPayload struct {
	BookID string `json:"book_id"`
}

func (w *Worker) loadBook(ctx context.Context, job *storage.Job) (storage.Book, error) {
	var payload indexPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return storage.Book{}, fmt.Errorf("parsing payload: %w", err)
	}
	book, err := w.store.GetBook(ctx, payload.BookID)
	if err != nil {
		return storage.Book{}, fmt.Errorf("loading book %s: %w", payload.BookID, err)
	}
	return book, nil
}

func (w *Worker) index(ctx context.Context, books []storage.Book) error {
	docs := make([]string, len(books))
	for i, b := range books {
		docs[i] = Document(b)
	}

	vecs, err := w.embedder.EmbedBatch(ctx, docs)
	if err != nil {
		return fmt.Errorf("embedding books: %w", err)
	}

	now := time.Now().UTC()
	records := make([]retrieval.Record, len(books))
	for i, b := range books {
		records[i] = retrieval.Record{
			ID:        b.ID,
			BookID:    b.ID,
			Title:     b.Title,
			Document:  docs[i],
			Embedding: vecs[i],
			CreatedAt: now,
		}
	}
	if err := w.vectors.Upsert(ctx, records); err != nil {
		return fmt.Errorf("storing vectors: %w", err)
	}
	return nil
}

func (w *Worker) fail(ctx context.Context, job *storage.Job, cause error) {
	w.logger.Warn("job failed", "job_id", job.ID, "error", cause)
	if err := w.store.FailJob(ctx, job.ID, cause.Error()); err != nil {
		w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", err)
	}
}

// Document renders the searchable text of a stored book.
func Document(b storage.Book) string {
	return catalog.Book{Title: b.Title, Summary: b.Summary, Themes: b.Themes}.Document()
}
