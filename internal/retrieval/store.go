package retrieval

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

var _ VectorStore = (*SQLiteStore)(nil)

// SQLiteStore provides vector storage and brute-force cosine similarity search
// over the book_vectors table. The table is created by storage migrations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an existing *sql.DB for vector operations.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Upsert(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO book_vectors (id, book_id, title, document, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			book_id = excluded.book_id,
			title = excluded.title,
			document = excluded.document,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.BookID, r.Title, r.Document,
			encodeFloat32s(r.Embedding), createdAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("upserting record %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// candidate is a scan-phase entry. seq is the row position and breaks score ties.
type candidate struct {
	id    string
	score float32
	seq   int
}

// Search scans id and embedding only, keeps the best topK candidates in a
// min-heap, then loads the full rows for the winners.
func (s *SQLiteStore) Search(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error) {
	if topK <= 0 {
		return nil, nil
	}
	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM book_vectors ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	h := &candidateHeap{}
	var buf []float32
	seq := 0
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		c := candidate{id: id, score: cosine(vector, buf, queryNorm), seq: seq}
		seq++
		if h.Len() < topK {
			heap.Push(h, c)
		} else if worse((*h)[0], c) {
			(*h)[0] = c
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	if h.Len() == 0 {
		return nil, nil
	}

	winners := make([]candidate, h.Len())
	copy(winners, *h)
	sort.Slice(winners, func(i, j int) bool { return worse(winners[j], winners[i]) })

	records, err := s.load(ctx, winners)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// load fetches full rows for the given candidates and returns them in
// candidate order.
func (s *SQLiteStore) load(ctx context.Context, winners []candidate) ([]ScoredRecord, error) {
	args := make([]any, len(winners))
	pos := make(map[string]int, len(winners))
	for i, c := range winners {
		args[i] = c.id
		pos[c.id] = i
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, book_id, title, document, embedding, created_at
		FROM book_vectors WHERE id IN (?`+strings.Repeat(",?", len(winners)-1)+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K records: %w", err)
	}
	defer rows.Close()

	results := make([]ScoredRecord, len(winners))
	found := 0
	for rows.Next() {
		var r Record
		var blob []byte
		var createdAt string
		if err := rows.Scan(&r.ID, &r.BookID, &r.Title, &r.Document, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning full record: %w", err)
		}
		if r.Embedding, err = decodeFloat32s(blob); err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", r.ID, err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", r.ID, err)
		}
		i := pos[r.ID]
		results[i] = ScoredRecord{Record: r, Score: winners[i].score}
		found++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating full records: %w", err)
	}
	if found != len(winners) {
		// A record was deleted between the scan and the fetch.
		kept := results[:0]
		for _, r := range results {
			if r.ID != "" {
				kept = append(kept, r)
			}
		}
		results = kept
	}
	return results, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM book_vectors WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting record %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("record %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM book_vectors").Scan(&count)
	return count, err
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeFloat32s(b []byte) ([]float32, error) {
	return decodeFloat32sInto(nil, b)
}

// decodeFloat32sInto decodes little-endian bytes into buf, growing it when needed.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine returns dot(a,b) / (aNorm * |b|). Vectors of different length score 0.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	if bNormSq == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * math.Sqrt(bNormSq)))
}

// worse reports whether a ranks below b: lower score, or equal score and
// later storage position.
func worse(a, b candidate) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.seq > b.seq
}

// candidateHeap is a min-heap with the worst-ranked candidate at the root.
type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
