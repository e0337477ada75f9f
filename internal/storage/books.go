package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var bookColumns = []string{"id", "title", "summary", "themes_json", "detail", "created_at", "updated_at"}

// UpsertBook inserts a book or replaces the stored fields of an existing one
// with the same ID. CreatedAt is preserved on update.
func (s *Store) UpsertBook(ctx context.Context, b Book) error {
	themes := b.Themes
	if themes == nil {
		themes = []string{}
	}
	themesJSON, err := json.Marshal(themes)
	if err != nil {
		return fmt.Errorf("encoding themes: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query, args, err := sq.Insert("books").
		Columns(bookColumns...).
		Values(b.ID, b.Title, b.Summary, string(themesJSON), b.Detail, now, now).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			themes_json = excluded.themes_json,
			detail = excluded.detail,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting book %s: %w", b.ID, err)
	}
	return nil
}

// GetBook returns the book with the given ID or ErrNotFound.
func (s *Store) GetBook(ctx context.Context, id string) (Book, error) {
	query, args, err := sq.Select(bookColumns...).From("books").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Book{}, fmt.Errorf("building book query: %w", err)
	}
	b, err := scanBook(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, ErrNotFound
	}
	return b, err
}

// ListBooks returns books ordered by title. A non-positive limit returns all rows.
func (s *Store) ListBooks(ctx context.Context, limit, offset int) ([]Book, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	builder := sq.Select(bookColumns...).From("books").
		OrderBy("title COLLATE NOCASE ASC").
		Limit(uint64(limit))
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// CountBooks returns the number of stored books.
func (s *Store) CountBooks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting books: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (Book, error) {
	var b Book
	var themesJSON, createdAt, updatedAt string
	if err := row.Scan(&b.ID, &b.Title, &b.Summary, &themesJSON, &b.Detail, &createdAt, &updatedAt); err != nil {
		return Book{}, err
	}
	if err := json.Unmarshal([]byte(themesJSON), &b.Themes); err != nil {
		return Book{}, fmt.Errorf("decoding themes for %s: %w", b.ID, err)
	}
	var err error
	if b.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Book{}, fmt.Errorf("parsing created_at for %s: %w", b.ID, err)
	}
	if b.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Book{}, fmt.Errorf("parsing updated_at for %s: %w", b.ID, err)
	}
	return b, nil
}
