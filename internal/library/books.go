package library

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	ookerrors "github.com/lepinkainen/ook/internal/errors"
)

// recordRow is the flat shape of books LEFT JOIN metadata.
type recordRow struct {
	Book
	SourceKey    sql.NullString `db:"source_key"`
	Description  sql.NullString `db:"description"`
	Subjects     StringList     `db:"subjects"`
	ISBN         sql.NullString `db:"isbn"`
	PublishYear  *int           `db:"publish_year"`
	EnrichedAt   sql.NullTime   `db:"enriched_at"`
	HasEmbedding bool           `db:"has_embedding"`
}

func (r recordRow) record() Record {
	rec := Record{Book: r.Book, HasEmbedding: r.HasEmbedding}
	if r.EnrichedAt.Valid {
		rec.Metadata = &Metadata{
			SourceKey:   r.SourceKey.String,
			Description: r.Description.String,
			Subjects:    r.Subjects,
			ISBN:        r.ISBN.String,
			PublishYear: r.PublishYear,
			EnrichedAt:  r.EnrichedAt.Time,
		}
	}
	return rec
}

const recordColumns = `b.key, b.title, b.authors, b.cover_url, b.percent_read,
	b.resource_type, b.origin_type, b.created_at,
	m.source_key, m.description, m.subjects, m.isbn, m.publish_year, m.enriched_at,
	EXISTS (SELECT 1 FROM embeddings e WHERE e.key = b.key) AS has_embedding`

// InsertBooks inserts books whose key is not yet present and returns how many
// were new. Existing rows are left untouched.
func (s *Store) InsertBooks(ctx context.Context, books []Book) (int, error) {
	if len(books) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, ookerrors.NewStoreError("begin insert books", err)
	}
	defer func() {
		// Rollback after commit is a no-op
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT OR IGNORE INTO books
		(key, title, authors, cover_url, percent_read, resource_type, origin_type, created_at)
		VALUES (:key, :title, :authors, :cover_url, :percent_read, :resource_type, :origin_type, :created_at)`)
	if err != nil {
		return 0, ookerrors.NewStoreError("prepare insert books", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	inserted := 0
	for _, b := range books {
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		res, err := stmt.ExecContext(ctx, b)
		if err != nil {
			return 0, ookerrors.NewStoreError(fmt.Sprintf("insert book %q", b.Key), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, ookerrors.NewStoreError("insert books rows affected", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, ookerrors.NewStoreError("commit insert books", err)
	}
	return inserted, nil
}

// BooksWithoutMetadata returns books that have never been enriched, in key
// order. A limit <= 0 returns all of them.
func (s *Store) BooksWithoutMetadata(ctx context.Context, limit int) ([]Book, error) {
	query := `SELECT b.key, b.title, b.authors, b.cover_url, b.percent_read,
			b.resource_type, b.origin_type, b.created_at
		FROM books b
		LEFT JOIN metadata m ON b.key = m.key
		WHERE m.key IS NULL
		ORDER BY b.key
		LIMIT ?`

	var books []Book
	if err := s.db.SelectContext(ctx, &books, query, sqlLimit(limit)); err != nil {
		return nil, ookerrors.NewStoreError("select books without metadata", err)
	}
	return books, nil
}

// Record returns a single book with its metadata, or ErrNotFound.
func (s *Store) Record(ctx context.Context, key string) (*Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM books b
		LEFT JOIN metadata m ON b.key = m.key
		WHERE b.key = ?`

	var row recordRow
	err := s.db.GetContext(ctx, &row, query, key)
	if isNoRows(err) {
		return nil, fmt.Errorf("book %q: %w", key, ookerrors.ErrNotFound)
	}
	if err != nil {
		return nil, ookerrors.NewStoreError("get record", err)
	}
	rec := row.record()
	return &rec, nil
}

// ListBooks returns one page of the catalog.
func (s *Store) ListBooks(ctx context.Context, opts ListOptions) ([]Record, error) {
	query := fmt.Sprintf(`SELECT %s
		FROM books b
		LEFT JOIN metadata m ON b.key = m.key
		ORDER BY %s
		LIMIT ? OFFSET ?`, recordColumns, orderClause(opts.SortBy, opts.Desc))

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, query, sqlLimit(opts.Limit), max(opts.Offset, 0)); err != nil {
		return nil, ookerrors.NewStoreError("list books", err)
	}
	return toRecords(rows), nil
}

// CountBooks returns the number of books in the catalog.
func (s *Store) CountBooks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM books`); err != nil {
		return 0, ookerrors.NewStoreError("count books", err)
	}
	return n, nil
}

// Stats returns catalog counters.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	query := `SELECT
		(SELECT COUNT(*) FROM books) AS total_books,
		(SELECT COUNT(*) FROM metadata WHERE description != '') AS enriched,
		(SELECT COUNT(*) FROM metadata) AS with_metadata,
		(SELECT COUNT(*) FROM embeddings) AS with_embeddings`

	var st Stats
	if err := s.db.GetContext(ctx, &st, query); err != nil {
		return Stats{}, ookerrors.NewStoreError("stats", err)
	}
	return st, nil
}

// recordsByKey loads records for keys and returns them in the order of keys.
// Keys without a book row are dropped.
func (s *Store) recordsByKey(ctx context.Context, keys []string) ([]Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+recordColumns+`
		FROM books b
		LEFT JOIN metadata m ON b.key = m.key
		WHERE b.key IN (?)`, keys)
	if err != nil {
		return nil, ookerrors.NewStoreError("build record query", err)
	}

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, ookerrors.NewStoreError("select records", err)
	}

	byKey := make(map[string]Record, len(rows))
	for _, r := range rows {
		byKey[r.Key] = r.record()
	}
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		if rec, ok := byKey[k]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func toRecords(rows []recordRow) []Record {
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out
}

func orderClause(sortBy string, desc bool) string {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	switch sortBy {
	case "author":
		return fmt.Sprintf("json_extract(b.authors, '$[0]') %s, b.key", dir)
	case "year":
		return fmt.Sprintf("m.publish_year %s NULLS LAST, b.key", dir)
	default:
		return fmt.Sprintf("b.title COLLATE NOCASE %s, b.key", dir)
	}
}

// sqlLimit maps "no limit" onto SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
