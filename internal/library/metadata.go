package library

import (
	"context"
	"sort"
	"time"

	ookerrors "github.com/lepinkainen/ook/internal/errors"
)

// MaxSubjects caps the number of subjects kept per book.
const MaxSubjects = 20

// UpsertMetadata inserts or replaces the metadata row for key. It does not
// touch the embedding or the lexical index.
func (s *Store) UpsertMetadata(ctx context.Context, key string, md Metadata) error {
	if len(md.Subjects) > MaxSubjects {
		md.Subjects = md.Subjects[:MaxSubjects]
	}
	if md.EnrichedAt.IsZero() {
		md.EnrichedAt = time.Now().UTC()
	}

	// ON CONFLICT DO UPDATE keeps the row so the embedding foreign key is not cascaded.
	_, err := s.db.ExecContext(ctx, `INSERT INTO metadata
			(key, source_key, description, subjects, isbn, publish_year, enriched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			source_key = excluded.source_key,
			description = excluded.description,
			subjects = excluded.subjects,
			isbn = excluded.isbn,
			publish_year = excluded.publish_year,
			enriched_at = excluded.enriched_at`,
		key, md.SourceKey, md.Description, md.Subjects, md.ISBN, md.PublishYear, md.EnrichedAt)
	if err != nil {
		return ookerrors.NewStoreError("upsert metadata", err)
	}
	return nil
}

// MetadataWithoutEmbedding returns enriched books that have no embedding yet,
// in key order. A limit <= 0 returns all of them.
func (s *Store) MetadataWithoutEmbedding(ctx context.Context, limit int) ([]EmbedCandidate, error) {
	query := `SELECT b.key, b.title, b.authors, m.description
		FROM books b
		JOIN metadata m ON b.key = m.key
		LEFT JOIN embeddings e ON b.key = e.key
		WHERE e.key IS NULL
		ORDER BY b.key
		LIMIT ?`

	var out []EmbedCandidate
	if err := s.db.SelectContext(ctx, &out, query, sqlLimit(limit)); err != nil {
		return nil, ookerrors.NewStoreError("select metadata without embedding", err)
	}
	return out, nil
}

// Subjects returns the sorted set of distinct subjects across all metadata.
func (s *Store) Subjects(ctx context.Context) ([]string, error) {
	var lists []StringList
	err := s.db.SelectContext(ctx, &lists,
		`SELECT DISTINCT subjects FROM metadata WHERE subjects != '[]'`)
	if err != nil {
		return nil, ookerrors.NewStoreError("select subjects", err)
	}

	seen := make(map[string]struct{})
	for _, l := range lists {
		for _, subject := range l {
			seen[subject] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for subject := range seen {
		out = append(out, subject)
	}
	sort.Strings(out)
	return out, nil
}

// Reset deletes all metadata, embeddings and the lexical projection so the
// next sync re-enriches every book. Books are kept.
func (s *Store) Reset(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, ookerrors.NewStoreError("begin reset", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
		return 0, ookerrors.NewStoreError("clear embeddings", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM metadata`)
	if err != nil {
		return 0, ookerrors.NewStoreError("clear metadata", err)
	}
	cleared, _ := res.RowsAffected()
	if _, err := tx.ExecContext(ctx, `DELETE FROM lexical_content`); err != nil {
		return 0, ookerrors.NewStoreError("clear lexical projection", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, ookerrors.NewStoreError("commit reset", err)
	}

	if err := s.lexical.Rebuild(ctx, nil); err != nil {
		return 0, ookerrors.NewStoreError("rebuild lexical index", err)
	}
	return int(cleared), nil
}
