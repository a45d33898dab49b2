package library

import (
	"context"
	"strings"

	ookerrors "github.com/lepinkainen/ook/internal/errors"
)

// LexicalDoc is one row of the denormalized projection fed to a LexicalIndex.
type LexicalDoc struct {
	Key         string `db:"key"`
	Title       string `db:"title"`
	Authors     string `db:"authors"`
	Description string `db:"description"`
	Subjects    string `db:"subjects"`
}

// LexicalHit is a raw index hit. Lower Rank is better.
type LexicalHit struct {
	Key  string
	Rank float64
}

// FieldFilter restricts a lexical search to one field: title, author,
// description, subject or all.
type FieldFilter struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// LexicalIndex is a full-text index over the lexical projection.
type LexicalIndex interface {
	// Rebuild replaces the whole index with docs.
	Rebuild(ctx context.Context, docs []LexicalDoc) error
	// Search runs a free-text query; all terms must match.
	Search(ctx context.Context, query string, limit int) ([]LexicalHit, error)
	// SearchFields AND-s the filters together.
	SearchFields(ctx context.Context, filters []FieldFilter, limit int) ([]LexicalHit, error)
	Close() error
}

// RebuildLexicalIndex regenerates the projection from books and metadata and
// reindexes it. Metadata writes never trigger this on their own.
func (s *Store) RebuildLexicalIndex(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return ookerrors.NewStoreError("begin lexical rebuild", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM lexical_content`); err != nil {
		return ookerrors.NewStoreError("clear lexical projection", err)
	}

	var rows []struct {
		Key         string     `db:"key"`
		Title       string     `db:"title"`
		Authors     StringList `db:"authors"`
		Description string     `db:"description"`
		Subjects    StringList `db:"subjects"`
	}
	err = tx.SelectContext(ctx, &rows, `SELECT b.key, b.title, b.authors,
			COALESCE(m.description, '') AS description,
			COALESCE(m.subjects, '[]') AS subjects
		FROM books b
		LEFT JOIN metadata m ON b.key = m.key
		ORDER BY b.key`)
	if err != nil {
		return ookerrors.NewStoreError("select lexical projection", err)
	}

	docs := make([]LexicalDoc, len(rows))
	for i, r := range rows {
		docs[i] = LexicalDoc{
			Key:         r.Key,
			Title:       r.Title,
			Authors:     strings.Join(r.Authors, ", "),
			Description: r.Description,
			Subjects:    strings.Join(r.Subjects, ", "),
		}
	}

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO lexical_content (key, title, authors, description, subjects)
		VALUES (:key, :title, :authors, :description, :subjects)`)
	if err != nil {
		return ookerrors.NewStoreError("prepare lexical projection", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, doc := range docs {
		if _, err := stmt.ExecContext(ctx, doc); err != nil {
			return ookerrors.NewStoreError("insert lexical projection", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return ookerrors.NewStoreError("commit lexical projection", err)
	}

	if err := s.lexical.Rebuild(ctx, docs); err != nil {
		return ookerrors.NewStoreError("rebuild lexical index", err)
	}
	return nil
}

// SearchLexical returns books matching query, best first.
func (s *Store) SearchLexical(ctx context.Context, query string, limit int) ([]LexicalResult, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	hits, err := s.lexical.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return s.joinHits(ctx, hits)
}

// SearchFiltered returns books matching every filter, best first.
func (s *Store) SearchFiltered(ctx context.Context, filters []FieldFilter, limit int) ([]LexicalResult, error) {
	filters = nonEmptyFilters(filters)
	if len(filters) == 0 || limit <= 0 {
		return nil, nil
	}
	hits, err := s.lexical.SearchFields(ctx, filters, limit)
	if err != nil {
		return nil, err
	}
	return s.joinHits(ctx, hits)
}

func (s *Store) joinHits(ctx context.Context, hits []LexicalHit) ([]LexicalResult, error) {
	keys := make([]string, len(hits))
	rank := make(map[string]float64, len(hits))
	for i, h := range hits {
		keys[i] = h.Key
		rank[h.Key] = h.Rank
	}

	records, err := s.recordsByKey(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]LexicalResult, len(records))
	for i, rec := range records {
		r := rank[rec.Key]
		out[i] = LexicalResult{Record: rec, Rank: r, Score: -r}
	}
	return out, nil
}

// ParseFilters splits a query like `author:le guin subject:fantasy` into
// field filters. Text before the first prefix searches all fields.
func ParseFilters(query string) []FieldFilter {
	var (
		out     []FieldFilter
		current = FieldFilter{Field: "all"}
		words   []string
	)
	flush := func() {
		if len(words) > 0 {
			current.Value = strings.Join(words, " ")
			out = append(out, current)
		}
		words = nil
	}

	for _, tok := range strings.Fields(query) {
		if field, value, ok := strings.Cut(tok, ":"); ok && isFilterField(field) {
			flush()
			current = FieldFilter{Field: strings.ToLower(field)}
			if value != "" {
				words = append(words, value)
			}
			continue
		}
		words = append(words, tok)
	}
	flush()
	return out
}

// HasFieldPrefix reports whether query uses any field: prefix.
func HasFieldPrefix(query string) bool {
	for _, f := range ParseFilters(query) {
		if f.Field != "all" {
			return true
		}
	}
	return false
}

func isFilterField(field string) bool {
	switch strings.ToLower(field) {
	case "title", "author", "description", "subject":
		return true
	}
	return false
}

func nonEmptyFilters(filters []FieldFilter) []FieldFilter {
	out := filters[:0:0]
	for _, f := range filters {
		if strings.TrimSpace(f.Value) != "" {
			out = append(out, f)
		}
	}
	return out
}
