package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// FTSIndex is the SQLite FTS5 lexical index. It is an external-content table
// over lexical_content, so Rebuild only has to reindex what the store wrote.
type FTSIndex struct {
	db *sqlx.DB
}

// NewFTSIndex returns an FTS5 index on db. The tables are created by migrations.
func NewFTSIndex(db *sqlx.DB) *FTSIndex {
	return &FTSIndex{db: db}
}

// Rebuild reindexes lexical_content. docs is ignored.
func (f *FTSIndex) Rebuild(ctx context.Context, _ []LexicalDoc) error {
	if _, err := f.db.ExecContext(ctx, `INSERT INTO lexical_fts(lexical_fts) VALUES('rebuild')`); err != nil {
		return fmt.Errorf("failed to rebuild fts index: %w", err)
	}
	return nil
}

// Search ranks with bm25, lower is better.
func (f *FTSIndex) Search(ctx context.Context, query string, limit int) ([]LexicalHit, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = quoteFTS(t)
	}
	return f.match(ctx, strings.Join(parts, " "), limit)
}

// SearchFields builds an FTS5 column-filter expression. Author values are
// split into words because name parts are not adjacent in "Last, First" forms.
func (f *FTSIndex) SearchFields(ctx context.Context, filters []FieldFilter, limit int) ([]LexicalHit, error) {
	expr := FTSFilterExpression(filters)
	if expr == "" {
		return nil, nil
	}
	return f.match(ctx, expr, limit)
}

// FTSFilterExpression renders filters as an FTS5 MATCH expression.
func FTSFilterExpression(filters []FieldFilter) string {
	var parts []string
	for _, flt := range filters {
		value := strings.TrimSpace(flt.Value)
		if value == "" {
			continue
		}
		switch strings.ToLower(flt.Field) {
		case "author":
			for _, word := range strings.Fields(value) {
				parts = append(parts, "authors:"+quoteFTS(word))
			}
		case "title":
			parts = append(parts, "title:"+quoteFTS(value))
		case "description":
			parts = append(parts, "description:"+quoteFTS(value))
		case "subject":
			parts = append(parts, "subjects:"+quoteFTS(value))
		default:
			parts = append(parts, quoteFTS(value))
		}
	}
	return strings.Join(parts, " ")
}

func (f *FTSIndex) match(ctx context.Context, expr string, limit int) ([]LexicalHit, error) {
	var rows []struct {
		Key  string  `db:"key"`
		Rank float64 `db:"bm25_rank"`
	}
	err := f.db.SelectContext(ctx, &rows, `SELECT c.key AS key, bm25(lexical_fts) AS bm25_rank
		FROM lexical_fts
		JOIN lexical_content c ON c.rowid = lexical_fts.rowid
		WHERE lexical_fts MATCH ?
		ORDER BY bm25_rank, c.key
		LIMIT ?`, expr, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("fts query %q: %w", expr, err)
	}

	hits := make([]LexicalHit, len(rows))
	for i, r := range rows {
		hits[i] = LexicalHit{Key: r.Key, Rank: r.Rank}
	}
	return hits, nil
}

// Close is a no-op; the database is owned by the Store.
func (f *FTSIndex) Close() error {
	return nil
}

func quoteFTS(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
