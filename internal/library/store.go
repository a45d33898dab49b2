// Package library is the primary store for the catalog: books, enrichment
// metadata, embeddings and the lexical projection, all in one SQLite file.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	ookerrors "github.com/lepinkainen/ook/internal/errors"
)

// DefaultDimension is the embedding length used when no option overrides it.
const DefaultDimension = 768

// Store persists the catalog. Every mutating call commits on its own.
type Store struct {
	db      *sqlx.DB
	path    string
	dim     int
	metric  Metric
	lexical LexicalIndex
}

// Option configures a Store.
type Option func(*Store)

// WithDimension sets the embedding dimension D enforced on writes and queries.
func WithDimension(d int) Option {
	return func(s *Store) {
		if d > 0 {
			s.dim = d
		}
	}
}

// WithMetric sets the vector distance metric.
func WithMetric(m Metric) Option {
	return func(s *Store) {
		if m != "" {
			s.metric = m
		}
	}
}

// WithLexicalIndex replaces the default FTS5 lexical index.
func WithLexicalIndex(idx LexicalIndex) Option {
	return func(s *Store) {
		s.lexical = idx
	}
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ookerrors.NewStoreError("create database directory", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)&_pragma=foreign_keys(1)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, ookerrors.NewStoreError("open database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, ookerrors.NewStoreError("ping database", err)
	}

	if err := runMigrations(db.DB); err != nil {
		_ = db.Close()
		return nil, ookerrors.NewStoreError("migrate", err)
	}

	s := &Store{
		db:     db,
		path:   path,
		dim:    DefaultDimension,
		metric: MetricCosine,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.lexical == nil {
		s.lexical = NewFTSIndex(db)
	}

	slog.Debug("Opened library database", "path", path, "dimension", s.dim, "metric", s.metric)
	return s, nil
}

// Dimension returns the enforced embedding dimension.
func (s *Store) Dimension() int {
	return s.dim
}

// Metric returns the configured vector distance metric.
func (s *Store) Metric() Metric {
	return s.metric
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close releases the lexical index and the database connection.
func (s *Store) Close() error {
	var lexErr error
	if s.lexical != nil {
		lexErr = s.lexical.Close()
	}
	if err := s.db.Close(); err != nil {
		return ookerrors.NewStoreError("close database", err)
	}
	return lexErr
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
