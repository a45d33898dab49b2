// Package search exposes lexical and vector retrieval over the library.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/lepinkainen/ook/internal/embedding"
	"github.com/lepinkainen/ook/internal/library"
)

// DefaultLimit is used when a caller passes a non-positive limit.
const DefaultLimit = 10

// Index is the read side of library.Store.
type Index interface {
	SearchLexical(ctx context.Context, query string, limit int) ([]library.LexicalResult, error)
	SearchFiltered(ctx context.Context, filters []library.FieldFilter, limit int) ([]library.LexicalResult, error)
	SearchVector(ctx context.Context, vector []float32, limit int) ([]library.VectorResult, error)
}

// Searcher answers lexical and semantic queries. Semantic queries are
// embedded with the same Embedder the sync pipeline uses.
type Searcher struct {
	index  Index
	loader embedding.Loader
}

// New creates a Searcher.
func New(index Index, loader embedding.Loader) *Searcher {
	return &Searcher{index: index, loader: loader}
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// Lexical runs a keyword query against the lexical index.
func (s *Searcher) Lexical(ctx context.Context, query string, limit int) ([]library.LexicalResult, error) {
	return s.index.SearchLexical(ctx, query, limitOrDefault(limit))
}

// Keyword routes queries with field prefixes (author:, subject: ...) to a
// filtered search and everything else to Lexical.
func (s *Searcher) Keyword(ctx context.Context, query string, limit int) ([]library.LexicalResult, error) {
	if library.HasFieldPrefix(query) {
		return s.index.SearchFiltered(ctx, library.ParseFilters(query), limitOrDefault(limit))
	}
	return s.Lexical(ctx, query, limit)
}

// Vector returns the nearest books to vector.
func (s *Searcher) Vector(ctx context.Context, vector []float32, limit int) ([]library.VectorResult, error) {
	return s.index.SearchVector(ctx, vector, limitOrDefault(limit))
}

// Semantic embeds query and runs a vector search.
func (s *Searcher) Semantic(ctx context.Context, query string, limit int) ([]library.VectorResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	embedder, err := s.loader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedder: %w", err)
	}
	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.Vector(ctx, vec, limit)
}
