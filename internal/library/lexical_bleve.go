package library

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// BleveIndex is a lexical index backed by bleve. An empty path keeps the
// index in memory.
type BleveIndex struct {
	mu    sync.RWMutex
	path  string
	index bleve.Index
}

type bleveDoc struct {
	Title       string `json:"title"`
	Authors     string `json:"authors"`
	Description string `json:"description"`
	Subjects    string `json:"subjects"`
}

// OpenBleveIndex opens the index at path, creating it when missing.
func OpenBleveIndex(path string) (*BleveIndex, error) {
	b := &BleveIndex{path: path}
	if path != "" {
		if idx, err := bleve.Open(path); err == nil {
			b.index = idx
			return b, nil
		}
	}
	idx, err := b.create()
	if err != nil {
		return nil, err
	}
	b.index = idx
	return b, nil
}

func newBleveMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName

	doc := bleve.NewDocumentMapping()
	for _, field := range []string{"title", "authors", "description", "subjects"} {
		doc.AddFieldMappingsAt(field, text)
	}

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = en.AnalyzerName
	return m
}

func (b *BleveIndex) create() (bleve.Index, error) {
	if b.path == "" {
		idx, err := bleve.NewMemOnly(newBleveMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory bleve index: %w", err)
		}
		return idx, nil
	}
	if err := os.RemoveAll(b.path); err != nil {
		return nil, fmt.Errorf("failed to remove bleve index: %w", err)
	}
	idx, err := bleve.New(b.path, newBleveMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return idx, nil
}

// Rebuild drops the index and indexes docs from scratch.
func (b *BleveIndex) Rebuild(ctx context.Context, docs []LexicalDoc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index != nil {
		if err := b.index.Close(); err != nil {
			return fmt.Errorf("failed to close bleve index: %w", err)
		}
		b.index = nil
	}
	idx, err := b.create()
	if err != nil {
		return err
	}
	b.index = idx

	batch := idx.NewBatch()
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(d.Key, bleveDoc{
			Title:       d.Title,
			Authors:     d.Authors,
			Description: d.Description,
			Subjects:    d.Subjects,
		}); err != nil {
			return fmt.Errorf("failed to index %q: %w", d.Key, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("failed to write bleve batch: %w", err)
	}
	return nil
}

// Search requires every term to match somewhere in the document.
func (b *BleveIndex) Search(ctx context.Context, q string, limit int) ([]LexicalHit, error) {
	terms := strings.Fields(q)
	if len(terms) == 0 {
		return nil, nil
	}
	mq := bleve.NewMatchQuery(strings.Join(terms, " "))
	mq.SetOperator(query.MatchQueryOperatorAnd)
	return b.run(ctx, mq, limit)
}

// SearchFields AND-s one query per filter.
func (b *BleveIndex) SearchFields(ctx context.Context, filters []FieldFilter, limit int) ([]LexicalHit, error) {
	var parts []query.Query
	for _, f := range filters {
		value := strings.TrimSpace(f.Value)
		if value == "" {
			continue
		}
		switch strings.ToLower(f.Field) {
		case "author":
			for _, word := range strings.Fields(value) {
				mq := bleve.NewMatchQuery(word)
				mq.SetField("authors")
				parts = append(parts, mq)
			}
		case "title", "description":
			pq := bleve.NewMatchPhraseQuery(value)
			pq.SetField(strings.ToLower(f.Field))
			parts = append(parts, pq)
		case "subject":
			pq := bleve.NewMatchPhraseQuery(value)
			pq.SetField("subjects")
			parts = append(parts, pq)
		default:
			parts = append(parts, bleve.NewMatchPhraseQuery(value))
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return b.run(ctx, bleve.NewConjunctionQuery(parts...), limit)
}

func (b *BleveIndex) run(ctx context.Context, q query.Query, limit int) ([]LexicalHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// A failed Rebuild leaves no index until the next successful one.
	if b.index == nil {
		return nil, fmt.Errorf("bleve search: index is not open")
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	hits := make([]LexicalHit, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = LexicalHit{Key: h.ID, Rank: -h.Score}
	}
	return hits, nil
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}
