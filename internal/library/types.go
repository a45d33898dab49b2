package library

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList is an ordered list of strings persisted as a JSON array column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode string list: %w", err)
	}
	*l = out
	return nil
}

// Book is a library entry. Rows are created by import only and never overwritten.
type Book struct {
	Key          string     `db:"key" json:"key"`
	Title        string     `db:"title" json:"title"`
	Authors      StringList `db:"authors" json:"authors"`
	CoverURL     string     `db:"cover_url" json:"cover_url,omitempty"`
	PercentRead  int        `db:"percent_read" json:"percent_read"`
	ResourceType string     `db:"resource_type" json:"resource_type,omitempty"`
	OriginType   string     `db:"origin_type" json:"origin_type,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Metadata is the enrichment result for one book. An empty row records a
// completed attempt that found nothing.
type Metadata struct {
	SourceKey   string     `db:"source_key" json:"source_key,omitempty"`
	Description string     `db:"description" json:"description,omitempty"`
	Subjects    StringList `db:"subjects" json:"subjects,omitempty"`
	ISBN        string     `db:"isbn" json:"isbn,omitempty"`
	PublishYear *int       `db:"publish_year" json:"publish_year,omitempty"`
	EnrichedAt  time.Time  `db:"enriched_at" json:"enriched_at"`
}

// Record is a book joined with its optional metadata.
type Record struct {
	Book
	Metadata     *Metadata `json:"metadata,omitempty"`
	HasEmbedding bool      `json:"has_embedding"`
}

// EmbedCandidate is a book with metadata but no embedding yet.
type EmbedCandidate struct {
	Key         string     `db:"key"`
	Title       string     `db:"title"`
	Authors     StringList `db:"authors"`
	Description string     `db:"description"`
}

// LexicalResult is a lexical search hit. Rank is the backend rank, lower is
// better; Score is its negation.
type LexicalResult struct {
	Record
	Rank  float64 `json:"rank"`
	Score float64 `json:"score"`
}

// VectorResult is a vector search hit ordered by ascending Distance.
type VectorResult struct {
	Record
	Distance float64 `json:"distance"`
}

// Stats summarizes the catalog.
type Stats struct {
	TotalBooks     int `db:"total_books" json:"total_books"`
	Enriched       int `db:"enriched" json:"enriched"`
	WithMetadata   int `db:"with_metadata" json:"with_metadata"`
	WithEmbeddings int `db:"with_embeddings" json:"with_embeddings"`
}

// ListOptions controls paging and ordering for ListBooks.
type ListOptions struct {
	Limit  int
	Offset int
	SortBy string // title, author, year
	Desc   bool
}
