package openlibrary

import (
	"encoding/json"
	"fmt"
)

// SearchDoc is one candidate from /search.json.
type SearchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name,omitempty"`
	Subject          []string `json:"subject,omitempty"`
	ISBN             []string `json:"isbn,omitempty"`
	FirstPublishYear int      `json:"first_publish_year,omitempty"`
}

type searchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []SearchDoc `json:"docs"`
}

// Work is the subset of a work record used for enrichment.
type Work struct {
	Key         string      `json:"key"`
	Title       string      `json:"title"`
	Description Description `json:"description"`
	Subjects    []string    `json:"subjects,omitempty"`
}

// Description is a work description. OpenLibrary sends either a plain string
// or an object {"type": "/type/text", "value": "..."}; both decode to the text.
type Description string

// UnmarshalJSON accepts both description shapes.
func (d *Description) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = Description(s)
		return nil
	}

	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("description: expected string or object: %w", err)
	}
	*d = Description(obj.Value)
	return nil
}

// String returns the description text.
func (d Description) String() string {
	return string(d)
}
