package openlibrary

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lepinkainen/ook/internal/cache"
)

// Search queries /search.json by title and optional author and returns up to
// SearchLimit candidates in relevance order.
func (c *Client) Search(ctx context.Context, title, author string) ([]SearchDoc, error) {
	params := url.Values{}
	params.Set("title", title)
	if author != "" {
		params.Set("author", author)
	}
	params.Set("limit", strconv.Itoa(SearchLimit))
	params.Set("fields", SearchFields)
	endpoint := fmt.Sprintf("%s/search.json?%s", c.baseURL, params.Encode())

	cacheKey := strings.ToLower(title) + "|" + strings.ToLower(author)
	docs, _, err := cache.GetOrFetchWithTTL(ctx, c.cache, cache.SourceSearch, cacheKey,
		func() ([]SearchDoc, error) {
			var resp searchResponse
			if err := c.getJSON(ctx, "search", endpoint, &resp); err != nil {
				return nil, err
			}
			if resp.Docs == nil {
				resp.Docs = []SearchDoc{}
			}
			return resp.Docs, nil
		},
		cache.SelectNegativeCacheTTL(func(docs []SearchDoc) bool { return len(docs) == 0 }))
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Work fetches a work record by its key, e.g. "/works/OL45804W".
func (c *Client) Work(ctx context.Context, workKey string) (*Work, error) {
	if !strings.HasPrefix(workKey, "/") {
		workKey = "/" + workKey
	}
	endpoint := fmt.Sprintf("%s%s.json", c.baseURL, workKey)

	work, _, err := cache.GetOrFetch(ctx, c.cache, cache.SourceWork, workKey,
		func() (*Work, error) {
			var w Work
			if err := c.getJSON(ctx, "work", endpoint, &w); err != nil {
				return nil, err
			}
			return &w, nil
		})
	if err != nil {
		return nil, err
	}
	return work, nil
}
