// Package openlibrary provides a client for the OpenLibrary search and works APIs.
package openlibrary

import (
	"net/http"
	"strings"
	"time"

	"github.com/lepinkainen/ook/internal/cache"
	"github.com/lepinkainen/ook/internal/ratelimit"
)

const (
	defaultBaseURL   = "https://openlibrary.org"
	defaultUserAgent = "ook/1.0 (+https://github.com/lepinkainen/ook)"
	defaultTimeout   = 10 * time.Second
	// SearchLimit is the number of candidates requested per search.
	SearchLimit = 5
	// SearchFields is the field projection requested from /search.json.
	SearchFields = "key,title,author_name,subject,isbn,first_publish_year"
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is an OpenLibrary API client. It does not retry; callers own the
// backoff policy.
type Client struct {
	baseURL     string
	userAgent   string
	httpClient  HTTPDoer
	rateLimiter *ratelimit.Limiter
	cache       *cache.CacheDB
}

// NewClient creates a new OpenLibrary client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithBaseURL sets a custom base URL for the OpenLibrary API.
func WithBaseURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) Option {
	return func(client *Client) {
		if ua != "" {
			client.userAgent = ua
		}
	}
}

// WithRateLimiter paces outgoing requests.
func WithRateLimiter(limiter *ratelimit.Limiter) Option {
	return func(client *Client) {
		client.rateLimiter = limiter
	}
}

// WithCache stores successful responses in c.
func WithCache(c *cache.CacheDB) Option {
	return func(client *Client) {
		client.cache = c
	}
}
