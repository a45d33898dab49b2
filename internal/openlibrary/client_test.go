package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/ook/internal/cache"
	ookerrors "github.com/lepinkainen/ook/internal/errors"
	"github.com/lepinkainen/ook/internal/ratelimit"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithBaseURL(server.URL), WithHTTPClient(server.Client())}, opts...)
	return NewClient(opts...)
}

func TestClientOptionsApply(t *testing.T) {
	customHTTP := &http.Client{}
	limiter := ratelimit.NewEvery("OpenLibrary", time.Second)

	client := NewClient(
		WithBaseURL("https://example.test/"),
		WithHTTPClient(customHTTP),
		WithUserAgent("test-agent/1.0"),
		WithRateLimiter(limiter),
	)

	require.Equal(t, "https://example.test", client.baseURL)
	require.Equal(t, customHTTP, client.httpClient)
	require.Equal(t, "test-agent/1.0", client.userAgent)
	require.Equal(t, limiter, client.rateLimiter)
}

func TestSearchSendsQueryAndUserAgent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "Dune", r.URL.Query().Get("title"))
		assert.Equal(t, "Frank Herbert", r.URL.Query().Get("author"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, SearchFields, r.URL.Query().Get("fields"))
		assert.Equal(t, "ook-test", r.Header.Get("User-Agent"))

		_, _ = w.Write([]byte(`{"numFound":1,"docs":[{"key":"/works/OL893415W","title":"Dune",
			"author_name":["Frank Herbert"],"subject":["Science fiction"],"isbn":["9780441013593"],
			"first_publish_year":1965}]}`))
	}, WithUserAgent("ook-test"))

	docs, err := client.Search(context.Background(), "Dune", "Frank Herbert")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "/works/OL893415W", docs[0].Key)
	assert.Equal(t, []string{"9780441013593"}, docs[0].ISBN)
	assert.Equal(t, 1965, docs[0].FirstPublishYear)
}

func TestSearchOmitsEmptyAuthor(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["author"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`{"numFound":0,"docs":[]}`))
	})

	docs, err := client.Search(context.Background(), "Dune", "")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestGetJSONErrorMapping(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		header map[string]string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "rate limited with seconds",
			status: http.StatusTooManyRequests,
			header: map[string]string{"Retry-After": "7"},
			check: func(t *testing.T, err error) {
				assert.True(t, ookerrors.IsRateLimitError(err))
				assert.Equal(t, 7*time.Second, ookerrors.RetryAfterHint(err))
			},
		},
		{
			name:   "rate limited without hint",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				assert.True(t, ookerrors.IsRateLimitError(err))
				assert.Zero(t, ookerrors.RetryAfterHint(err))
			},
		},
		{
			name:   "server error",
			status: http.StatusServiceUnavailable,
			check: func(t *testing.T, err error) {
				assert.True(t, ookerrors.IsTransientError(err))
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ookerrors.ErrNotFound))
				assert.False(t, ookerrors.IsRetryable(err))
			},
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			check: func(t *testing.T, err error) {
				assert.False(t, ookerrors.IsRetryable(err))
				assert.Contains(t, err.Error(), "unexpected status 400")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
			})

			_, err := client.Work(context.Background(), "/works/OL1W")
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(WithBaseURL(url))
	_, err := client.Search(context.Background(), "Dune", "")
	require.Error(t, err)
	assert.True(t, ookerrors.IsTransientError(err))
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", time.Now().Add(90*time.Second).UTC().Format(http.TimeFormat))

	got := parseRetryAfter(resp)
	assert.Greater(t, got, 80*time.Second)
	assert.LessOrEqual(t, got, 90*time.Second)

	resp.Header.Set("Retry-After", "soon")
	assert.Zero(t, parseRetryAfter(resp))
}

func TestWorkDescriptionShapes(t *testing.T) {
	testCases := []struct {
		name string
		body string
		want string
	}{
		{name: "string", body: `{"key":"/works/OL1W","description":"A desert planet."}`, want: "A desert planet."},
		{name: "object", body: `{"key":"/works/OL1W","description":{"type":"/type/text","value":"Spice."}}`, want: "Spice."},
		{name: "missing", body: `{"key":"/works/OL1W"}`, want: ""},
		{name: "null", body: `{"key":"/works/OL1W","description":null}`, want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/works/OL1W.json", r.URL.Path)
				_, _ = w.Write([]byte(tc.body))
			})

			work, err := client.Work(context.Background(), "/works/OL1W")
			require.NoError(t, err)
			assert.Equal(t, tc.want, work.Description.String())
		})
	}
}

func TestDescriptionRejectsOtherShapes(t *testing.T) {
	var d Description
	assert.Error(t, json.Unmarshal([]byte(`42`), &d))
}

func TestClientUsesCache(t *testing.T) {
	var calls atomic.Int32
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"key":"/works/OL1W","description":{"value":"cached"}}`))
	}, WithCache(c))

	for range 3 {
		work, err := client.Work(context.Background(), "works/OL1W")
		require.NoError(t, err)
		assert.Equal(t, "cached", work.Description.String())
	}
	assert.Equal(t, int32(1), calls.Load())
}
