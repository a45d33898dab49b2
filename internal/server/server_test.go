package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/ook/internal/embedding"
	"github.com/lepinkainen/ook/internal/enrichment"
	"github.com/lepinkainen/ook/internal/library"
	"github.com/lepinkainen/ook/internal/openlibrary"
	"github.com/lepinkainen/ook/internal/pipeline"
	"github.com/lepinkainen/ook/internal/search"
)

const dim = 32

type stubSource struct{}

func (stubSource) Search(_ context.Context, title, _ string) ([]openlibrary.SearchDoc, error) {
	if title == "Dune" {
		return []openlibrary.SearchDoc{{Key: "/works/OL1W", Subject: []string{"Science fiction", "Deserts"}}}, nil
	}
	return nil, nil
}

func (stubSource) Work(_ context.Context, workKey string) (*openlibrary.Work, error) {
	return &openlibrary.Work{Key: workKey, Description: openlibrary.Description("Spice and sandworms on a desert planet.")}, nil
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newTestServer(t *testing.T) (*Server, *library.Store) {
	t.Helper()
	ctx := context.Background()

	store, err := library.Open(ctx, filepath.Join(t.TempDir(), "ook.db"), library.WithDimension(dim))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.InsertBooks(ctx, []library.Book{
		{Key: "B001", Title: "Dune", Authors: library.StringList{"Frank Herbert"}},
		{Key: "B002", Title: "Neuromancer", Authors: library.StringList{"William Gibson"}},
	})
	require.NoError(t, err)

	loader := embedding.Static(embedding.NewHashEmbedder(dim))
	enricher := enrichment.New(stubSource{}, store, enrichment.WithRequestDelay(0), enrichment.WithSleep(noSleep))
	orch := pipeline.New(store, enricher, loader, pipeline.WithBookDelay(0), pipeline.WithSleep(noSleep))

	return New(store, search.New(store, loader), orch), store
}

func syncAll(t *testing.T, srv *Server) {
	t.Helper()
	_, err := srv.orch.Run(context.Background(), pipeline.RunOptions{}, nil)
	require.NoError(t, err)
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStats(t *testing.T) {
	srv, _ := newTestServer(t)
	syncAll(t, srv)

	rec := get(t, srv, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var stats library.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, library.Stats{TotalBooks: 2, Enriched: 1, WithMetadata: 2, WithEmbeddings: 2}, stats)
}

func TestSearch(t *testing.T) {
	srv, _ := newTestServer(t)
	syncAll(t, srv)

	rec := get(t, srv, "/api/search?q=sandworms")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse[library.LexicalResult]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sandworms", resp.Query)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "B001", resp.Results[0].Key)

	rec = get(t, srv, "/api/search?q=author:gibson")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "B002", resp.Results[0].Key)

	rec = get(t, srv, "/api/search?q=nothing-matches-this")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"query":"nothing-matches-this","count":0,"results":[]}`, rec.Body.String())
}

func TestSearchBadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/api/search?q=dune&limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSemantic(t *testing.T) {
	srv, _ := newTestServer(t)
	syncAll(t, srv)

	rec := get(t, srv, "/api/semantic?q=desert+planet+spice&limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse[library.VectorResult]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "B001", resp.Results[0].Key)
	assert.LessOrEqual(t, resp.Results[0].Distance, resp.Results[1].Distance)
}

func TestBooks(t *testing.T) {
	srv, _ := newTestServer(t)
	syncAll(t, srv)

	rec := get(t, srv, "/api/books?sort=title&order=desc")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []library.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "Neuromancer", records[0].Title)

	rec = get(t, srv, "/api/books?sort=isbn")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, srv, "/api/books/B001")
	require.Equal(t, http.StatusOK, rec.Code)
	var book library.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &book))
	require.NotNil(t, book.Metadata)
	assert.Equal(t, "/works/OL1W", book.Metadata.SourceKey)
	assert.True(t, book.HasEmbedding)

	rec = get(t, srv, "/api/books/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubjects(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/api/subjects")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	syncAll(t, srv)
	rec = get(t, srv, "/api/subjects")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["Deserts","Science fiction"]`, rec.Body.String())
}

func TestSyncStreamsEvents(t *testing.T) {
	srv, store := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/sync", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var events []pipeline.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var ev pipeline.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, pipeline.KindDone, last.Kind)
	require.NotNil(t, last.Summary)
	assert.Equal(t, pipeline.Summary{Attempted: 2, Enriched: 1, Embedded: 2}, *last.Summary)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.WithEmbeddings)
}

func TestSyncConflict(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.syncing.Store(true)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
