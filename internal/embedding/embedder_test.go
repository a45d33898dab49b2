package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/ook/internal/config"
)

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

func TestComposeText(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		authors     []string
		description string
		want        string
	}{
		{name: "title only", title: "Dune", want: "Dune"},
		{name: "with authors", title: "Good Omens", authors: []string{"Terry Pratchett", "Neil Gaiman"}, want: "Good Omens by Terry Pratchett, Neil Gaiman"},
		{name: "with description", title: "Dune", description: "Spice.", want: "Dune Spice."},
		{name: "everything", title: "Dune", authors: []string{"Frank Herbert"}, description: "Spice.", want: "Dune by Frank Herbert Spice."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComposeText(tt.title, tt.authors, tt.description))
		})
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, zero)
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(64)

	assert.Equal(t, 64, e.Dimension())
	assert.Equal(t, HashModel, e.Model())

	a, err := e.Embed(ctx, "Dune by Frank Herbert")
	require.NoError(t, err)
	require.Len(t, a, 64)
	assert.InDelta(t, 1.0, norm(a), 1e-5)

	again, err := e.Embed(ctx, "Dune by Frank Herbert")
	require.NoError(t, err)
	assert.Equal(t, a, again)

	empty, err := e.Embed(ctx, "  -- !! ")
	require.NoError(t, err)
	assert.Len(t, empty, 64)
	assert.Zero(t, norm(empty))
}

func TestHashEmbedderDefaultDimension(t *testing.T) {
	assert.Equal(t, 768, NewHashEmbedder(0).Dimension())
}

func TestHashEmbedderSimilarity(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(256)

	query, err := e.Embed(ctx, "desert planet spice")
	require.NoError(t, err)
	near, err := e.Embed(ctx, "Dune: a desert planet where spice is mined")
	require.NoError(t, err)
	far, err := e.Embed(ctx, "cyberpunk hackers in orbit")
	require.NoError(t, err)

	dot := func(a, b []float32) float64 {
		var s float64
		for i := range a {
			s += float64(a[i]) * float64(b[i])
		}
		return s
	}
	assert.Greater(t, dot(query, near), dot(query, far))
}

func TestNewLoader(t *testing.T) {
	ctx := context.Background()

	e, err := NewLoader(config.EmbeddingConfig{Provider: "hash", Dimension: 32})(ctx)
	require.NoError(t, err)
	assert.Equal(t, 32, e.Dimension())

	_, err = NewLoader(config.EmbeddingConfig{Provider: "bogus", Dimension: 32})(ctx)
	require.Error(t, err)

	_, err = NewLoader(config.EmbeddingConfig{Provider: "openai"})(ctx)
	require.Error(t, err)
}

func TestOpenAIEmbedder(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [{"object": "embedding", "index": 0, "embedding": [3, 0, 4]}],
			"usage": {"prompt_tokens": 3, "total_tokens": 3}
		}`))
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: server.URL + "/", APIKey: "secret", Dimension: 3})
	require.NoError(t, err)
	assert.Equal(t, defaultOpenAIModel, e.Model())

	vec, err := e.Embed(context.Background(), "Dune")
	require.NoError(t, err)
	require.Len(t, vec, 3)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[2], 1e-6)

	assert.Equal(t, "text-embedding-3-small", gotBody["model"])
	assert.EqualValues(t, 3, gotBody["dimensions"])
}

func TestOpenAIEmbedderOmitsDimensionsForOtherModels(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,0]}]}`))
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: server.URL, Model: "nomic-embed-text", Dimension: 2})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "Dune")
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", gotBody["model"])
	_, present := gotBody["dimensions"]
	assert.False(t, present)
}

func TestOpenAIEmbedderServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: server.URL, Dimension: 2})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "Dune")
	require.Error(t, err)
}

func TestMemoize(t *testing.T) {
	ctx := context.Background()
	calls := 0
	fail := true
	load := Memoize(func(context.Context) (Embedder, error) {
		calls++
		if fail {
			return nil, assert.AnError
		}
		return NewHashEmbedder(8), nil
	})

	_, err := load(ctx)
	require.ErrorIs(t, err, assert.AnError)

	fail = false
	first, err := load(ctx)
	require.NoError(t, err)
	second, err := load(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 2, calls)
}
