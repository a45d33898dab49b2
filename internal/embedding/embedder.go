// Package embedding turns book text into fixed-length, L2-normalized vectors.
package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/lepinkainen/ook/internal/config"
)

// Embedder produces deterministic vectors of length Dimension().
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Model() string
}

// Loader constructs an Embedder. It is called at most once per embed stage
// and only when there is work to do.
type Loader func(ctx context.Context) (Embedder, error)

// Static returns a Loader that always yields e.
func Static(e Embedder) Loader {
	return func(context.Context) (Embedder, error) {
		return e, nil
	}
}

// Memoize wraps load so the first successful Embedder is reused by every
// later call. Failed loads are retried on the next call.
func Memoize(load Loader) Loader {
	var (
		mu     sync.Mutex
		cached Embedder
	)
	return func(ctx context.Context) (Embedder, error) {
		mu.Lock()
		defer mu.Unlock()
		if cached != nil {
			return cached, nil
		}
		e, err := load(ctx)
		if err != nil {
			return nil, err
		}
		cached = e
		return e, nil
	}
}

// NewLoader returns a Loader for the configured provider.
func NewLoader(cfg config.EmbeddingConfig) Loader {
	return func(ctx context.Context) (Embedder, error) {
		switch cfg.Provider {
		case "", "hash":
			return NewHashEmbedder(cfg.Dimension), nil
		case "openai":
			return NewOpenAIEmbedder(OpenAIConfig{
				BaseURL:   cfg.BaseURL,
				APIKey:    cfg.APIKey,
				Model:     cfg.Model,
				Dimension: cfg.Dimension,
			})
		default:
			return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
		}
	}
}

// ComposeText builds the embedding input: the title, then " by " and the
// comma-joined authors if any, then a space and the description if non-empty.
func ComposeText(title string, authors []string, description string) string {
	var b strings.Builder
	b.WriteString(title)
	if len(authors) > 0 {
		b.WriteString(" by ")
		b.WriteString(strings.Join(authors, ", "))
	}
	if description != "" {
		b.WriteString(" ")
		b.WriteString(description)
	}
	return b.String()
}

// normEpsilon is the norm below which a vector is treated as zero.
const normEpsilon = 1e-12

// Normalize scales v to unit L2 norm in place. A vector with norm ≈ 0 is
// returned as all zeros.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	norm := math.Sqrt(sum)
	if norm < normEpsilon {
		for i := range v {
			v[i] = 0
		}
		return v
	}
	for i, f := range v {
		v[i] = float32(float64(f) / norm)
	}
	return v
}
