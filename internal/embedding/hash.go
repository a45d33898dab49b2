package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashModel names the local feature-hashing model.
const HashModel = "hash-v1"

// HashEmbedder is a local embedder using signed feature hashing over word
// unigrams and bigrams. It needs no network and is fully deterministic.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a HashEmbedder producing vectors of length dim.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 768
	}
	return &HashEmbedder{dim: dim}
}

// Dimension returns the vector length.
func (h *HashEmbedder) Dimension() int { return h.dim }

// Model returns HashModel.
func (h *HashEmbedder) Model() string { return HashModel }

// Embed hashes the tokens of text into a normalized vector. Text without any
// word characters yields the zero vector.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, h.dim)
	tokens := tokenize(text)
	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	return Normalize(vec), nil
}

func (h *HashEmbedder) add(vec []float32, feature string, weight float32) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()

	idx := sum % uint64(h.dim)
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
