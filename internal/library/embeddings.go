package library

import (
	"context"
	"log/slog"
	"sort"
	"time"

	ookerrors "github.com/lepinkainen/ook/internal/errors"
)

// UpsertEmbedding stores the vector for key. The vector length must equal the
// store dimension and the book must already have metadata.
func (s *Store) UpsertEmbedding(ctx context.Context, key, model string, vector []float32) error {
	if len(vector) != s.dim {
		return &ookerrors.InvalidDimensionError{Key: key, Got: len(vector), Want: s.dim}
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO embeddings (key, model, dimension, vector, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			model = excluded.model,
			dimension = excluded.dimension,
			vector = excluded.vector,
			created_at = excluded.created_at`,
		key, model, len(vector), EncodeVector(vector), time.Now().UTC())
	if err != nil {
		return ookerrors.NewStoreError("upsert embedding", err)
	}
	return nil
}

// Embedding returns the stored vector for key, or ErrNotFound.
func (s *Store) Embedding(ctx context.Context, key string) ([]float32, error) {
	var blob []byte
	err := s.db.GetContext(ctx, &blob, `SELECT vector FROM embeddings WHERE key = ?`, key)
	if err != nil {
		if isNoRows(err) {
			return nil, ookerrors.ErrNotFound
		}
		return nil, ookerrors.NewStoreError("get embedding", err)
	}
	return DecodeVector(blob)
}

type scoredKey struct {
	key      string
	distance float64
}

// SearchVector returns the nearest books to vector by ascending distance.
func (s *Store) SearchVector(ctx context.Context, vector []float32, limit int) ([]VectorResult, error) {
	if len(vector) != s.dim {
		return nil, &ookerrors.InvalidDimensionError{Key: "query", Got: len(vector), Want: s.dim}
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryxContext(ctx, `SELECT key, vector FROM embeddings`)
	if err != nil {
		return nil, ookerrors.NewStoreError("scan embeddings", err)
	}
	defer func() { _ = rows.Close() }()

	var scored []scoredKey
	for rows.Next() {
		var key string
		var blob []byte
		if err := rows.Scan(&key, &blob); err != nil {
			return nil, ookerrors.NewStoreError("scan embedding row", err)
		}
		v, err := DecodeVector(blob)
		if err != nil || len(v) != s.dim {
			slog.Debug("Skipping embedding with unexpected shape", "key", key, "bytes", len(blob))
			continue
		}
		scored = append(scored, scoredKey{key: key, distance: s.metric.Distance(vector, v)})
	}
	if err := rows.Err(); err != nil {
		return nil, ookerrors.NewStoreError("iterate embeddings", err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].distance != scored[j].distance {
			return scored[i].distance < scored[j].distance
		}
		return scored[i].key < scored[j].key
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	keys := make([]string, len(scored))
	for i, sk := range scored {
		keys[i] = sk.key
	}
	records, err := s.recordsByKey(ctx, keys)
	if err != nil {
		return nil, err
	}

	dist := make(map[string]float64, len(scored))
	for _, sk := range scored {
		dist[sk.key] = sk.distance
	}
	out := make([]VectorResult, len(records))
	for i, rec := range records {
		out[i] = VectorResult{Record: rec, Distance: dist[rec.Key]}
	}
	return out, nil
}
