package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	ookerrors "github.com/lepinkainen/ook/internal/errors"
	"github.com/lepinkainen/ook/internal/library"
)

// Store is the part of library.Store the batch driver needs.
type Store interface {
	MetadataWithoutEmbedding(ctx context.Context, limit int) ([]library.EmbedCandidate, error)
	UpsertEmbedding(ctx context.Context, key, model string, vector []float32) error
}

// ProgressFunc is called after each candidate is processed.
type ProgressFunc func(current, total int, label string)

// Result counts the outcome of one EmbedPending run.
type Result struct {
	Embedded int
	Skipped  int
}

// EmbedPending embeds every book that has metadata but no embedding, one at
// a time. The loader is only invoked when there is at least one candidate.
// A failed embed or a wrong-length vector skips that book; store errors abort.
func EmbedPending(ctx context.Context, store Store, load Loader, limit int, progress ProgressFunc) (Result, error) {
	var res Result

	candidates, err := store.MetadataWithoutEmbedding(ctx, limit)
	if err != nil {
		return res, err
	}
	if len(candidates) == 0 {
		return res, nil
	}

	embedder, err := load(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to load embedder: %w", err)
	}
	slog.Info("Embedding books", "count", len(candidates), "model", embedder.Model(), "dimension", embedder.Dimension())

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		text := ComposeText(c.Title, c.Authors, c.Description)
		vec, err := embedder.Embed(ctx, text)
		switch {
		case err != nil:
			slog.Warn("Failed to embed book", "key", c.Key, "error", err)
			res.Skipped++
		default:
			err = store.UpsertEmbedding(ctx, c.Key, embedder.Model(), vec)
			if errors.Is(err, ookerrors.ErrInvalidDimension) {
				slog.Warn("Skipping embedding with wrong dimension", "key", c.Key, "error", err)
				res.Skipped++
			} else if err != nil {
				return res, err
			} else {
				res.Embedded++
			}
		}

		if progress != nil {
			progress(i+1, len(candidates), c.Title)
		}
	}

	return res, nil
}
