// Package pipeline sequences the import, enrich and embed stages of a sync.
// Runs keep no cursor: every stage recomputes its work from the store, so an
// interrupted run resumes where it stopped.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lepinkainen/ook/internal/embedding"
	"github.com/lepinkainen/ook/internal/enrichment"
	"github.com/lepinkainen/ook/internal/importer"
	"github.com/lepinkainen/ook/internal/library"
)

// labelWidth bounds progress labels.
const labelWidth = 40

// Store is the persistence the pipeline drives.
type Store interface {
	InsertBooks(ctx context.Context, books []library.Book) (int, error)
	BooksWithoutMetadata(ctx context.Context, limit int) ([]library.Book, error)
	RebuildLexicalIndex(ctx context.Context) error
	embedding.Store
}

// Enricher enriches a single book, always recording an attempt.
type Enricher interface {
	EnrichOne(ctx context.Context, book library.Book) (enrichment.Outcome, error)
}

// RunOptions selects the stages of one run.
type RunOptions struct {
	// ImportPath is an export file to import first.
	ImportPath string
	// Books are imported first when ImportPath is empty and Books is non-nil.
	Books []library.Book

	SkipEnrich bool
	SkipEmbed  bool
	// EnrichLimit and EmbedLimit cap a stage's batch; <= 0 means all.
	EnrichLimit int
	EmbedLimit  int
}

func (o RunOptions) hasImport() bool {
	return o.ImportPath != "" || o.Books != nil
}

// Orchestrator runs sync pipelines. One run executes at a time per store.
type Orchestrator struct {
	store     Store
	enricher  Enricher
	loader    embedding.Loader
	bookDelay time.Duration
	sleep     enrichment.SleepFunc
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBookDelay sets the pause between consecutive books in the enrich stage.
func WithBookDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.bookDelay = d
		}
	}
}

// WithSleep replaces the sleep function.
func WithSleep(fn enrichment.SleepFunc) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithClock replaces time.Now for elapsed and ETA computation.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an Orchestrator. The loader is invoked at most once per embed
// stage, and only when there is something to embed.
func New(store Store, enricher Enricher, loader embedding.Loader, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		enricher:  enricher,
		loader:    loader,
		bookDelay: enrichment.DefaultRequestDelay,
		sleep:     enrichment.Sleep,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type run struct {
	*Orchestrator
	id     uuid.UUID
	obs    Observer
	logger *slog.Logger
}

// Run executes the selected stages in order and reports to obs, which may
// be nil. The final event is KindDone or KindError. A store error aborts the
// run; everything committed before it stays valid for the next run.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions, obs Observer) (Summary, error) {
	if obs == nil {
		obs = discard{}
	}
	id := uuid.New()
	r := &run{Orchestrator: o, id: id, obs: obs, logger: slog.With("run_id", id.String())}
	r.logger.Info("Starting sync", "import", opts.hasImport(), "enrich", !opts.SkipEnrich, "embed", !opts.SkipEmbed)

	var sum Summary
	if opts.hasImport() {
		n, err := r.importStage(ctx, opts)
		sum.Imported = n
		if err != nil {
			return sum, r.fail(StageImport, err)
		}
	}

	if !opts.SkipEnrich {
		attempted, enriched, err := r.enrichStage(ctx, opts.EnrichLimit)
		sum.Attempted, sum.Enriched = attempted, enriched
		if err != nil {
			return sum, r.fail(StageEnrich, err)
		}
	}

	if !opts.SkipEmbed {
		embedded, err := r.embedStage(ctx, opts.EmbedLimit)
		sum.Embedded = embedded
		if err != nil {
			return sum, r.fail(StageEmbed, err)
		}
	}

	r.logger.Info("Sync complete", "imported", sum.Imported, "attempted", sum.Attempted, "enriched", sum.Enriched, "embedded", sum.Embedded)
	r.emit(Event{Stage: StageDone, Kind: KindDone, Summary: &sum})
	return sum, nil
}

func (r *run) emit(e Event) {
	e.RunID = r.id
	r.obs.Observe(e)
}

func (r *run) fail(stage Stage, err error) error {
	err = fmt.Errorf("%s stage: %w", stage, err)
	r.logger.Error("Sync failed", "stage", stage, "error", err)
	r.emit(Event{Stage: stage, Kind: KindError, Err: err.Error()})
	return err
}

func (r *run) progress(stage Stage, start time.Time, current, total int, label string) {
	elapsed := r.now().Sub(start)
	r.emit(Event{
		Stage:   stage,
		Kind:    KindProgress,
		Current: current,
		Total:   total,
		Label:   truncate(label, labelWidth),
		Elapsed: elapsed,
		ETA:     EstimateRemaining(elapsed, current, total),
	})
}

func (r *run) importStage(ctx context.Context, opts RunOptions) (int, error) {
	r.emit(Event{Stage: StageImport, Kind: KindStageStart, Label: opts.ImportPath})

	books := opts.Books
	if opts.ImportPath != "" {
		res, err := importer.Load(opts.ImportPath)
		if err != nil {
			return 0, err
		}
		books = res.Books
		if res.Skipped > 0 {
			r.logger.Warn("Skipped malformed import records", "count", res.Skipped)
		}
	}

	inserted, err := r.store.InsertBooks(ctx, books)
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		if err := r.store.RebuildLexicalIndex(ctx); err != nil {
			return inserted, err
		}
	}

	r.logger.Info("Imported books", "found", len(books), "inserted", inserted)
	r.emit(Event{
		Stage:   StageImport,
		Kind:    KindStageEnd,
		Current: inserted,
		Total:   len(books),
		Label:   fmt.Sprintf("Imported %d new books", inserted),
	})
	return inserted, nil
}

func (r *run) enrichStage(ctx context.Context, limit int) (attempted, enriched int, err error) {
	books, err := r.store.BooksWithoutMetadata(ctx, limit)
	if err != nil {
		return 0, 0, err
	}
	total := len(books)
	r.emit(Event{Stage: StageEnrich, Kind: KindStageStart, Total: total})

	if total == 0 {
		r.emit(Event{Stage: StageEnrich, Kind: KindStageEnd, Label: "All books already enriched"})
		return 0, 0, nil
	}

	r.logger.Info("Enriching books", "count", total)
	start := r.now()
	for i, book := range books {
		outcome, err := r.enricher.EnrichOne(ctx, book)
		if err != nil {
			return attempted, enriched, err
		}
		attempted++
		if outcome == enrichment.OutcomeEnriched {
			enriched++
		}
		r.progress(StageEnrich, start, i+1, total, book.Title)

		if i < total-1 && r.bookDelay > 0 {
			if err := r.sleep(ctx, r.bookDelay); err != nil {
				return attempted, enriched, err
			}
		}
	}

	if err := r.store.RebuildLexicalIndex(ctx); err != nil {
		return attempted, enriched, err
	}

	r.emit(Event{
		Stage:   StageEnrich,
		Kind:    KindStageEnd,
		Current: attempted,
		Total:   total,
		Label:   fmt.Sprintf("Enriched %d/%d with descriptions", enriched, total),
	})
	return attempted, enriched, nil
}

func (r *run) embedStage(ctx context.Context, limit int) (int, error) {
	r.emit(Event{Stage: StageEmbed, Kind: KindStageStart})

	start := r.now()
	res, err := embedding.EmbedPending(ctx, r.store, r.loader, limit, func(current, total int, label string) {
		r.progress(StageEmbed, start, current, total, label)
	})
	if err != nil {
		return res.Embedded, err
	}

	label := fmt.Sprintf("Generated %d embeddings", res.Embedded)
	if res.Embedded == 0 && res.Skipped == 0 {
		label = "All enriched books already have embeddings"
	}
	if res.Skipped > 0 {
		r.logger.Warn("Skipped embeddings", "count", res.Skipped)
	}
	r.emit(Event{
		Stage:   StageEmbed,
		Kind:    KindStageEnd,
		Current: res.Embedded,
		Total:   res.Embedded + res.Skipped,
		Label:   label,
	})
	return res.Embedded, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
