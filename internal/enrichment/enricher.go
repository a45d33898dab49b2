// Package enrichment resolves library books against OpenLibrary and records
// the result as metadata.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	ookerrors "github.com/lepinkainen/ook/internal/errors"
	"github.com/lepinkainen/ook/internal/library"
	"github.com/lepinkainen/ook/internal/openlibrary"
)

const (
	// DefaultBaseDelay is the first backoff delay; it doubles after each retry.
	DefaultBaseDelay = time.Second
	// DefaultMaxRetries bounds retries per request.
	DefaultMaxRetries = 5
	// DefaultRequestDelay separates the search call from the work detail call.
	DefaultRequestDelay = 250 * time.Millisecond
)

// errExhausted marks a request that kept failing after all retries.
var errExhausted = errors.New("retries exhausted")

// Source is the bibliographic lookup service.
type Source interface {
	Search(ctx context.Context, title, author string) ([]openlibrary.SearchDoc, error)
	Work(ctx context.Context, workKey string) (*openlibrary.Work, error)
}

// MetadataWriter persists enrichment results.
type MetadataWriter interface {
	UpsertMetadata(ctx context.Context, key string, md library.Metadata) error
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Outcome describes what EnrichOne recorded for a book.
type Outcome int

const (
	// OutcomeNotFound means no candidate matched (or lookups were exhausted).
	OutcomeNotFound Outcome = iota
	// OutcomeNoDescription means a work matched but had no description.
	OutcomeNoDescription
	// OutcomeEnriched means a work matched and a description was stored.
	OutcomeEnriched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEnriched:
		return "enriched"
	case OutcomeNoDescription:
		return "no_description"
	default:
		return "not_found"
	}
}

// Enricher looks books up one at a time. It is not safe for concurrent use;
// external calls are strictly sequential.
type Enricher struct {
	source       Source
	store        MetadataWriter
	baseDelay    time.Duration
	maxRetries   int
	requestDelay time.Duration
	sleep        SleepFunc
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithBaseDelay sets the first backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(e *Enricher) {
		if d >= 0 {
			e.baseDelay = d
		}
	}
}

// WithMaxRetries sets the retry budget per request.
func WithMaxRetries(n int) Option {
	return func(e *Enricher) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithRequestDelay sets the pause between search and work calls.
func WithRequestDelay(d time.Duration) Option {
	return func(e *Enricher) {
		if d >= 0 {
			e.requestDelay = d
		}
	}
}

// WithSleep replaces the sleep function, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(e *Enricher) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// New creates an Enricher.
func New(source Source, store MetadataWriter, opts ...Option) *Enricher {
	e := &Enricher{
		source:       source,
		store:        store,
		baseDelay:    DefaultBaseDelay,
		maxRetries:   DefaultMaxRetries,
		requestDelay: DefaultRequestDelay,
		sleep:        Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sleep waits for d, returning early with ctx.Err() if ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Lookup searches by normalized title and first author, falling back to a
// title-only search. Returns nil when nothing matched.
func (e *Enricher) Lookup(ctx context.Context, title string, authors []string) (*openlibrary.SearchDoc, error) {
	clean := NormalizeTitle(title)
	if clean == "" {
		clean = title
	}

	if len(authors) > 0 {
		author := NormalizeAuthor(authors[0])
		doc, err := e.searchFirst(ctx, clean, author)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			return doc, nil
		}
	}
	return e.searchFirst(ctx, clean, "")
}

func (e *Enricher) searchFirst(ctx context.Context, title, author string) (*openlibrary.SearchDoc, error) {
	docs, err := withBackoff(ctx, e, "search", func() ([]openlibrary.SearchDoc, error) {
		return e.source.Search(ctx, title, author)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("OpenLibrary search failed, treating as not found", "title", title, "author", author, "error", err)
		return nil, nil
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

// FetchDescription returns the work description, or "" when the work has none
// or could not be fetched.
func (e *Enricher) FetchDescription(ctx context.Context, workKey string) (string, error) {
	if workKey == "" {
		return "", nil
	}
	work, err := withBackoff(ctx, e, "work", func() (*openlibrary.Work, error) {
		return e.source.Work(ctx, workKey)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		slog.Warn("OpenLibrary work fetch failed, leaving description empty", "work", workKey, "error", err)
		return "", nil
	}
	return work.Description.String(), nil
}

// EnrichOne looks up book and always writes a metadata row, empty when nothing
// was found. Only store failures and context cancellation are returned.
func (e *Enricher) EnrichOne(ctx context.Context, book library.Book) (Outcome, error) {
	doc, err := e.Lookup(ctx, book.Title, book.Authors)
	if err != nil {
		return OutcomeNotFound, err
	}

	md := library.Metadata{EnrichedAt: time.Now().UTC()}
	outcome := OutcomeNotFound
	if doc != nil {
		md.SourceKey = doc.Key
		md.Subjects = cleanSubjects(doc.Subject, library.MaxSubjects)
		if len(doc.ISBN) > 0 {
			md.ISBN = doc.ISBN[0]
		}
		if doc.FirstPublishYear > 0 {
			y := doc.FirstPublishYear
			md.PublishYear = &y
		}

		if e.requestDelay > 0 {
			if err := e.sleep(ctx, e.requestDelay); err != nil {
				return OutcomeNotFound, err
			}
		}
		desc, err := e.FetchDescription(ctx, doc.Key)
		if err != nil {
			return OutcomeNotFound, err
		}
		md.Description = desc
		outcome = OutcomeNoDescription
		if desc != "" {
			outcome = OutcomeEnriched
		}
	}

	if err := e.store.UpsertMetadata(ctx, book.Key, md); err != nil {
		return outcome, fmt.Errorf("save metadata for %q: %w", book.Key, err)
	}

	slog.Debug("Enriched book", "key", book.Key, "title", book.Title, "outcome", outcome, "work", md.SourceKey)
	return outcome, nil
}

// withBackoff retries fn on rate-limit and transient errors. The delay starts
// at baseDelay and doubles after every retry; a Retry-After hint replaces the
// current delay for that one wait.
func withBackoff[T any](ctx context.Context, e *Enricher, op string, fn func() (T, error)) (T, error) {
	var zero T
	delay := e.baseDelay
	for attempt := 0; ; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !ookerrors.IsRetryable(err) {
			return zero, err
		}
		if attempt >= e.maxRetries {
			return zero, fmt.Errorf("%s: %w after %d retries: %w", op, errExhausted, attempt, err)
		}

		wait := delay
		if hint := ookerrors.RetryAfterHint(err); hint > 0 {
			wait = hint
		}
		slog.Debug("Retrying OpenLibrary request", "op", op, "attempt", attempt+1, "wait", wait, "error", err)
		if err := e.sleep(ctx, wait); err != nil {
			return zero, err
		}
		delay *= 2
	}
}
