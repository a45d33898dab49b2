package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lepinkainen/ook/internal/cache"
	"github.com/lepinkainen/ook/internal/config"
	"github.com/lepinkainen/ook/internal/embedding"
	"github.com/lepinkainen/ook/internal/enrichment"
	"github.com/lepinkainen/ook/internal/library"
	"github.com/lepinkainen/ook/internal/openlibrary"
	"github.com/lepinkainen/ook/internal/pipeline"
	"github.com/lepinkainen/ook/internal/ratelimit"
	"github.com/lepinkainen/ook/internal/search"
)

// openLibraryRPS caps raw request throughput on top of the enricher's pacing.
const openLibraryRPS = 3

// app is the wired component graph shared by all commands.
type app struct {
	cfg      *config.Config
	store    *library.Store
	cache    *cache.CacheDB
	client   *openlibrary.Client
	loader   embedding.Loader
	orch     *pipeline.Orchestrator
	searcher *search.Searcher
}

// openApp is swapped in tests.
var openApp = newApp

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: store}

	clientOpts := []openlibrary.Option{
		openlibrary.WithBaseURL(cfg.Enrich.BaseURL),
		openlibrary.WithUserAgent(cfg.Enrich.UserAgent),
		openlibrary.WithHTTPClient(&http.Client{Timeout: cfg.Enrich.Timeout}),
		openlibrary.WithRateLimiter(ratelimit.New("openlibrary", openLibraryRPS)),
	}
	if cfg.Cache.Enabled {
		c, err := cache.Open(cfg.Cache.DBFile, cfg.Cache.TTL)
		if err != nil {
			slog.Warn("Response cache unavailable, continuing without it", "path", cfg.Cache.DBFile, "error", err)
		} else {
			a.cache = c
			clientOpts = append(clientOpts, openlibrary.WithCache(c))
		}
	}
	a.client = openlibrary.NewClient(clientOpts...)

	enricher := enrichment.New(a.client, store,
		enrichment.WithRequestDelay(cfg.Enrich.RequestDelay),
		enrichment.WithBaseDelay(cfg.Enrich.BaseBackoff),
		enrichment.WithMaxRetries(cfg.Enrich.MaxRetries),
	)

	a.loader = embedding.Memoize(embedding.NewLoader(cfg.Embedding))
	a.orch = pipeline.New(store, enricher, a.loader, pipeline.WithBookDelay(cfg.Enrich.BookDelay))
	a.searcher = search.New(store, a.loader)

	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*library.Store, error) {
	metric, err := library.ParseMetric(cfg.Search.Metric)
	if err != nil {
		return nil, err
	}
	opts := []library.Option{
		library.WithDimension(cfg.Embedding.Dimension),
		library.WithMetric(metric),
	}
	var bleveIdx *library.BleveIndex
	if cfg.Search.LexicalBackend == "bleve" {
		bleveIdx, err = library.OpenBleveIndex(cfg.Search.BlevePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bleve index: %w", err)
		}
		opts = append(opts, library.WithLexicalIndex(bleveIdx))
	}

	store, err := library.Open(ctx, cfg.DBPath, opts...)
	if err != nil {
		if bleveIdx != nil {
			_ = bleveIdx.Close()
		}
		return nil, fmt.Errorf("failed to open library %s: %w", cfg.DBPath, err)
	}
	slog.Debug("Opened library", "path", cfg.DBPath, "dimension", store.Dimension(), "metric", store.Metric(), "lexical", cfg.Search.LexicalBackend)
	return store, nil
}

// Close releases the store and the response cache.
func (a *app) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

// withApp opens the app, runs fn and closes it.
func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("Failed to close library", "error", err)
		}
	}()
	return fn(ctx, a)
}
