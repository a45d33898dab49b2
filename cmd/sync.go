package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/ook/internal/importer"
	"github.com/lepinkainen/ook/internal/library"
	"github.com/lepinkainen/ook/internal/pipeline"
	"github.com/lepinkainen/ook/internal/tui"
)

// ImportCmd imports an export file without enriching it
type ImportCmd struct {
	File   string `arg:"" type:"path" help:"Export file (.json, .yaml or Goodreads .csv) or Amazon data export folder"`
	Format string `help:"Force the input format instead of detecting it from the extension" enum:"json,yaml,goodreads,amazon," default:""`
}

// EnrichCmd enriches books that have never been looked up
type EnrichCmd struct {
	Limit int `short:"n" help:"Enrich at most this many books (0 = all)"`
}

// EmbedCmd embeds enriched books that have no vector yet
type EmbedCmd struct {
	Limit int `short:"n" help:"Embed at most this many books (0 = all)"`
}

// SyncCmd runs the full pipeline
type SyncCmd struct {
	File        string `arg:"" optional:"" type:"path" help:"Export file or Amazon export folder to import first"`
	EnrichLimit int    `help:"Enrich at most this many books (0 = all)"`
	EmbedLimit  int    `help:"Embed at most this many books (0 = all)"`
	SkipEnrich  bool   `help:"Skip the enrich stage"`
	SkipEmbed   bool   `help:"Skip the embed stage"`
	TUI         bool   `help:"Show an interactive progress view"`
}

func (i *ImportCmd) Run() error {
	opts := pipeline.RunOptions{SkipEnrich: true, SkipEmbed: true}
	if i.Format == "" {
		opts.ImportPath = i.File
	} else {
		books, err := parseWithFormat(i.File, importer.Format(i.Format))
		if err != nil {
			return err
		}
		opts.Books = books
	}
	return runPipeline(opts)
}

func (e *EnrichCmd) Run() error {
	return runPipeline(pipeline.RunOptions{SkipEmbed: true, EnrichLimit: e.Limit})
}

func (e *EmbedCmd) Run() error {
	return runPipeline(pipeline.RunOptions{SkipEnrich: true, EmbedLimit: e.Limit})
}

func (s *SyncCmd) Run() error {
	opts := pipeline.RunOptions{
		ImportPath:  s.File,
		SkipEnrich:  s.SkipEnrich,
		SkipEmbed:   s.SkipEmbed,
		EnrichLimit: s.EnrichLimit,
		EmbedLimit:  s.EmbedLimit,
	}
	if !s.TUI {
		return runPipeline(opts)
	}

	return withApp(func(ctx context.Context, a *app) error {
		summary, err := runSyncProgress(a.orch.Stream(ctx, opts))
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, tui.FormatSummary(summary))
		return nil
	})
}

// runSyncProgress is swapped in tests.
var runSyncProgress = tui.RunSyncProgress

func runPipeline(opts pipeline.RunOptions) error {
	return withApp(func(ctx context.Context, a *app) error {
		summary, err := a.orch.Run(ctx, opts, logObserver())
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, tui.FormatSummary(summary))
		return nil
	})
}

// logObserver reports stage boundaries at info and per-book progress at debug.
func logObserver() pipeline.Observer {
	return pipeline.ObserverFunc(func(e pipeline.Event) {
		switch e.Kind {
		case pipeline.KindStageStart:
			slog.Info("Stage started", "stage", e.Stage, "total", e.Total)
		case pipeline.KindProgress:
			slog.Debug("Progress", "stage", e.Stage, "current", e.Current, "total", e.Total, "item", e.Label, "eta", e.ETA)
		case pipeline.KindStageEnd:
			slog.Info(e.Label, "stage", e.Stage, "elapsed", e.Elapsed)
		}
	})
}

func parseWithFormat(path string, format importer.Format) ([]library.Book, error) {
	res, err := importer.LoadFormat(path, format)
	if err != nil {
		return nil, err
	}
	if res.Books == nil {
		return []library.Book{}, nil
	}
	return res.Books, nil
}
