package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/lepinkainen/ook/internal/library"
	"github.com/lepinkainen/ook/internal/tui"
)

// SearchCmd runs a lexical search
type SearchCmd struct {
	Query []string `arg:"" help:"Search terms, optionally with title:, author:, description: or subject: filters"`
	Limit int      `short:"n" help:"Maximum number of results (0 = search.limit)"`
	Pick  bool     `help:"Pick a result interactively and show it"`
}

// SemanticCmd runs a vector search for the embedded query
type SemanticCmd struct {
	Query []string `arg:"" help:"Free-text description of what to find"`
	Limit int      `short:"n" help:"Maximum number of results (0 = search.limit)"`
	Pick  bool     `help:"Pick a result interactively and show it"`
}

// StatsCmd prints catalog counts
type StatsCmd struct{}

// ShowCmd prints a single book
type ShowCmd struct {
	Key string `arg:"" help:"Book key (ASIN or goodreads:ID)"`
}

// ListCmd lists books page by page
type ListCmd struct {
	Limit  int    `short:"n" help:"Page size" default:"50"`
	Offset int    `help:"Number of books to skip"`
	Sort   string `help:"Sort field" enum:"title,author,year" default:"title"`
	Desc   bool   `help:"Sort descending"`
}

// SubjectsCmd lists distinct subjects
type SubjectsCmd struct{}

// ResetCmd clears derived data
type ResetCmd struct{}

// selectBook is swapped in tests.
var selectBook = tui.SelectBook

func limitOr(limit, def int) int {
	if limit > 0 {
		return limit
	}
	return def
}

func (s *SearchCmd) Run(cli *CLI) error {
	query := strings.Join(s.Query, " ")
	return withApp(func(ctx context.Context, a *app) error {
		results, err := a.searcher.Keyword(ctx, query, limitOr(s.Limit, a.cfg.Search.Limit))
		if err != nil {
			return err
		}
		records := make([]library.Record, len(results))
		scores := make([]float64, len(results))
		for i, r := range results {
			records[i], scores[i] = r.Record, r.Score
		}
		if s.Pick {
			return pick(query, records)
		}
		if cli.JSON {
			return printJSON(stdout, results)
		}
		if len(results) == 0 {
			fmt.Fprintf(stdout, "No books match %q\n", query)
			return nil
		}
		return printRows(stdout, "score", records, scores)
	})
}

func (s *SemanticCmd) Run(cli *CLI) error {
	query := strings.Join(s.Query, " ")
	return withApp(func(ctx context.Context, a *app) error {
		results, err := a.searcher.Semantic(ctx, query, limitOr(s.Limit, a.cfg.Search.Limit))
		if err != nil {
			return err
		}
		records := make([]library.Record, len(results))
		distances := make([]float64, len(results))
		for i, r := range results {
			records[i], distances[i] = r.Record, r.Distance
		}
		if s.Pick {
			return pick(query, records)
		}
		if cli.JSON {
			return printJSON(stdout, results)
		}
		if len(results) == 0 {
			fmt.Fprintln(stdout, "No embedded books yet; run `ook sync` first")
			return nil
		}
		return printRows(stdout, "distance", records, distances)
	})
}

func pick(query string, records []library.Record) error {
	res, err := selectBook(query, records)
	if err != nil {
		return err
	}
	switch res.Action {
	case tui.ActionSelected:
		printRecord(stdout, *res.Selection)
	case tui.ActionStopped:
		return fmt.Errorf("selection cancelled")
	}
	return nil
}

func (s *StatsCmd) Run(cli *CLI) error {
	return withApp(func(ctx context.Context, a *app) error {
		stats, err := a.store.Stats(ctx)
		if err != nil {
			return err
		}
		if cli.JSON {
			return printJSON(stdout, stats)
		}
		fmt.Fprintf(stdout, "Books:           %d\n", stats.TotalBooks)
		fmt.Fprintf(stdout, "Enriched:        %d\n", stats.Enriched)
		fmt.Fprintf(stdout, "With metadata:   %d\n", stats.WithMetadata)
		fmt.Fprintf(stdout, "With embeddings: %d\n", stats.WithEmbeddings)
		return nil
	})
}

func (s *ShowCmd) Run(cli *CLI) error {
	return withApp(func(ctx context.Context, a *app) error {
		rec, err := a.store.Record(ctx, s.Key)
		if err != nil {
			return err
		}
		if cli.JSON {
			return printJSON(stdout, rec)
		}
		printRecord(stdout, *rec)
		return nil
	})
}

func (l *ListCmd) Run(cli *CLI) error {
	return withApp(func(ctx context.Context, a *app) error {
		records, err := a.store.ListBooks(ctx, library.ListOptions{
			Limit:  l.Limit,
			Offset: l.Offset,
			SortBy: l.Sort,
			Desc:   l.Desc,
		})
		if err != nil {
			return err
		}
		if cli.JSON {
			return printJSON(stdout, records)
		}
		return printRows(stdout, "", records, nil)
	})
}

func (s *SubjectsCmd) Run(cli *CLI) error {
	return withApp(func(ctx context.Context, a *app) error {
		subjects, err := a.store.Subjects(ctx)
		if err != nil {
			return err
		}
		if cli.JSON {
			return printJSON(stdout, subjects)
		}
		for _, subject := range subjects {
			fmt.Fprintln(stdout, subject)
		}
		return nil
	})
}

func (r *ResetCmd) Run() error {
	return withApp(func(ctx context.Context, a *app) error {
		cleared, err := a.store.Reset(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Cleared metadata for %d books; run `ook sync` to re-enrich\n", cleared)
		return nil
	})
}
