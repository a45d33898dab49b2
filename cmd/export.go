package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lepinkainen/ook/internal/fileutil"
	"github.com/lepinkainen/ook/internal/library"
	"github.com/lepinkainen/ook/internal/obsidian"
)

// ExportCmd writes the catalog as markdown notes and/or a JSON file
type ExportCmd struct {
	Dir       string `short:"d" help:"Directory for one markdown note per book"`
	JSONFile  string `name:"json-file" help:"Path of a JSON file with every book and its metadata"`
	Overwrite bool   `help:"Rewrite existing files; notes keep their own tags and extra fields"`
}

// exportStats counts note writes.
type exportStats struct {
	written, skipped int
}

func (e *ExportCmd) Run() error {
	if e.Dir == "" && e.JSONFile == "" {
		return fmt.Errorf("nothing to export: set --dir and/or --json-file")
	}

	return withApp(func(ctx context.Context, a *app) error {
		records, err := a.store.ListBooks(ctx, library.ListOptions{SortBy: "title"})
		if err != nil {
			return err
		}

		if e.JSONFile != "" {
			written, err := fileutil.WriteJSONFile(records, e.JSONFile, e.Overwrite)
			if err != nil {
				return err
			}
			if written {
				fmt.Fprintf(stdout, "Wrote %d books to %s\n", len(records), e.JSONFile)
			} else {
				slog.Info("JSON file already exists, skipping", "path", e.JSONFile)
			}
		}

		if e.Dir != "" {
			stats, err := writeNotes(e.Dir, records, e.Overwrite)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Wrote %d notes to %s (%d unchanged)\n", stats.written, e.Dir, stats.skipped)
		}
		return nil
	})
}

func writeNotes(dir string, records []library.Record, overwrite bool) (exportStats, error) {
	var stats exportStats
	used := make(map[string]bool, len(records))

	for _, rec := range records {
		path := fileutil.NotePath(dir, rec.Title)
		if used[path] {
			path = fileutil.NotePath(dir, rec.Title+" ("+rec.Key+")")
		}
		used[path] = true

		var existing *obsidian.Note
		if fileutil.FileExists(path) {
			if !overwrite {
				stats.skipped++
				continue
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return stats, fmt.Errorf("failed to read %s: %w", path, err)
			}
			existing, err = obsidian.ParseMarkdown(content)
			if err != nil {
				slog.Warn("Replacing note with unreadable frontmatter", "path", path, "error", err)
				existing = nil
			}
		}

		data, err := obsidian.BookNote(rec, existing).Build()
		if err != nil {
			return stats, fmt.Errorf("failed to render %q: %w", rec.Key, err)
		}
		if _, err := fileutil.WriteFileWithOverwrite(path, data, 0o644, true); err != nil {
			return stats, err
		}
		stats.written++
		slog.Debug("Wrote note", "key", rec.Key, "path", path)
	}
	return stats, nil
}
