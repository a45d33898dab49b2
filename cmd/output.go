package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/lepinkainen/ook/internal/library"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func authorList(authors []string) string {
	if len(authors) == 0 {
		return "-"
	}
	return strings.Join(authors, ", ")
}

func yearOf(rec library.Record) string {
	if rec.Metadata == nil || rec.Metadata.PublishYear == nil {
		return ""
	}
	return fmt.Sprintf("%d", *rec.Metadata.PublishYear)
}

// printRows writes one tab-aligned line per record with a leading score column.
func printRows(w io.Writer, scoreHeader string, records []library.Record, scores []float64) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if scoreHeader != "" {
		fmt.Fprintf(tw, "%s\tKEY\tTITLE\tAUTHORS\tYEAR\n", strings.ToUpper(scoreHeader))
	} else {
		fmt.Fprintf(tw, "KEY\tTITLE\tAUTHORS\tYEAR\n")
	}
	for i, rec := range records {
		if scoreHeader != "" {
			fmt.Fprintf(tw, "%.4f\t", scores[i])
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.Key, rec.Title, authorList(rec.Authors), yearOf(rec))
	}
	return tw.Flush()
}

func printRecord(w io.Writer, rec library.Record) {
	fmt.Fprintf(w, "%s\n", rec.Title)
	fmt.Fprintf(w, "  Key:       %s\n", rec.Key)
	fmt.Fprintf(w, "  Authors:   %s\n", authorList(rec.Authors))
	if rec.ResourceType != "" {
		fmt.Fprintf(w, "  Type:      %s\n", rec.ResourceType)
	}
	fmt.Fprintf(w, "  Read:      %d%%\n", rec.PercentRead)
	fmt.Fprintf(w, "  Embedding: %t\n", rec.HasEmbedding)

	md := rec.Metadata
	if md == nil {
		fmt.Fprintln(w, "  Not enriched yet")
		return
	}
	if md.SourceKey != "" {
		fmt.Fprintf(w, "  Work:      %s\n", md.SourceKey)
	}
	if year := yearOf(rec); year != "" {
		fmt.Fprintf(w, "  Published: %s\n", year)
	}
	if md.ISBN != "" {
		fmt.Fprintf(w, "  ISBN:      %s\n", md.ISBN)
	}
	if len(md.Subjects) > 0 {
		fmt.Fprintf(w, "  Subjects:  %s\n", strings.Join(md.Subjects, ", "))
	}
	if md.Description != "" {
		fmt.Fprintf(w, "\n%s\n", md.Description)
	} else {
		fmt.Fprintln(w, "  No description found")
	}
}
