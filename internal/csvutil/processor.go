// Package csvutil reads header-addressed CSV exports.
package csvutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ProcessorOptions configures CSV processing behavior.
type ProcessorOptions struct {
	// SkipInvalid skips records the parser rejects instead of failing.
	SkipInvalid bool

	// Required lists header names that must be present.
	Required []string
}

// Row is one CSV record addressed by header name.
type Row struct {
	Index  int
	header map[string]int
	record []string
}

// Get returns the trimmed value of column name, or "" if absent.
func (r Row) Get(name string) string {
	i, ok := r.header[name]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

// Stats reports how many records were parsed and skipped.
type Stats struct {
	Parsed  int
	Skipped int
}

// ProcessCSV reads CSV data with a header row and parses each record into T.
func ProcessCSV[T any](r io.Reader, parser func(Row) (T, error), opts ProcessorOptions) ([]T, Stats, error) {
	var stats Stats

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headerRecord, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, stats, fmt.Errorf("CSV input is empty")
	}
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read header: %w", err)
	}

	header := make(map[string]int, len(headerRecord))
	for i, name := range headerRecord {
		header[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range opts.Required {
		if _, ok := header[name]; !ok {
			return nil, stats, fmt.Errorf("CSV header is missing column %q", name)
		}
	}

	var items []T
	for index := 0; ; index++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			slog.Warn("Error reading record", "index", index, "error", err)
			stats.Skipped++
			continue
		}

		item, err := parser(Row{Index: index, header: header, record: record})
		if err != nil {
			if opts.SkipInvalid {
				slog.Warn("Skipping invalid record", "index", index, "error", err)
				stats.Skipped++
				continue
			}
			return nil, stats, fmt.Errorf("invalid record: %w", err)
		}

		items = append(items, item)
		stats.Parsed++
	}

	return items, stats, nil
}
