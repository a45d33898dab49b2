// Package importer reads library exports into books ready for insertion.
package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	ookerrors "github.com/lepinkainen/ook/internal/errors"
	"github.com/lepinkainen/ook/internal/library"
)

// Format is an import file format.
type Format string

const (
	FormatJSON      Format = "json"
	FormatYAML      Format = "yaml"
	FormatGoodreads Format = "goodreads"
	FormatAmazon    Format = "amazon"
)

// Record is one entry of a Kindle library export. The identity key is read
// from "asin" and falls back to "key".
type Record struct {
	ASIN           string   `json:"asin" yaml:"asin"`
	Key            string   `json:"key" yaml:"key"`
	Title          string   `json:"title" yaml:"title"`
	Authors        []string `json:"authors" yaml:"authors"`
	CoverURL       string   `json:"coverUrl" yaml:"coverUrl"`
	PercentageRead int      `json:"percentageRead" yaml:"percentageRead"`
	ResourceType   string   `json:"resourceType" yaml:"resourceType"`
	OriginType     string   `json:"originType" yaml:"originType"`
}

// Result holds the parsed books and the number of malformed records skipped.
type Result struct {
	Books   []library.Book
	Skipped int
}

// DetectFormat picks a format from the file extension. A directory holding
// a Digital.Content.Ownership folder is an Amazon data export.
func DetectFormat(path string) (Format, error) {
	if IsAmazonExport(path) {
		return FormatAmazon, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatGoodreads, nil
	default:
		return "", fmt.Errorf("unsupported import file %q (want .json, .yaml, .csv or an Amazon export folder)", path)
	}
}

// Load reads and parses an import file, detecting its format.
func Load(path string) (Result, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return Result{}, err
	}
	return LoadFormat(path, format)
}

// LoadFormat reads and parses path in the given format.
func LoadFormat(path string, format Format) (Result, error) {
	var (
		res Result
		err error
	)
	if format == FormatAmazon {
		res, err = loadAmazon(path)
	} else {
		res, err = loadFile(path, format)
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	slog.Info("Loaded import file", "path", path, "format", format, "books", len(res.Books), "skipped", res.Skipped)
	return res, nil
}

func loadFile(path string, format Format) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open import file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f, format)
}

// Parse decodes r in the given format. Records that fail to decode or miss
// a key or title are skipped and counted. Amazon exports are folders and
// only load through Load or LoadFormat.
func Parse(r io.Reader, format Format) (Result, error) {
	switch format {
	case FormatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return Result{}, err
		}
		var raw []json.RawMessage
		if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
			return Result{}, fmt.Errorf("invalid JSON export: %w", err)
		}
		return fromRaw(len(raw), func(i int, rec *Record) error {
			return json.Unmarshal(raw[i], rec)
		}), nil
	case FormatYAML:
		var nodes []yaml.Node
		if err := yaml.NewDecoder(r).Decode(&nodes); err != nil && err != io.EOF {
			return Result{}, fmt.Errorf("invalid YAML export: %w", err)
		}
		return fromRaw(len(nodes), func(i int, rec *Record) error {
			return nodes[i].Decode(rec)
		}), nil
	case FormatGoodreads:
		return parseGoodreads(r)
	case FormatAmazon:
		return Result{}, fmt.Errorf("amazon exports are folders, load them by path")
	default:
		return Result{}, fmt.Errorf("unknown import format %q", format)
	}
}

// fromRaw decodes n records one at a time so a bad record only skips itself.
func fromRaw(n int, decode func(i int, rec *Record) error) Result {
	var res Result
	for i := range n {
		var rec Record
		if err := decode(i, &rec); err != nil {
			slog.Warn("Skipping malformed import record", "index", i, "error", err)
			res.Skipped++
			continue
		}
		book, err := rec.book(i)
		if err != nil {
			slog.Warn("Skipping malformed import record", "error", err)
			res.Skipped++
			continue
		}
		res.Books = append(res.Books, book)
	}
	return res
}

func (r Record) book(index int) (library.Book, error) {
	key := strings.TrimSpace(r.ASIN)
	if key == "" {
		key = strings.TrimSpace(r.Key)
	}
	if key == "" {
		return library.Book{}, &ookerrors.MalformedRecordError{Index: index, Field: "asin"}
	}
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return library.Book{}, &ookerrors.MalformedRecordError{Index: index, Field: "title"}
	}

	return library.Book{
		Key:          key,
		Title:        title,
		Authors:      trimAuthors(r.Authors),
		CoverURL:     r.CoverURL,
		PercentRead:  clampPercent(r.PercentageRead),
		ResourceType: r.ResourceType,
		OriginType:   r.OriginType,
	}, nil
}

func trimAuthors(authors []string) library.StringList {
	out := make(library.StringList, 0, len(authors))
	for _, a := range authors {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
