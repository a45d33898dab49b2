package importer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lepinkainen/ook/internal/csvutil"
	ookerrors "github.com/lepinkainen/ook/internal/errors"
	"github.com/lepinkainen/ook/internal/library"
)

// Layout of Amazon's "Download Your Data" Kindle export.
const (
	amazonOwnershipDir = "Digital.Content.Ownership"
	amazonAuthorsSet   = "Kindle.UnifiedLibraryIndex.CustomerAuthorNameRelationship"

	amazonASIN   = "ASIN"
	amazonAuthor = "Author Name"

	amazonEBook         = "KindleEBook"
	amazonActive        = "Active"
	amazonUntitled      = "Not Available"
	amazonDefaultOrigin = "Purchase"
	amazonResourceType  = "EBOOK"
)

type ownershipFile struct {
	Rights []struct {
		RightStatus string `json:"rightStatus"`
		Origin      struct {
			OriginType string `json:"originType"`
		} `json:"origin"`
	} `json:"rights"`
	Resource *struct {
		ResourceType string `json:"resourceType"`
		ASIN         string `json:"asin"`
		ProductName  string `json:"productName"`
	} `json:"resource"`
}

type authorRow struct {
	asin   string
	author string
}

// IsAmazonExport reports whether path is an Amazon Kindle data export folder.
func IsAmazonExport(path string) bool {
	info, err := os.Stat(filepath.Join(path, amazonOwnershipDir))
	return err == nil && info.IsDir()
}

// loadAmazon reads every ownership file of the export. Only Kindle ebooks
// with an active right are kept, once per ASIN.
func loadAmazon(dir string) (Result, error) {
	entries, err := os.ReadDir(filepath.Join(dir, amazonOwnershipDir))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read %s: %w", amazonOwnershipDir, err)
	}

	authors, err := loadAmazonAuthors(dir)
	if err != nil {
		return Result{}, err
	}

	var res Result
	seen := make(map[string]bool)
	for i, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, amazonOwnershipDir, entry.Name())
		book, ok, err := parseOwnershipFile(path, i, authors)
		if err != nil {
			slog.Warn("Skipping malformed ownership file", "path", path, "error", err)
			res.Skipped++
			continue
		}
		if !ok || seen[book.Key] {
			continue
		}
		seen[book.Key] = true
		res.Books = append(res.Books, book)
	}
	return res, nil
}

func parseOwnershipFile(path string, index int, authors map[string]library.StringList) (library.Book, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return library.Book{}, false, err
	}
	var file ownershipFile
	if err := json.Unmarshal(data, &file); err != nil {
		return library.Book{}, false, err
	}
	if file.Resource == nil || file.Resource.ResourceType != amazonEBook {
		return library.Book{}, false, nil
	}

	origin := ""
	for _, right := range file.Rights {
		if right.RightStatus == amazonActive {
			origin = right.Origin.OriginType
			if origin == "" {
				origin = amazonDefaultOrigin
			}
			break
		}
	}
	if origin == "" {
		// Returned or revoked.
		return library.Book{}, false, nil
	}

	asin := strings.TrimSpace(file.Resource.ASIN)
	if asin == "" {
		return library.Book{}, false, &ookerrors.MalformedRecordError{Index: index, Field: "asin"}
	}
	title := strings.TrimSpace(file.Resource.ProductName)
	if title == "" {
		title = amazonUntitled
	}

	return library.Book{
		Key:          asin,
		Title:        title,
		Authors:      authors[asin],
		ResourceType: amazonResourceType,
		OriginType:   origin,
	}, true, nil
}

// loadAmazonAuthors maps ASIN to authors in file order. A missing CSV
// leaves every book without authors.
func loadAmazonAuthors(dir string) (map[string]library.StringList, error) {
	path := filepath.Join(dir, "Kindle.UnifiedLibraryIndex", "datasets", amazonAuthorsSet, amazonAuthorsSet+".csv")
	authors := make(map[string]library.StringList)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		slog.Warn("Author file not found, books will have no authors", "path", path)
		return authors, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open author file: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, _, err := csvutil.ProcessCSV(f, func(row csvutil.Row) (authorRow, error) {
		r := authorRow{asin: row.Get(amazonASIN), author: row.Get(amazonAuthor)}
		if r.asin == "" {
			return r, &ookerrors.MalformedRecordError{Index: row.Index, Field: amazonASIN}
		}
		if r.author == "" {
			return r, &ookerrors.MalformedRecordError{Index: row.Index, Field: amazonAuthor}
		}
		return r, nil
	}, csvutil.ProcessorOptions{
		SkipInvalid: true,
		Required:    []string{amazonASIN, amazonAuthor},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read author file: %w", err)
	}

	for _, r := range rows {
		authors[r.asin] = append(authors[r.asin], r.author)
	}
	slog.Info("Loaded author entries", "count", len(rows))
	return authors, nil
}
