package importer

import (
	"io"
	"strings"

	"github.com/lepinkainen/ook/internal/csvutil"
	ookerrors "github.com/lepinkainen/ook/internal/errors"
	"github.com/lepinkainen/ook/internal/library"
)

// Goodreads library export columns used by the importer.
const (
	goodreadsBookID            = "Book Id"
	goodreadsTitle             = "Title"
	goodreadsAuthor            = "Author"
	goodreadsAdditionalAuthors = "Additional Authors"
	goodreadsBinding           = "Binding"
	goodreadsShelf             = "Exclusive Shelf"

	goodreadsKeyPrefix = "goodreads:"
	goodreadsOrigin    = "goodreads"
)

func parseGoodreads(r io.Reader) (Result, error) {
	books, stats, err := csvutil.ProcessCSV(r, parseGoodreadsRow, csvutil.ProcessorOptions{
		SkipInvalid: true,
		Required:    []string{goodreadsBookID, goodreadsTitle},
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Books: books, Skipped: stats.Skipped}, nil
}

func parseGoodreadsRow(row csvutil.Row) (library.Book, error) {
	id := row.Get(goodreadsBookID)
	if id == "" {
		return library.Book{}, &ookerrors.MalformedRecordError{Index: row.Index, Field: goodreadsBookID}
	}
	title := row.Get(goodreadsTitle)
	if title == "" {
		return library.Book{}, &ookerrors.MalformedRecordError{Index: row.Index, Field: goodreadsTitle}
	}

	authors := splitAuthors(row.Get(goodreadsAuthor))
	authors = append(authors, splitAuthors(row.Get(goodreadsAdditionalAuthors))...)

	percent := 0
	if row.Get(goodreadsShelf) == "read" {
		percent = 100
	}

	return library.Book{
		Key:          goodreadsKeyPrefix + id,
		Title:        title,
		Authors:      authors,
		PercentRead:  percent,
		ResourceType: row.Get(goodreadsBinding),
		OriginType:   goodreadsOrigin,
	}, nil
}

func splitAuthors(value string) library.StringList {
	if value == "" {
		return nil
	}
	var out library.StringList
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
