package obsidian

import (
	"strings"

	"github.com/lepinkainen/ook/internal/library"
)

// BookNote renders rec as a note with subjects as "subject/..." tags. When
// existing is given, its tags and any fields the export does not own are kept.
func BookNote(rec library.Record, existing *Note) *Note {
	fm := NewFrontmatter()
	fm.Set("title", rec.Title)
	fm.Set("key", rec.Key)
	fm.SetIf("authors", []string(rec.Authors))
	fm.SetIf("cover", rec.CoverURL)
	fm.SetIf("format", rec.ResourceType)
	fm.Set("percent_read", rec.PercentRead)

	tags := NewTagSet()
	tags.Add("book")
	if rec.PercentRead >= 100 {
		tags.Add("book/read")
	}

	var body strings.Builder
	if md := rec.Metadata; md != nil {
		fm.SetIf("openlibrary", md.SourceKey)
		fm.SetIf("isbn", md.ISBN)
		if md.PublishYear != nil {
			fm.Set("year", *md.PublishYear)
		}
		for _, subject := range md.Subjects {
			tags.Add("subject/" + subject)
		}
		if md.Description != "" {
			body.WriteString("## Description\n\n")
			body.WriteString(strings.TrimSpace(md.Description))
			body.WriteString("\n")
		}
	}

	if existing != nil && existing.Frontmatter != nil {
		for _, key := range existing.Frontmatter.Keys() {
			if _, owned := fm.Get(key); owned || key == "tags" {
				continue
			}
			val, _ := existing.Frontmatter.Get(key)
			fm.Set(key, val)
		}
		fm.Set("tags", MergeTags(existing.Frontmatter.GetStringArray("tags"), tags.Sorted()))
	} else {
		fm.Set("tags", tags.Sorted())
	}

	return &Note{Frontmatter: fm, Body: body.String()}
}
