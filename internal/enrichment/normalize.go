package enrichment

import (
	"regexp"
	"strings"
)

var (
	parentheticalRe = regexp.MustCompile(`\s*\([^)]*\)`)
	subtitleRe      = regexp.MustCompile(`:.*$`)
)

// NormalizeTitle strips series markers in parentheses and any subtitle after
// the first colon: "Book (Edition 2): More Stuff" becomes "Book".
func NormalizeTitle(title string) string {
	cleaned := parentheticalRe.ReplaceAllString(title, "")
	cleaned = subtitleRe.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// NormalizeAuthor converts "Last, First" into "First Last".
func NormalizeAuthor(name string) string {
	if last, first, ok := strings.Cut(name, ","); ok {
		return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	}
	return strings.TrimSpace(name)
}

// cleanSubjects drops blanks and duplicates, keeps source order and caps the
// list at limit entries.
func cleanSubjects(subjects []string, limit int) []string {
	seen := make(map[string]bool, len(subjects))
	out := make([]string, 0, min(len(subjects), limit))
	for _, s := range subjects {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}
