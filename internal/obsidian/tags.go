package obsidian

import (
	"regexp"
	"sort"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	hyphenRun     = regexp.MustCompile(`-+`)
)

// NormalizeTag turns a subject into an Obsidian tag: case is preserved,
// whitespace becomes hyphens, "&" becomes "and", "#" and stray punctuation
// that breaks tag parsing are dropped. "/" is kept for nested tags.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
	if tag == "" {
		return ""
	}

	tag = strings.ReplaceAll(tag, "&", "and")
	tag = strings.Map(func(r rune) rune {
		switch r {
		case '#', ',', '.', ';', ':', '"', '\'', '(', ')', '[', ']':
			return -1
		}
		return r
	}, tag)
	tag = whitespaceRun.ReplaceAllString(tag, "-")
	tag = hyphenRun.ReplaceAllString(tag, "-")
	return strings.Trim(tag, "-")
}

// TagSet collects normalized, deduplicated tags.
type TagSet struct {
	tags map[string]struct{}
}

// NewTagSet creates an empty TagSet.
func NewTagSet() *TagSet {
	return &TagSet{tags: make(map[string]struct{})}
}

// Add normalizes tag and adds it unless it normalizes to "".
func (ts *TagSet) Add(tag string) {
	if n := NormalizeTag(tag); n != "" {
		ts.tags[n] = struct{}{}
	}
}

// AddAll adds every tag.
func (ts *TagSet) AddAll(tags []string) {
	for _, tag := range tags {
		ts.Add(tag)
	}
}

// Sorted returns the tags in lexical order.
func (ts *TagSet) Sorted() []string {
	out := make([]string, 0, len(ts.tags))
	for tag := range ts.tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// MergeTags combines existing and added tags into one sorted, normalized list.
func MergeTags(existing, added []string) []string {
	ts := NewTagSet()
	ts.AddAll(existing)
	ts.AddAll(added)
	return ts.Sorted()
}

// TagsFromAny extracts a string list from a decoded YAML value, which may be
// []string or []any. Anything else yields an empty list.
func TagsFromAny(val any) []string {
	out := []string{}
	switch v := val.(type) {
	case []string:
		for _, s := range v {
			if s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
