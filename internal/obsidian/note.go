// Package obsidian reads and writes markdown notes with YAML frontmatter.
package obsidian

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Note is a markdown document with YAML frontmatter and body content.
type Note struct {
	Frontmatter *Frontmatter
	Body        string
}

// Frontmatter holds note fields and serializes them with sorted keys so
// repeated exports produce identical files.
type Frontmatter struct {
	fields map[string]any
	keys   []string
}

// NewFrontmatter creates an empty Frontmatter.
func NewFrontmatter() *Frontmatter {
	return &Frontmatter{fields: make(map[string]any)}
}

// ParseMarkdown splits content into frontmatter and body. A document without
// a complete frontmatter block is all body.
func ParseMarkdown(content []byte) (*Note, error) {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	if !strings.HasPrefix(text, delimiter+"\n") {
		return &Note{Frontmatter: NewFrontmatter(), Body: text}, nil
	}

	rest := text[len(delimiter)+1:]
	end := strings.Index(rest, "\n"+delimiter+"\n")
	if end == -1 {
		return &Note{Frontmatter: NewFrontmatter(), Body: text}, nil
	}

	var data map[string]any
	if err := yaml.Unmarshal([]byte(rest[:end]), &data); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	fm := NewFrontmatter()
	for key, value := range data {
		fm.Set(key, value)
	}
	body := strings.TrimPrefix(rest[end+len(delimiter)+2:], "\n")
	return &Note{Frontmatter: fm, Body: body}, nil
}

// Build serializes the note. Tags are written in flow style: [a, b, c].
func (n *Note) Build() ([]byte, error) {
	var buf bytes.Buffer
	if n.Frontmatter != nil && len(n.Frontmatter.keys) > 0 {
		data, err := yaml.Marshal(n.Frontmatter)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal frontmatter: %w", err)
		}
		buf.WriteString(delimiter + "\n")
		buf.Write(data)
		buf.WriteString(delimiter + "\n")
	}
	buf.WriteString(n.Body)
	return buf.Bytes(), nil
}

// Get returns a raw frontmatter value.
func (f *Frontmatter) Get(key string) (any, bool) {
	val, ok := f.fields[key]
	return val, ok
}

// Set stores value under key, keeping keys sorted.
func (f *Frontmatter) Set(key string, value any) {
	if _, exists := f.fields[key]; !exists {
		f.keys = append(f.keys, key)
		sort.Strings(f.keys)
	}
	f.fields[key] = value
}

// SetIf stores value only when it is non-zero.
func (f *Frontmatter) SetIf(key string, value any) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return
		}
	case int:
		if v == 0 {
			return
		}
	case []string:
		if len(v) == 0 {
			return
		}
	case nil:
		return
	}
	f.Set(key, value)
}

// GetString returns a string field or "".
func (f *Frontmatter) GetString(key string) string {
	s, _ := f.fields[key].(string)
	return s
}

// GetStringArray returns a list field, tolerating the []any shape YAML decodes to.
func (f *Frontmatter) GetStringArray(key string) []string {
	return TagsFromAny(f.fields[key])
}

// Keys returns a copy of the sorted keys.
func (f *Frontmatter) Keys() []string {
	return append([]string(nil), f.keys...)
}

// MarshalYAML emits fields in key order with tags as a flow sequence.
func (f *Frontmatter) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range f.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}

		valueNode := &yaml.Node{}
		if key == "tags" {
			valueNode.Kind = yaml.SequenceNode
			valueNode.Style = yaml.FlowStyle
			for _, tag := range TagsFromAny(f.fields[key]) {
				valueNode.Content = append(valueNode.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: tag})
			}
		} else if err := valueNode.Encode(f.fields[key]); err != nil {
			return nil, err
		}

		node.Content = append(node.Content, keyNode, valueNode)
	}
	return node, nil
}
