package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "normal text", input: "Normal Text", expected: "Normal Text"},
		{name: "colon", input: "Dune: Messiah", expected: "Dune - Messiah"},
		{name: "slash", input: "Either/Or", expected: "Either-Or"},
		{name: "backslash", input: "Title\\Subtitle", expected: "Title-Subtitle"},
		{name: "question mark", input: "Who Goes There?", expected: "Who Goes There"},
		{name: "quotes and pipes", input: `The "Real" Story | Part 1`, expected: "The 'Real' Story - Part 1"},
		{name: "surrounding space", input: "  Hyperion  ", expected: "Hyperion"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeFilename(tc.input))
		})
	}
}

func TestSanitizeFilenameTruncates(t *testing.T) {
	long := strings.Repeat("ä", 200)
	got := SanitizeFilename(long)
	assert.Equal(t, maxFilenameRunes, len([]rune(got)))
}

func TestNotePath(t *testing.T) {
	assert.Equal(t, filepath.Join("notes", "Dune - Messiah.md"), NotePath("notes", "Dune: Messiah"))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	assert.False(t, FileExists(path))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.True(t, FileExists(path))
	assert.False(t, FileExists(dir), "directories are not files")
}

func TestWriteFileWithOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "note.md")

	written, err := WriteFileWithOverwrite(path, []byte("first"), 0o644, false)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = WriteFileWithOverwrite(path, []byte("second"), 0o644, false)
	require.NoError(t, err)
	assert.False(t, written)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))

	written, err = WriteFileWithOverwrite(path, []byte("third"), 0o644, true)
	require.NoError(t, err)
	assert.True(t, written)
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "third", string(content))
}

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.json")

	written, err := WriteJSONFile(map[string]int{"books": 2}, path, false)
	require.NoError(t, err)
	assert.True(t, written)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"books\": 2\n}\n", string(content))
}

func TestWriteJSONFileMarshalError(t *testing.T) {
	_, err := WriteJSONFile(make(chan int), filepath.Join(t.TempDir(), "x.json"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to marshal JSON")
}
