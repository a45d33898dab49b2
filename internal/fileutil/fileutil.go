// Package fileutil writes export files without clobbering existing ones
// unless asked to.
package fileutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var filenameReplacer = strings.NewReplacer(
	":", " -",
	"/", "-",
	"\\", "-",
	"?", "",
	"*", "",
	"\"", "'",
	"<", "",
	">", "",
	"|", "-",
)

// maxFilenameRunes keeps generated names well under common filesystem limits.
const maxFilenameRunes = 120

// SanitizeFilename replaces characters that are invalid in file names on
// common filesystems and truncates very long titles.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(filenameReplacer.Replace(name))
	if r := []rune(name); len(r) > maxFilenameRunes {
		name = strings.TrimSpace(string(r[:maxFilenameRunes]))
	}
	return name
}

// NotePath returns the markdown path for title inside directory.
func NotePath(directory, title string) string {
	return filepath.Join(directory, SanitizeFilename(title)+".md")
}

// FileExists reports whether filePath exists and is not a directory.
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	return err == nil && !info.IsDir()
}

// WriteFileWithOverwrite writes data, creating parent directories. An
// existing file is left alone unless overwrite is set. Returns whether the
// file was written.
func WriteFileWithOverwrite(filePath string, data []byte, perm os.FileMode, overwrite bool) (bool, error) {
	if !overwrite && FileExists(filePath) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, perm); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", filePath, err)
	}
	return true, nil
}

// WriteJSONFile writes data as indented JSON with the same overwrite rule.
func WriteJSONFile(data any, filePath string, overwrite bool) (bool, error) {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return WriteFileWithOverwrite(filePath, append(encoded, '\n'), 0o644, overwrite)
}
