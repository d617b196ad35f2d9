// Package fileutil provides file and path utility functions.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Sentinel errors for file utility operations.
var (
	ErrExtensionEmpty         = errors.New("extension cannot be empty")
	ErrExtensionPathTraversal = errors.New("extension contains path separator or null byte")
	ErrUnsafeName             = errors.New("file name is empty or contains a path")
)

// MaxBaseNameLength bounds the base name kept by SanitizeFilename.
const MaxBaseNameLength = 100

// WriteFile writes data to dir/name with owner-only permissions.
// The name must be a bare file name; anything with a separator is rejected.
func WriteFile(dir, name string, data []byte) (string, error) {
	if name == "" || IsFilePath(name) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}

// ValidateExtension checks that the extension is safe for use in file names.
func ValidateExtension(extension string) error {
	if extension == "" {
		return ErrExtensionEmpty
	}
	if strings.ContainsAny(extension, "/\\\x00") {
		return ErrExtensionPathTraversal
	}
	return nil
}

// SanitizeFilename makes a user-supplied file name safe to use as a single
// path element, keeping the extension. Letters, digits, spaces and -_.()[]
// survive; everything else becomes an underscore, runs of underscores and
// whitespace collapse, and the base name is capped at MaxBaseNameLength runes.
// It returns fallback when nothing usable is left.
//
// Examples:
//   - "report.pdf" -> "report.pdf"
//   - "../../etc/passwd" -> "passwd"
//   - "my  file?.docx" -> "my_file.docx"
//   - "" -> fallback
func SanitizeFilename(name, fallback string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		return fallback
	}

	ext := filepath.Ext(name)
	if ValidateExtension(strings.TrimPrefix(ext, ".")) != nil || !isPlainExt(ext) {
		ext = ""
	}
	base := strings.TrimSuffix(name, ext)

	var b strings.Builder
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-.()[]", r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	clean := collapseUnderscores(b.String())
	clean = strings.Trim(clean, "_.")
	if clean == "" {
		return fallback
	}
	if r := []rune(clean); len(r) > MaxBaseNameLength {
		clean = string(r[:MaxBaseNameLength])
	}
	return clean + strings.ToLower(ext)
}

// ReplaceExt swaps the extension of name for ext (without dot).
func ReplaceExt(name, ext string) string {
	return TrimExt(name) + "." + ext
}

// TrimExt removes the extension of name, if any.
func TrimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func collapseUnderscores(s string) string {
	var b strings.Builder
	prev := false
	for _, r := range s {
		if r == '_' || unicode.IsSpace(r) {
			if !prev {
				b.WriteByte('_')
			}
			prev = true
			continue
		}
		prev = false
		b.WriteRune(r)
	}
	return b.String()
}

func isPlainExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 10 {
		return false
	}
	for _, r := range ext[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// IsFilePath returns true if the string looks like a file path rather than a name.
// A string containing path separators (/, \) is treated as a path.
func IsFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}
