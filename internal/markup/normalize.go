package markup

import (
	"regexp"
	"strings"
)

// Precompiled regex patterns for performance.
var (
	// Line ending normalization
	crlfOrCR = regexp.MustCompile(`\r\n?`)

	// Compress multiple blank lines to max 2
	multipleBlankLines = regexp.MustCompile(`\n{3,}`)

	// Paragraph separator for plain text
	blankLine = regexp.MustCompile(`\n[ \t]*\n`)
)

// Normalize prepares raw text for parsing: drops a UTF-8 BOM, converts line
// endings to \n and limits consecutive blank lines.
func Normalize(content string) string {
	content = strings.TrimPrefix(content, "\ufeff")
	content = crlfOrCR.ReplaceAllString(content, "\n")
	return multipleBlankLines.ReplaceAllString(content, "\n\n")
}
