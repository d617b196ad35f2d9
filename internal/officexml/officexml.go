// Package officexml extracts text from Office Open XML word-processing
// documents without an office suite.
package officexml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Sentinel errors for document reading.
var (
	ErrNotDocx  = errors.New("not a docx document")
	ErrTooLarge = errors.New("document part exceeds size limit")
)

// MaxPartSize bounds the decompressed size of word/document.xml.
const MaxPartSize = 64 << 20

const documentPart = "word/document.xml"

// Paragraph is one w:p element flattened to text.
type Paragraph struct {
	Text    string
	Heading int // 1-9 for HeadingN/Title styles, 0 otherwise
}

// Paragraphs reads the body paragraphs of a DOCX file in document order.
// Runs are concatenated; w:tab becomes a tab and w:br/w:cr a newline.
func Paragraphs(data []byte) ([]Paragraph, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocx, err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrNotDocx, documentPart)
	}

	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocx, err)
	}
	defer rc.Close()

	return parse(&limitedReader{r: rc, n: MaxPartSize})
}

// limitedReader fails instead of silently truncating at n bytes.
type limitedReader struct {
	r io.Reader
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n <= 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	return n, err
}

func parse(r io.Reader) ([]Paragraph, error) {
	dec := xml.NewDecoder(r)
	var (
		out     []Paragraph
		cur     strings.Builder
		heading int
		inPara  bool
		inText  bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", documentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				cur.Reset()
				heading = 0
			case "t":
				inText = true
			case "tab":
				if inPara {
					cur.WriteByte('\t')
				}
			case "br", "cr":
				if inPara {
					cur.WriteByte('\n')
				}
			case "pStyle":
				heading = headingLevel(attr(t, "val"))
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if inPara {
					out = append(out, Paragraph{Text: cur.String(), Heading: heading})
				}
				inPara = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && inPara {
				cur.Write(t)
			}
		}
	}
	return out, nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// headingLevel maps built-in paragraph style ids to heading levels.
func headingLevel(style string) int {
	s := strings.ToLower(style)
	switch {
	case s == "title":
		return 1
	case strings.HasPrefix(s, "heading"):
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(s, "heading")))
		if err == nil && n >= 1 && n <= 9 {
			return n
		}
	}
	return 0
}
