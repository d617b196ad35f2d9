package markup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// ErrHTMLConversion indicates HTML conversion failed.
var ErrHTMLConversion = errors.New("HTML conversion failed")

// Source is the kind of text being rendered.
type Source int

// Text sources.
const (
	SourcePlain Source = iota
	SourceMarkdown
	SourceHTML
)

// highlightStyle is the chroma style used for fenced code.
const highlightStyle = "github"

// htmlTemplate wraps a body fragment in a complete HTML5 document.
const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s
</body>
</html>`

// printCSS is the base stylesheet for printed documents.
const printCSS = `
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; font-size: 11pt; line-height: 1.45; color: #222; }
h1, h2, h3, h4, h5, h6 { line-height: 1.2; margin: 1.2em 0 0.4em; }
pre { background: #f5f5f5; padding: 8px; white-space: pre-wrap; word-wrap: break-word; font-size: 9pt; }
pre.plain { background: none; padding: 0; font-size: 10pt; font-family: "DejaVu Sans Mono", Menlo, Consolas, monospace; }
code { font-family: "DejaVu Sans Mono", Menlo, Consolas, monospace; }
blockquote { margin: 0 0 0 1em; padding-left: 1em; border-left: 3px solid #ccc; color: #555; }
table { border-collapse: collapse; }
th, td { border: 1px solid #bbb; padding: 3px 6px; }
img { max-width: 100%; }
`

// HTMLRenderer converts text sources to standalone HTML for printing.
// It is safe for concurrent use.
type HTMLRenderer struct {
	md  goldmark.Markdown
	css string
}

// NewHTMLRenderer creates a renderer with GFM extensions and syntax highlighting.
func NewHTMLRenderer() *HTMLRenderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,      // Tables, strikethrough, autolinks, task lists
			extension.Footnote, // [^1] footnotes
			highlighting.NewHighlighting(
				highlighting.WithStyle(highlightStyle),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true), // styles come from the chroma stylesheet below
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(), // Treat newlines as <br>
			gmhtml.WithXHTML(),     // Self-closing tags
			// WithUnsafe is not used: raw HTML in Markdown is dropped.
		),
	)
	return &HTMLRenderer{md: md, css: printCSS + chromaCSS()}
}

// chromaCSS returns the class stylesheet for highlighted code.
func chromaCSS() string {
	var buf bytes.Buffer
	f := chromahtml.New(chromahtml.WithClasses(true))
	if err := f.WriteCSS(&buf, styles.Get(highlightStyle)); err != nil {
		return ""
	}
	return buf.String()
}

// Document renders content of the given source kind into a complete,
// styled HTML5 document.
func (r *HTMLRenderer) Document(ctx context.Context, src Source, title, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var doc string
	switch src {
	case SourceMarkdown:
		body, err := r.toHTML(ctx, Normalize(content))
		if err != nil {
			return "", err
		}
		// Image and link targets come from the user.
		clean, err := SanitizeFragment(body)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrHTMLConversion, err)
		}
		doc = wrapDocument(title, clean)
	case SourceHTML:
		clean, err := Sanitize(content)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrHTMLConversion, err)
		}
		doc = clean
	default:
		body := `<pre class="plain">` + html.EscapeString(Normalize(content)) + `</pre>`
		doc = wrapDocument(title, body)
	}
	return InjectCSS(doc, r.css), nil
}

// toHTML converts Markdown content to an HTML fragment.
// Supports context cancellation via goroutine + select pattern since
// Goldmark doesn't natively support context.
func (r *HTMLRenderer) toHTML(ctx context.Context, content string) (string, error) {
	type result struct {
		html string
		err  error
	}

	done := make(chan result, 1)

	go func() {
		var buf bytes.Buffer
		if err := r.md.Convert([]byte(content), &buf); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrHTMLConversion, err)}
			return
		}
		done <- result{html: buf.String()}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.html, res.err
	}
}

func wrapDocument(title, body string) string {
	if title == "" {
		title = "Document"
	}
	return fmt.Sprintf(htmlTemplate, html.EscapeString(title), body)
}

// InjectCSS inserts a <style> block into HTML content.
// Tries </head> first, then <body>, then prepends to the HTML.
// CSS content is sanitized to prevent breaking out of the style element.
func InjectCSS(htmlContent, cssContent string) string {
	if cssContent == "" {
		return htmlContent
	}

	styleBlock := "<style>" + sanitizeCSS(cssContent) + "</style>"
	lowerHTML := strings.ToLower(htmlContent)

	if idx := strings.Index(lowerHTML, "</head>"); idx != -1 {
		return htmlContent[:idx] + styleBlock + htmlContent[idx:]
	}

	if idx := strings.Index(lowerHTML, "<body"); idx != -1 {
		if closeIdx := strings.Index(htmlContent[idx:], ">"); closeIdx != -1 {
			insertPos := idx + closeIdx + 1
			return htmlContent[:insertPos] + styleBlock + htmlContent[insertPos:]
		}
	}

	return styleBlock + htmlContent
}

// sanitizeCSS escapes sequences that could break out of a <style> block.
func sanitizeCSS(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}
