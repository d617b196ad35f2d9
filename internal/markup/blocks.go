package markup

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Kind is the type of a layout block.
type Kind int

// Block kinds.
const (
	Paragraph Kind = iota
	Heading
	ListItem
	Code
	Quote
	Rule
	Table
)

// Block is one unit of the flat layout stream.
type Block struct {
	Kind    Kind
	Text    string
	Level   int        // heading level (1-6), or list nesting depth from 0
	Ordered bool       // list item numbering
	Index   int        // ordinal for ordered list items
	Rows    [][]string // table cells, header row first
}

// blockParser is shared; goldmark parsers are safe for concurrent use.
var blockParser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()

// PlainBlocks splits plain text into paragraphs on blank lines. Single line
// breaks inside a paragraph are kept.
func PlainBlocks(content string) []Block {
	var out []Block
	for _, chunk := range blankLine.Split(Normalize(content), -1) {
		chunk = strings.Trim(chunk, "\n")
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		out = append(out, Block{Kind: Paragraph, Text: chunk})
	}
	return out
}

// MarkdownBlocks parses Markdown into a flat block stream.
func MarkdownBlocks(content string) []Block {
	src := []byte(Normalize(content))
	doc := blockParser.Parse(text.NewReader(src))

	w := &mdWalker{src: src}
	_ = ast.Walk(doc, w.visit)
	return w.out
}

type listState struct {
	ordered bool
	next    int
}

type mdWalker struct {
	src   []byte
	out   []Block
	lists []listState
}

func (w *mdWalker) visit(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.List:
		if entering {
			w.lists = append(w.lists, listState{ordered: node.IsOrdered(), next: node.Start})
		} else {
			w.lists = w.lists[:len(w.lists)-1]
		}
		return ast.WalkContinue, nil

	case *ast.ListItem:
		if !entering || len(w.lists) == 0 {
			return ast.WalkContinue, nil
		}
		st := &w.lists[len(w.lists)-1]
		w.out = append(w.out, Block{
			Kind:    ListItem,
			Text:    w.itemText(node),
			Level:   len(w.lists) - 1,
			Ordered: st.ordered,
			Index:   st.next,
		})
		st.next++
		return ast.WalkContinue, nil
	}

	if !entering {
		return ast.WalkContinue, nil
	}

	switch node := n.(type) {
	case *ast.Heading:
		w.out = append(w.out, Block{Kind: Heading, Level: node.Level, Text: w.inline(node)})
		return ast.WalkSkipChildren, nil

	case *ast.Paragraph, *ast.TextBlock:
		switch n.Parent().(type) {
		case *ast.ListItem:
			// Consumed by the list item.
		case *ast.Blockquote:
			w.out = append(w.out, Block{Kind: Quote, Text: w.inline(n)})
		default:
			w.out = append(w.out, Block{Kind: Paragraph, Text: w.inline(n)})
		}
		return ast.WalkSkipChildren, nil

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		w.out = append(w.out, Block{Kind: Code, Text: w.lines(n)})
		return ast.WalkSkipChildren, nil

	case *ast.HTMLBlock:
		return ast.WalkSkipChildren, nil

	case *ast.ThematicBreak:
		w.out = append(w.out, Block{Kind: Rule})
		return ast.WalkSkipChildren, nil

	case *east.Table:
		w.out = append(w.out, Block{Kind: Table, Rows: w.table(node)})
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

// itemText joins the paragraphs directly under a list item.
func (w *mdWalker) itemText(item *ast.ListItem) string {
	var parts []string
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		switch c.(type) {
		case *ast.Paragraph, *ast.TextBlock:
			parts = append(parts, w.inline(c))
		}
	}
	return strings.Join(parts, " ")
}

func (w *mdWalker) table(t *east.Table) [][]string {
	var rows [][]string
	for r := t.FirstChild(); r != nil; r = r.NextSibling() {
		var row []string
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			row = append(row, w.inline(c))
		}
		rows = append(rows, row)
	}
	return rows
}

// lines returns the raw content of a code block.
func (w *mdWalker) lines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := range lines.Len() {
		seg := lines.At(i)
		b.Write(seg.Value(w.src))
	}
	return b.String()
}

// inline flattens the inline children of n to text.
func (w *mdWalker) inline(n ast.Node) string {
	var b strings.Builder
	w.writeInline(&b, n)
	return strings.TrimSpace(b.String())
}

func (w *mdWalker) writeInline(b *strings.Builder, n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(w.src))
			switch {
			case node.HardLineBreak():
				b.WriteByte('\n')
			case node.SoftLineBreak():
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.Label(w.src))
		case *ast.RawHTML:
			// Inline HTML is dropped.
		default:
			w.writeInline(b, c)
		}
	}
}
