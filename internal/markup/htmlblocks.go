package markup

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLBlocks extracts a block stream from an HTML document. Only structure
// that maps onto blocks is kept; styling, scripts and media are dropped.
func HTMLBlocks(content string) ([]Block, error) {
	doc, err := html.Parse(strings.NewReader(Normalize(content)))
	if err != nil {
		return nil, err
	}
	w := &htmlWalker{}
	w.walk(doc, 0)
	w.flush()
	return w.out, nil
}

type htmlWalker struct {
	out     []Block
	pending strings.Builder
}

// flush turns loose inline text into a paragraph.
func (w *htmlWalker) flush() {
	if t := collapseSpace(w.pending.String()); t != "" {
		w.out = append(w.out, Block{Kind: Paragraph, Text: t})
	}
	w.pending.Reset()
}

func (w *htmlWalker) walk(n *html.Node, depth int) {
	switch n.Type {
	case html.TextNode:
		w.pending.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c, depth)
		}
		return
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Head, atom.Noscript, atom.Template, atom.Iframe, atom.Object, atom.Svg:
		return
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		w.flush()
		w.out = append(w.out, Block{Kind: Heading, Level: int(n.Data[1] - '0'), Text: collapseSpace(textOf(n))})
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer, atom.Main:
		w.flush()
		w.children(n, depth)
		w.flush()
	case atom.Br:
		w.pending.WriteByte('\n')
	case atom.Pre:
		w.flush()
		w.out = append(w.out, Block{Kind: Code, Text: rawText(n)})
	case atom.Blockquote:
		w.flush()
		w.out = append(w.out, Block{Kind: Quote, Text: collapseSpace(textOf(n))})
	case atom.Hr:
		w.flush()
		w.out = append(w.out, Block{Kind: Rule})
	case atom.Ul, atom.Ol:
		w.flush()
		w.list(n, depth)
	case atom.Table:
		w.flush()
		if rows := tableRows(n); len(rows) > 0 {
			w.out = append(w.out, Block{Kind: Table, Rows: rows})
		}
	default:
		w.children(n, depth)
	}
}

func (w *htmlWalker) children(n *html.Node, depth int) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, depth)
	}
}

func (w *htmlWalker) list(n *html.Node, depth int) {
	ordered := n.DataAtom == atom.Ol
	index := 1
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		var text strings.Builder
		var nested []*html.Node
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
				nested = append(nested, c)
				continue
			}
			text.WriteString(textOf(c))
		}
		w.out = append(w.out, Block{Kind: ListItem, Text: collapseSpace(text.String()), Level: depth, Ordered: ordered, Index: index})
		index++
		for _, sub := range nested {
			w.list(sub, depth+1)
		}
	}
}

func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var row []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					row = append(row, collapseSpace(textOf(c)))
				}
			}
			rows = append(rows, row)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(table)
	return rows
}

// textOf returns the concatenated text under n, skipping scripts and styles.
// Source line breaks are whitespace; only <br> yields a newline.
func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.ReplaceAll(n.Data, "\n", " ")
	}
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style:
			return ""
		case atom.Br:
			return "\n"
		}
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))
	}
	return b.String()
}

// rawText returns the text under n as written, for preformatted blocks.
func rawText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(rawText(c))
	}
	return b.String()
}

// collapseSpace folds runs of spaces and tabs, keeping explicit newlines.
func collapseSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
