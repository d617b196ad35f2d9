package markup

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Sanitize prepares untrusted HTML for offline rendering. It removes active
// content (scripts, frames, plugins, event handlers, javascript: URLs) and
// any reference to a remote or local resource, keeping only inline data:
// URIs. Fragments are returned as a complete document.
func Sanitize(content string) (string, error) {
	doc, isFragment, err := parseHTML(content)
	if err != nil {
		return "", err
	}
	sanitizeNode(doc)

	out, err := renderHTML(doc, isFragment)
	if err != nil {
		return "", err
	}
	if isFragment {
		return wrapDocument("Document", out), nil
	}
	return out, nil
}

// SanitizeFragment applies the same rules as Sanitize to a body fragment
// and returns the cleaned fragment without a document wrapper.
func SanitizeFragment(fragment string) (string, error) {
	body := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Body,
		Data:     "body",
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return "", err
	}
	container := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	sanitizeNode(container)
	return renderHTML(container, true)
}

// parseHTML parses HTML content, handling both full documents and fragments.
// Returns the parsed node, whether it was a fragment, and any error.
func parseHTML(content string) (*html.Node, bool, error) {
	trimmed := strings.ToLower(strings.TrimSpace(content))

	// Full document: starts with <!DOCTYPE or <html
	if strings.HasPrefix(trimmed, "<!doctype") || strings.HasPrefix(trimmed, "<html") {
		doc, err := html.Parse(strings.NewReader(content))
		return doc, false, err
	}

	// Fragment: parse with body context to avoid wrapping
	body := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Body,
		Data:     "body",
	}
	nodes, err := html.ParseFragment(strings.NewReader(content), body)
	if err != nil {
		return nil, true, err
	}

	// Wrap nodes in a container for uniform traversal
	container := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container, true, nil
}

// renderHTML renders the document back to string.
// For fragments, only renders the children (avoids adding <html><body> wrapper).
func renderHTML(doc *html.Node, isFragment bool) (string, error) {
	var buf strings.Builder

	if isFragment {
		for c := doc.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(&buf, c); err != nil {
				return "", err
			}
		}
		return buf.String(), nil
	}

	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// droppedElements are removed with their whole subtree.
var droppedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Iframe:   true,
	atom.Frame:    true,
	atom.Frameset: true,
	atom.Object:   true,
	atom.Embed:    true,
	atom.Applet:   true,
	atom.Link:     true,
	atom.Base:     true,
	atom.Meta:     true,
	atom.Video:    true,
	atom.Audio:    true,
	atom.Source:   true,
}

// urlAttrs hold resource references.
var urlAttrs = map[string]bool{
	"src": true, "href": true, "srcset": true, "action": true,
	"formaction": true, "poster": true, "background": true, "xlink:href": true,
}

func sanitizeNode(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && (droppedElements[c.DataAtom] || isUnsafeStyle(c)) {
			n.RemoveChild(c)
		} else {
			sanitizeNode(c)
		}
		c = next
	}
	if n.Type != html.ElementNode {
		return
	}

	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		switch {
		case strings.HasPrefix(key, "on"):
			continue
		case key == "style" && hasExternalRef(a.Val):
			continue
		case urlAttrs[key] && !isSafeRef(key, a.Val):
			continue
		}
		attrs = append(attrs, a)
	}
	n.Attr = attrs
}

// isUnsafeStyle reports a <style> element that pulls external resources.
func isUnsafeStyle(n *html.Node) bool {
	if n.DataAtom != atom.Style {
		return false
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(c.Data)
	}
	return hasExternalRef(b.String())
}

func hasExternalRef(css string) bool {
	lower := strings.ToLower(css)
	return strings.Contains(lower, "url(") || strings.Contains(lower, "@import")
}

// isSafeRef allows in-page anchors, data: URIs and plain links. Links are
// inert in a PDF; resource loads are not, so src-like attributes only
// accept data: URIs.
func isSafeRef(key, val string) bool {
	v := strings.ToLower(strings.TrimSpace(val))
	switch {
	case v == "":
		return true
	case strings.HasPrefix(v, "javascript:"), strings.HasPrefix(v, "vbscript:"):
		return false
	case strings.HasPrefix(v, "data:"):
		return key != "href"
	case key == "href":
		return strings.HasPrefix(v, "#") || strings.HasPrefix(v, "http://") ||
			strings.HasPrefix(v, "https://") || strings.HasPrefix(v, "mailto:")
	}
	return false
}
