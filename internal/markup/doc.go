// Package markup turns text inputs into renderable forms.
//
// Two outputs are produced from plain text, Markdown, and HTML:
//   - a flat block stream (headings, paragraphs, list items, code, quotes,
//     rules, tables) consumed by the in-process PDF writer
//   - a standalone, sanitized HTML5 document consumed by headless Chrome
//
// Markdown parsing uses goldmark with GFM; HTML parsing uses x/net/html.
package markup
