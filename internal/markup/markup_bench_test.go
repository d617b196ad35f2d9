//go:build bench

package markup

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// BenchmarkDocument measures printable HTML generation for each source kind.
func BenchmarkDocument(b *testing.B) {
	renderer := NewHTMLRenderer()
	ctx := context.Background()

	inputs := []struct {
		name    string
		src     Source
		content string
	}{
		{"plain_letter", SourcePlain, plainLetter(20)},
		{"markdown_report", SourceMarkdown, markdownReport(20)},
		{"markdown_code", SourceMarkdown, markdownCode("go", 100)},
		{"html_page", SourceHTML, htmlPage(20)},
	}

	for _, in := range inputs {
		b.Run(in.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := renderer.Document(ctx, in.src, "bench", in.content); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkDocumentBySize shows how Markdown rendering scales with sections.
func BenchmarkDocumentBySize(b *testing.B) {
	renderer := NewHTMLRenderer()
	ctx := context.Background()

	for _, n := range []int{1, 10, 100, 500} {
		content := markdownReport(n)
		b.Run(fmt.Sprintf("sections_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(content)))
			for i := 0; i < b.N; i++ {
				if _, err := renderer.Document(ctx, SourceMarkdown, "", content); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkDocumentParallel renders from many goroutines with one renderer,
// as the chrome strategy does under load.
func BenchmarkDocumentParallel(b *testing.B) {
	renderer := NewHTMLRenderer()
	ctx := context.Background()
	content := markdownReport(20)

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := renderer.Document(ctx, SourceMarkdown, "", content); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkBlocks measures the block streams fed to the native PDF writer.
func BenchmarkBlocks(b *testing.B) {
	plain := plainLetter(200)
	md := markdownReport(200)
	page := htmlPage(200)

	b.Run("plain", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = PlainBlocks(plain)
		}
	})
	b.Run("markdown", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = MarkdownBlocks(md)
		}
	})
	b.Run("html", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := HTMLBlocks(page); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkSanitize measures stripping of scripts and external references.
func BenchmarkSanitize(b *testing.B) {
	page := htmlPage(100)
	b.ReportAllocs()
	b.SetBytes(int64(len(page)))
	for i := 0; i < b.N; i++ {
		if _, err := Sanitize(page); err != nil {
			b.Fatal(err)
		}
	}
}

func plainLetter(paragraphs int) string {
	var sb strings.Builder
	sb.WriteString("Dear customer,\n\n")
	for i := 0; i < paragraphs; i++ {
		fmt.Fprintf(&sb, "Paragraph %d of the letter. The invoice attached lists\nthe items shipped this month and their unit prices.\n\n", i+1)
	}
	sb.WriteString("Regards,\nAccounts\n")
	return sb.String()
}

func markdownReport(sections int) string {
	var sb strings.Builder
	sb.WriteString("# Quarterly Report\n\n")
	sb.WriteString("Summary with **bold**, *emphasis* and `inline code`.\n\n")
	for i := 0; i < sections; i++ {
		fmt.Fprintf(&sb, "## Region %d\n\n", i+1)
		sb.WriteString("Revenue grew in every store. See [details](https://example.com).\n\n")
		sb.WriteString("1. Opened two stores\n2. Closed one warehouse\n\n")
		if i%3 == 0 {
			sb.WriteString("> Figures are unaudited.\n\n")
		}
		if i%4 == 0 {
			sb.WriteString("| Month | Sales | Returns |\n|---|---|---|\n| Jan | 120 | 4 |\n| Feb | 135 | 2 |\n\n")
		}
		if i%5 == 0 {
			sb.WriteString("```sql\nSELECT region, SUM(total) FROM sales GROUP BY region;\n```\n\n")
		}
	}
	return sb.String()
}

func markdownCode(lang string, lines int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "```%s\n", lang)
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&sb, "total += price[%d] * qty[%d] // line %d\n", i, i, i+1)
	}
	sb.WriteString("```\n")
	return sb.String()
}

func htmlPage(rows int) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html><html><head><title>Orders</title>")
	sb.WriteString("<script>track()</script><link rel=\"stylesheet\" href=\"https://cdn.example.com/x.css\">")
	sb.WriteString("</head><body><h1>Orders</h1><p onclick=\"x()\">Open orders below.</p><table>")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&sb, "<tr><td>#%04d</td><td>Widget</td><td>%d.00</td></tr>", i, i*3)
	}
	sb.WriteString("</table><ul><li>Ships Monday</li><li>Net 30</li></ul></body></html>")
	return sb.String()
}
