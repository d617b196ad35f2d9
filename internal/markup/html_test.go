package markup

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// TestHTMLRenderer_Document - Standalone document per source kind
// ---------------------------------------------------------------------------

func TestHTMLRenderer_Document(t *testing.T) {
	t.Parallel()

	r := NewHTMLRenderer()

	tests := []struct {
		name         string
		src          Source
		content      string
		wantContains []string
		wantExcludes []string
	}{
		{
			name:         "markdown with code",
			src:          SourceMarkdown,
			content:      "# Hello\n\n```go\nfunc main() {}\n```\n",
			wantContains: []string{"<!DOCTYPE html>", `<h1 id="hello">Hello</h1>`, "<style>", "chroma"},
		},
		{
			name:         "markdown raw html is not rendered",
			src:          SourceMarkdown,
			content:      "<script>alert(1)</script>\n",
			wantExcludes: []string{"<script>"},
		},
		{
			name:         "markdown resource refs are stripped",
			src:          SourceMarkdown,
			content:      "![x](/etc/hosts.png)\n\n![y](http://169.254.169.254/latest/meta.png)\n\n[docs](file:///etc/passwd)\n",
			wantContains: []string{"<img", `alt="x"`, "docs"},
			wantExcludes: []string{"/etc/hosts.png", "169.254.169.254", "file:///etc/passwd"},
		},
		{
			name:         "markdown keeps data images and web links",
			src:          SourceMarkdown,
			content:      "![dot](data:image/png;base64,iVBORw0KGgo=) see [site](https://example.com)\n",
			wantContains: []string{`src="data:image/png;base64,iVBORw0KGgo="`, `href="https://example.com"`},
		},
		{
			name:         "plain text is escaped",
			src:          SourcePlain,
			content:      "a < b & c",
			wantContains: []string{`<pre class="plain">a &lt; b &amp; c</pre>`},
		},
		{
			name:         "html fragment is wrapped and sanitized",
			src:          SourceHTML,
			content:      `<p onclick="x()">hi</p><script>bad()</script>`,
			wantContains: []string{"<!DOCTYPE html>", "<p>hi</p>", "<style>"},
			wantExcludes: []string{"onclick", "bad()"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := r.Document(context.Background(), tt.src, "Doc", tt.content)
			if err != nil {
				t.Fatalf("Document() error = %v", err)
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q", want)
				}
			}
			for _, bad := range tt.wantExcludes {
				if strings.Contains(got, bad) {
					t.Errorf("output should not contain %q", bad)
				}
			}
		})
	}
}

func TestHTMLRenderer_Document_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTMLRenderer().Document(ctx, SourceMarkdown, "", "# x")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Document() error = %v, want context.Canceled", err)
	}
}

// ---------------------------------------------------------------------------
// TestInjectCSS - Style placement
// ---------------------------------------------------------------------------

func TestInjectCSS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		css  string
		want string
	}{
		{name: "before head close", html: "<html><head></head></html>", css: "a{}", want: "<html><head><style>a{}</style></head></html>"},
		{name: "after body open", html: `<body class="x">t</body>`, css: "a{}", want: `<body class="x"><style>a{}</style>t</body>`},
		{name: "prepend", html: "<p>t</p>", css: "a{}", want: "<style>a{}</style><p>t</p>"},
		{name: "empty css", html: "<p>t</p>", css: "", want: "<p>t</p>"},
		{name: "style close escaped", html: "<p>t</p>", css: "</style>", want: `<style><\/style></style><p>t</p>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := InjectCSS(tt.html, tt.css); got != tt.want {
				t.Errorf("InjectCSS() = %q, want %q", got, tt.want)
			}
		})
	}
}
