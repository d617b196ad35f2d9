package docconv

// Notes:
// - Shared fakes and fixtures for the package tests.
// - newTestProbe never touches PATH: lookPath, browserPath and stat are
//   injected, so availability is fully controlled by the test.
// - Fixtures (PNG, JPEG, PDF, DOCX, XLSX) are generated in memory with the
//   same libraries the strategies read them with.

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/alnah/go-docconv/internal/pdfdoc"
	"github.com/alnah/go-docconv/internal/process"
)

// ---------------------------------------------------------------------------
// Fake strategy
// ---------------------------------------------------------------------------

type fakeStrategy struct {
	desc    StrategyDescriptor
	accepts func(*Job) bool
	exec    func(ctx context.Context, job *Job, ws *Workspace) (*Artifact, error)

	calls atomic.Int32
	mu    sync.Mutex
	dirs  []string
}

func (f *fakeStrategy) Descriptor() StrategyDescriptor { return f.desc }

func (f *fakeStrategy) Accepts(job *Job) bool {
	if f.accepts == nil {
		return true
	}
	return f.accepts(job)
}

func (f *fakeStrategy) Execute(ctx context.Context, job *Job, ws *Workspace) (*Artifact, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.dirs = append(f.dirs, ws.Dir())
	f.mu.Unlock()
	if f.exec == nil {
		return fakePDF(), nil
	}
	return f.exec(ctx, job, ws)
}

func (f *fakeStrategy) scratchDirs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dirs...)
}

func fakePDF() *Artifact {
	return &Artifact{MediaType: MediaTypePDF, Data: []byte("%PDF-1.4 fake")}
}

func succeeding(name string, class Class, priority int) *fakeStrategy {
	return &fakeStrategy{desc: StrategyDescriptor{Name: name, Class: class, Priority: priority}}
}

func failing(name string, class Class, priority int, err error) *fakeStrategy {
	return &fakeStrategy{
		desc: StrategyDescriptor{Name: name, Class: class, Priority: priority},
		exec: func(context.Context, *Job, *Workspace) (*Artifact, error) { return nil, err },
	}
}

// ---------------------------------------------------------------------------
// Fake runner
// ---------------------------------------------------------------------------

type fakeRunner struct {
	mu   sync.Mutex
	cmds []process.Command
	fn   func(process.Command) (*process.Result, error)
}

func (r *fakeRunner) Run(ctx context.Context, c process.Command) (*process.Result, error) {
	r.mu.Lock()
	r.cmds = append(r.cmds, c)
	r.mu.Unlock()
	if r.fn == nil {
		return &process.Result{}, nil
	}
	return r.fn(c)
}

func (r *fakeRunner) commands() []process.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]process.Command(nil), r.cmds...)
}

// argAfter returns the argument following flag, or "".
func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Probe
// ---------------------------------------------------------------------------

// newTestProbe returns a detected probe on which exactly the given tools exist.
func newTestProbe(t *testing.T, available ...ToolID) *Probe {
	t.Helper()

	bin := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o700); err != nil {
		t.Fatal(err)
	}
	has := make(map[ToolID]bool, len(available))
	for _, id := range available {
		has[id] = true
	}

	p := NewProbe(nil, zerolog.Nop())
	p.lookPath = func(name string) (string, error) {
		for id, names := range toolCandidates {
			if has[id] && names[0] == name {
				return bin, nil
			}
		}
		return "", exec.ErrNotFound
	}
	p.browserPath = func() (string, bool) {
		if has[ToolChrome] {
			return bin, true
		}
		return "", false
	}
	p.Detect(context.Background())
	return p
}

// ---------------------------------------------------------------------------
// Workspace
// ---------------------------------------------------------------------------

// stagedWorkspace acquires a workspace with files staged and returns a
// scratch attempt of it. Both are cleaned up with the test.
func stagedWorkspace(t *testing.T, files ...File) *Workspace {
	t.Helper()

	guard := NewResourceGuard(t.TempDir(), zerolog.Nop())
	ws, err := guard.Acquire("test-job")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	t.Cleanup(func() { guard.Release(ws) })
	if err := ws.Stage(files); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	scratch, err := ws.Attempt("test")
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	return scratch
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

func testSettings(t *testing.T) Settings {
	t.Helper()
	s := DefaultSettings()
	s.WorkspaceDir = t.TempDir()
	return s
}

// newTestEngine creates an engine with no external tools and closes it
// with the test. Options are applied after the defaults.
func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	base := []Option{
		WithSettings(testSettings(t)),
		WithProbe(newTestProbe(t)),
		WithRunner(&fakeRunner{}),
	}
	e, err := NewEngine(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func solidImage(w, h int, c color.Color) image.Image {
	return imaging.New(w, h, c)
}

func encodeImage(t *testing.T, img image.Image, f imaging.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	return encodeImage(t, solidImage(w, h, color.NRGBA{R: 40, G: 120, B: 200, A: 255}), imaging.PNG)
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	return encodeImage(t, solidImage(w, h, color.NRGBA{R: 200, G: 80, B: 30, A: 255}), imaging.JPEG)
}

// pdfBytes builds a text PDF with the given number of pages.
func pdfBytes(t *testing.T, pages int) []byte {
	t.Helper()
	doc := pdfdoc.New("fixture")
	for i := range pages {
		if i > 0 {
			doc.PageBreak()
		}
		doc.Paragraph("page body")
	}
	data, err := doc.Bytes()
	if err != nil {
		t.Fatalf("pdf fixture: %v", err)
	}
	return data
}

// docxBytes builds a minimal DOCX whose body holds one paragraph per entry.
// Entries starting with "# " get the Heading1 style.
func docxBytes(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString("<w:p>")
		if h, ok := strings.CutPrefix(p, "# "); ok {
			body.WriteString(`<w:pPr><w:pStyle w:val="Heading1"/></w:pPr>`)
			p = h
		}
		body.WriteString("<w:r><w:t>" + p + "</w:t></w:r></w:p>")
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// xlsxBytes builds a workbook with one sheet per entry, rows written from A1.
func xlsxBytes(t *testing.T, sheets map[string][][]any, order ...string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for i, name := range order {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatal(err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatal(err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				t.Fatal(err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
