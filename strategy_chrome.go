package docconv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-docconv/internal/markup"
	"github.com/alnah/go-docconv/internal/mediatype"
)

// Browser rendering errors.
var (
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageLoad       = errors.New("failed to load page")
	ErrPDFGeneration  = errors.New("PDF generation failed")
)

// A4 page in inches, with 0.5 inch margins.
const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69
	marginInches   = 0.5
)

// htmlDocumentName is the file the browser loads from the scratch dir.
const htmlDocumentName = "document.html"

// pdfRenderer turns a local HTML file into PDF bytes.
type pdfRenderer interface {
	RenderFile(ctx context.Context, path string) ([]byte, error)
}

// Compile-time interface checks.
var (
	_ pdfRenderer = (*browser)(nil)
	_ io.Closer   = (*browser)(nil)
)

// browser is one headless Chrome shared by all jobs. It launches on first
// use; each render opens its own page.
type browser struct {
	probe   *Probe
	timeout time.Duration

	// launching admits one launch at a time; waiters give up with their
	// own context.
	launching chan struct{}

	mu       sync.Mutex
	rod      *rod.Browser
	launcher *launcher.Launcher
}

func newBrowser(probe *Probe, timeout time.Duration) *browser {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &browser{probe: probe, timeout: timeout, launching: make(chan struct{}, 1)}
}

// running returns the connected browser, or nil.
func (b *browser) running() *rod.Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rod
}

// connect returns the running browser, launching it if needed. The launch
// is bounded by ctx.
func (b *browser) connect(ctx context.Context) (*rod.Browser, error) {
	if br := b.running(); br != nil {
		return br, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrowserConnect, err)
	}

	select {
	case b.launching <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for launch: %w", ErrBrowserConnect, ctx.Err())
	}
	defer func() { <-b.launching }()

	if br := b.running(); br != nil {
		return br, nil
	}

	l := launcher.New().Context(ctx).Headless(true)
	if b.probe != nil {
		if bin := b.probe.Path(ToolChrome); bin != "" {
			l = l.Bin(bin)
		}
	}
	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		discardLauncher(l)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrBrowserConnect, ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	br := rod.New().ControlURL(u)
	if err := br.Connect(); err != nil {
		discardLauncher(l)
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	b.mu.Lock()
	b.rod, b.launcher = br, l
	b.mu.Unlock()
	return br, nil
}

// discardLauncher kills a half-started browser and removes its profile.
func discardLauncher(l *launcher.Launcher) {
	if l.PID() == 0 {
		return
	}
	l.Kill()
	go l.Cleanup()
}

// reset drops a browser that stopped answering so the next job relaunches it.
func (b *browser) reset(br *rod.Browser) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rod != br {
		return
	}
	b.closeLocked()
}

// RenderFile opens path in a new page and prints it to A4 PDF.
func (b *browser) RenderFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	br, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}

	target := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	page, err := br.Context(ctx).Page(proto.TargetCreateTarget{URL: target.String()})
	if err != nil {
		if ctx.Err() == nil {
			b.reset(br)
		}
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	defer page.Close()

	timeout := b.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	reader, err := page.PDF(printOptions())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPDFGeneration, err)
	}
	return data, nil
}

// printOptions is A4 portrait with backgrounds, so highlighted code keeps
// its colors.
func printOptions() *proto.PagePrintToPDF {
	return &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(a4WidthInches),
		PaperHeight:     floatPtr(a4HeightInches),
		MarginTop:       floatPtr(marginInches),
		MarginBottom:    floatPtr(marginInches),
		MarginLeft:      floatPtr(marginInches),
		MarginRight:     floatPtr(marginInches),
		PrintBackground: true,
	}
}

// Close shuts the browser down. It is safe to call when it never launched.
func (b *browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *browser) closeLocked() error {
	if b.rod == nil {
		return nil
	}
	err := b.rod.Close()
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
	b.rod, b.launcher = nil, nil
	return err
}

func floatPtr(v float64) *float64 {
	return &v
}

// chromeHTMLStrategy renders text through HTML in headless Chrome, which
// gives syntax highlighting and full CSS layout.
type chromeHTMLStrategy struct {
	descriptor
	renderer pdfRenderer
	html     *markup.HTMLRenderer
}

func newChromeHTMLStrategy(r pdfRenderer) *chromeHTMLStrategy {
	return &chromeHTMLStrategy{
		descriptor: descriptor{StrategyDescriptor{
			Name:     StrategyChromeHTML,
			Class:    ClassTextToPDF,
			Priority: prioritySecondary,
			Tool:     ToolChrome,
			Heavy:    true,
		}},
		renderer: r,
		html:     markup.NewHTMLRenderer(),
	}
}

func (s *chromeHTMLStrategy) Accepts(job *Job) bool {
	return acceptsAll(job, mediatype.IsText)
}

func (s *chromeHTMLStrategy) Execute(ctx context.Context, job *Job, ws *Workspace) (*Artifact, error) {
	f := job.Files[0]
	doc, err := s.html.Document(ctx, htmlSource(f.MediaType), documentTitle(job), decodeText(f.Data))
	if err != nil {
		return nil, err
	}
	path, err := ws.WriteFile(htmlDocumentName, []byte(doc))
	if err != nil {
		return nil, fmt.Errorf("writing html: %w", err)
	}
	data, err := s.renderer.RenderFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Artifact{MediaType: MediaTypePDF, Data: data}, nil
}

func htmlSource(mediaType string) markup.Source {
	switch mediaType {
	case mediatype.Markdown:
		return markup.SourceMarkdown
	case mediatype.HTML:
		return markup.SourceHTML
	}
	return markup.SourcePlain
}
