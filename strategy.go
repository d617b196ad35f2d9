package docconv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alnah/go-docconv/internal/archive"
	"github.com/alnah/go-docconv/internal/fileutil"
	"github.com/alnah/go-docconv/internal/process"
)

// Strategy is one concrete way of performing a conversion class.
//
// Execute must write any intermediate files into ws only, and must honour
// ctx: the chain derives it with the per-attempt timeout. Any returned error
// counts as a failure of this strategy and moves the chain to the next one.
type Strategy interface {
	Descriptor() StrategyDescriptor
	Accepts(job *Job) bool
	Execute(ctx context.Context, job *Job, ws *Workspace) (*Artifact, error)
}

// Built-in strategy names.
const (
	StrategyImageCompose = "image-compose"
	StrategyImageMagick  = "imagemagick"
	StrategyRasterMuPDF  = "raster-mupdf"
	StrategyPdftoppm     = "pdftoppm"
	StrategyLibreOffice  = "libreoffice"
	StrategyPandoc       = "pandoc"
	StrategyDocxText     = "docx-text"
	StrategyXlsxTable    = "xlsx-table"
	StrategyTextRender   = "text-render"
	StrategyChromeHTML   = "chrome-html"
	StrategyPandocText   = "pandoc-text"
)

// Priority tiers. Lower runs first.
const (
	priorityPrimary   = 10
	prioritySecondary = 20
	priorityFallback  = 30
)

var errToolUnavailable = errors.New("tool not available")

// descriptor embeds a fixed StrategyDescriptor into a strategy.
type descriptor struct {
	desc StrategyDescriptor
}

// Descriptor returns the strategy's identity and scheduling attributes.
func (d descriptor) Descriptor() StrategyDescriptor { return d.desc }

// acceptsAll reports whether every job file satisfies pred.
func acceptsAll(job *Job, pred func(mediaType string) bool) bool {
	if len(job.Files) == 0 {
		return false
	}
	for _, f := range job.Files {
		if !pred(f.MediaType) {
			return false
		}
	}
	return true
}

// toolEnv gives external-tool strategies their resolved binaries and a runner.
type toolEnv struct {
	probe  *Probe
	runner process.Runner
}

// run executes tool with args inside dir. The tool path is resolved at call
// time so a demoted tool fails fast.
func (t toolEnv) run(ctx context.Context, tool ToolID, dir string, args []string, env ...string) (*process.Result, error) {
	path := ""
	if t.probe != nil {
		path = t.probe.Path(tool)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: %s", errToolUnavailable, tool)
	}
	return t.runner.Run(ctx, process.Command{Name: path, Args: args, Dir: dir, Env: env})
}

// readOutput reads a file a tool was expected to produce. A missing or
// empty file is corrupt output even when the tool exited cleanly.
func readOutput(path string) ([]byte, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is inside the job workspace
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s was not produced", ErrCorruptOutput, filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("reading output: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrCorruptOutput, filepath.Base(path))
	}
	return data, nil
}

// outputPath is the conventional location of a tool's result for input.
func outputPath(ws *Workspace, input, ext string) string {
	return ws.Path(fileutil.ReplaceExt(filepath.Base(input), ext))
}

// packagePages returns one page as a plain image, several as a ZIP of
// page_NNN entries in page order.
func packagePages(pages [][]byte, format Format) (*Artifact, error) {
	switch len(pages) {
	case 0:
		return nil, fmt.Errorf("%w: no pages rendered", ErrCorruptOutput)
	case 1:
		return &Artifact{MediaType: format.MediaType(), Data: pages[0], Entries: 1}, nil
	}

	entries := make([]archive.Entry, len(pages))
	for i, p := range pages {
		entries[i] = archive.Entry{Name: archive.PageName(i, format.Extension()), Data: p}
	}
	data, err := archive.Zip(entries)
	if err != nil {
		return nil, fmt.Errorf("packaging pages: %w", err)
	}
	return &Artifact{MediaType: MediaTypeZIP, Data: data, Entries: len(pages)}, nil
}

// documentTitle derives a PDF title from the first input name.
func documentTitle(job *Job) string {
	if len(job.Files) == 0 {
		return ""
	}
	return fileutil.TrimExt(filepath.Base(job.Files[0].Name))
}
