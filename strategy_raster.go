package docconv

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"

	"github.com/alnah/go-docconv/internal/mediatype"
)

// rasterJPEGQuality is the JPEG quality of extracted pages.
const rasterJPEGQuality = 95

// pdftoppmPrefix is the output root handed to pdftoppm; it appends
// -N.<ext> with N zero-padded to the page count's width.
const pdftoppmPrefix = "page"

func acceptsPDF(job *Job) bool {
	return acceptsAll(job, func(mt string) bool { return mt == mediatype.PDF })
}

// encodePage encodes one rendered page in the job's output format.
func encodePage(img image.Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if format == FormatJPEG {
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(rasterJPEGQuality))
	} else {
		err = imaging.Encode(&buf, img, imaging.PNG)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding page: %w", err)
	}
	return buf.Bytes(), nil
}

// muPDFStrategy renders pages in-process with MuPDF. Each job opens its own
// document; MuPDF contexts are not shared across goroutines.
type muPDFStrategy struct {
	descriptor
}

func newMuPDFStrategy() *muPDFStrategy {
	return &muPDFStrategy{descriptor{StrategyDescriptor{
		Name:     StrategyRasterMuPDF,
		Class:    ClassPDFToImages,
		Priority: priorityPrimary,
		Heavy:    true,
	}}}
}

func (s *muPDFStrategy) Accepts(job *Job) bool { return acceptsPDF(job) }

func (s *muPDFStrategy) Execute(ctx context.Context, job *Job, _ *Workspace) (*Artifact, error) {
	doc, err := fitz.NewFromMemory(job.Files[0].Data)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n == 0 {
		return nil, fmt.Errorf("%w: pdf has no pages", ErrCorruptOutput)
	}
	dpi := float64(job.Quality.DPI())

	pages := make([][]byte, 0, n)
	for i := range n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("rendering page %d: %w", i+1, err)
		}
		data, err := encodePage(img, job.Format)
		if err != nil {
			return nil, err
		}
		pages = append(pages, data)
	}
	return packagePages(pages, job.Format)
}

// pdftoppmStrategy shells out to poppler's pdftoppm.
type pdftoppmStrategy struct {
	descriptor
	tools toolEnv
}

func newPdftoppmStrategy(tools toolEnv) *pdftoppmStrategy {
	return &pdftoppmStrategy{
		descriptor: descriptor{StrategyDescriptor{
			Name:     StrategyPdftoppm,
			Class:    ClassPDFToImages,
			Priority: prioritySecondary,
			Tool:     ToolPdftoppm,
			Heavy:    true,
		}},
		tools: tools,
	}
}

func (s *pdftoppmStrategy) Accepts(job *Job) bool { return acceptsPDF(job) }

func (s *pdftoppmStrategy) Execute(ctx context.Context, job *Job, ws *Workspace) (*Artifact, error) {
	args := []string{"-r", strconv.Itoa(job.Quality.DPI())}
	pattern := pdftoppmPrefix + "-*.png"
	if job.Format == FormatJPEG {
		args = append(args, "-jpeg", "-jpegopt", "quality="+strconv.Itoa(rasterJPEGQuality))
		pattern = pdftoppmPrefix + "-*.jpg"
	} else {
		args = append(args, "-png")
	}
	args = append(args, ws.Input(0), ws.Path(pdftoppmPrefix))

	if _, err := s.tools.run(ctx, ToolPdftoppm, ws.Dir(), args); err != nil {
		return nil, err
	}

	// Zero padding is uniform within a run, so the sorted glob is page order.
	files, err := filepath.Glob(ws.Path(pattern))
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	pages := make([][]byte, 0, len(files))
	for _, f := range files {
		data, err := readOutput(f)
		if err != nil {
			return nil, err
		}
		pages = append(pages, data)
	}
	return packagePages(pages, job.Format)
}
