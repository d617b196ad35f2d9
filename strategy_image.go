package docconv

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp" // register decoders for imaging.Decode
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-docconv/internal/enhance"
	"github.com/alnah/go-docconv/internal/mediatype"
	"github.com/alnah/go-docconv/internal/pdfdoc"
)

// composeJPEGQuality is the JPEG quality of images embedded in a composed PDF.
const composeJPEGQuality = 90

// pointsPerInch converts PDF points to inches.
const pointsPerInch = 72.0

// imageComposeStrategy builds the PDF in-process: one image per A4 page.
type imageComposeStrategy struct {
	descriptor
}

func newImageComposeStrategy() *imageComposeStrategy {
	return &imageComposeStrategy{descriptor{StrategyDescriptor{
		Name:     StrategyImageCompose,
		Class:    ClassImagesToPDF,
		Priority: priorityPrimary,
		Heavy:    true,
	}}}
}

func (s *imageComposeStrategy) Accepts(job *Job) bool {
	return acceptsAll(job, mediatype.IsImage)
}

// composedPage is one decoded, adjusted and re-encoded image.
type composedPage struct {
	data []byte
	w, h int
}

// Execute decodes every image concurrently, then lays the pages out in job
// order. One undecodable image fails the whole job.
func (s *imageComposeStrategy) Execute(ctx context.Context, job *Job, _ *Workspace) (*Artifact, error) {
	pages := make([]composedPage, len(job.Files))
	maxW, maxH := pixelBox(job.Quality.DPI())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range job.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := composePage(f.Data, enhance.Op(job.Enhancement), maxW, maxH)
			if err != nil {
				return fmt.Errorf("image %d (%s): %w", i+1, filepath.Base(f.Name), err)
			}
			pages[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc := pdfdoc.New(documentTitle(job))
	for i, p := range pages {
		doc.ImagePage("image_"+strconv.Itoa(i+1), p.data, "JPEG", p.w, p.h)
	}
	data, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	return &Artifact{MediaType: MediaTypePDF, Data: data, Entries: len(pages)}, nil
}

// pixelBox is the content box in pixels at dpi. Larger images are
// downsampled to it; nothing finer survives printing at that resolution.
func pixelBox(dpi int) (int, int) {
	w := int(pdfdoc.ContentWidth / pointsPerInch * float64(dpi))
	h := int(pdfdoc.ContentHeight / pointsPerInch * float64(dpi))
	return w, h
}

// composePage decodes data honouring EXIF orientation, applies op,
// downsamples to maxW x maxH, flattens transparency on white and encodes
// the result as JPEG.
func composePage(data []byte, op enhance.Op, maxW, maxH int) (composedPage, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return composedPage{}, fmt.Errorf("decoding: %w", err)
	}

	img = enhance.Apply(img, op)
	if b := img.Bounds(); b.Dx() > maxW || b.Dy() > maxH {
		img = imaging.Fit(img, maxW, maxH, imaging.Lanczos)
	}
	img = flatten(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(composeJPEGQuality)); err != nil {
		return composedPage{}, fmt.Errorf("encoding: %w", err)
	}
	b := img.Bounds()
	return composedPage{data: buf.Bytes(), w: b.Dx(), h: b.Dy()}, nil
}

// flatten composites img over a white background unless it is opaque.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// imageMagickStrategy shells out to ImageMagick.
type imageMagickStrategy struct {
	descriptor
	tools toolEnv
}

func newImageMagickStrategy(tools toolEnv) *imageMagickStrategy {
	return &imageMagickStrategy{
		descriptor: descriptor{StrategyDescriptor{
			Name:     StrategyImageMagick,
			Class:    ClassImagesToPDF,
			Priority: prioritySecondary,
			Tool:     ToolImageMagick,
			Heavy:    true,
		}},
		tools: tools,
	}
}

func (s *imageMagickStrategy) Accepts(job *Job) bool {
	return acceptsAll(job, mediatype.IsImage)
}

func (s *imageMagickStrategy) Execute(ctx context.Context, job *Job, ws *Workspace) (*Artifact, error) {
	out := ws.Path("output.pdf")
	dpi := strconv.Itoa(job.Quality.DPI())

	args := append([]string{}, ws.Inputs()...)
	args = append(args, "-auto-orient")
	args = append(args, magickEnhanceArgs(job.Enhancement)...)
	args = append(args,
		"-background", "white", "-alpha", "remove", "-alpha", "off",
		"-units", "PixelsPerInch", "-density", dpi,
		"-page", "A4", "-gravity", "center",
		"-quality", strconv.Itoa(composeJPEGQuality),
		out,
	)

	if _, err := s.tools.run(ctx, ToolImageMagick, ws.Dir(), args); err != nil {
		return nil, err
	}
	data, err := readOutput(out)
	if err != nil {
		return nil, err
	}
	return &Artifact{MediaType: MediaTypePDF, Data: data, Entries: len(job.Files)}, nil
}

// magickEnhanceArgs maps an enhancement to the closest ImageMagick operators.
func magickEnhanceArgs(e Enhancement) []string {
	switch e {
	case EnhanceBrightness:
		return []string{"-brightness-contrast", "20x0"}
	case EnhanceContrast:
		return []string{"-brightness-contrast", "0x20"}
	case EnhanceSharpness:
		return []string{"-sharpen", "0x1"}
	case EnhanceColor:
		return []string{"-modulate", "100,120"}
	case EnhanceGrayscale:
		return []string{"-colorspace", "Gray"}
	case EnhanceBlur:
		return []string{"-blur", "0x2"}
	case EnhanceAuto:
		return []string{"-auto-level", "-sharpen", "0x0.5"}
	}
	return nil
}
