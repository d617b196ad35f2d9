package docconv

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"slices"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/alnah/go-docconv/internal/enhance"
	"github.com/alnah/go-docconv/internal/mediatype"
	"github.com/alnah/go-docconv/internal/process"
)

// Notes:
// - image-compose runs fully in-process and is checked on real fixtures.
// - imagemagick is checked through the recorded command line only.

func imageJob(t *testing.T, files ...File) *Job {
	t.Helper()
	for i := range files {
		files[i].MediaType = mediatype.Resolve("", files[i].Name, files[i].Data)
	}
	return &Job{Class: ClassImagesToPDF, Quality: QualityLow, Format: FormatPDF, Enhancement: EnhanceNone, Files: files}
}

// ----- TestImageCompose - in-process composition -----

func TestImageCompose_Execute(t *testing.T) {
	t.Parallel()

	job := imageJob(t,
		File{Name: "a.png", Data: pngBytes(t, 40, 30)},
		File{Name: "b.jpg", Data: jpegBytes(t, 30, 40)},
		File{Name: "c.png", Data: pngBytes(t, 10, 10)},
	)
	art, err := newImageComposeStrategy().Execute(context.Background(), job, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if art.MediaType != MediaTypePDF || art.Entries != 3 || !bytes.HasPrefix(art.Data, []byte("%PDF-")) {
		t.Errorf("artifact = %s entries=%d", art.MediaType, art.Entries)
	}
}

func TestImageCompose_UndecodableImage(t *testing.T) {
	t.Parallel()

	job := imageJob(t,
		File{Name: "a.png", Data: pngBytes(t, 4, 4)},
		File{Name: "b.png", Data: pngBytes(t, 4, 4)[:30]},
	)
	if _, err := newImageComposeStrategy().Execute(context.Background(), job, nil); err == nil {
		t.Error("Execute() accepted a truncated image")
	}
}

func TestImageCompose_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := imageJob(t, File{Name: "a.png", Data: pngBytes(t, 4, 4)})
	if _, err := newImageComposeStrategy().Execute(ctx, job, nil); err == nil {
		t.Error("Execute() ignored a canceled context")
	}
}

func TestPixelBox(t *testing.T) {
	t.Parallel()

	lowW, lowH := pixelBox(72)
	highW, highH := pixelBox(300)
	if lowW <= 0 || lowH <= lowW {
		t.Errorf("pixelBox(72) = %dx%d, want a portrait box", lowW, lowH)
	}
	if highW <= lowW*4 || highH <= lowH*4 {
		t.Errorf("pixelBox(300) = %dx%d does not scale with dpi", highW, highH)
	}
}

func TestComposePage(t *testing.T) {
	t.Parallel()

	t.Run("downsamples into the box", func(t *testing.T) {
		t.Parallel()
		p, err := composePage(pngBytes(t, 400, 100), enhance.None, 100, 100)
		if err != nil {
			t.Fatal(err)
		}
		if p.w != 100 || p.h != 25 {
			t.Errorf("page = %dx%d, want 100x25", p.w, p.h)
		}
	})

	t.Run("small images keep their size", func(t *testing.T) {
		t.Parallel()
		p, err := composePage(pngBytes(t, 20, 10), enhance.Grayscale, 100, 100)
		if err != nil {
			t.Fatal(err)
		}
		if p.w != 20 || p.h != 10 {
			t.Errorf("page = %dx%d, want 20x10", p.w, p.h)
		}
		if _, err := imaging.Decode(bytes.NewReader(p.data)); err != nil {
			t.Errorf("page is not a decodable JPEG: %v", err)
		}
	})
}

func TestFlatten(t *testing.T) {
	t.Parallel()

	transparent := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	out := flatten(transparent)
	r, g, b, a := out.At(1, 1).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
		t.Errorf("flattened pixel = %v %v %v %v, want opaque white", r, g, b, a)
	}

	opaque := solidImage(2, 2, color.Black)
	if got := flatten(opaque); got != opaque {
		t.Error("opaque image was copied")
	}
}

// ----- TestImageMagick - command line -----

func TestImageMagick_Execute(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{fn: func(c process.Command) (*process.Result, error) {
		return &process.Result{}, os.WriteFile(c.Args[len(c.Args)-1], []byte("%PDF-1.4"), 0o600)
	}}
	s := newImageMagickStrategy(toolsWith(t, runner, ToolImageMagick))
	files := []File{
		{Name: "a.png", MediaType: mediatype.PNG, Data: pngBytes(t, 2, 2)},
		{Name: "b.jpg", MediaType: mediatype.JPEG, Data: jpegBytes(t, 2, 2)},
	}
	ws := stagedWorkspace(t, files...)
	job := &Job{Class: ClassImagesToPDF, Quality: QualityHigh, Enhancement: EnhanceGrayscale, Files: files}

	art, err := s.Execute(context.Background(), job, ws)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if art.Entries != 2 {
		t.Errorf("Entries = %d, want 2", art.Entries)
	}

	args := runner.commands()[0].Args
	if !slices.Equal(args[:2], ws.Inputs()) {
		t.Errorf("inputs not first in page order: %v", args[:2])
	}
	if got := argAfter(args, "-density"); got != "300" {
		t.Errorf("-density = %q, want 300", got)
	}
	if got := argAfter(args, "-colorspace"); got != "Gray" {
		t.Errorf("-colorspace = %q, want Gray", got)
	}
	if !slices.Contains(args, "-auto-orient") {
		t.Error("missing -auto-orient")
	}
}

func TestImageMagick_MissingOutput(t *testing.T) {
	t.Parallel()

	s := newImageMagickStrategy(toolsWith(t, &fakeRunner{}, ToolImageMagick))
	files := []File{{Name: "a.png", MediaType: mediatype.PNG, Data: pngBytes(t, 2, 2)}}
	job := &Job{Class: ClassImagesToPDF, Quality: QualityLow, Files: files}
	if _, err := s.Execute(context.Background(), job, stagedWorkspace(t, files...)); err == nil {
		t.Error("Execute() succeeded without output")
	}
}

func TestMagickEnhanceArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		enh  Enhancement
		want []string
	}{
		{enh: EnhanceNone, want: nil},
		{enh: EnhanceBrightness, want: []string{"-brightness-contrast", "20x0"}},
		{enh: EnhanceContrast, want: []string{"-brightness-contrast", "0x20"}},
		{enh: EnhanceSharpness, want: []string{"-sharpen", "0x1"}},
		{enh: EnhanceColor, want: []string{"-modulate", "100,120"}},
		{enh: EnhanceGrayscale, want: []string{"-colorspace", "Gray"}},
		{enh: EnhanceBlur, want: []string{"-blur", "0x2"}},
		{enh: EnhanceAuto, want: []string{"-auto-level", "-sharpen", "0x0.5"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.enh), func(t *testing.T) {
			t.Parallel()
			if got := magickEnhanceArgs(tt.enh); !slices.Equal(got, tt.want) {
				t.Errorf("magickEnhanceArgs(%s) = %v, want %v", tt.enh, got, tt.want)
			}
		})
	}
}
