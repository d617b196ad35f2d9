package pdfdoc

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"testing"
)

// ---------------------------------------------------------------------------
// TestFitBox - Aspect-preserving fit
// ---------------------------------------------------------------------------

func TestFitBox(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		w, h         float64
		boxW, boxH   float64
		wantW, wantH float64
	}{
		{name: "landscape limited by width", w: 400, h: 200, boxW: 100, boxH: 100, wantW: 100, wantH: 50},
		{name: "portrait limited by height", w: 200, h: 400, boxW: 100, boxH: 100, wantW: 50, wantH: 100},
		{name: "small image scaled up", w: 10, h: 10, boxW: 100, boxH: 50, wantW: 50, wantH: 50},
		{name: "exact fit", w: 100, h: 50, boxW: 100, boxH: 50, wantW: 100, wantH: 50},
		{name: "degenerate", w: 0, h: 10, boxW: 100, boxH: 100, wantW: 0, wantH: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w, h := FitBox(tt.w, tt.h, tt.boxW, tt.boxH)
			if math.Abs(w-tt.wantW) > 1e-9 || math.Abs(h-tt.wantH) > 1e-9 {
				t.Errorf("FitBox() = (%v, %v), want (%v, %v)", w, h, tt.wantW, tt.wantH)
			}
			if tt.w > 0 && tt.h > 0 && math.Abs(w/h-tt.w/tt.h) > 1e-9 {
				t.Errorf("aspect ratio changed: %v -> %v", tt.w/tt.h, w/h)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestPlace - Image placement on the A4 page
// ---------------------------------------------------------------------------

func TestPlace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pxW, pxH   int
		x, y, w, h float64
	}{
		{
			// Width bound: full content width, vertically centered.
			name: "landscape", pxW: 2000, pxH: 1000,
			x: Margin, y: (PageHeight - ContentWidth/2) / 2, w: ContentWidth, h: ContentWidth / 2,
		},
		{
			// Height bound: full content height, horizontally centered.
			name: "portrait", pxW: 1000, pxH: 4000,
			x: (PageWidth - ContentHeight/4) / 2, y: Margin, w: ContentHeight / 4, h: ContentHeight,
		},
		{
			name: "square", pxW: 800, pxH: 800,
			x: Margin, y: (PageHeight - ContentWidth) / 2, w: ContentWidth, h: ContentWidth,
		},
		{
			name: "degenerate", pxW: 0, pxH: 100,
			x: PageWidth / 2, y: PageHeight / 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			x, y, w, h := Place(tt.pxW, tt.pxH)
			got := [4]float64{x, y, w, h}
			want := [4]float64{tt.x, tt.y, tt.w, tt.h}
			for i := range got {
				if math.Abs(got[i]-want[i]) > 1e-6 {
					t.Fatalf("Place(%d, %d) = %v, want %v", tt.pxW, tt.pxH, got, want)
				}
			}
			if w > 0 {
				if math.Abs((x+w/2)-PageWidth/2) > 1e-6 || math.Abs((y+h/2)-PageHeight/2) > 1e-6 {
					t.Errorf("image not centered: x=%v y=%v w=%v h=%v", x, y, w, h)
				}
				if x < Margin-1e-6 || y < Margin-1e-6 {
					t.Errorf("image crosses the margin: x=%v y=%v", x, y)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestDoc - Text and image documents
// ---------------------------------------------------------------------------

func TestDoc_TextBlocks(t *testing.T) {
	t.Parallel()

	d := New("Notes")
	d.Heading(1, "Title")
	d.Paragraph("Café au lait, naïve résumé.")
	d.ListItem("first", false, 0, 0)
	d.ListItem("second", true, 2, 1)
	d.Code("func main() {\n\tprintln(1)\n}\n")
	d.Quote("quoted")
	d.Rule()
	d.Note("Showing 1 of 2 rows")
	d.Table([][]string{{"a", "b"}, {"1", "a very long cell value that will not fit in the narrow column at all"}})

	data, err := d.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("output does not start with %%PDF-")
	}
	if d.PageCount() != 1 {
		t.Errorf("PageCount() = %d, want 1", d.PageCount())
	}
}

func TestDoc_Empty(t *testing.T) {
	t.Parallel()

	_, err := New("").Bytes()
	if !errors.Is(err, ErrNoPages) {
		t.Errorf("Bytes() error = %v, want ErrNoPages", err)
	}
}

func TestDoc_ImagePages(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := range 40 {
		for y := range 20 {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}

	d := New("")
	for _, name := range []string{"p1", "p2", "p3"} {
		d.ImagePage(name, buf.Bytes(), "JPG", 40, 20)
	}

	if _, err := d.Bytes(); err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if d.PageCount() != 3 {
		t.Errorf("PageCount() = %d, want 3", d.PageCount())
	}
}

func TestDoc_ManyParagraphsBreakPages(t *testing.T) {
	t.Parallel()

	d := New("")
	for range 200 {
		d.Paragraph("Lorem ipsum dolor sit amet, consectetur adipiscing elit.")
	}
	if _, err := d.Bytes(); err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if d.PageCount() < 2 {
		t.Errorf("PageCount() = %d, want automatic page breaks", d.PageCount())
	}
}
