package enhance

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func uniform(v uint8) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := range 32 {
		for x := range 32 {
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// checker alternates two grey levels to give a known deviation.
func checker(lo, hi uint8) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := range 32 {
		for x := range 32 {
			v := lo
			if (x+y)%2 == 0 {
				v = hi
			}
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// ---------------------------------------------------------------------------
// TestAutoParams - Deterministic formula
// ---------------------------------------------------------------------------

func TestAutoParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		img            image.Image
		wantBrightness float64
		wantContrast   float64
	}{
		{name: "dark flat image is brightened to the cap", img: uniform(20), wantBrightness: 15, wantContrast: 25},
		{name: "bright flat image is darkened to the cap", img: uniform(250), wantBrightness: -15, wantContrast: 25},
		{name: "mid grey flat image gets contrast only", img: uniform(128), wantBrightness: 0, wantContrast: 25},
		{name: "slightly dark image", img: uniform(100), wantBrightness: 7, wantContrast: 25},
		{name: "high contrast mid image unchanged", img: checker(28, 228), wantBrightness: 0, wantContrast: 0},
		{name: "medium contrast image", img: checker(88, 168), wantBrightness: 0, wantContrast: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, c := AutoParams(tt.img)
			if math.Abs(b-tt.wantBrightness) > 0.01 {
				t.Errorf("brightness = %.2f, want %.2f", b, tt.wantBrightness)
			}
			if math.Abs(c-tt.wantContrast) > 0.01 {
				t.Errorf("contrast = %.2f, want %.2f", c, tt.wantContrast)
			}
		})
	}
}

func TestApply_AutoBrightensDarkImage(t *testing.T) {
	t.Parallel()

	in := uniform(40)
	before, _ := Luminance(in)
	after, _ := Luminance(Apply(in, Auto))
	if after <= before {
		t.Errorf("auto mean luminance %v should exceed %v", after, before)
	}
}

func TestApply_AutoRaisesContrastOfFlatImage(t *testing.T) {
	t.Parallel()

	in := checker(110, 146)
	_, before := Luminance(in)
	_, after := Luminance(Apply(in, Auto))
	if after <= before {
		t.Errorf("auto stddev %v should exceed %v", after, before)
	}
}

// ---------------------------------------------------------------------------
// TestApply - Manual adjustments
// ---------------------------------------------------------------------------

func TestApply(t *testing.T) {
	t.Parallel()

	in := checker(60, 180)
	meanIn, stdIn := Luminance(in)

	tests := []struct {
		op    Op
		check func(mean, std float64) bool
	}{
		{op: None, check: func(m, s float64) bool { return m == meanIn && s == stdIn }},
		{op: Brightness, check: func(m, _ float64) bool { return m > meanIn }},
		{op: Contrast, check: func(_, s float64) bool { return s > stdIn }},
		{op: Blur, check: func(_, s float64) bool { return s < stdIn }},
		{op: Grayscale, check: func(m, _ float64) bool { return math.Abs(m-meanIn) < 1 }},
		{op: Op("unknown"), check: func(m, s float64) bool { return m == meanIn && s == stdIn }},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			t.Parallel()

			out := Apply(in, tt.op)
			if out.Bounds() != in.Bounds() {
				t.Fatalf("bounds changed: %v -> %v", in.Bounds(), out.Bounds())
			}
			m, s := Luminance(out)
			if !tt.check(m, s) {
				t.Errorf("%s: mean %.2f std %.2f (input mean %.2f std %.2f)", tt.op, m, s, meanIn, stdIn)
			}
		})
	}
}

func TestLuminance(t *testing.T) {
	t.Parallel()

	mean, std := Luminance(checker(0, 200))
	if math.Abs(mean-100) > 0.5 || math.Abs(std-100) > 0.5 {
		t.Errorf("Luminance() = (%.2f, %.2f), want (100, 100)", mean, std)
	}
	if m, s := Luminance(image.NewNRGBA(image.Rect(0, 0, 0, 0))); m != 0 || s != 0 {
		t.Errorf("empty image Luminance() = (%v, %v), want (0, 0)", m, s)
	}
}
