// Package enhance applies image adjustments before images are composed
// into a document.
package enhance

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Op names an adjustment.
type Op string

// Adjustments.
const (
	None       Op = "none"
	Brightness Op = "brightness"
	Contrast   Op = "contrast"
	Sharpness  Op = "sharpness"
	Color      Op = "color"
	Auto       Op = "auto"
	Grayscale  Op = "grayscale"
	Blur       Op = "blur"
)

// Fixed strengths of the manual adjustments.
const (
	brightnessStep = 20.0 // percent
	contrastStep   = 20.0 // percent
	saturationStep = 20.0 // percent
	sharpenSigma   = 1.0
	blurSigma      = 2.0
)

// Auto enhancement coefficients. Brightness pulls the mean luminance toward
// mid-grey, contrast widens flat histograms, and a light sharpen follows.
const (
	targetMean     = 128.0
	targetStdDev   = 64.0
	brightnessGain = 0.25
	maxBrightness  = 15.0
	contrastGain   = 0.5
	maxContrast    = 25.0
	autoSharpen    = 0.5
	maxSamples     = 1 << 16
)

// Apply returns img adjusted by op. Unknown ops and None return img unchanged.
func Apply(img image.Image, op Op) image.Image {
	switch op {
	case Brightness:
		return imaging.AdjustBrightness(img, brightnessStep)
	case Contrast:
		return imaging.AdjustContrast(img, contrastStep)
	case Sharpness:
		return imaging.Sharpen(img, sharpenSigma)
	case Color:
		return imaging.AdjustSaturation(img, saturationStep)
	case Grayscale:
		return imaging.Grayscale(img)
	case Blur:
		return imaging.Blur(img, blurSigma)
	case Auto:
		return autoEnhance(img)
	default:
		return img
	}
}

// AutoParams derives the auto enhancement from luminance statistics:
//
//	brightness = clamp((128 - mean) * 0.25, -15, 15)
//	contrast   = clamp((64 - stddev) * 0.5, 0, 25)
//
// both in percent as understood by imaging.AdjustBrightness/AdjustContrast.
func AutoParams(img image.Image) (brightness, contrast float64) {
	mean, std := Luminance(img)
	brightness = clamp((targetMean-mean)*brightnessGain, -maxBrightness, maxBrightness)
	contrast = clamp((targetStdDev-std)*contrastGain, 0, maxContrast)
	return brightness, contrast
}

func autoEnhance(img image.Image) image.Image {
	brightness, contrast := AutoParams(img)
	out := image.Image(img)
	if brightness != 0 {
		out = imaging.AdjustBrightness(out, brightness)
	}
	if contrast != 0 {
		out = imaging.AdjustContrast(out, contrast)
	}
	return imaging.Sharpen(out, autoSharpen)
}

// Luminance returns the mean and standard deviation of Rec. 601 luma on a
// 0..255 scale, sampled on a regular grid for large images.
func Luminance(img image.Image) (mean, std float64) {
	b := img.Bounds()
	if b.Empty() {
		return 0, 0
	}
	step := 1
	for (b.Dx()/step)*(b.Dy()/step) > maxSamples {
		step++
	}

	var sum, sumSq, n float64
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, _ := img.At(x, y).RGBA()
			l := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 257
			sum += l
			sumSq += l * l
			n++
		}
	}
	mean = sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
