package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/zombor/mrz-scanner/internal/exposure"
)

// Filters is the image filter chain applied to every captured frame before OCR
type Filters interface {
	Exposure(img image.Image, ev float64) image.Image
	HighlightShadow(img image.Image) image.Image
	Saturation(img image.Image) image.Image
	Contrast(img image.Image) image.Image
	AdaptiveThreshold(img image.Image) image.Image
	AverageColor(img image.Image) exposure.AverageColor
}

// Params configures the strength of each filter stage
type Params struct {
	Highlights  float64 // 0 - 1
	Saturation  float64 // 0 - 2
	Contrast    float64 // 0 - 4
	BlurRadius  int     // adaptive threshold neighbourhood, in pixels
	ThresholdOf float64 // how far below the local mean a pixel may be and still count as background
}

// DefaultParams returns the settings tuned for post-processing captured frames
func DefaultParams() Params {
	return Params{
		Highlights:  0.8,
		Saturation:  0.6,
		Contrast:    2.0,
		BlurRadius:  8,
		ThresholdOf: 0.05,
	}
}

// PreviewParams returns the settings used when filters are shown on the live
// preview instead of being applied after capture.
func PreviewParams() Params {
	p := DefaultParams()
	p.Highlights = 0.6
	return p
}

// Chain is a pure Go implementation of Filters
type Chain struct {
	params Params
}

// NewChain creates a Chain with the given parameters
func NewChain(params Params) *Chain {
	return &Chain{params: params}
}

// Exposure scales every channel by 2^ev
func (c *Chain) Exposure(img image.Image, ev float64) image.Image {
	factor := math.Pow(2, ev)
	return mapPixels(img, func(r, g, b float64) (float64, float64, float64) {
		return r * factor, g * factor, b * factor
	})
}

// HighlightShadow darkens highlights, leaving shadows untouched
func (c *Chain) HighlightShadow(img image.Image) image.Image {
	h := c.params.Highlights
	return mapPixels(img, func(r, g, b float64) (float64, float64, float64) {
		lum := (r + g + b) * 0.3
		if lum <= 0 {
			return r, g, b
		}
		shadow := clamp(math.Pow(lum, 1.0)-0.76*math.Pow(lum, 2.0)-lum, 0, 1)
		inv := 1 - lum
		highlight := clamp(1-(math.Pow(inv, 1/(2-h))-0.8*math.Pow(inv, 2/(2-h)))-lum, -1, 0)
		scale := (lum + shadow + highlight) / lum
		return r * scale, g * scale, b * scale
	})
}

// Saturation mixes each pixel with its greyscale luminance
func (c *Chain) Saturation(img image.Image) image.Image {
	s := c.params.Saturation
	return mapPixels(img, func(r, g, b float64) (float64, float64, float64) {
		lum := 0.2125*r + 0.7154*g + 0.0721*b
		return lum + (r-lum)*s, lum + (g-lum)*s, lum + (b-lum)*s
	})
}

// Contrast stretches every channel around mid grey
func (c *Chain) Contrast(img image.Image) image.Image {
	k := c.params.Contrast
	return mapPixels(img, func(r, g, b float64) (float64, float64, float64) {
		return (r-0.5)*k + 0.5, (g-0.5)*k + 0.5, (b-0.5)*k + 0.5
	})
}

// AdaptiveThreshold binarises the image against the mean luminance of each
// pixel's neighbourhood.
func (c *Chain) AdaptiveThreshold(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	lum := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := channels(img.At(bounds.Min.X+x, bounds.Min.Y+y))
			lum[y*w+x] = 0.2125*r + 0.7154*g + 0.0721*b
		}
	}

	// integral image, one extra row and column of zeros
	sum := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		row := 0.0
		for x := 0; x < w; x++ {
			row += lum[y*w+x]
			sum[(y+1)*(w+1)+x+1] = sum[y*(w+1)+x+1] + row
		}
	}

	radius := c.params.BlurRadius
	if radius < 1 {
		radius = 1
	}
	for y := 0; y < h; y++ {
		y0, y1 := max(y-radius, 0), min(y+radius+1, h)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-radius, 0), min(x+radius+1, w)
			area := float64((x1 - x0) * (y1 - y0))
			total := sum[y1*(w+1)+x1] - sum[y0*(w+1)+x1] - sum[y1*(w+1)+x0] + sum[y0*(w+1)+x0]
			mean := total / area
			if lum[y*w+x] >= mean-c.params.ThresholdOf {
				out.Pix[y*out.Stride+x] = 0xff
			}
		}
	}
	return out
}

// AverageColor returns the mean of each channel over the whole image
func (c *Chain) AverageColor(img image.Image) exposure.AverageColor {
	bounds := img.Bounds()
	n := float64(bounds.Dx() * bounds.Dy())
	if n == 0 {
		return exposure.AverageColor{}
	}
	var rs, gs, bs float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := channels(img.At(x, y))
			rs += r
			gs += g
			bs += b
		}
	}
	return exposure.AverageColor{Red: rs / n, Green: gs / n, Blue: bs / n}
}

func mapPixels(img image.Image, fn func(r, g, b float64) (float64, float64, float64)) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			src := img.At(x, y)
			r, g, b := channels(src)
			r, g, b = fn(r, g, b)
			_, _, _, a := src.RGBA()
			out.SetNRGBA(x-bounds.Min.X, y-bounds.Min.Y, color.NRGBA{
				R: toByte(r),
				G: toByte(g),
				B: toByte(b),
				A: uint8(a >> 8),
			})
		}
	}
	return out
}

func channels(c color.Color) (float64, float64, float64) {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return float64(n.R) / 255, float64(n.G) / 255, float64(n.B) / 255
}

func toByte(v float64) uint8 {
	return uint8(math.Round(clamp(v, 0, 1) * 255))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
