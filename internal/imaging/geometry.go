package imaging

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// Crop copies the part of img inside rect into a new image anchored at the origin
func Crop(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

// Resize scales img to fit inside width x height, keeping its aspect ratio.
// Smaller images are scaled up.
func Resize(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 || width <= 0 || height <= 0 {
		return img
	}
	scale := min(float64(width)/float64(bounds.Dx()), float64(height)/float64(bounds.Dy()))
	w := max(int(float64(bounds.Dx())*scale), 1)
	h := max(int(float64(bounds.Dy())*scale), 1)

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(out, out.Bounds(), img, bounds, xdraw.Src, nil)
	return out
}

// RotateLeft rotates img 90 degrees counter-clockwise
func RotateLeft(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < w; y++ {
		for x := 0; x < h; x++ {
			out.Set(x, y, img.At(bounds.Min.X+w-1-y, bounds.Min.Y+x))
		}
	}
	return out
}

// Region is a rectangle expressed as fractions of the frame size
type Region struct {
	X, Y, Width, Height float64
}

// DefaultRegion covers the bottom band of an upright document photo, where the
// MRZ is printed.
var DefaultRegion = Region{X: 0, Y: 0.7, Width: 1, Height: 0.3}

// SensorRegion is the scan area of a 1080x1920 portrait sensor frame
var SensorRegion = Region{X: 350.0 / 1080, Y: 0, Width: 350.0 / 1080, Height: 1}

// In converts the region into pixel coordinates of bounds
func (r Region) In(bounds image.Rectangle) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	x0 := bounds.Min.X + int(math.Round(r.X*w))
	y0 := bounds.Min.Y + int(math.Round(r.Y*h))
	x1 := x0 + int(math.Round(r.Width*w))
	y1 := y0 + int(math.Round(r.Height*h))
	return image.Rect(x0, y0, x1, y1).Intersect(bounds)
}

// Valid reports whether the region lies inside the unit square and is non-empty
func (r Region) Valid() bool {
	return r.X >= 0 && r.Y >= 0 && r.Width > 0 && r.Height > 0 &&
		r.X+r.Width <= 1.0000001 && r.Y+r.Height <= 1.0000001
}

// ParseRegion parses "x,y,width,height" fractions
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("region must have 4 comma separated values, got %d", len(parts))
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Region{}, fmt.Errorf("parsing region value %q: %w", p, err)
		}
		vals[i] = v
	}
	r := Region{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
	if !r.Valid() {
		return Region{}, fmt.Errorf("region %q is outside the frame", s)
	}
	return r, nil
}
