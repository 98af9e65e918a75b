package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/zombor/mrz-scanner/internal/imaging"
)

// Whitelist is the set of characters an MRZ can contain, plus lower case
// letters and space so OCR confusions are kept visible to the parser.
const Whitelist = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ <"

// Options narrow down what the engine looks for
type Options struct {
	// Whitelist restricts the recognized characters
	Whitelist string
	// Region limits recognition to part of the image. Empty means the whole image.
	Region image.Rectangle
}

// DefaultOptions returns the MRZ whitelist over the whole image
func DefaultOptions() Options {
	return Options{Whitelist: Whitelist}
}

// Engine defines the interface for optical character recognition
type Engine interface {
	// Recognize returns the text found in img
	Recognize(ctx context.Context, img image.Image, opts Options) (string, error)
	// Close closes the engine and releases resources
	Close() error
}

// preparePNG crops img to the requested region and encodes it as PNG
func preparePNG(img image.Image, opts Options) ([]byte, error) {
	if !opts.Region.Empty() {
		img = imaging.Crop(img, opts.Region)
	}
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("preparing image: %w", err)
	}
	return data, nil
}
