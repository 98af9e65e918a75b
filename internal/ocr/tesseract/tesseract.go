// Package tesseract provides an OCR engine backed by a local Tesseract
// install. It needs the Tesseract and Leptonica libraries at build time.
package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/zombor/mrz-scanner/internal/imaging"
	"github.com/zombor/mrz-scanner/internal/ocr"
)

// tesseractVariables turn off the dictionaries; an MRZ is not made of words
var tesseractVariables = map[string]string{
	"tessedit_serial_unlv":    "1",
	"x_ht_quality_check":      "F",
	"load_system_dawg":        "F",
	"load_freq_dawg":          "F",
	"load_unambig_dawg":       "F",
	"load_punc_dawg":          "F",
	"load_number_dawg":        "F",
	"load_fixed_length_dawgs": "F",
	"load_bigram_dawg":        "F",
	"wordrec_enable_assoc":    "F",
}

// Engine implements ocr.Engine with a local Tesseract install
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New creates a Tesseract engine. tessdataPath may be empty to use
// the system trained data.
func New(tessdataPath string, language string) (*Engine, error) {
	if language == "" {
		language = "eng"
	}

	client := gosseract.NewClient()
	if tessdataPath != "" {
		if err := client.SetTessdataPrefix(tessdataPath); err != nil {
			client.Close()
			return nil, fmt.Errorf("setting tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting page segmentation mode: %w", err)
	}
	for key, value := range tesseractVariables {
		if err := client.SetVariable(gosseract.SettableVariable(key), value); err != nil {
			client.Close()
			return nil, fmt.Errorf("setting %s: %w", key, err)
		}
	}

	return &Engine{client: client}, nil
}

// Recognize runs Tesseract over img. The call cannot be interrupted once it
// has started; ctx is only checked beforehand.
func (t *Engine) Recognize(ctx context.Context, img image.Image, opts ocr.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if !opts.Region.Empty() {
		img = imaging.Crop(img, opts.Region)
	}
	imageData, err := imaging.EncodePNG(img)
	if err != nil {
		return "", fmt.Errorf("preparing image: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetWhitelist(opts.Whitelist); err != nil {
		return "", fmt.Errorf("setting whitelist: %w", err)
	}
	if err := t.client.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("setting image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognizing text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases the Tesseract API handle
func (t *Engine) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
