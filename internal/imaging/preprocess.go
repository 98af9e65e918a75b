package imaging

import (
	"image"

	"github.com/zombor/mrz-scanner/internal/exposure"
)

// Preprocessor runs the filter chain over a frame and feeds the exposure
// controller with the result.
type Preprocessor struct {
	filters Filters
	sampler *exposure.Sampler
	mode    exposure.Mode
}

// NewPreprocessor creates a Preprocessor. Samples of processed frames update
// ctrl according to mode.
func NewPreprocessor(filters Filters, ctrl *exposure.Controller, mode exposure.Mode) *Preprocessor {
	return &Preprocessor{
		filters: filters,
		sampler: exposure.NewSampler(ctrl, filters),
		mode:    mode,
	}
}

// Process applies exposure, highlight/shadow, saturation, contrast and
// adaptive threshold in that order.
func (p *Preprocessor) Process(img image.Image, ev float64) image.Image {
	out := p.filters.Exposure(img, ev)
	out = p.filters.HighlightShadow(out)
	out = p.filters.Saturation(out)
	out = p.filters.Contrast(out)
	out = p.filters.AdaptiveThreshold(out)

	switch p.mode {
	case exposure.SingleShot:
		p.sampler.SampleNow(out)
	default:
		p.sampler.TrySample(out)
	}
	return out
}

// Wait blocks until background sampling has finished
func (p *Preprocessor) Wait() {
	p.sampler.Wait()
}
