package exposure

import (
	"image"
	"sync"
	"sync/atomic"
)

// ColorSampler measures the average color of an image
type ColorSampler interface {
	AverageColor(img image.Image) AverageColor
}

// Sampler feeds average-color samples into a Controller in the background.
// At most one sample runs at a time; requests made while one is running are
// dropped.
type Sampler struct {
	controller *Controller
	colors     ColorSampler
	busy       atomic.Bool
	wg         sync.WaitGroup
}

// NewSampler creates a Sampler updating controller with colors measured by cs
func NewSampler(controller *Controller, cs ColorSampler) *Sampler {
	return &Sampler{
		controller: controller,
		colors:     cs,
	}
}

// TrySample starts a background sample of img. It returns false without doing
// anything when a sample is already in flight.
func (s *Sampler) TrySample(img image.Image) bool {
	if !s.busy.CompareAndSwap(false, true) {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)
		s.controller.Sample(s.colors.AverageColor(img))
	}()
	return true
}

// SampleNow measures img and updates the controller on the calling goroutine
func (s *Sampler) SampleNow(img image.Image) {
	s.controller.Sample(s.colors.AverageColor(img))
}

// Busy reports whether a background sample is running
func (s *Sampler) Busy() bool {
	return s.busy.Load()
}

// Wait blocks until any in-flight sample has finished
func (s *Sampler) Wait() {
	s.wg.Wait()
}
