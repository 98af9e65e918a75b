package exposure

import "sync"

const (
	// DefaultExposure is the value the controller starts at and falls back to
	// after a runaway adjustment.
	DefaultExposure = 1.5

	lowLighting  = 2.75
	highLighting = 2.85
	setpoint     = 2.80
	gain         = 2.0

	maxExposure = 2.0
	minExposure = -2.0
)

// AverageColor holds the per-channel means of an image, each in [0,1]
type AverageColor struct {
	Red   float64
	Green float64
	Blue  float64
}

// Lighting returns the sum of the channel means, in [0,3]
func (c AverageColor) Lighting() float64 {
	return c.Red + c.Green + c.Blue
}

// Mode selects when average-color samples feed the controller
type Mode int

const (
	// Continuous samples every processed frame in the background.
	Continuous Mode = iota
	// SingleShot samples synchronously as part of preprocessing.
	SingleShot
)

func (m Mode) String() string {
	switch m {
	case Continuous:
		return "continuous"
	case SingleShot:
		return "single-shot"
	default:
		return "unknown"
	}
}

// ParseMode converts a flag value into a Mode
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "continuous", "":
		return Continuous, true
	case "single-shot", "single", "singleshot":
		return SingleShot, true
	default:
		return Continuous, false
	}
}

// Controller holds the exposure value and nudges it toward the target
// lighting band.
type Controller struct {
	mu       sync.Mutex
	value    float64
	fallback float64
}

// NewController creates a Controller starting at the given default exposure
func NewController(defaultExposure float64) *Controller {
	return &Controller{
		value:    defaultExposure,
		fallback: defaultExposure,
	}
}

// Sample applies one proportional update from an average-color measurement
func (c *Controller) Sample(color AverageColor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = Next(c.value, color.Lighting(), c.fallback)
}

// Current returns the exposure to use for the next frame
func (c *Controller) Current() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Reset restores the default exposure
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = c.fallback
}

// Default returns the configured default exposure
func (c *Controller) Default() float64 {
	return c.fallback
}

// Next computes the exposure that follows current for a lighting reading.
// Results outside [-2, 2] are replaced by fallback rather than clamped.
func Next(current, lighting, fallback float64) float64 {
	next := current
	if lighting < lowLighting {
		next = current + (setpoint-lighting)*gain
	}
	if lighting > highLighting {
		next = current - (lighting-setpoint)*gain
	}
	if next > maxExposure || next < minExposure {
		return fallback
	}
	return next
}
