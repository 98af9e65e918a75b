package scan

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/zombor/mrz-scanner/internal/capture"
	"github.com/zombor/mrz-scanner/internal/exposure"
	"github.com/zombor/mrz-scanner/internal/imaging"
	"github.com/zombor/mrz-scanner/internal/mrz"
	"github.com/zombor/mrz-scanner/internal/ocr"
)

var (
	// ErrMissingHandler is returned when a session is created without both
	// terminal callbacks.
	ErrMissingHandler = errors.New("scan handler must set both OnSuccess and OnAbort")
	// ErrAlreadyStarted is returned by Start on a session that is not idle.
	ErrAlreadyStarted = errors.New("scan session already started")
	// ErrNotStarted is returned by Trigger before Start.
	ErrNotStarted = errors.New("scan session not started")
	// ErrAutoMode is returned by Trigger when attempts are scheduled automatically.
	ErrAutoMode = errors.New("manual trigger is not available in auto mode")
	// ErrTerminated is returned by Trigger after the session has finished.
	ErrTerminated = errors.New("scan session already terminated")
	// ErrNoMatch is returned by Runner when the session ended without a record.
	ErrNoMatch = errors.New("no document matched the accuracy threshold")
)

// Config holds the options a caller can set on a scan session
type Config struct {
	// Accuracy is the fraction of checks a record must pass, 0 - 1
	Accuracy float64
	Layout   mrz.Layout
	// AutoMode schedules attempts until success. Otherwise attempts are
	// triggered manually and limited by ShotBudget.
	AutoMode   bool
	ShotBudget int
	// Delay between attempts
	Delay time.Duration
	// ResizeFactor scales the cropped scan region before OCR
	ResizeFactor float64
	// Debug logs the recognized text and saves processed frames
	Debug bool
	// PostProcessingFiltersVisible selects the filter settings used when the
	// filters are shown on a live preview
	PostProcessingFiltersVisible bool
	ExposureMode                 exposure.Mode
	// DefaultExposure is the starting and fallback exposure. Zero picks the
	// value matching PostProcessingFiltersVisible.
	DefaultExposure float64
	Capture         capture.Config
	// OnAttempt, when set, is called after every attempt has been evaluated
	OnAttempt func(AttemptReport)
}

// DefaultConfig returns a configuration that requires every check to pass
// and scans continuously.
func DefaultConfig() Config {
	return Config{
		Accuracy:     1,
		Layout:       mrz.Auto,
		AutoMode:     true,
		ShotBudget:   5,
		Delay:        500 * time.Millisecond,
		ResizeFactor: 0.5,
		ExposureMode: exposure.Continuous,
		Capture: capture.Config{
			Region:      imaging.DefaultRegion,
			Orientation: capture.Upright,
		},
	}
}

func (c Config) validate() error {
	if c.Accuracy < 0 || c.Accuracy > 1 {
		return fmt.Errorf("accuracy must be between 0 and 1, got %v", c.Accuracy)
	}
	if !c.AutoMode && c.ShotBudget < 1 {
		return fmt.Errorf("shot budget must be at least 1 in manual mode, got %d", c.ShotBudget)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %v", c.Delay)
	}
	return nil
}

func (c Config) defaultExposure() float64 {
	switch {
	case c.DefaultExposure != 0:
		return c.DefaultExposure
	case c.PostProcessingFiltersVisible:
		return 0.7
	default:
		return exposure.DefaultExposure
	}
}

// Validator scores recognized text
type Validator interface {
	Validate(text string) *mrz.Record
}

// SnapshotStore keeps processed frames for debugging
type SnapshotStore interface {
	Save(filename string, data []byte) (string, error)
}

// Deps are the collaborators a session drives
type Deps struct {
	Source capture.Source
	Engine ocr.Engine
	// Filters defaults to imaging.Chain
	Filters imaging.Filters
	// Validator defaults to mrz.NewValidator for the configured layout
	Validator Validator
	// Snapshots is optional; used in debug mode
	Snapshots SnapshotStore
}

// Result is a successful scan
type Result struct {
	Record   *mrz.Record
	Text     string
	Image    image.Image
	Attempts int
}

// Decision is what the scheduler does after evaluating an attempt
type Decision int

const (
	Success Decision = iota
	Retry
	GiveUp
	cancelled
)

func (d Decision) String() string {
	switch d {
	case Success:
		return "success"
	case Retry:
		return "retry"
	case GiveUp:
		return "give-up"
	default:
		return "cancelled"
	}
}

// AttemptReport describes one evaluated attempt
type AttemptReport struct {
	Attempt  int
	Score    float64
	Layout   mrz.Layout
	Text     string
	Decision Decision
	Err      error
}
