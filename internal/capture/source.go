package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/zombor/mrz-scanner/internal/imaging"
)

var (
	// ErrNoFrames is returned by Start when the source has nothing to deliver.
	ErrNoFrames = errors.New("capture source has no frames")
	// ErrNotRunning is returned by NextFrame before Start or after Stop.
	ErrNotRunning = errors.New("capture source is not running")
)

// Orientation is the way the sensor is mounted relative to the document
type Orientation int

const (
	// Upright frames need no rotation.
	Upright Orientation = iota
	// LandscapeRight frames come from a sensor turned a quarter clockwise and
	// must be rotated left before OCR.
	LandscapeRight
)

// Config describes how frames should be delivered
type Config struct {
	// Width and Height bound the delivered frame size. Zero keeps the native size.
	Width       int
	Height      int
	Orientation Orientation
	Region      imaging.Region
}

// Frame is a single captured image and the pixel area to scan
type Frame struct {
	Image       image.Image
	Region      image.Rectangle
	Orientation Orientation
	Index       int
	CapturedAt  time.Time
}

// Source delivers frames one at a time
type Source interface {
	// Configure sets resolution, orientation and scan region
	Configure(cfg Config) error
	// Start begins capturing
	Start(ctx context.Context) error
	// Stop halts capturing. It is safe to call more than once.
	Stop() error
	// NextFrame returns exactly one frame
	NextFrame(ctx context.Context) (*Frame, error)
}

// MemorySource replays a fixed set of images, cycling back to the first
// after the last.
type MemorySource struct {
	mu      sync.Mutex
	frames  []image.Image
	cfg     Config
	running bool
	next    int
	count   int
}

// NewMemorySource creates a MemorySource over frames
func NewMemorySource(frames ...image.Image) *MemorySource {
	return &MemorySource{
		frames: frames,
		cfg:    Config{Region: imaging.DefaultRegion},
	}
}

// Configure implements Source
func (m *MemorySource) Configure(cfg Config) error {
	if !cfg.Region.Valid() {
		return fmt.Errorf("invalid scan region %+v", cfg.Region)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	return nil
}

// Start implements Source
func (m *MemorySource) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.frames) == 0 {
		return ErrNoFrames
	}
	m.running = true
	return nil
}

// Stop implements Source
func (m *MemorySource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Running reports whether the source is between Start and Stop
func (m *MemorySource) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Delivered returns how many frames have been handed out
func (m *MemorySource) Delivered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// NextFrame implements Source
func (m *MemorySource) NextFrame(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil, ErrNotRunning
	}

	img := m.frames[m.next]
	m.next = (m.next + 1) % len(m.frames)
	m.count++

	if m.cfg.Width > 0 && m.cfg.Height > 0 {
		b := img.Bounds()
		if b.Dx() > m.cfg.Width || b.Dy() > m.cfg.Height {
			img = imaging.Resize(img, m.cfg.Width, m.cfg.Height)
		}
	}

	return &Frame{
		Image:       img,
		Region:      m.cfg.Region.In(img.Bounds()),
		Orientation: m.cfg.Orientation,
		Index:       m.count,
		CapturedAt:  time.Now(),
	}, nil
}

func (m *MemorySource) load(frames []image.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = frames
	m.next = 0
}
