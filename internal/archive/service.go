package archive

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/mrz-scanner/internal/capture"
	"github.com/zombor/mrz-scanner/internal/imaging"
	"github.com/zombor/mrz-scanner/internal/ocr"
	"github.com/zombor/mrz-scanner/internal/scan"
)

// IDGenerator generates unique IDs for scans
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service records successful scans and runs scans over uploaded documents
type Service struct {
	db          DB
	storage     Storage
	engine      ocr.Engine
	cfg         scan.Config
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service. Uploads are scanned with engine using cfg.
func NewService(db DB, storage Storage, engine ocr.Engine, cfg scan.Config) *Service {
	return NewServiceWithDeps(db, storage, engine, cfg, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, engine ocr.Engine, cfg scan.Config, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		engine:      engine,
		cfg:         cfg,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters and truncates long phone-generated names
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)

	base = unsafeChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(spaces.ReplaceAllString(base, " "))

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "upload"
	}
	return base + ext
}

// Record stores the frame of a successful scan and saves it to the database
func (s *Service) Record(result *scan.Result, source string) (*Scan, error) {
	if result == nil || result.Record == nil {
		return nil, fmt.Errorf("scan result has no record")
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	var imageFile string
	if result.Image != nil {
		data, err := imaging.EncodePNG(result.Image)
		if err != nil {
			return nil, fmt.Errorf("encoding frame: %w", err)
		}
		imageFile, err = s.storage.Save(id+".png", data)
		if err != nil {
			return nil, fmt.Errorf("saving frame: %w", err)
		}
	}

	rec := &Scan{
		ID:        id,
		Record:    result.Record,
		Attempts:  result.Attempts,
		ImageFile: imageFile,
		Source:    source,
		CreatedAt: now,
	}
	if err := s.db.SaveScan(rec); err != nil {
		if imageFile != "" {
			s.storage.Delete(imageFile)
		}
		return nil, fmt.Errorf("saving scan to database: %w", err)
	}

	slog.Info("Scan recorded", "id", id, "layout", result.Record.Layout, "document", result.Record.DocumentNumber)
	return rec, nil
}

// ProcessUpload decodes an uploaded photo or PDF into frames, runs a manual
// session over them and records the result. Every page gets at least one shot.
func (s *Service) ProcessUpload(ctx context.Context, filename string, data []byte, contentType string) (*Scan, error) {
	frames, err := imaging.Decode(data, contentType)
	if err != nil {
		slog.Error("Failed to decode upload",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("decoding upload: %w", err)
	}

	cfg := s.cfg
	cfg.AutoMode = false
	cfg.Delay = 0
	if cfg.ShotBudget < len(frames) {
		cfg.ShotBudget = len(frames)
	}

	deps := scan.Deps{
		Source: capture.NewMemorySource(frames...),
		Engine: s.engine,
	}
	if cfg.Debug {
		deps.Snapshots = s.storage
	}

	result, err := scan.NewRunner(cfg, deps).Run(ctx)
	if err != nil {
		slog.Error("Failed to scan upload", "filename", filename, "pages", len(frames), "error", err)
		return nil, fmt.Errorf("scanning upload: %w", err)
	}

	return s.Record(result, sanitizeFilename(filename))
}

// GetScan retrieves a scan by ID
func (s *Service) GetScan(id string) (*Scan, error) {
	rec, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	return rec, nil
}

// ListScans returns all scans
func (s *Service) ListScans() ([]*Scan, error) {
	scans, err := s.db.ListScans()
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	return scans, nil
}

// DeleteScan removes a scan and its frame
func (s *Service) DeleteScan(id string) error {
	rec, err := s.db.GetScan(id)
	if err != nil {
		return fmt.Errorf("getting scan for deletion: %w", err)
	}

	if rec.ImageFile != "" {
		if err := s.storage.Delete(rec.ImageFile); err != nil {
			slog.Warn("Failed to delete file", "filename", rec.ImageFile, "error", err)
		}
	}

	if err := s.db.DeleteScan(id); err != nil {
		return fmt.Errorf("deleting scan: %w", err)
	}
	return nil
}

// GetScanImage returns the PNG frame of a scan
func (s *Service) GetScanImage(id string) ([]byte, string, error) {
	rec, err := s.db.GetScan(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan: %w", err)
	}
	if rec.ImageFile == "" {
		return nil, "", fmt.Errorf("scan %s has no image", id)
	}

	data, err := s.storage.Get(rec.ImageFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan image: %w", err)
	}
	return data, "image/png", nil
}
