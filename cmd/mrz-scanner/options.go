package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/mrz-scanner/internal/archive"
	"github.com/zombor/mrz-scanner/internal/capture"
	"github.com/zombor/mrz-scanner/internal/exposure"
	"github.com/zombor/mrz-scanner/internal/imaging"
	"github.com/zombor/mrz-scanner/internal/mrz"
	"github.com/zombor/mrz-scanner/internal/ocr"
	"github.com/zombor/mrz-scanner/internal/ocr/tesseract"
	"github.com/zombor/mrz-scanner/internal/scan"
)

// options are the flags shared by every command
type options struct {
	engine       *string
	accuracy     *float64
	layout       *string
	manual       *bool
	shots        *int
	delay        *time.Duration
	exposureMode *string
	exposure     *float64
	debug        *bool
	postFilters  *bool
	region       *string
	landscape    *bool
	tessdata     *string
	language     *string
	geminiKey    *string
	geminiModel  *string
	ollamaURL    *string
	ollamaModel  *string
	dbPath       *string
	storagePath  *string
}

func registerOptions(fs *ff.FlagSet) *options {
	return &options{
		engine:       fs.StringLong("ocr", "tesseract", "OCR engine: 'tesseract', 'gemini' or 'ollama'"),
		accuracy:     fs.Float64Long("accuracy", 1, "Fraction of check digits that must pass, 0 - 1"),
		layout:       fs.StringLong("layout", "auto", "MRZ layout: 'auto', 'td1' or 'td3'"),
		manual:       fs.BoolLong("manual", "Scan only on trigger, limited by --shots"),
		shots:        fs.IntLong("shots", 5, "Attempts per trigger in manual mode"),
		delay:        fs.DurationLong("delay", 500*time.Millisecond, "Delay before each attempt"),
		exposureMode: fs.StringLong("exposure-mode", "continuous", "Exposure sampling: 'continuous' or 'single-shot'"),
		exposure:     fs.Float64Long("exposure", 0, "Starting exposure in EV (0 picks the default for the filter settings)"),
		debug:        fs.BoolLong("debug", "Log recognized text and save processed frames to --storage"),
		postFilters:  fs.BoolLong("post-filters", "Use the filter settings tuned for a visible preview"),
		region:       fs.StringLong("region", "0,0.7,1,0.3", "Scan region as x,y,width,height fractions of the frame"),
		landscape:    fs.BoolLong("landscape", "Frames come from a sensor mounted landscape right"),
		tessdata:     fs.StringLong("tessdata", "", "Tesseract trained data directory"),
		language:     fs.StringLong("language", "eng", "Tesseract language"),
		geminiKey:    fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel:  fs.StringLong("gemini-model", ocr.DefaultGeminiModel, "Google Gemini model name"),
		ollamaURL:    fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel:  fs.StringLong("ollama-model", ocr.DefaultOllamaModel, "Ollama vision model name"),
		dbPath:       fs.StringLong("db", "", "Archive database file path (empty disables the archive for scan)"),
		storagePath:  fs.StringLong("storage", "./frames", "Directory for archived and debug frames"),
	}
}

// scanConfig turns the flags into a session configuration
func (o *options) scanConfig() (scan.Config, error) {
	cfg := scan.DefaultConfig()

	layout, err := mrz.ParseLayout(*o.layout)
	if err != nil {
		return cfg, err
	}
	mode, ok := exposure.ParseMode(*o.exposureMode)
	if !ok {
		return cfg, fmt.Errorf("unknown exposure mode %q", *o.exposureMode)
	}
	region, err := imaging.ParseRegion(*o.region)
	if err != nil {
		return cfg, err
	}

	cfg.Accuracy = *o.accuracy
	cfg.Layout = layout
	cfg.AutoMode = !*o.manual
	cfg.ShotBudget = *o.shots
	cfg.Delay = *o.delay
	cfg.ExposureMode = mode
	cfg.DefaultExposure = *o.exposure
	cfg.Debug = *o.debug
	cfg.PostProcessingFiltersVisible = *o.postFilters
	cfg.Capture.Region = region
	if *o.landscape {
		cfg.Capture.Orientation = capture.LandscapeRight
	}
	cfg.OnAttempt = func(r scan.AttemptReport) {
		slog.Debug("Attempt evaluated", "attempt", r.Attempt, "decision", r.Decision, "score", r.Score, "layout", r.Layout, "error", r.Err)
	}
	return cfg, nil
}

// newEngine initializes the selected OCR engine
func (o *options) newEngine() (ocr.Engine, error) {
	switch *o.engine {
	case "tesseract":
		slog.Info("Initializing Tesseract engine...", "tessdata", *o.tessdata, "language", *o.language)
		return tesseract.New(*o.tessdata, *o.language)
	case "gemini":
		apiKey := *o.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		slog.Info("Initializing Gemini engine...", "model", *o.geminiModel)
		return ocr.NewGemini(apiKey, *o.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama engine...", "url", *o.ollamaURL, "model", *o.ollamaModel)
		return ocr.NewOllama(*o.ollamaURL, *o.ollamaModel)
	default:
		return nil, fmt.Errorf("invalid OCR engine %q, valid: tesseract, gemini or ollama", *o.engine)
	}
}

// openArchive opens the database and frame storage
func (o *options) openArchive(dbPath string) (*archive.BoltDB, *archive.LocalStorage, error) {
	slog.Info("Initializing database...", "path", dbPath)
	db, err := archive.NewBoltDB(dbPath)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("Initializing storage...", "path", *o.storagePath)
	store, err := archive.NewLocalStorage(*o.storagePath)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, store, nil
}
