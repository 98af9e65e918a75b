package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/zombor/mrz-scanner/internal/imaging"
)

// FileSource replays images from a file or a directory of files.
// Every page of a PDF becomes a frame.
type FileSource struct {
	*MemorySource
	path string
}

// NewFileSource creates a FileSource reading from path
func NewFileSource(path string) *FileSource {
	return &FileSource{
		MemorySource: NewMemorySource(),
		path:         path,
	}
}

// Start loads the frames from disk and starts the source
func (f *FileSource) Start(ctx context.Context) error {
	frames, err := loadFrames(f.path)
	if err != nil {
		return err
	}
	f.load(frames)
	return f.MemorySource.Start(ctx)
}

func loadFrames(path string) ([]image.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening frame source: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("reading frame directory: %w", err)
		}
		files = files[:0]
		for _, e := range entries {
			if e.IsDir() || !imaging.Supported(e.Name()) {
				continue
			}
			files = append(files, filepath.Join(path, e.Name()))
		}
		sort.Strings(files)
	}

	var frames []image.Image
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading frame file: %w", err)
		}
		decoded, err := imaging.Decode(data, imaging.ContentTypeFor(file))
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", filepath.Base(file), err)
		}
		frames = append(frames, decoded...)
	}
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	slog.Info("Loaded frames", "path", path, "files", len(files), "frames", len(frames))
	return frames, nil
}
