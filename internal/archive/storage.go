package archive

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage keeps the frames scans were read from
type Storage interface {
	// Save writes data and returns the name to retrieve it by
	Save(filename string, data []byte) (string, error)
	Get(name string) ([]byte, error)
	Delete(name string) error
}

// LocalStorage implements Storage in a directory on the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates basePath if needed
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	name := filepath.Base(filename)
	if err := os.WriteFile(filepath.Join(l.basePath, name), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return name, nil
}

func (l *LocalStorage) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

func (l *LocalStorage) Delete(name string) error {
	if err := os.Remove(filepath.Join(l.basePath, filepath.Base(name))); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
