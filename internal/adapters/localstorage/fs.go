package localstorage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"tweetdl/internal/logger"
)

// VideoExtension is appended to the target ID to name the output file.
const VideoExtension = ".mp4"

// LocalStorage implements ports.Storage for the local filesystem.
type LocalStorage struct {
	BaseDir string
	// File overrides the generated file name. A relative value is joined
	// with BaseDir.
	File   string
	logger logger.Logger
}

// NewLocalStorage creates a new LocalStorage instance.
func NewLocalStorage(baseDir string, log logger.Logger) *LocalStorage {
	if log == nil {
		log = logger.Nop()
	}
	return &LocalStorage{BaseDir: baseDir, logger: log}
}

// WithFile returns a copy writing to file instead of <id>.mp4.
func (s *LocalStorage) WithFile(file string) *LocalStorage {
	cp := *s
	cp.File = file
	return &cp
}

// OutputPath returns the absolute output path for targetID and creates its
// directory.
func (s *LocalStorage) OutputPath(ctx context.Context, targetID string) (string, error) {
	name := s.File
	if name == "" {
		name = targetID + VideoExtension
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.BaseDir, name)
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output path %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return path, nil
}

// DeleteIfExists removes path. Every error is swallowed; a failed cleanup
// must never replace the failure that triggered it.
func (s *LocalStorage) DeleteIfExists(ctx context.Context, path string) {
	err := os.Remove(path)
	switch {
	case err == nil:
		s.logger.Debugf("Removed partial file %s", path)
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Debugf("Nothing to clean up at %s", path)
	default:
		s.logger.Debugf("Failed to remove %s: %v", path, err)
	}
}
