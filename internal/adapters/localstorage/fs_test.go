package localstorage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputPath_DesktopLayout(t *testing.T) {
	home := t.TempDir()
	s := NewLocalStorage(filepath.Join(home, "Desktop"), nil)

	path, err := s.OutputPath(context.Background(), "12345")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "Desktop", "12345.mp4"), path)
	assert.True(t, filepath.IsAbs(path))
	assert.DirExists(t, filepath.Join(home, "Desktop"))
}

func TestOutputPath_FileOverride(t *testing.T) {
	base := t.TempDir()
	s := NewLocalStorage(base, nil)

	rel, err := s.WithFile("clips/out.mp4").OutputPath(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "clips", "out.mp4"), rel)
	assert.DirExists(t, filepath.Join(base, "clips"))

	absTarget := filepath.Join(t.TempDir(), "nested", "x.mp4")
	abs, err := s.WithFile(absTarget).OutputPath(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, absTarget, abs)

	// The original is untouched.
	assert.Empty(t, s.File)
}

func TestDeleteIfExists(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir, nil)

	existing := filepath.Join(dir, "partial.mp4")
	require.NoError(t, os.WriteFile(existing, []byte("data"), 0644))

	s.DeleteIfExists(context.Background(), existing)
	assert.NoFileExists(t, existing)

	// Missing files and non-empty directories are silently ignored.
	assert.NotPanics(t, func() {
		s.DeleteIfExists(context.Background(), filepath.Join(dir, "missing.mp4"))
	})
	nonEmpty := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(filepath.Join(nonEmpty, "child"), 0755))
	s.DeleteIfExists(context.Background(), nonEmpty)
	assert.DirExists(t, nonEmpty)
}
