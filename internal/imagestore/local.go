package imagestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/patric-chuzhbe/profilesite/internal/models"
)

// Local writes images into a directory under the static root.
type Local struct {
	dir string
}

// NewLocal returns a Local store writing into dir. The returned references
// are relative to dir's parent, e.g. "uploads/<key>" for ".../static/uploads".
func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

// Store writes file under a fresh key and returns its relative reference.
func (l *Local) Store(ctx context.Context, file io.Reader, originalFilename string) (string, error) {
	key, err := storageKey(originalFilename)
	if err != nil {
		return "", err
	}

	if err := writeFile(l.dir, key, file); err != nil {
		return "", err
	}

	return filepath.ToSlash(filepath.Join(filepath.Base(l.dir), key)), nil
}

func writeFile(dir, key string, file io.Reader) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: in internal/imagestore/local.go/writeFile(): error while `os.MkdirAll()` calling: %w", models.ErrStorageFailure, err)
	}

	path := filepath.Join(dir, key)
	destination, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: in internal/imagestore/local.go/writeFile(): error while `os.OpenFile()` calling: %w", models.ErrStorageFailure, err)
	}
	defer func() {
		if closeErr := destination.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: in internal/imagestore/local.go/writeFile(): error while `destination.Close()` calling: %w", models.ErrStorageFailure, closeErr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	if _, err := io.Copy(destination, file); err != nil {
		return fmt.Errorf("%w: in internal/imagestore/local.go/writeFile(): error while `io.Copy()` calling: %w", models.ErrStorageFailure, err)
	}

	return nil
}
