package filestorage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/advisehq/advising/internal/pkg/logger"
)

// ErrBlobNotFound is returned when a reference has no stored content.
var ErrBlobNotFound = errors.New("blob not found")

// LocalStorage keeps attachment blobs on the local filesystem.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a LocalStorage rooted at basePath, creating the
// directory if needed.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		logger.Error().Err(err).Str("path", basePath).Msg("Failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Put writes content to a uniquely named file and returns the relative
// reference. The original filename contributes only its extension.
func (ls *LocalStorage) Put(content []byte, filename string) (string, error) {
	ref := uuid.New().String() + filepath.Ext(filename)
	dstPath := filepath.Join(ls.basePath, ref)

	if err := os.WriteFile(dstPath, content, 0o644); err != nil {
		logger.Error().Err(err).Str("path", dstPath).Msg("Failed to write blob")
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	logger.Debug().Str("filename", filename).Str("ref", ref).Msg("Blob stored")
	return ref, nil
}

// Stream opens the blob behind ref for reading.
func (ls *LocalStorage) Stream(ref string) (io.ReadCloser, error) {
	if ref == "" {
		return nil, ErrBlobNotFound
	}
	f, err := os.Open(filepath.Join(ls.basePath, filepath.Base(ref)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to open blob %s: %w", ref, err)
	}
	return f, nil
}

// Delete removes the blob behind ref. Missing blobs are ignored.
func (ls *LocalStorage) Delete(ref string) error {
	if ref == "" {
		return nil
	}
	err := os.Remove(filepath.Join(ls.basePath, filepath.Base(ref)))
	if err != nil && !os.IsNotExist(err) {
		logger.Error().Err(err).Str("ref", ref).Msg("Failed to delete blob")
		return fmt.Errorf("failed to delete blob %s: %w", ref, err)
	}
	return nil
}
