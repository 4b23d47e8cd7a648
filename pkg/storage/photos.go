// Package storage persists uploaded photos on an afero filesystem.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// ErrTooLarge is returned when content exceeds the store's size limit.
var ErrTooLarge = errors.New("file too large")

// PhotoStore writes photos below root as <dir>/photo_<unix millis><ext>.
type PhotoStore struct {
	fs       afero.Fs
	root     string
	maxBytes int64
	now      func() time.Time
}

// NewPhotoStore creates a new PhotoStore
func NewPhotoStore(fs afero.Fs, root string, maxBytes int64) *PhotoStore {
	return &PhotoStore{fs: fs, root: root, maxBytes: maxBytes, now: time.Now}
}

// NewOsPhotoStore stores photos on the local disk.
func NewOsPhotoStore(root string, maxBytes int64) *PhotoStore {
	return NewPhotoStore(afero.NewOsFs(), root, maxBytes)
}

// MaxBytes is the largest accepted photo.
func (s *PhotoStore) MaxBytes() int64 {
	return s.maxBytes
}

// Save copies content into dir and returns the generated file name.
// Nothing is left behind when the content is larger than MaxBytes.
func (s *PhotoStore) Save(dir, originalName string, content io.Reader) (string, error) {
	name := fmt.Sprintf("photo_%d%s", s.now().UnixMilli(), filepath.Ext(filepath.Base(originalName)))
	folder := filepath.Join(s.root, dir)
	if err := s.fs.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", folder, err)
	}

	path := filepath.Join(folder, name)
	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(content, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		_ = s.fs.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, copyErr)
	case n > s.maxBytes:
		_ = s.fs.Remove(path)
		return "", ErrTooLarge
	case closeErr != nil:
		return "", fmt.Errorf("close %s: %w", path, closeErr)
	}
	return name, nil
}
