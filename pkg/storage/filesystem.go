package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MediaStore persists video and thumbnail files on disk under a base directory.
// All access goes through resolve, which refuses paths escaping the base dir.
type MediaStore struct {
	baseDir string
}

// NewMediaStore ensures the base directory exists and returns a handle.
func NewMediaStore(baseDir string) (*MediaStore, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &MediaStore{baseDir: baseDir}, nil
}

// Exists reports whether the stored file is present.
func (s *MediaStore) Exists(filename string) bool {
	path, err := s.resolve(filename)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// SaveStream copies from reader into the target file path.
func (s *MediaStore) SaveStream(filename string, r io.Reader) (string, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare media directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return "", fmt.Errorf("write media stream: %w", err)
	}
	return filename, nil
}

// Open returns a read-only handle for the stored file.
func (s *MediaStore) Open(filename string) (*os.File, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}
	return file, nil
}

// Size returns the stored file size in bytes.
func (s *MediaStore) Size(filename string) (int64, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat media file: %w", err)
	}
	return info.Size(), nil
}

// Delete removes a stored file if present.
func (s *MediaStore) Delete(filename string) error {
	path, err := s.resolve(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete media file: %w", err)
	}
	return nil
}

// Path exposes the resolved absolute path (useful for debugging).
func (s *MediaStore) Path(filename string) (string, error) {
	return s.resolve(filename)
}

// resolve joins the filename under the base dir. Absolute paths and names
// that climb out of the base dir are refused; stored paths come from admin
// input, so the base dir boundary is enforced here rather than trusted.
func (s *MediaStore) resolve(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("empty media filename")
	}
	if filepath.IsAbs(filename) {
		return "", fmt.Errorf("absolute media path %q not allowed", filename)
	}
	cleaned := filepath.Clean(filename)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("media path %q escapes storage directory", filename)
	}
	return filepath.Join(s.baseDir, cleaned), nil
}
