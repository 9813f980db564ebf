package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidKey is returned when a blob key is empty or escapes the
// upload directory.
var ErrInvalidKey = errors.New("invalid blob key")

// Uploader stores a JSON-serializable value under key and returns the
// location it was written to.
type Uploader interface {
	UploadJSON(ctx context.Context, key string, v any) (string, error)
}

// FileUploader is an Uploader that writes blobs as files below dir.
type FileUploader struct {
	dir string
}

var _ Uploader = (*FileUploader)(nil)

// NewFileUploader creates a FileUploader rooted at dir.
func NewFileUploader(dir string) *FileUploader {
	return &FileUploader{dir: dir}
}

// UploadJSON writes v as indented JSON to dir/key, creating parent
// directories. The returned location is the absolute file path.
func (u *FileUploader) UploadJSON(ctx context.Context, key string, v any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := u.resolve(key)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}

	return path, nil
}

// resolve maps key to a path inside the upload directory.
func (u *FileUploader) resolve(key string) (string, error) {
	if key == "" || filepath.IsAbs(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	root, err := filepath.Abs(u.dir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, filepath.FromSlash(key))

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes %s", ErrInvalidKey, key, u.dir)
	}
	return path, nil
}
