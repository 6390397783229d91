package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStore publishes rendered videos onto the local filesystem. It is
// intended for development and test environments where an object storage
// service is not available.
type FileStore struct {
	basePath string
	baseURL  string
}

// NewFileStore initializes a FileStore rooted at basePath. Published keys
// resolve to baseURL/<key>.
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}, nil
}

// Publish copies the rendered file under the given key and returns its
// URL. Keys are cleaned to prevent directory traversal.
func (s *FileStore) Publish(ctx context.Context, key, localPath string) (string, int64, error) {
	if s == nil {
		return "", 0, errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", 0, err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", 0, fmt.Errorf("storage: open rendered file: %w", err)
	}
	defer src.Close()

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", 0, fmt.Errorf("storage: ensure directory: %w", err)
	}
	dst, err := os.Create(fullPath)
	if err != nil {
		return "", 0, fmt.Errorf("storage: create file: %w", err)
	}

	size, err := io.Copy(dst, src)
	closeErr := dst.Close()
	if err != nil {
		return "", 0, fmt.Errorf("storage: write file: %w", err)
	}
	if closeErr != nil {
		return "", 0, fmt.Errorf("storage: close file: %w", closeErr)
	}

	return s.baseURL + "/" + cleanKey, size, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
