package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"vidforge/internal/domain"
)

// Cache downloads remote clip sources to local disk and reuses them across
// render jobs. Concurrent requests for the same URL share one download.
type Cache struct {
	dir    string
	client *http.Client
	maxAge time.Duration
	group  singleflight.Group
	logger zerolog.Logger
}

func NewCache(dir string, timeout, maxAge time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{
		dir:    dir,
		client: &http.Client{Timeout: timeout},
		maxAge: maxAge,
		logger: logger,
	}
}

// Get returns a local path for the URL, downloading it on first use.
func (c *Cache) Get(ctx context.Context, url string) (string, error) {
	path, err, _ := c.group.Do(url, func() (any, error) {
		return c.fetch(ctx, url)
	})
	if err != nil {
		return "", err
	}
	return path.(string), nil
}

func (c *Cache) fetch(ctx context.Context, url string) (string, error) {
	dest := c.localPath(url)
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		now := time.Now()
		os.Chtimes(dest, now, now)
		return dest, nil
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("assets: create cache dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrAssetUnavailable, url, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrAssetUnavailable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s: status %d", domain.ErrAssetUnavailable, url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(c.dir, "download-*")
	if err != nil {
		return "", fmt.Errorf("assets: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrAssetUnavailable, url, err)
	}
	if closeErr != nil {
		return "", fmt.Errorf("assets: close temp file: %w", closeErr)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("assets: move into cache: %w", err)
	}
	c.logger.Debug().Str("url", url).Int64("bytes", size).Msg("assets: cached")
	return dest, nil
}

// localPath derives a stable cache filename, keeping the URL's extension
// so downstream tooling can sniff the container format.
func (c *Cache) localPath(url string) string {
	sum := sha256.Sum256([]byte(url))
	name := hex.EncodeToString(sum[:16])
	if ext := filepath.Ext(stripQuery(url)); ext != "" && len(ext) <= 8 {
		name += ext
	}
	return filepath.Join(c.dir, name)
}

func stripQuery(url string) string {
	for i := 0; i < len(url); i++ {
		if url[i] == '?' || url[i] == '#' {
			return url[:i]
		}
	}
	return url
}

// Sweep deletes cache entries untouched for longer than the max age.
func (c *Cache) Sweep() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	cutoff := time.Now().Add(-c.maxAge)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(c.dir, entry.Name())
			if err := os.Remove(path); err == nil {
				c.logger.Debug().Str("file", entry.Name()).Msg("assets: evicted stale entry")
			}
		}
	}
	return nil
}
