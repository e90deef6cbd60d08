package calendar

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// FeedCache stores rendered feed bodies on disk for a fixed TTL.
type FeedCache struct {
	fs  afero.Fs
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewFeedCache creates a cache rooted at dir on fs. A non-positive ttl
// disables caching.
func NewFeedCache(fs afero.Fs, dir string, ttl time.Duration) *FeedCache {
	return &FeedCache{fs: fs, dir: dir, ttl: ttl, now: time.Now}
}

// cacheKey hashes the request parts so capability keys never appear in file names.
func cacheKey(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:])
}

func (c *FeedCache) enabled() bool {
	return c != nil && c.ttl > 0
}

func (c *FeedCache) path(key string) string {
	return filepath.Join(c.dir, key+".cache")
}

// Get returns the cached body for key if present and fresh.
func (c *FeedCache) Get(key string) ([]byte, bool) {
	if !c.enabled() || key == "" {
		return nil, false
	}
	path := c.path(key)
	fi, err := c.fs.Stat(path)
	if err != nil {
		return nil, false
	}
	if c.now().Sub(fi.ModTime()) > c.ttl {
		_ = c.fs.Remove(path)
		return nil, false
	}
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores body under key, replacing any previous value atomically.
func (c *FeedCache) Set(key string, body []byte) error {
	if !c.enabled() {
		return nil
	}
	if key == "" {
		return errors.New("empty key")
	}
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	path := c.path(key)
	tmp := path + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, body, 0o600); err != nil {
		_ = c.fs.Remove(tmp)
		return err
	}
	if err := c.fs.Chtimes(tmp, c.now(), c.now()); err != nil {
		_ = c.fs.Remove(tmp)
		return err
	}
	return c.fs.Rename(tmp, path)
}

// Clear removes every cached feed.
func (c *FeedCache) Clear() error {
	if c == nil {
		return nil
	}
	entries, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".cache" {
			continue
		}
		_ = c.fs.Remove(filepath.Join(c.dir, entry.Name()))
	}
	return nil
}
