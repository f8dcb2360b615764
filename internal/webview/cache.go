package webview

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/sirupsen/logrus"
)

const cacheEntrySuffix = ".page.json"

// Cache is a disk page cache keyed by address hash. Entries older than the
// configured max age are treated as absent.
type Cache struct {
	dir    string
	maxAge time.Duration
}

// NewCache creates a cache rooted at dir. Entries expire after maxAge.
func NewCache(dir string, maxAge time.Duration) *Cache {
	return &Cache{dir: dir, maxAge: maxAge}
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) entryPath(address string) string {
	sum := sha256.Sum256([]byte(address))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+cacheEntrySuffix)
}

// Get returns the cached page for address, or nil when absent or expired.
// Cache failures are never surfaced; a miss just means a fetch.
func (c *Cache) Get(address string) *Page {
	path := c.entryPath(address)
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if c.maxAge > 0 && time.Since(info.ModTime()) > c.maxAge {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var p Page
	if err := json.Unmarshal(data, &p); err != nil {
		logrus.Debugf("corrupt cache entry %s: %v", path, err)
		_ = os.Remove(path)
		return nil
	}
	return &p
}

// Put stores a page. Errors are logged and swallowed; caching is best effort.
func (c *Cache) Put(p *Page) {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		logrus.Debugf("create cache dir: %v", err)
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		logrus.Debugf("encode cache entry: %v", err)
		return
	}
	if err := os.WriteFile(c.entryPath(p.URL), data, 0o600); err != nil {
		logrus.Debugf("write cache entry: %v", err)
	}
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries    int
	TotalBytes int64
	Expired    int
}

// Stats walks the cache directory and tallies entries.
func (c *Cache) Stats() (Stats, error) {
	var stats Stats
	cutoff := time.Now().Add(-c.maxAge)

	conf := fastwalk.DefaultConfig
	err := fastwalk.Walk(&conf, c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries.
		}
		if d.IsDir() || !strings.HasSuffix(path, cacheEntrySuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		stats.Entries++
		stats.TotalBytes += info.Size()
		if c.maxAge > 0 && info.ModTime().Before(cutoff) {
			stats.Expired++
		}
		return nil
	})
	if err != nil && os.IsNotExist(err) {
		return Stats{}, nil
	}
	return stats, err
}

// Sweep removes entries. With expiredOnly it removes only entries past the
// max age; otherwise it clears the whole cache. Returns the number removed.
func (c *Cache) Sweep(expiredOnly bool) (int, error) {
	removed := 0
	cutoff := time.Now().Add(-c.maxAge)

	conf := fastwalk.DefaultConfig
	err := fastwalk.Walk(&conf, c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(path, cacheEntrySuffix) {
			return nil
		}
		if expiredOnly {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			if c.maxAge <= 0 || info.ModTime().After(cutoff) {
				return nil
			}
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
		return nil
	})
	if err != nil && os.IsNotExist(err) {
		return 0, nil
	}
	logrus.Debugf("cache sweep removed %d entries", removed)
	return removed, err
}
