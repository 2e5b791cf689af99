// package cache implements the persistent track match cache.
//
// The cache memoizes fingerprint → Spotify track URI resolutions across
// cycles and restarts, so every repeated chart entry costs one search call
// total, not one per cycle.
package cache

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatsync/internal/shared"
)

// TrackMatchCache is a thread safe fingerprint → identity memo store backed
// by a line-oriented file, one `fingerprint=identity` pair per line.
//
// Entries are insert-only under correct use; a repeated Store for the same
// fingerprint is last-write-wins.
type TrackMatchCache struct {
	mu      sync.RWMutex
	entries map[string]string
	path    string
	logger  *log.Logger
}

// NewTrackMatchCache creates a cache persisted at path. Call [TrackMatchCache.Load]
// before first use and [TrackMatchCache.Flush] at cycle boundaries.
func NewTrackMatchCache(path string, logger *log.Logger) *TrackMatchCache {
	return &TrackMatchCache{
		entries: make(map[string]string),
		path:    path,
		logger:  logger,
	}
}

// Load reads the cache file fully into memory. A missing file is not an
// error, it simply means a cold cache.
func (c *TrackMatchCache) Load() error {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", shared.ErrCachePersist, err)
	}
	defer f.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	loaded := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		// Identities may contain '='; the fingerprint never ends at anything
		// but the first one.
		key, value, found := strings.Cut(line, "=")
		if !found || key == "" {
			c.logger.Warn("skipping malformed cache line", "line", line)
			continue
		}
		c.entries[key] = value
		loaded++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCachePersist, err)
	}

	c.logger.Info("loaded track match cache", "entries", loaded, "path", c.path)
	return nil
}

// Lookup returns the cached identity for a fingerprint.
func (c *TrackMatchCache) Lookup(fingerprint string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	identity, ok := c.entries[fingerprint]
	return identity, ok
}

// Store records a resolved identity for a fingerprint.
func (c *TrackMatchCache) Store(fingerprint, identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = identity
}

// Len returns the number of cached entries.
func (c *TrackMatchCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a copy of the cache contents for display.
func (c *TrackMatchCache) Entries() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries := make(map[string]string, len(c.entries))
	for k, v := range c.entries {
		entries[k] = v
	}
	return entries
}

// Flush writes the full cache back to disk. Lines are sorted so the file is
// diff friendly. Persistence failures leave the in-memory cache authoritative.
func (c *TrackMatchCache) Flush() error {
	c.mu.RLock()
	lines := make([]string, 0, len(c.entries))
	for fingerprint, identity := range c.entries {
		lines = append(lines, fmt.Sprintf("%s=%s", fingerprint, identity))
	}
	c.mu.RUnlock()

	sort.Strings(lines)

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCachePersist, err)
	}

	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}

	if err := os.WriteFile(c.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCachePersist, err)
	}

	c.logger.Debug("flushed track match cache", "entries", len(lines), "path", c.path)
	return nil
}

// Clear drops every entry and removes the cache file. This is the only
// invalidation mechanism; entries have no expiry.
func (c *TrackMatchCache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[string]string)
	c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", shared.ErrCachePersist, err)
	}
	return nil
}
