// Package morphcache keeps parsed morph files in memory under a byte budget.
//
// Entries are shared: every caller asking for the same path gets the same
// *tri.File until the entry is evicted by Shrink. Eviction order is least
// recently accessed first.
package morphcache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Faultbox/bodymorph/internal/logger"
	"github.com/Faultbox/bodymorph/pkg/encoding"
	"github.com/Faultbox/bodymorph/pkg/tri"
	"go.uber.org/zap"
)

// DefaultLimit is the default byte budget (2 GiB).
const DefaultLimit int64 = 2 << 30

// ErrEmptyPath is returned when GetOrLoad is called without a path.
var ErrEmptyPath = errors.New("empty morph file path")

// Loader returns the raw bytes of a morph file.
type Loader interface {
	Load(path string) ([]byte, error)
}

// Entry is a cached morph file.
type Entry struct {
	File *tri.File
	Path string

	accessed atomic.Int64 // unix nanoseconds
}

// Accessed returns the last time the entry was handed out.
func (e *Entry) Accessed() time.Time {
	return time.Unix(0, e.accessed.Load())
}

func (e *Entry) touch(now time.Time) {
	e.accessed.Store(now.UnixNano())
}

// Cache is a concurrency-safe, byte-bounded cache of parsed morph files.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	bytes   int64
	limit   int64

	loader Loader
	now    func() time.Time

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLimit sets the byte budget.
func WithLimit(bytes int64) Option {
	return func(c *Cache) {
		c.limit = bytes
	}
}

// WithClock replaces time.Now for access stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache reading files through loader.
func New(loader Loader, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*Entry),
		limit:   DefaultLimit,
		loader:  loader,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrLoad returns the cached file for path, parsing it on a miss.
// A file that fails to parse is not cached.
func (c *Cache) GetOrLoad(path string) (*Entry, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	key := encoding.NormalizePath(path)

	// Fast path: read lock
	c.mu.RLock()
	if entry, ok := c.entries[key]; ok {
		entry.touch(c.now())
		c.mu.RUnlock()
		c.hits.Add(1)
		return entry, nil
	}
	c.mu.RUnlock()

	// Slow path: load and parse without holding the lock
	data, err := c.loader.Load(key)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}
	file, err := tri.Parse(data)
	if err != nil {
		logger.Named("morphcache").Error("failed to parse morph file",
			zap.String("path", key), zap.Error(err))
		return nil, fmt.Errorf("parsing %s: %w", key, err)
	}

	// Write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		entry.touch(c.now())
		c.hits.Add(1)
		return entry, nil
	}

	entry := &Entry{File: file, Path: key}
	entry.touch(c.now())
	c.entries[key] = entry
	c.bytes += file.Size
	c.misses.Add(1)

	log := logger.Named("morphcache")
	for _, w := range file.Warnings {
		log.Warn("morph file integrity", zap.String("path", key), zap.String("warning", w.String()))
	}
	log.Debug("cached morph file",
		zap.String("path", key),
		zap.Int64("bytes", file.Size),
		zap.Int64("total", c.bytes))

	return entry, nil
}

// Shrink evicts least recently accessed entries until the cache fits its
// budget or is empty.
func (c *Cache) Shrink() {
	c.mu.RLock()
	over := c.bytes > c.limit
	c.mu.RUnlock()
	if !over {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	log := logger.Named("morphcache")
	for c.bytes > c.limit && len(c.entries) > 0 {
		var oldestKey string
		var oldest int64
		first := true
		for key, entry := range c.entries {
			if ts := entry.accessed.Load(); first || ts < oldest {
				oldestKey, oldest, first = key, ts, false
			}
		}

		victim := c.entries[oldestKey]
		delete(c.entries, oldestKey)
		c.bytes -= victim.File.Size
		c.evictions.Add(1)
		log.Debug("evicted morph file",
			zap.String("path", oldestKey),
			zap.Int64("bytes", victim.File.Size),
			zap.Int64("total", c.bytes))
	}

	if len(c.entries) == 0 {
		c.bytes = 0
	}
}

// SetLimit changes the byte budget. It does not evict; call Shrink.
func (c *Cache) SetLimit(bytes int64) {
	c.mu.Lock()
	c.limit = bytes
	c.mu.Unlock()
}

// Limit returns the byte budget.
func (c *Cache) Limit() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limit
}

// Bytes returns the accounted size of all cached files.
func (c *Cache) Bytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bytes
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Contains reports whether path is cached, without touching it.
func (c *Cache) Contains(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[encoding.NormalizePath(path)]
	return ok
}

// Stats returns hit, miss and eviction counters.
func (c *Cache) Stats() (hits, misses, evictions uint64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.bytes = 0
	c.mu.Unlock()
}
