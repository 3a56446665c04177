// Package cache keeps synthesized audio on disk so repeated utterances are
// served without calling the provider again.
package cache

import (
	"container/list"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const fileExt = ".audio"

// Cache is a disk-backed LRU cache bounded by total payload size.
type Cache struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
	total    int64
	log      *slog.Logger
	order    *list.List // front is most recently used
	entries  map[string]*list.Element
}

type entry struct {
	key  string
	size int64
	path string
}

// New creates a Cache that stores files in dir with a total size cap of maxBytes.
// It creates dir if it does not exist and indexes files left by a previous run.
func New(dir string, maxBytes int64, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	c := &Cache{
		dir:      dir,
		maxBytes: maxBytes,
		log:      logger.With("component", "cache"),
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
	c.loadExisting()
	return c, nil
}

// Get returns cached data for key and true on hit, or nil and false on miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)

	data, err := os.ReadFile(e.path)
	if err != nil {
		c.log.Warn("cache file unreadable, removing entry", "key", key, "error", err)
		c.remove(el, false)
		return nil, false
	}

	c.order.MoveToFront(el)
	return data, true
}

// Put stores data under key, evicting least-recently-used entries if necessary.
// Empty payloads and entries larger than maxBytes are skipped.
func (c *Cache) Put(key string, data []byte) error {
	size := int64(len(data))
	if size == 0 || size > c.maxBytes {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.remove(el, true)
	}
	c.evict(size)

	p := filepath.Join(c.dir, key+fileExt)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: write: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: commit: %w", err)
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, size: size, path: p})
	c.total += size
	return nil
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Size reports the total cached payload in bytes.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Key produces a deterministic SHA-256 hex key from synthesis parameters.
// Fields are length-prefixed so no two inputs collide by concatenation.
func Key(provider, voiceID, text string) string {
	h := sha256.New()
	for _, part := range []string{provider, voiceID, text} {
		fmt.Fprintf(h, "%d:%s\n", len(part), part)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// evict drops least-recently-used entries until total + needed fits.
// Must be called with mu held.
func (c *Cache) evict(needed int64) {
	for c.total+needed > c.maxBytes {
		el := c.order.Back()
		if el == nil {
			return
		}
		e := el.Value.(*entry)
		c.remove(el, true)
		c.log.Debug("evicted cache entry", "key", e.key, "size", e.size)
	}
}

// remove unlinks an entry and optionally deletes its file. Must be called
// with mu held.
func (c *Cache) remove(el *list.Element, deleteFile bool) {
	e := c.order.Remove(el).(*entry)
	delete(c.entries, e.key)
	c.total -= e.size
	if deleteFile {
		os.Remove(e.path)
	}
}

// loadExisting scans dir for cached files and rebuilds the LRU order from
// modification times.
func (c *Cache) loadExisting() {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*"+fileExt))
	if err != nil {
		c.log.Warn("cache: glob existing files", "error", err)
		return
	}

	type found struct {
		entry
		mod int64
	}
	var files []found
	for _, p := range matches {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		key := strings.TrimSuffix(filepath.Base(p), fileExt)
		files = append(files, found{entry{key: key, size: info.Size(), path: p}, info.ModTime().UnixNano()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod < files[j].mod })

	for _, f := range files {
		e := f.entry
		c.entries[e.key] = c.order.PushFront(&e)
		c.total += e.size
	}
	if len(c.entries) > 0 {
		c.log.Info("loaded existing cache entries", "count", len(c.entries), "total_bytes", c.total)
		// The limit may have been lowered since the last run.
		c.evict(0)
	}
}
