package fixture

import "sync"

// Cache is the Mock File Cache: raw fixture bytes keyed by path.
//
// It is populated lazily on read and refreshed on write, so a test that
// captures and then replays within one process never rereads its own files.
// The cache is an optimization only; a Store with an empty cache behaves
// identically.
type Cache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string][]byte)}
}

var shared = NewCache()

// SharedCache returns the process-wide cache used by default stores.
func SharedCache() *Cache {
	return shared
}

// Get returns the cached bytes for path.
func (c *Cache) Get(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[path]
	return data, ok
}

// Put stores a private copy of data under path.
func (c *Cache) Put(path string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = append([]byte(nil), data...)
}

// Reset empties the cache.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
}

// Len returns the number of cached fixtures.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
