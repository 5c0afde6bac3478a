package cache

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value   string
	expires time.Time
}

// InMemoryCache stores cache entries in process memory.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

var _ Cache = (*InMemoryCache)(nil)

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

func (c *InMemoryCache) Get(_ context.Context, key string) (io.ReadCloser, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expires.IsZero() && !c.now().Before(entry.expires) {
		c.mu.Lock()
		// re-check, a concurrent Put may have refreshed it
		if current, still := c.data[key]; still && current.expires.Equal(entry.expires) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return nil, ErrNotFound
	}
	return io.NopCloser(strings.NewReader(entry.value)), nil
}

func (c *InMemoryCache) Put(_ context.Context, key, value string, opts PutOptions) error {
	entry := memoryEntry{value: value}
	if opts.TTL > 0 {
		entry.expires = c.now().Add(opts.TTL)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry
	return nil
}

func (c *InMemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *InMemoryCache) Ready(context.Context) error {
	return nil
}

// Len counts stored entries, expired or not.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
