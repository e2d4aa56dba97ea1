package fileinfo

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// future is one in-flight or completed resolution, shared by every
// caller that requests the same key before it settles — the Go
// equivalent of asyncio.shield(task) in AsyncLRUCache.__call__.
type future struct {
	done chan struct{}
	info *Info
	err  error
}

func (f *future) wait(ctx context.Context) (*Info, error) {
	select {
	case <-f.done:
		return f.info, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Fetcher resolves a message id to Info on a cache miss.
type Fetcher func(ctx context.Context, msgID int, fileName string) (*Info, error)

// Cache is a coalescing, size-bounded cache of Info keyed by message
// id, mirroring AsyncLRUCache: concurrent lookups for the same key
// share one upstream call, and entries that resolve to "not found"
// are evicted rather than cached, so a later retry can succeed once
// the message exists.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[int, *future]
	fetch   Fetcher
}

// NewCache builds a Cache bounded to size entries, using fetch to
// resolve cache misses.
func NewCache(size int, fetch Fetcher) (*Cache, error) {
	entries, err := lru.New[int, *future](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries, fetch: fetch}, nil
}

// Get returns the cached Info for msgID, coalescing concurrent
// requests for the same id into a single upstream fetch.
func (c *Cache) Get(ctx context.Context, msgID int, fileName string) (*Info, error) {
	c.mu.Lock()
	if f, ok := c.entries.Get(msgID); ok {
		c.mu.Unlock()
		return f.wait(ctx)
	}

	f := &future{done: make(chan struct{})}
	c.entries.Add(msgID, f)
	c.mu.Unlock()

	f.info, f.err = c.fetch(ctx, msgID, fileName)
	close(f.done)

	if f.err != nil || f.info == nil {
		c.mu.Lock()
		c.entries.Remove(msgID)
		c.mu.Unlock()
	}

	return f.info, f.err
}

// Len reports the current number of cached entries, for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
