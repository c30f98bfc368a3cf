// internal/nlu/cache.go
package nlu

import (
	"container/list"
	"sync"
	"time"

	"marketplace-chat/internal/common/nlp"
)

type cacheEntry struct {
	key       string
	result    *nlp.Result
	expiresAt time.Time
}

// ResultCache keeps NLP parses keyed by exact message text. It is bounded
// by size (oldest insertion evicted first) and by TTL (expired entries are
// dropped when read).
type ResultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	size    int
	order   *list.List
	entries map[string]*list.Element
	now     func() time.Time
}

func NewResultCache(size int, ttl time.Duration) *ResultCache {
	if size <= 0 {
		size = 1
	}
	return &ResultCache{
		ttl:     ttl,
		size:    size,
		order:   list.New(),
		entries: make(map[string]*list.Element, size),
		now:     time.Now,
	}
}

func (c *ResultCache) Get(key string) (*nlp.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if !c.now().Before(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil, false
	}
	return entry.result, true
}

// Set stores result. Re-setting an existing key refreshes its value and
// expiry but keeps its insertion position.
func (c *ResultCache) Set(key string, result *nlp.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.result = result
		entry.expiresAt = expires
		return
	}

	for c.order.Len() >= c.size {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	c.entries[key] = c.order.PushBack(&cacheEntry{key: key, result: result, expiresAt: expires})
}

func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
