package assessor

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/timvw/persona-survey/internal/model"
)

// Cache holds narratives keyed by a hash of the rendered prompt, so an
// identical questionnaire and rating set within the TTL skips the LLM call.
// A TTL of 0 disables caching.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	now     func() time.Time

	hits   int64
	misses int64
}

type cacheEntry struct {
	narrative model.Narrative
	cachedAt  time.Time
}

// CacheStats is a point-in-time view of the cache.
type CacheStats struct {
	Entries int
	Hits    int64
	Misses  int64
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool {
	return c != nil && c.ttl > 0
}

// Lookup returns a copy of the cached narrative for prompt, if fresh.
func (c *Cache) Lookup(prompt string) (*model.Narrative, bool) {
	if !c.Enabled() {
		return nil, false
	}
	key := hashPrompt(prompt)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().Sub(entry.cachedAt) > c.ttl {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	n := entry.narrative
	n.Cached = true
	return &n, true
}

// Store saves n for prompt. Fallback narratives are never stored.
func (c *Cache) Store(prompt string, n model.Narrative) {
	if !c.Enabled() || n.Fallback {
		return
	}
	key := hashPrompt(prompt)

	c.mu.Lock()
	c.entries[key] = &cacheEntry{narrative: n, cachedAt: c.now()}
	c.mu.Unlock()
}

// Stats returns the entry count and hit/miss counters.
func (c *Cache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

func hashPrompt(prompt string) string {
	h := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("%x", h)
}
