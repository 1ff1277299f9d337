package slack

import (
	"sync"
	"time"
)

// userCache is a bounded TTL cache of user display names. Name lookups
// hit the Web API once per user per TTL; eviction keeps the cache from
// growing with workspace size.
type userCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	name    string
	expires time.Time
}

func newUserCache(maxSize int, ttl time.Duration) *userCache {
	if maxSize <= 0 {
		maxSize = 128
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &userCache{
		entries: make(map[string]cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *userCache) get(userID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok {
		return "", false
	}
	if c.now().After(e.expires) {
		delete(c.entries, userID)
		return "", false
	}
	return e.name, true
}

func (c *userCache) put(userID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictLocked()
	}
	c.entries[userID] = cacheEntry{name: name, expires: c.now().Add(c.ttl)}
}

// evictLocked drops expired entries, then the soonest-to-expire entry
// if the cache is still full. Must be called with c.mu held.
func (c *userCache) evictLocked() {
	now := c.now()
	for id, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, id)
		}
	}
	if len(c.entries) < c.maxSize {
		return
	}

	var oldestID string
	var oldest time.Time
	for id, e := range c.entries {
		if oldestID == "" || e.expires.Before(oldest) {
			oldestID = id
			oldest = e.expires
		}
	}
	delete(c.entries, oldestID)
}

func (c *userCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
