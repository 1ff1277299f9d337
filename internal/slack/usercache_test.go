package slack

import (
	"testing"
	"time"
)

func TestUserCache_HitAndMiss(t *testing.T) {
	c := newUserCache(4, time.Hour)

	if _, ok := c.get("U1"); ok {
		t.Error("empty cache returned a hit")
	}

	c.put("U1", "dana")
	name, ok := c.get("U1")
	if !ok || name != "dana" {
		t.Errorf("get = %q, %v", name, ok)
	}
}

func TestUserCache_TTLExpiry(t *testing.T) {
	c := newUserCache(4, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.put("U1", "dana")

	now = now.Add(30 * time.Second)
	if _, ok := c.get("U1"); !ok {
		t.Error("entry expired before TTL")
	}

	now = now.Add(31 * time.Second)
	if _, ok := c.get("U1"); ok {
		t.Error("entry survived past TTL")
	}
}

func TestUserCache_BoundedSize(t *testing.T) {
	c := newUserCache(3, time.Hour)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.put("U1", "a")
	now = now.Add(time.Second)
	c.put("U2", "b")
	now = now.Add(time.Second)
	c.put("U3", "c")
	now = now.Add(time.Second)
	c.put("U4", "d")

	if c.len() > 3 {
		t.Errorf("cache size = %d, want <= 3", c.len())
	}
	// The earliest-expiring entry goes first.
	if _, ok := c.get("U1"); ok {
		t.Error("oldest entry survived eviction")
	}
	if _, ok := c.get("U4"); !ok {
		t.Error("newest entry was evicted")
	}
}

func TestUserCache_Defaults(t *testing.T) {
	c := newUserCache(0, 0)
	if c.maxSize != 128 {
		t.Errorf("maxSize = %d, want 128", c.maxSize)
	}
	if c.ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", c.ttl)
	}
}
