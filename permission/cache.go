package permission

import (
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache keeps recently resolved permission codes per user for a short TTL.
// Role changes become visible once the entry expires or is invalidated.
type Cache struct {
	lru *expirable.LRU[string, []string]
}

// NewCache creates a cache holding at most size users for ttl each.
func NewCache(size int, ttl time.Duration) *Cache {
	return &Cache{lru: expirable.NewLRU[string, []string](size, nil, ttl)}
}

// Get returns a copy of the cached codes for userID.
func (c *Cache) Get(userID string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	codes, ok := c.lru.Get(userID)
	if !ok {
		return nil, false
	}
	return slices.Clone(codes), true
}

// Add stores codes for userID.
func (c *Cache) Add(userID string, codes []string) {
	if c == nil {
		return
	}
	c.lru.Add(userID, slices.Clone(codes))
}

// Invalidate drops the entry for userID.
func (c *Cache) Invalidate(userID string) {
	if c == nil {
		return
	}
	c.lru.Remove(userID)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
