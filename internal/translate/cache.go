package translate

import (
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Fingerprint derives the memoization key: trimmed-lowercased source text
// plus the sorted target locale set. The advisory context string is
// deliberately excluded.
func Fingerprint(text string, targets []string) string {
	sorted := append([]string(nil), targets...)
	sort.Strings(sorted)
	return strings.ToLower(strings.TrimSpace(text)) + "|" + strings.Join(sorted, ",")
}

// Cache memoizes translation mappings per fingerprint. It is bounded by
// size and TTL so a long-running daemon cannot grow it without limit.
type Cache struct {
	lru *expirable.LRU[string, map[string]string]
}

// NewCache creates a cache holding at most size entries for at most ttl.
func NewCache(size int, ttl time.Duration) *Cache {
	return &Cache{lru: expirable.NewLRU[string, map[string]string](size, nil, ttl)}
}

// Get returns the cached mapping for key, if present.
func (c *Cache) Get(key string) (map[string]string, bool) {
	return c.lru.Get(key)
}

// Add stores a mapping under key. Existing entries are overwritten; the
// single-flight layer above makes concurrent duplicate computation rare
// rather than relying on this being write-once.
func (c *Cache) Add(key string, mapping map[string]string) {
	c.lru.Add(key, mapping)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}
