package search

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/hyperjump/genomesearch/internal/cache"
	"github.com/hyperjump/genomesearch/internal/index"
)

// resultCache holds ordered match positions per (index key, operation,
// query, order). Keys start with the immutable index key, so entries never
// go stale; they leave by LRU eviction, by dropping their index, or when a
// caller's num_found disagrees with the cached count.
type resultCache struct {
	lru    *cache.LRU[string, *index.Matches]
	hits   atomic.Int64
	misses atomic.Int64
}

func newResultCache(size int) *resultCache {
	return &resultCache{lru: cache.New[string, *index.Matches](size, 0)}
}

func resultKey(indexKey, op string, parts ...string) string {
	return indexKey + "|" + op + "|" + strings.Join(parts, "|")
}

func featureKey(indexKey, query, sortKey string) string {
	return resultKey(indexKey, "features", strconv.Quote(query), sortKey)
}

func regionKey(indexKey, contigID string, start, length int64) string {
	return resultKey(indexKey, "region", strconv.Quote(contigID),
		strconv.FormatInt(start, 10), strconv.FormatInt(length, 10))
}

func contigKey(indexKey, query, sortKey string) string {
	return resultKey(indexKey, "contigs", strconv.Quote(query), sortKey)
}

// get returns the cached matches for key. A non-nil hint that differs from
// the cached total evicts the entry and reports a miss.
func (c *resultCache) get(key string, hint *int64) (*index.Matches, bool) {
	m, ok := c.lru.Get(key)
	if ok && hint != nil && *hint != m.Total {
		c.lru.Delete(key)
		ok = false
	}
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return m, ok
}

func (c *resultCache) set(key string, m *index.Matches) {
	c.lru.Set(key, m)
}

// purge drops every entry of indexKey and returns how many were removed.
func (c *resultCache) purge(indexKey string) int {
	prefix := indexKey + "|"
	return c.lru.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, prefix) })
}

func (c *resultCache) len() int {
	return c.lru.Len()
}
