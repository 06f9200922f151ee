// Package parsecache keeps recently parsed syntax trees in memory so repeated
// loads of an unchanged file skip the parser.
package parsecache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/panbanda/augur/pkg/syntax"
)

// DefaultSize is used when a non-positive capacity is requested.
const DefaultSize = 512

type entry struct {
	tree  *syntax.Node
	hash  string
	mtime time.Time
}

// Cache is a bounded map from file path to parsed tree. Lookups never bump
// recency, so the oldest insertion is evicted first. Trees are copied on the
// way in and on the way out.
type Cache struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, entry]

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache holding at most size trees.
func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	l, err := simplelru.NewLRU[string, entry](size, nil)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &Cache{lru: l}
}

// Get returns a copy of the tree cached for path when both mtime and hash
// match the cached entry. A stale entry is dropped.
func (c *Cache) Get(path string, mtime time.Time, hash string) (*syntax.Node, bool) {
	c.mu.Lock()
	e, ok := c.lru.Peek(path)
	if ok && (!e.mtime.Equal(mtime) || e.hash != hash) {
		c.lru.Remove(path)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.tree.Clone(), true
}

// Set stores a copy of tree for path, evicting the oldest entry when full.
func (c *Cache) Set(path string, tree *syntax.Node, hash string, mtime time.Time) {
	e := entry{tree: tree.Clone(), hash: hash, mtime: mtime}
	c.mu.Lock()
	c.lru.Remove(path)
	c.lru.Add(path, e)
	c.mu.Unlock()
}

// Evict drops the entry for path.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	c.lru.Remove(path)
	c.mu.Unlock()
}

// Len returns the number of cached trees.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()
}

// Stats reports lookup counts since creation.
type Stats struct {
	Entries int   `json:"entries" yaml:"entries"`
	Hits    int64 `json:"hits" yaml:"hits"`
	Misses  int64 `json:"misses" yaml:"misses"`
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	return Stats{Entries: c.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}
