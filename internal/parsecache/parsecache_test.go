package parsecache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/panbanda/augur/internal/cache"
	"github.com/panbanda/augur/pkg/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ cache.Evictor = (*Cache)(nil)

func tree(name string) *syntax.Node {
	return syntax.Block(syntax.Func(name, []string{"x"}, syntax.Return(syntax.Ident("x"))))
}

func TestGetValidatesMtimeAndHash(t *testing.T) {
	c := New(4)
	now := time.Unix(1000, 0)
	c.Set("a.py", tree("f"), "h1", now)

	got, ok := c.Get("a.py", now, "h1")
	require.True(t, ok)
	assert.Equal(t, tree("f"), got)

	_, ok = c.Get("a.py", now.Add(time.Second), "h1")
	assert.False(t, ok, "mtime mismatch")
	assert.Equal(t, 0, c.Len(), "stale entry dropped")

	c.Set("a.py", tree("f"), "h1", now)
	_, ok = c.Get("a.py", now, "h2")
	assert.False(t, ok, "hash mismatch")
	assert.Equal(t, 0, c.Len())

	_, ok = c.Get("missing.py", now, "h1")
	assert.False(t, ok)
}

func TestCopiesIsolateCallers(t *testing.T) {
	c := New(4)
	now := time.Unix(1, 0)
	in := tree("f")
	c.Set("a.py", in, "h", now)
	in.Children[0].Name = "mutated"

	got, ok := c.Get("a.py", now, "h")
	require.True(t, ok)
	assert.Equal(t, "f", got.Children[0].Name)

	got.Children[0].Name = "mutated again"
	again, _ := c.Get("a.py", now, "h")
	assert.Equal(t, "f", again.Children[0].Name)
}

func TestEvictsOldestInsertion(t *testing.T) {
	c := New(2)
	now := time.Unix(1, 0)
	c.Set("a.py", tree("a"), "h", now)
	c.Set("b.py", tree("b"), "h", now)

	// a lookup does not protect a.py from eviction
	_, ok := c.Get("a.py", now, "h")
	require.True(t, ok)

	c.Set("c.py", tree("c"), "h", now)
	assert.Equal(t, 2, c.Len())
	_, ok = c.Get("a.py", now, "h")
	assert.False(t, ok)
	_, ok = c.Get("b.py", now, "h")
	assert.True(t, ok)
	_, ok = c.Get("c.py", now, "h")
	assert.True(t, ok)
}

func TestEvictAndPurge(t *testing.T) {
	c := New(0)
	now := time.Unix(1, 0)
	c.Set("a.py", tree("a"), "h", now)
	c.Set("b.py", tree("b"), "h", now)

	c.Evict("a.py")
	_, ok := c.Get("a.py", now, "h")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestStats(t *testing.T) {
	c := New(2)
	now := time.Unix(1, 0)
	c.Set("a.py", tree("a"), "h", now)
	c.Get("a.py", now, "h")
	c.Get("b.py", now, "h")

	assert.Equal(t, Stats{Entries: 1, Hits: 1, Misses: 1}, c.Stats())
}

func TestConcurrentUse(t *testing.T) {
	c := New(8)
	now := time.Unix(1, 0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("f%d.py", i%4)
			c.Set(path, tree("f"), "h", now)
			if got, ok := c.Get(path, now, "h"); ok {
				got.Name = "local"
			}
			c.Evict(fmt.Sprintf("f%d.py", (i+1)%4))
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 4)
}
