package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New()
	defer c.Close()

	c.Set("k", "v", 0)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestGetMissing(t *testing.T) {
	c := New()
	defer c.Close()

	_, ok := c.Get("nope")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestTTLExpiry(t *testing.T) {
	c := New()
	defer c.Close()

	c.Set("k", "v", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok, "entry must not be observed past cachedAt+ttl")
}

func TestRemoveAndClear(t *testing.T) {
	c := New()
	defer c.Close()

	c.Set("a", 1, 0)
	c.Remove("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("b", 2, 0)
	c.Get("b")
	c.Clear()
	stats := c.Stats()
	assert.Zero(t, stats.Entries)
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
}

func TestEvictionByAccessCount(t *testing.T) {
	c := New(WithMaxEntries(2))
	defer c.Close()

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	// Access "b" so it outlives "a" when a third entry forces eviction.
	c.Get("b")
	c.Get("b")

	c.Set("c", 3, 0)

	_, aOK := c.Get("a")
	_, bOK := c.Get("b")
	_, cOK := c.Get("c")

	assert.False(t, aOK, "least-accessed entry should be evicted first")
	assert.True(t, bOK)
	assert.True(t, cOK)
}

func TestStatsNeverUnderflow(t *testing.T) {
	c := New()
	defer c.Close()
	for i := 0; i < 5; i++ {
		c.Get("missing")
	}
	assert.Equal(t, int64(5), c.Stats().Misses)
}
