package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[int], *clock) {
	clk := &clock{t: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1)
	c.Set("a", 2)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	clk.t = clk.t.Add(30 * time.Second)
	c.Set("c", 3)

	clk.t = clk.t.Add(31 * time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok)

	assert.Equal(t, 1, c.CleanExpired(), "only b remains expired after a was dropped by Get")
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_ZeroTTLNeverExpires(t *testing.T) {
	c, clk := newTestCache(10, 0)
	c.Set("a", 1)
	clk.t = clk.t.Add(24 * time.Hour)

	_, ok := c.Get("a")
	assert.True(t, ok)
	assert.Zero(t, c.CleanExpired())
}

func TestLRUCache_DeletePrefix(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("alice|1|all", 1)
	c.Set("alice|2|year", 2)
	c.Set("bob|1|all", 3)

	assert.Equal(t, 2, c.DeletePrefix("alice|"))
	assert.Equal(t, 1, c.Size())

	c.Delete("bob|1|all")
	assert.Zero(t, c.Size())
}

func TestManager_SweepAndStop(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("a", 1)
	clk.t = clk.t.Add(2 * time.Minute)

	m := NewManager()
	m.Register(c)
	assert.Equal(t, 1, m.Sweep())

	m.StartCleanup(time.Hour)
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
