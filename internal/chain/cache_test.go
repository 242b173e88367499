package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEntry counts lookups so tests can observe cache hits.
type countingEntry struct {
	mapEntry
	calls *int
}

func (e countingEntry) Lookup(name string) (any, bool) {
	*e.calls++
	return e.mapEntry.Lookup(name)
}

func TestCacheServesRepeatLookups(t *testing.T) {
	c, e := newTestChain(t, WithCache())
	calls := 0
	entry := countingEntry{
		mapEntry: mapEntry{owner: "m", values: map[string]any{"Foo": "v"}},
		calls:    &calls,
	}
	require.NoError(t, e.Merge(c.Root(), "m", []Entry{entry}, Append))

	for i := 0; i < 5; i++ {
		h, err := c.Resolve(nil, "Foo")
		require.NoError(t, err)
		assert.Equal(t, "v", h.Value)
	}
	assert.Equal(t, 1, calls, "repeat lookups must come from the cache")
}

func TestCacheInvalidatedByVersionBump(t *testing.T) {
	c, e := newTestChain(t, WithCache())
	require.NoError(t, e.Merge(c.Root(), "old", []Entry{entryOf("old", "Foo", "old")}, Append))

	h, err := c.Resolve(nil, "Foo")
	require.NoError(t, err)
	assert.Equal(t, "old", h.Value)

	// The merge bumps the node version; the cached record is now stale and
	// must be treated as a miss, never served.
	require.NoError(t, e.Merge(c.Root(), "new", []Entry{entryOf("new", "Foo", "new")}, Prepend))

	h, err = c.Resolve(nil, "Foo")
	require.NoError(t, err)
	assert.Equal(t, "new", h.Value)
}

func TestCacheIsPositiveOnly(t *testing.T) {
	c, e := newTestChain(t, WithCache())
	require.NoError(t, e.Merge(c.Root(), "m", []Entry{entryOf("m", "A", "1")}, Append))

	_, err := c.Resolve(nil, "Missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// A later load that defines the name must be visible immediately.
	require.NoError(t, e.Merge(c.Root(), "m2", []Entry{entryOf("m2", "Missing", "found")}, Prepend))
	h, err := c.Resolve(nil, "Missing")
	require.NoError(t, err)
	assert.Equal(t, "found", h.Value)
}

func TestStaleRecordDropped(t *testing.T) {
	c, e := newTestChain(t, WithCache())
	require.NoError(t, e.Merge(c.Root(), "m", []Entry{entryOf("m", "Foo", "v1")}, Append))

	_, err := c.Resolve(nil, "Foo")
	require.NoError(t, err)

	require.NoError(t, e.Merge(c.Root(), "m", []Entry{entryOf("m", "Foo", "v2")}, Prepend))

	key := cacheKey{node: c.Root().ID(), name: "Foo"}
	if rec, ok := c.cache.m.Load(key); ok {
		assert.NotEqual(t, c.Root().Version(), rec.(cacheRecord).version)
	}

	h, err := c.Resolve(nil, "Foo")
	require.NoError(t, err)
	assert.Equal(t, "v2", h.Value)

	rec, ok := c.cache.m.Load(key)
	require.True(t, ok)
	assert.Equal(t, c.Root().Version(), rec.(cacheRecord).version)
}
