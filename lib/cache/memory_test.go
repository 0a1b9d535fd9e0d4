package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemory(maxSize int) (*MemoryCache, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := NewMemoryCache(maxSize, 0)
	m.now = clock.now
	return m, clock
}

func TestMemoryGetSetExpire(t *testing.T) {
	m, clock := newTestMemory(0)
	ctx := context.Background()

	_, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	v, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), v)

	clock.advance(time.Minute)
	_, found, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryDelete(t *testing.T) {
	m, _ := newTestMemory(0)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, m.Delete(ctx, "k"))
	_, found, _ := m.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemoryCleanupBoundsSize(t *testing.T) {
	m, clock := newTestMemory(2)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Duration(i+1)*time.Hour))
	}
	require.NoError(t, m.Set(ctx, "stale", []byte("v"), time.Second))
	clock.advance(2 * time.Second)

	m.cleanup()
	assert.Equal(t, 2, m.Len())

	for _, key := range []string{"k2", "k3"} {
		_, found, _ := m.Get(ctx, key)
		assert.True(t, found, key)
	}
}

func TestMemoryCancelledContext(t *testing.T) {
	m, _ := newTestMemory(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, m.Set(ctx, "k", nil, time.Second), context.Canceled)
}

func TestMemoryCloseTwice(t *testing.T) {
	m := NewMemoryCache(0, time.Millisecond)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
