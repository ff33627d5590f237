package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopStoreNeverServesValues(t *testing.T) {
	store := NewNoop()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, MenuKey, []byte("{}"), 0))
	_, err := store.Get(ctx, MenuKey)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestNoopStoreCountsWithinWindow(t *testing.T) {
	store := NewNoop()
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := store.Increment(ctx, "rl:1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	ttl, err := store.TTL(ctx, "rl:1.2.3.4")
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	require.NoError(t, store.Delete(ctx, "rl:1.2.3.4"))
	n, err := store.Increment(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNoopStoreCounterExpires(t *testing.T) {
	store := NewNoop()
	ctx := context.Background()

	_, err := store.Increment(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	n, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNoopStoreMarkerTTL(t *testing.T) {
	store := NewNoop()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "block:x", []byte("1"), time.Minute))
	ttl, err := store.TTL(ctx, "block:x")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	ttl, err = store.TTL(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, ttl)
}

func TestOrderKey(t *testing.T) {
	assert.Equal(t, "orders:42", OrderKey(42))
}
