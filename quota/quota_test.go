package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeeperAllowsUnderLimit(t *testing.T) {
	k := NewKeeper(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, used, _, err := k.IncrementAndCheck(ctx, "u1", 0)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i+1, used)
	}

	allowed, used, _, err := k.IncrementAndCheck(ctx, "u1", 0)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 4, used)
}

func TestKeeperResetsAfterWindow(t *testing.T) {
	now := time.Now()
	k := NewKeeper(1, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	allowed, _, resetAt, err := k.IncrementAndCheck(ctx, "u1", 0)
	require.NoError(t, err)
	assert.True(t, allowed)

	now = time.Unix(resetAt, 0).Add(time.Second)
	allowed, used, _, err := k.IncrementAndCheck(ctx, "u1", 0)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, used)
}

func TestKeeperHourlySecondaryBucket(t *testing.T) {
	k := NewKeeper(100, WithHourlyLimit(1))
	ctx := context.Background()

	allowed, _, _, err := k.IncrementAndCheck(ctx, "u1", 0)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, _, err = k.IncrementAndCheck(ctx, "u1", 0)
	require.NoError(t, err)
	assert.False(t, allowed, "hourly limit should bind even though the daily limit is far from reached")
}

func TestKeeperReset(t *testing.T) {
	k := NewKeeper(1)
	ctx := context.Background()
	_, _, _, _ = k.IncrementAndCheck(ctx, "u1", 0)
	require.NoError(t, k.Reset(ctx, "u1"))
	used, _, err := k.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}

func TestKeeperPerUserIndependence(t *testing.T) {
	k := NewKeeper(1)
	ctx := context.Background()
	allowedA, _, _, _ := k.IncrementAndCheck(ctx, "a", 0)
	allowedB, _, _, _ := k.IncrementAndCheck(ctx, "b", 0)
	assert.True(t, allowedA)
	assert.True(t, allowedB)
}

func newMiniredis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisStoreIncrementAndCheck(t *testing.T) {
	client := newMiniredis(t)
	store := NewRedisStore(client, "test:quota:")
	ctx := context.Background()

	allowed, used, resetAt, err := store.IncrementAndCheck(ctx, "u1", 2)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, used)
	assert.Greater(t, resetAt, time.Now().Unix())

	allowed, used, _, err = store.IncrementAndCheck(ctx, "u1", 2)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2, used)

	allowed, used, _, err = store.IncrementAndCheck(ctx, "u1", 2)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 3, used)
}

func TestRedisStoreReset(t *testing.T) {
	client := newMiniredis(t)
	store := NewRedisStore(client, "test:quota:")
	ctx := context.Background()

	_, _, _, err := store.IncrementAndCheck(ctx, "u1", 5)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx, "u1"))

	used, _, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}

func TestFallbackDegradesOnRedisError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close() // force every redis call to fail

	primary := NewRedisStore(client, "test:quota:")
	fallback := NewKeeper(3)
	fb := NewFallback(primary, fallback)

	ctx := context.Background()
	allowed, used, _, err := fb.IncrementAndCheck(ctx, "u1", 3)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, used)
}
