package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return New(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestCheckoutLock(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	token, ok, err := c.AcquireCheckoutLock(ctx, 7, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = c.AcquireCheckoutLock(ctx, 7, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second checkout must not get the lock")

	_, ok, err = c.AcquireCheckoutLock(ctx, 8, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "locks are per customer")

	require.NoError(t, c.ReleaseCheckoutLock(ctx, 7, "not-the-owner"))
	assert.True(t, mr.Exists("lock:checkout:7"))

	require.NoError(t, c.ReleaseCheckoutLock(ctx, 7, token))
	assert.False(t, mr.Exists("lock:checkout:7"))
}

func TestCheckoutLockExpires(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	_, ok, err := c.AcquireCheckoutLock(ctx, 1, 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Second)

	_, ok, err = c.AcquireCheckoutLock(ctx, 1, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRememberCheckout(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	_, found, err := c.LookupCheckout(ctx, 3, "k-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.RememberCheckout(ctx, 3, "k-1", 42, time.Hour))

	orderID, found, err := c.LookupCheckout(ctx, 3, "k-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(42), orderID)

	_, found, err = c.LookupCheckout(ctx, 4, "k-1")
	require.NoError(t, err)
	assert.False(t, found, "keys are scoped to the customer")

	mr.FastForward(2 * time.Hour)
	_, found, err = c.LookupCheckout(ctx, 3, "k-1")
	require.NoError(t, err)
	assert.False(t, found)
}
