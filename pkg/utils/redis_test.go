package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestIncrWindow_CountsAndExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	n, ttl, err := IncrWindow(ctx, rdb, "rl:test", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.Equal(t, time.Minute, ttl)

	n, _, err = IncrWindow(ctx, rdb, "rl:test", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	mr.FastForward(time.Minute + time.Second)

	n, _, err = IncrWindow(ctx, rdb, "rl:test", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, n, "a new window starts after expiry")
}

func TestIncrWindow_RestoresMissingTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	require.NoError(t, mr.Set("rl:stuck", "7"))

	n, ttl, err := IncrWindow(context.Background(), rdb, "rl:stuck", 30*time.Second)
	require.NoError(t, err)
	require.EqualValues(t, 8, n)
	require.Equal(t, 30*time.Second, ttl)
	require.Equal(t, 30*time.Second, mr.TTL("rl:stuck"))
}

func TestIncrWindow_ValidatesArgs(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	_, _, err := IncrWindow(ctx, rdb, "", time.Minute)
	require.Error(t, err)
	_, _, err = IncrWindow(ctx, rdb, "k", 0)
	require.Error(t, err)
}
