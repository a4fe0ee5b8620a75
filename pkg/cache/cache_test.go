package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func newRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })
	return NewRedisCache(cli, WithRedisPrefix("test")), mr
}

func services(t *testing.T) map[string]Service {
	mem := NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })
	rc, _ := newRedis(t)
	rc2, _ := newRedis(t)
	layered := NewLayeredCache(rc2)
	t.Cleanup(func() { _ = layered.Close() })
	return map[string]Service{"memory": mem, "redis": rc, "layered": layered}
}

func TestService_Contract(t *testing.T) {
	for name, c := range services(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var got sample
			assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)

			require.NoError(t, c.Set(ctx, "k", sample{Symbol: "SPY", Price: 512.5}, time.Minute))
			require.NoError(t, c.Get(ctx, "k", &got))
			assert.Equal(t, sample{Symbol: "SPY", Price: 512.5}, got)

			require.NoError(t, c.Delete(ctx, "k"))
			assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)

			ok, err := c.TryLock(ctx, "job", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = c.TryLock(ctx, "job", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok, "lock is held")
			require.NoError(t, c.Unlock(ctx, "job"))
			ok, err = c.TryLock(ctx, "job", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestMemoryCache_ExpiryAndEviction(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryClock(func() time.Time { return now }))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Second))
	now = now.Add(2 * time.Second)
	var v int
	assert.ErrorIs(t, mc.Get(ctx, "a", &v), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "b", 2, time.Hour))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "c", 3, time.Hour))
	now = now.Add(time.Second)
	require.NoError(t, mc.Get(ctx, "b", &v))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "d", 4, time.Hour))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "c", &v), ErrCacheMiss, "least recently used is evicted")
	require.NoError(t, mc.Get(ctx, "b", &v))
	assert.Equal(t, 2, v)
}

func TestLayeredCache_PromotesFromRedis(t *testing.T) {
	ctx := context.Background()
	rc, mr := newRedis(t)
	require.NoError(t, rc.Set(ctx, "bundle", sample{Symbol: "QQQ"}, time.Hour))

	lc := NewLayeredCache(rc, WithLayeredMemory(10, time.Minute))
	defer lc.Close()

	var got sample
	require.NoError(t, lc.Get(ctx, "bundle", &got))
	assert.Equal(t, "QQQ", got.Symbol)

	mr.FlushAll()
	got = sample{}
	require.NoError(t, lc.Get(ctx, "bundle", &got), "served from memory")
	assert.Equal(t, "QQQ", got.Symbol)
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	calls := 0
	load := func(context.Context) (sample, error) {
		calls++
		return sample{Symbol: "IWM", Price: 200}, nil
	}
	for i := 0; i < 3; i++ {
		got, err := GetOrLoad(ctx, mc, "memo", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, "IWM", got.Symbol)
	}
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err := GetOrLoad(ctx, mc, "other", time.Minute, func(context.Context) (sample, error) {
		return sample{}, boom
	})
	assert.ErrorIs(t, err, boom)
	var v sample
	assert.ErrorIs(t, mc.Get(ctx, "other", &v), ErrCacheMiss, "failures are not cached")
}

func TestWithLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ran, err := WithLock(ctx, mc, "job:snapshot", time.Minute, func(ctx context.Context) error {
		inner, err := WithLock(ctx, mc, "job:snapshot", time.Minute, func(context.Context) error { return nil })
		require.NoError(t, err)
		assert.False(t, inner)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = WithLock(ctx, mc, "job:snapshot", time.Minute, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.True(t, ran, "released after the first run")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "bundle:SPY:2026-01-05", Key("bundle", "SPY", "2026-01-05"))
	assert.Equal(t, "p", Key("p"))
}
