package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mr, _ := newTestRedis(t)

	client, err := NewRedisClient(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	_ = client.Close()

	_, err = NewRedisClient(context.Background(), Options{Addr: ""})
	assert.ErrorIs(t, err, ErrRedisNotAvailable)

	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisClient(context.Background(), Options{Addr: addr})
	assert.ErrorIs(t, err, ErrRedisNotAvailable)
}

func TestBloomFilter(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	bf := NewBloomFilter(client, "polls", 5, time.Hour)

	ok, err := bf.Contains(ctx, "poll:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, bf.Add(ctx, "poll:1"))

	ok, err = bf.Contains(ctx, "poll:1")
	require.NoError(t, err)
	assert.True(t, ok)

	var nilFilter *BloomFilter
	_, err = nilFilter.Contains(ctx, "x")
	assert.ErrorIs(t, err, ErrRedisNotAvailable)
}

func TestDistributedLockExcludesConcurrentHolders(t *testing.T) {
	_, client := newTestRedis(t)
	locks := NewDistributedLockService(client)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- locks.TryWithLock(ctx, "cleanup", 10*time.Second, func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	err := locks.TryWithLock(ctx, "cleanup", 10*time.Second, func() error { return nil })
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	close(release)
	require.NoError(t, <-done)

	ran := false
	require.NoError(t, locks.WithLock(ctx, "cleanup", 10*time.Second, func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestDistributedLockReturnsActionError(t *testing.T) {
	_, client := newTestRedis(t)
	locks := NewDistributedLockService(client)
	boom := errors.New("boom")

	err := locks.WithLock(context.Background(), "x", time.Second, func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestLocalLocker(t *testing.T) {
	locks := NewLocalLocker()
	ctx := context.Background()

	err := locks.TryWithLock(ctx, "a", time.Second, func() error {
		inner := locks.TryWithLock(ctx, "a", time.Second, func() error { return nil })
		assert.ErrorIs(t, inner, ErrLockNotAcquired)
		// 不同名字互不影响
		return locks.TryWithLock(ctx, "b", time.Second, func() error { return nil })
	})
	require.NoError(t, err)

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locks.WithLock(ctx, "counter", time.Second, func() error {
				atomic.AddInt64(&counter, 1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(20), counter)
}

func TestTokenBucketRateLimiter(t *testing.T) {
	_, client := newTestRedis(t)
	limiter := NewTokenBucketRateLimiter(client, "vote", 1, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
	}

	allowed, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)

	// 其他客户端有独立的桶
	allowed, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLocalRateLimiter(t *testing.T) {
	limiter := NewLocalRateLimiter(1, 2)
	ctx := context.Background()

	a1, _ := limiter.Allow(ctx, "k")
	a2, _ := limiter.Allow(ctx, "k")
	a3, _ := limiter.Allow(ctx, "k")
	assert.True(t, a1)
	assert.True(t, a2)
	assert.False(t, a3)

	other, _ := limiter.Allow(ctx, "other")
	assert.True(t, other)
}

func TestFallbackRateLimiterUsesLocalWhenRedisFails(t *testing.T) {
	mr, client := newTestRedis(t)
	limiter := NewRateLimiter(client, "vote", 1, 1)
	ctx := context.Background()

	mr.Close()

	allowed, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, allowed)

	_, isLocal := NewRateLimiter(nil, "vote", 1, 1).(*LocalRateLimiter)
	assert.True(t, isLocal)
}

type cachedThing struct {
	Name string `json:"name"`
}

func TestJSONCacheLoadsOnceAndCachesNulls(t *testing.T) {
	_, client := newTestRedis(t)
	bloom := NewBloomFilter(client, "test", 3, time.Hour)
	c := NewJSONCache(client, NewDistributedLockService(client), bloom, time.Minute)
	ctx := context.Background()

	var loads int
	loader := func(context.Context) (interface{}, error) {
		loads++
		return &cachedThing{Name: "alpha"}, nil
	}

	var got cachedThing
	found, err := c.GetOrLoad(ctx, "thing:1", time.Minute, &got, loader)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "alpha", got.Name)

	var again cachedThing
	found, err = c.GetOrLoad(ctx, "thing:1", time.Minute, &again, loader)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "alpha", again.Name)
	assert.Equal(t, 1, loads)

	var missingLoads int
	missing := func(context.Context) (interface{}, error) {
		missingLoads++
		return nil, nil
	}
	var none cachedThing
	found, err = c.GetOrLoad(ctx, "thing:404", time.Minute, &none, missing)
	require.NoError(t, err)
	assert.False(t, found)
	found, err = c.GetOrLoad(ctx, "thing:404", time.Minute, &none, missing)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, missingLoads)

	require.NoError(t, c.Delete(ctx, "thing:1"))
	_, err = c.GetOrLoad(ctx, "thing:1", time.Minute, &got, loader)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestJSONCachePropagatesLoaderError(t *testing.T) {
	_, client := newTestRedis(t)
	c := NewJSONCache(client, NewLocalLocker(), nil, time.Minute)
	boom := errors.New("db down")

	var got cachedThing
	found, err := c.GetOrLoad(context.Background(), "thing:x", time.Minute, &got,
		func(context.Context) (interface{}, error) { return nil, boom })
	assert.False(t, found)
	assert.ErrorIs(t, err, boom)
}

func TestJSONCacheMutateClearsKeyAndReturnsWriteError(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewJSONCache(client, NewDistributedLockService(client), nil, time.Minute)
	ctx := context.Background()

	var got cachedThing
	_, err := c.GetOrLoad(ctx, "thing:1", time.Minute, &got,
		func(context.Context) (interface{}, error) { return &cachedThing{Name: "alpha"}, nil })
	require.NoError(t, err)
	require.True(t, mr.Exists("thing:1"))

	writes := 0
	require.NoError(t, c.Mutate(ctx, "thing:1", func() error {
		writes++
		return nil
	}))
	assert.Equal(t, 1, writes)
	assert.False(t, mr.Exists("thing:1"))

	boom := errors.New("write failed")
	assert.ErrorIs(t, c.Mutate(ctx, "thing:1", func() error { return boom }), boom)
	assert.False(t, mr.Exists("lock:cache:thing:1"))
}

func TestJitterStaysWithinTenPercent(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := jitter(time.Minute)
		assert.GreaterOrEqual(t, d, time.Minute)
		assert.Less(t, d, time.Minute+6*time.Second)
	}
}
