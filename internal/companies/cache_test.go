package companies

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheBuildKeyIncludesVersion(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "detail", "apple")
	require.NoError(t, err)
	assert.Equal(t, "companies:detail:apple:v1", key)

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.BuildKey(ctx, "detail", "apple")
	require.NoError(t, err)
	assert.Equal(t, "companies:detail:apple:v2", key)
}

func TestCacheFetchJSONStoresWithTTL(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	var calls int
	loader := func(context.Context) (any, error) {
		calls++
		return []Summary{{Code: "apple", Name: "Apple"}}, nil
	}

	for i := 0; i < 3; i++ {
		var got []Summary
		require.NoError(t, cache.FetchJSON(ctx, "companies:list:v1", &got, loader))
		assert.Equal(t, []Summary{{Code: "apple", Name: "Apple"}}, got)
	}
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists("companies:list:v1"))
	assert.Equal(t, time.Minute, mr.TTL("companies:list:v1"))

	mr.FastForward(2 * time.Minute)
	var got []Summary
	require.NoError(t, cache.FetchJSON(ctx, "companies:list:v1", &got, loader))
	assert.Equal(t, 2, calls)
}

func TestCacheFetchJSONDoesNotCacheErrors(t *testing.T) {
	cache, mr := newTestCache(t)

	var got Detail
	err := cache.FetchJSON(context.Background(), "companies:detail:nope:v1", &got, func(context.Context) (any, error) {
		return nil, ErrNotFound
	})
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists("companies:detail:nope:v1"))
}

func TestCacheFetchJSONCollapsesConcurrentMisses(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	loader := func(context.Context) (any, error) {
		calls.Add(1)
		<-release
		return []Summary{{Code: "ibm", Name: "IBM"}}, nil
	}

	const readers = 8
	var wg sync.WaitGroup
	errs := make(chan error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var got []Summary
			errs <- cache.FetchJSON(ctx, "companies:list:v7", &got, loader)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, calls.Load(), int32(readers))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestNilCacheCallsLoader(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "list")
	require.NoError(t, err)
	assert.Equal(t, "companies:list", key)
	require.NoError(t, cache.Bump(ctx))

	var got []Summary
	require.NoError(t, cache.FetchJSON(ctx, key, &got, func(context.Context) (any, error) {
		return []Summary{{Code: "apple", Name: "Apple"}}, nil
	}))
	assert.Len(t, got, 1)

	err = cache.FetchJSON(ctx, key, &got, nil)
	require.Error(t, err)

	boom := errors.New("boom")
	err = cache.FetchJSON(ctx, key, &got, func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
}

func TestCacheSharedLoadSurvivesFirstCallerCancel(t *testing.T) {
	cache, mr := newTestCache(t)
	const key = "companies:detail:ibm:v1"

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	loader := func(ctx context.Context) (any, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Detail{Company: Company{Code: "ibm", Name: "IBM"}, Invoices: []int64{3}}, nil
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		var got Detail
		leaderErr <- cache.FetchJSON(leaderCtx, key, &got, loader)
	}()
	<-started

	followerErr := make(chan error, 1)
	var follower Detail
	go func() {
		followerErr <- cache.FetchJSON(context.Background(), key, &follower, loader)
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	require.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	require.NoError(t, <-followerErr)
	assert.Equal(t, "IBM", follower.Name)
	assert.Equal(t, []int64{3}, follower.Invoices)
	assert.True(t, mr.Exists(key))
}

func TestCacheFailedBumpBypassesOldEntries(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "list")
	require.NoError(t, err)
	var got []Summary
	require.NoError(t, cache.FetchJSON(ctx, key, &got, func(context.Context) (any, error) {
		return []Summary{{Code: "apple", Name: "Apple"}}, nil
	}))

	mr.SetError("LOADING redis is loading")
	require.Error(t, cache.Bump(ctx))
	_, err = cache.BuildKey(ctx, "list")
	require.Error(t, err)
	mr.SetError("")

	fresh := func(context.Context) (any, error) {
		return []Summary{{Code: "apple", Name: "ApplePie"}}, nil
	}
	require.NoError(t, cache.FetchJSON(ctx, key, &got, fresh))
	assert.Equal(t, "ApplePie", got[0].Name)

	next, err := cache.BuildKey(ctx, "list")
	require.NoError(t, err)
	assert.Equal(t, "companies:list:v2", next)
	require.NoError(t, cache.FetchJSON(ctx, next, &got, fresh))
	assert.Equal(t, "ApplePie", got[0].Name)
	assert.True(t, mr.Exists(next))
}
