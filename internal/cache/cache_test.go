package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestData struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func setupTestCache(t *testing.T) *CacheDB {
	t.Helper()

	cache, err := Open(filepath.Join(t.TempDir(), "test_cache.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

// advance moves the cache clock forward by d.
func advance(cache *CacheDB, d time.Duration) {
	base := cache.now()
	cache.now = func() time.Time { return base.Add(d) }
}

func TestGetOrFetch_CacheMissThenHit(t *testing.T) {
	ctx := context.Background()
	cache := setupTestCache(t)

	fetchCalled := 0
	fetchFunc := func() (TestData, error) {
		fetchCalled++
		return TestData{ID: 2, Name: "Fetched"}, nil
	}

	result, fromCache, err := GetOrFetch(ctx, cache, SourceWork, "/works/OL1W", fetchFunc)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, TestData{ID: 2, Name: "Fetched"}, result)

	result, fromCache, err = GetOrFetch(ctx, cache, SourceWork, "/works/OL1W", fetchFunc)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, 1, fetchCalled)
	assert.Equal(t, "Fetched", result.Name)
}

func TestGetOrFetch_SourcesAreSeparate(t *testing.T) {
	ctx := context.Background()
	cache := setupTestCache(t)

	require.NoError(t, cache.Set(ctx, SourceSearch, "k", `{"id":1}`, 0))

	_, hit, err := cache.Get(ctx, SourceWork, "k")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestGetOrFetch_NilCacheAlwaysFetches(t *testing.T) {
	calls := 0
	for range 2 {
		_, fromCache, err := GetOrFetch(context.Background(), nil, SourceWork, "k", func() (TestData, error) {
			calls++
			return TestData{ID: 1}, nil
		})
		require.NoError(t, err)
		assert.False(t, fromCache)
	}
	assert.Equal(t, 2, calls)
}

func TestGetOrFetch_RespectsExpiry(t *testing.T) {
	ctx := context.Background()
	cache := setupTestCache(t)

	require.NoError(t, cache.Set(ctx, SourceSearch, "k", `{"id":1,"name":"stale"}`, 0))
	advance(cache, 2*time.Hour)

	result, fromCache, err := GetOrFetch(ctx, cache, SourceSearch, "k", func() (TestData, error) {
		return TestData{ID: 2, Name: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, "fresh", result.Name)

	data, hit, err := cache.Get(ctx, SourceSearch, "k")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.JSONEq(t, `{"id":2,"name":"fresh"}`, data)
}

func TestGetOrFetch_FetchErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	cache := setupTestCache(t)
	fetchErr := errors.New("fetch failed")

	_, fromCache, err := GetOrFetch(ctx, cache, SourceWork, "k", func() (TestData, error) {
		return TestData{}, fetchErr
	})
	assert.ErrorIs(t, err, fetchErr)
	assert.False(t, fromCache)

	_, hit, err := cache.Get(ctx, SourceWork, "k")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestGetOrFetch_CorruptEntryIsRefetched(t *testing.T) {
	ctx := context.Background()
	cache := setupTestCache(t)
	require.NoError(t, cache.Set(ctx, SourceWork, "k", `not json`, 0))

	result, fromCache, err := GetOrFetch(ctx, cache, SourceWork, "k", func() (TestData, error) {
		return TestData{ID: 3}, nil
	})
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 3, result.ID)
}

func TestGetOrFetchWithTTL_NegativeTTL(t *testing.T) {
	ctx := context.Background()
	cache := setupTestCache(t)

	selector := SelectNegativeCacheTTL(func(d TestData) bool { return d.ID == 0 })
	assert.Equal(t, NegativeCacheTTL, selector(TestData{}))
	assert.Zero(t, selector(TestData{ID: 1}))

	_, _, err := GetOrFetchWithTTL(ctx, cache, SourceSearch, "missing", func() (TestData, error) {
		return TestData{}, nil
	}, selector)
	require.NoError(t, err)

	// Past the default TTL but inside the negative TTL the entry is still live.
	advance(cache, 2*time.Hour)
	_, hit, err := cache.Get(ctx, SourceSearch, "missing")
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestCacheDB_ClearExpired(t *testing.T) {
	ctx := context.Background()
	cache := setupTestCache(t)

	require.NoError(t, cache.Set(ctx, SourceWork, "short", `{"id":1}`, time.Minute))
	require.NoError(t, cache.Set(ctx, SourceWork, "long", `{"id":2}`, 0))
	advance(cache, 10*time.Minute)

	cleared, err := cache.ClearExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	_, hit, err := cache.Get(ctx, SourceWork, "long")
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestInvalidateCacheCmd(t *testing.T) {
	ctx := context.Background()
	viper.Reset()
	t.Cleanup(viper.Reset)

	dbPath := filepath.Join(t.TempDir(), "cache.db")
	viper.Set("cache.dbfile", dbPath)

	cache, err := Open(dbPath, 0)
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, SourceSearch, "a", "{}", 0))
	require.NoError(t, cache.Set(ctx, SourceWork, "b", "{}", 0))
	require.NoError(t, cache.Close())

	require.NoError(t, (&InvalidateCacheCmd{Source: "openlibrary_search"}).Run())

	cache, err = Open(dbPath, 0)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	_, hit, err := cache.Get(ctx, SourceSearch, "a")
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = cache.Get(ctx, SourceWork, "b")
	require.NoError(t, err)
	assert.True(t, hit)

	err = (&InvalidateCacheCmd{Source: "tmdb"}).Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cache source")
}
