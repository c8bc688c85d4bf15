package requestcache_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-docs-client/requestcache"
)

func TestKeyDeterministic(t *testing.T) {
	a := url.Values{}
	a.Set("page", "2")
	a.Set("category", "7")

	b := url.Values{}
	b.Set("category", "7")
	b.Set("page", "2")

	require.Equal(t, requestcache.Key("api/v1/documents/", a), requestcache.Key("api/v1/documents/", b))
	require.Equal(t, "api/v1/documents/", requestcache.Key("api/v1/documents/", nil))
}

func TestCacheFreshnessWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := requestcache.New(requestcache.WithNowTime(func() time.Time { return now }))

	cache.Set("key", []byte("payload"), time.Minute)

	// Served unchanged anywhere inside [storedAt, storedAt+ttl).
	payload, ok := cache.Get("key")
	require.True(t, ok)
	require.Equal(t, []byte("payload"), payload)

	now = now.Add(59 * time.Second)
	payload, ok = cache.Get("key")
	require.True(t, ok)
	require.Equal(t, []byte("payload"), payload)

	// Never served at or past storedAt+ttl.
	now = now.Add(time.Second)
	_, ok = cache.Get("key")
	require.False(t, ok)

	// The stale entry was evicted on lookup.
	require.Equal(t, 0, cache.Len())
}

func TestCacheOverwriteReplacesEntry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := requestcache.New(requestcache.WithNowTime(func() time.Time { return now }))

	cache.Set("key", []byte("v1"), time.Minute)
	now = now.Add(50 * time.Second)
	cache.Set("key", []byte("v2"), time.Minute)

	// The overwrite restarted the freshness window.
	now = now.Add(30 * time.Second)
	payload, ok := cache.Get("key")
	require.True(t, ok)
	require.Equal(t, []byte("v2"), payload)
}

func TestCacheInvalidate(t *testing.T) {
	cache := requestcache.New()
	cache.Set("key", []byte("payload"), time.Hour)

	cache.Invalidate("key")
	_, ok := cache.Get("key")
	require.False(t, ok)

	// Invalidating an absent key is a no-op.
	cache.Invalidate("key")
}

func TestCacheInvalidatePrefix(t *testing.T) {
	cache := requestcache.New()
	cache.Set("api/v1/documents/documents/", []byte("list"), time.Hour)
	cache.Set("api/v1/documents/documents/42/", []byte("detail"), time.Hour)
	cache.Set("api/v1/search/search/?q=x", []byte("search"), time.Hour)

	cache.InvalidatePrefix("api/v1/documents/documents/")

	_, ok := cache.Get("api/v1/documents/documents/")
	require.False(t, ok)
	_, ok = cache.Get("api/v1/documents/documents/42/")
	require.False(t, ok)
	_, ok = cache.Get("api/v1/search/search/?q=x")
	require.True(t, ok)
}

func TestCacheClear(t *testing.T) {
	cache := requestcache.New()
	cache.Set("a", []byte("1"), time.Hour)
	cache.Set("b", []byte("2"), time.Hour)

	cache.Clear()
	require.Equal(t, 0, cache.Len())
}

func TestCacheDefaultTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := requestcache.New(
		requestcache.WithDefaultTTL(10*time.Second),
		requestcache.WithNowTime(func() time.Time { return now }),
	)

	cache.Set("key", []byte("payload"), 0)

	now = now.Add(9 * time.Second)
	_, ok := cache.Get("key")
	require.True(t, ok)

	now = now.Add(time.Second)
	_, ok = cache.Get("key")
	require.False(t, ok)
}
