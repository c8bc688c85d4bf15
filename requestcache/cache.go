// Package requestcache memoizes GET responses for a short freshness window
// so bursts of identical reads cost one network round trip. The cache is
// process-local and advisory: callers must never depend on it for
// correctness, only for reducing redundant I/O.
package requestcache

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is used when a caller stores an entry without an explicit TTL.
const DefaultTTL = 5 * time.Minute

// Entry is an immutable cached payload. Overwrites replace the whole entry.
type Entry struct {
	Key      string
	Payload  []byte
	StoredAt time.Time
	TTL      time.Duration
}

// Cache is a TTL-bounded memoization of response payloads. Expired entries
// are evicted lazily on lookup.
type Cache struct {
	defaultTTL time.Duration
	nowTime    func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
}

// Option modifies a Cache instance.
type Option func(*Cache)

// WithDefaultTTL overrides the default freshness window.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.defaultTTL = ttl
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Cache) {
		c.nowTime = nowFunc
	}
}

// New creates an empty cache.
func New(options ...Option) *Cache {
	cache := &Cache{
		defaultTTL: DefaultTTL,
		nowTime:    time.Now,
		entries:    make(map[string]Entry),
	}

	for _, opt := range options {
		opt(cache)
	}

	return cache
}

// Key builds the deterministic cache key for a path and query. url.Values
// encoding sorts parameters, so equivalent queries map to the same key.
func Key(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

// Get returns the cached payload for key while it is still fresh. A stale
// entry is evicted and reported as a miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if !c.nowTime().Before(entry.StoredAt.Add(entry.TTL)) {
		delete(c.entries, key)
		return nil, false
	}

	return entry.Payload, true
}

// Set stores or overwrites the payload for key. A non-positive ttl selects
// the cache's default.
func (c *Cache) Set(key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{
		Key:      key,
		Payload:  payload,
		StoredAt: c.nowTime(),
		TTL:      ttl,
	}
}

// Invalidate removes the entry for key, if any.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidatePrefix removes every entry whose key starts with prefix. Used
// after mutations so collection and detail reads under the same path do not
// serve stale data.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// Len reports the number of stored entries, including not-yet-evicted stale
// ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
