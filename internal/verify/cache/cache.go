// Package cache implements the two-tier query cache: an in-memory L1
// map shared across goroutines, and an optional on-disk SQLite L2 that
// survives process restarts. Only confirmed outcomes (Found/NotFound) are
// ever written; transient errors are never cached.
package cache

import (
	"sync"
	"time"

	"github.com/gianlucasb/hallucinator/internal/verify/normalize"
	"github.com/gianlucasb/hallucinator/internal/verify/types"
)

// DefaultPositiveTTL is how long a confirmed Found outcome stays valid.
const DefaultPositiveTTL = 7 * 24 * time.Hour

// DefaultNegativeTTL is how long a confirmed NotFound outcome stays valid.
const DefaultNegativeTTL = 24 * time.Hour

type cacheKey struct {
	normalizedTitle string
	backend         string
}

type l1Entry struct {
	outcome    types.DbOutcome
	insertedAt time.Time
}

// Cache is the write-through, read-through two-tier query cache.
// It is safe for concurrent use from many goroutines.
type Cache struct {
	positiveTTL time.Duration
	negativeTTL time.Duration

	mu     sync.RWMutex
	l1     map[cacheKey]l1Entry
	l2     *sqliteStore // nil when no on-disk path was configured
	hits   uint64
	misses uint64
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithTTLs overrides the default positive/negative TTLs.
func WithTTLs(positive, negative time.Duration) Option {
	return func(c *Cache) {
		c.positiveTTL = positive
		c.negativeTTL = negative
	}
}

// New creates an in-memory-only cache (no L2 persistence).
func New(opts ...Option) *Cache {
	c := &Cache{
		positiveTTL: DefaultPositiveTTL,
		negativeTTL: DefaultNegativeTTL,
		l1:          make(map[cacheKey]l1Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open creates a Cache backed by a SQLite database at path, applying the
// WAL/synchronous/busy_timeout pragmas and schema, and eagerly sweeping
// expired rows. L2 open failure is fatal — the caller should treat a
// non-nil error as a construction-time fatal error.
func Open(path string, opts ...Option) (*Cache, error) {
	c := New(opts...)

	store, err := openSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	store.evictExpired(c.positiveTTL, c.negativeTTL)
	c.l2 = store
	return c, nil
}

// Get looks up a cached outcome for (title, backend). It returns
// (outcome, true) on a hit within TTL; a stale L1 entry is evicted and the
// lookup falls through to L2, promoting a fresh L2 hit back into L1.
func (c *Cache) Get(title, backend string) (types.DbOutcome, bool) {
	key := cacheKey{normalizedTitle: normalize.Title(title), backend: backend}

	if outcome, ok := c.getL1(key); ok {
		c.recordHit()
		return outcome, true
	}

	if c.l2 != nil {
		if outcome, insertedAt, ok := c.l2.get(key, c.positiveTTL, c.negativeTTL); ok {
			c.promote(key, outcome, insertedAt)
			c.recordHit()
			return outcome, true
		}
	}

	c.recordMiss()
	return types.DbOutcome{}, false
}

func (c *Cache) getL1(key cacheKey) (types.DbOutcome, bool) {
	c.mu.RLock()
	entry, ok := c.l1[key]
	c.mu.RUnlock()
	if !ok {
		return types.DbOutcome{}, false
	}

	if time.Since(entry.insertedAt) > c.ttlFor(entry.outcome) {
		c.mu.Lock()
		delete(c.l1, key)
		c.mu.Unlock()
		return types.DbOutcome{}, false
	}
	return entry.outcome, true
}

func (c *Cache) promote(key cacheKey, outcome types.DbOutcome, insertedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.l1[key] = l1Entry{outcome: outcome, insertedAt: insertedAt}
}

func (c *Cache) ttlFor(o types.DbOutcome) time.Duration {
	if o.IsFound() {
		return c.positiveTTL
	}
	return c.negativeTTL
}

// Insert writes a Found/NotFound outcome to both tiers. Error outcomes are
// rejected silently — only confirmed results are worth caching.
func (c *Cache) Insert(title, backend string, outcome types.DbOutcome) {
	if !outcome.Cacheable() {
		return
	}

	key := cacheKey{normalizedTitle: normalize.Title(title), backend: backend}
	now := time.Now()

	c.mu.Lock()
	c.l1[key] = l1Entry{outcome: outcome, insertedAt: now}
	c.mu.Unlock()

	if c.l2 != nil {
		// Best-effort: an L2 write failure does not fail the call —
		// L1 remains authoritative for the running process.
		c.l2.insert(key, outcome, now)
	}
}

// Clear empties both tiers.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.l1 = make(map[cacheKey]l1Entry)
	c.mu.Unlock()
	if c.l2 != nil {
		c.l2.clear()
	}
}

// Close releases the underlying L2 handle, if any.
func (c *Cache) Close() error {
	if c.l2 != nil {
		return c.l2.close()
	}
	return nil
}

// Hits returns the number of cache hits (L1 or L2) since creation.
func (c *Cache) Hits() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits
}

// Misses returns the number of cache misses since creation.
func (c *Cache) Misses() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.misses
}

// Len reports the number of entries currently held in L1.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.l1)
}

// DiskLen reports the number of rows in the L2 store, or 0 if none is
// configured.
func (c *Cache) DiskLen() int {
	if c.l2 == nil {
		return 0
	}
	return c.l2.count()
}

func (c *Cache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *Cache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}
