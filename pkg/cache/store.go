package cache

import (
	"context"
	"time"
)

// Store is the backend-agnostic cache contract.
//
// All operations are best-effort: a backend failure (for example an
// unreachable Redis) must degrade to the miss/no-op return value, never
// surface as an error. Callers treat cache results as advisory.
//
// Implementations must be safe for concurrent use. Set is last-writer-wins;
// a Get racing a lazy-expiry Delete may observe either the stale value or
// absence.
type Store interface {
	// Get returns the value for key. The boolean reports a hit. An expired
	// entry is treated as absent and purged.
	Get(ctx context.Context, key string) (any, bool)

	// Set stores value under key with the given TTL, overwriting any
	// existing entry and resetting its TTL clock. Returns false when the
	// write was rejected or the backend failed.
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool

	// Delete removes key. Returns false only on backend failure.
	Delete(ctx context.Context, key string) bool

	// Clear removes every entry whose key contains pattern. An empty
	// pattern clears the whole store.
	Clear(ctx context.Context, pattern string) bool

	// Exists reports whether key is present and not expired.
	Exists(ctx context.Context, key string) bool
}

// Config holds per-category TTLs and backend capacity bounds.
type Config struct {
	// ProductTTL applies to single product entries.
	ProductTTL time.Duration

	// CollectionTTL applies to collection entries and collection lists.
	CollectionTTL time.Duration

	// FilterTTL applies to aggregate facet/filter data.
	FilterTTL time.Duration

	// PageTTL applies to cached listing pages.
	PageTTL time.Duration

	// CursorTTL applies to memoized pagination cursors.
	CursorTTL time.Duration

	// MaxEntries bounds the in-process backend. Zero means the default.
	MaxEntries int
}

// DefaultConfig returns the default cache configuration. The TTL ordering
// (pages and cursors shortest, filters longest) is deliberate: listing data
// goes stale fastest as inventory changes.
func DefaultConfig() Config {
	return Config{
		ProductTTL:    10 * time.Minute,
		CollectionTTL: 30 * time.Minute,
		FilterTTL:     1 * time.Hour,
		PageTTL:       5 * time.Minute,
		CursorTTL:     5 * time.Minute,
		MaxEntries:    1000,
	}
}
