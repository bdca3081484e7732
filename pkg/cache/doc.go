// Package cache provides the caching layer for Shopify catalog data.
//
// The package has two levels:
//
//   - Store: a backend-agnostic key/value contract with TTLs and
//     pattern-based clearing. Two backends ship with the module: a bounded
//     in-process LRU (Memory) and a Redis-backed store. Backends degrade
//     failures to cache misses; a cache outage is never an error for callers.
//
//   - CatalogCache: the domain layer on top of a Store. It derives
//     deterministic keys from (category, tenant, parameters), assigns
//     per-category TTLs, and implements the invalidation cascades that keep
//     listing pages, memoized cursors, and facet data consistent when the
//     catalog changes.
//
// Cache Key Format
//
//	catalog:<category>:<tenant_id>:<canonical_params>
//
// Parameters are sorted by name and joined as name=value pairs, so two
// logically identical lookups always hit the same key. Overlong parameter
// strings are replaced by a content hash to bound key size.
//
// TTL Strategy (shortest to longest)
//
//	pages, cursors < single products < collections < facet/filter lists
//
// Listing pages and cursor positions go stale the moment inventory shifts;
// facet metadata changes rarely.
package cache
