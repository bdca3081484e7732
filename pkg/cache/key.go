package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Category names the cache key space an entry belongs to. The category
// determines the entry's TTL and which invalidation cascades remove it.
type Category string

const (
	// CategoryProduct holds single product entries.
	CategoryProduct Category = "product"

	// CategoryPage holds listing pages.
	CategoryPage Category = "page"

	// CategoryCursor holds memoized pagination cursors.
	CategoryCursor Category = "cursor"

	// CategoryCollection holds single collection entries.
	CategoryCollection Category = "collection"

	// CategoryCollections holds per-tenant collection lists.
	CategoryCollections Category = "collections"

	// CategoryFilters holds aggregate facet/filter data.
	CategoryFilters Category = "filters"
)

// keyPrefix namespaces all keys written by this module in a shared backend.
const keyPrefix = "catalog"

// maxParamsLen is the canonical-params length above which the params string
// is replaced by its content hash to bound key size.
const maxParamsLen = 100

// BuildKey derives the deterministic cache key for (category, tenant, params).
// Format: catalog:<category>:<tenant_id>:<canonical_params>
//
// Params are sorted by name and joined as name=value pairs; empty values are
// dropped, so two calls with the same logical parameters in any order yield
// the identical key.
func BuildKey(category Category, tenantID string, params map[string]string) string {
	canonical := CanonicalParams(params)
	if len(canonical) > maxParamsLen {
		sum := sha256.Sum256([]byte(canonical))
		canonical = hex.EncodeToString(sum[:])
	}
	return strings.Join([]string{keyPrefix, string(category), tenantID, canonical}, ":")
}

// TenantPattern returns the substring matching every key of one category for
// one tenant. Used by the invalidation cascades.
func TenantPattern(category Category, tenantID string) string {
	return strings.Join([]string{keyPrefix, string(category), tenantID}, ":") + ":"
}

// CanonicalParams produces the canonical name=value&... form of a parameter
// set, sorted by name with empty values dropped.
func CanonicalParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return strings.Join(pairs, "&")
}
