package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CatalogCache is the domain cache for Shopify catalog data. It owns key
// derivation, per-category TTLs, and the invalidation cascades.
//
// Construct exactly one CatalogCache at startup and inject it into every
// consumer; the backend (memory or Redis) is chosen at construction time.
type CatalogCache struct {
	store  Store
	config Config
	logger zerolog.Logger
}

// NewCatalogCache creates a CatalogCache over the given backend.
func NewCatalogCache(store Store, config Config) *CatalogCache {
	return &CatalogCache{
		store:  store,
		config: config,
		logger: log.With().Str("component", "catalog-cache").Logger(),
	}
}

// Get returns the cached value for (category, tenant, params).
func (c *CatalogCache) Get(ctx context.Context, category Category, tenantID string, params map[string]string) (any, bool) {
	key := BuildKey(category, tenantID, params)
	value, ok := c.store.Get(ctx, key)
	c.logger.Debug().
		Str("key", key).
		Bool("hit", ok).
		Msg("Cache lookup")
	return value, ok
}

// Set stores value under (category, tenant, params) with the category's TTL.
func (c *CatalogCache) Set(ctx context.Context, category Category, tenantID string, params map[string]string, value any) bool {
	return c.SetWithTTL(ctx, category, tenantID, params, value, c.ttlFor(category))
}

// SetWithTTL stores value with an explicit TTL override.
func (c *CatalogCache) SetWithTTL(ctx context.Context, category Category, tenantID string, params map[string]string, value any, ttl time.Duration) bool {
	return c.store.Set(ctx, BuildKey(category, tenantID, params), value, ttl)
}

// Product returns the cached product, if any.
func (c *CatalogCache) Product(ctx context.Context, tenantID, productID string) (any, bool) {
	return c.Get(ctx, CategoryProduct, tenantID, map[string]string{"id": productID})
}

// SetProduct caches a product.
func (c *CatalogCache) SetProduct(ctx context.Context, tenantID, productID string, product any) bool {
	return c.Set(ctx, CategoryProduct, tenantID, map[string]string{"id": productID}, product)
}

// ProductsPage returns a cached listing page.
func (c *CatalogCache) ProductsPage(ctx context.Context, tenantID string, page, limit int, filters map[string]string) (any, bool) {
	return c.Get(ctx, CategoryPage, tenantID, pageParams(page, limit, filters))
}

// SetProductsPage caches a listing page.
func (c *CatalogCache) SetProductsPage(ctx context.Context, tenantID string, page, limit int, filters map[string]string, value any) bool {
	return c.Set(ctx, CategoryPage, tenantID, pageParams(page, limit, filters), value)
}

// Collection returns the cached collection, if any.
func (c *CatalogCache) Collection(ctx context.Context, tenantID, collectionID string) (any, bool) {
	return c.Get(ctx, CategoryCollection, tenantID, map[string]string{"id": collectionID})
}

// SetCollection caches a collection.
func (c *CatalogCache) SetCollection(ctx context.Context, tenantID, collectionID string, collection any) bool {
	return c.Set(ctx, CategoryCollection, tenantID, map[string]string{"id": collectionID}, collection)
}

// Collections returns the cached per-tenant collection list.
func (c *CatalogCache) Collections(ctx context.Context, tenantID string, filters map[string]string) (any, bool) {
	return c.Get(ctx, CategoryCollections, tenantID, filters)
}

// SetCollections caches the per-tenant collection list.
func (c *CatalogCache) SetCollections(ctx context.Context, tenantID string, filters map[string]string, value any) bool {
	return c.Set(ctx, CategoryCollections, tenantID, filters, value)
}

// AvailableFilters returns the cached facet data for a tenant.
func (c *CatalogCache) AvailableFilters(ctx context.Context, tenantID string, params map[string]string) (any, bool) {
	return c.Get(ctx, CategoryFilters, tenantID, params)
}

// SetAvailableFilters caches facet data for a tenant.
func (c *CatalogCache) SetAvailableFilters(ctx context.Context, tenantID string, params map[string]string, value any) bool {
	return c.Set(ctx, CategoryFilters, tenantID, params, value)
}

// CursorForPage returns the memoized cursor stored for (tenant, filters, page).
// The cursor, given to the upstream, yields the start of page+1.
func (c *CatalogCache) CursorForPage(ctx context.Context, tenantID string, page int, filters map[string]string) (string, bool) {
	value, ok := c.Get(ctx, CategoryCursor, tenantID, cursorParams(page, filters))
	if !ok {
		return "", false
	}
	cursor, ok := value.(string)
	return cursor, ok
}

// SetCursorForPage memoizes the cursor discovered at (tenant, filters, page).
func (c *CatalogCache) SetCursorForPage(ctx context.Context, tenantID string, page int, filters map[string]string, cursor string) bool {
	return c.Set(ctx, CategoryCursor, tenantID, cursorParams(page, filters), cursor)
}

// Invalidate removes cached entries for (category, tenant), cascading per
// the category's rules. id applies to the single-entry categories.
func (c *CatalogCache) Invalidate(ctx context.Context, category Category, tenantID, id string) bool {
	switch category {
	case CategoryProduct:
		if id != "" {
			return c.InvalidateProduct(ctx, tenantID, id)
		}
		return c.InvalidateListings(ctx, tenantID)
	case CategoryPage, CategoryCursor, CategoryFilters:
		return c.InvalidateListings(ctx, tenantID)
	case CategoryCollection:
		return c.InvalidateCollection(ctx, tenantID, id)
	case CategoryCollections:
		cacheInvalidations.WithLabelValues(string(CategoryCollections)).Inc()
		return c.store.Clear(ctx, TenantPattern(CategoryCollections, tenantID))
	default:
		return false
	}
}

// InvalidateProduct removes a single product entry. Listing pages are left
// alone; callers who mutated the product should also invalidate listings.
func (c *CatalogCache) InvalidateProduct(ctx context.Context, tenantID, productID string) bool {
	cacheInvalidations.WithLabelValues(string(CategoryProduct)).Inc()
	return c.store.Delete(ctx, BuildKey(CategoryProduct, tenantID, map[string]string{"id": productID}))
}

// InvalidateListings removes all listing pages, memoized cursors, and facet
// entries for a tenant. Any catalog mutation can shift page boundaries and
// aggregate facet values, so the three categories expire together.
func (c *CatalogCache) InvalidateListings(ctx context.Context, tenantID string) bool {
	cacheInvalidations.WithLabelValues(string(CategoryPage)).Inc()

	ok := true
	for _, category := range []Category{CategoryPage, CategoryCursor, CategoryFilters} {
		if !c.store.Clear(ctx, TenantPattern(category, tenantID)) {
			ok = false
		}
	}

	c.logger.Debug().
		Str("tenant_id", tenantID).
		Bool("ok", ok).
		Msg("Invalidated tenant listings")
	return ok
}

// InvalidateCollection removes a collection entry, the tenant's collection
// list, and cascades into the listing invalidation: collection membership
// changes move products between pages.
func (c *CatalogCache) InvalidateCollection(ctx context.Context, tenantID, collectionID string) bool {
	cacheInvalidations.WithLabelValues(string(CategoryCollection)).Inc()

	ok := c.store.Delete(ctx, BuildKey(CategoryCollection, tenantID, map[string]string{"id": collectionID}))
	if !c.store.Clear(ctx, TenantPattern(CategoryCollections, tenantID)) {
		ok = false
	}
	if !c.InvalidateListings(ctx, tenantID) {
		ok = false
	}
	return ok
}

// Counter is implemented by backends that can enumerate their keys. The
// Redis backend deliberately does not: counting there would cost a full SCAN.
type Counter interface {
	Count(ctx context.Context, pattern string) int
}

// Stats describes the cache configuration and, where the backend supports
// counting, the tenant's live entry count.
type Stats struct {
	TenantID      string        `json:"tenant_id"`
	CachedEntries int           `json:"cached_entries"`
	CanCount      bool          `json:"can_count"`
	ProductTTL    time.Duration `json:"product_ttl"`
	CollectionTTL time.Duration `json:"collection_ttl"`
	FilterTTL     time.Duration `json:"filter_ttl"`
	PageTTL       time.Duration `json:"page_ttl"`
	CursorTTL     time.Duration `json:"cursor_ttl"`
}

// Stats reports cache statistics for one tenant.
func (c *CatalogCache) Stats(ctx context.Context, tenantID string) Stats {
	stats := Stats{
		TenantID:      tenantID,
		ProductTTL:    c.config.ProductTTL,
		CollectionTTL: c.config.CollectionTTL,
		FilterTTL:     c.config.FilterTTL,
		PageTTL:       c.config.PageTTL,
		CursorTTL:     c.config.CursorTTL,
	}
	if counter, ok := c.store.(Counter); ok {
		stats.CanCount = true
		stats.CachedEntries = counter.Count(ctx, ":"+tenantID+":")
	}
	return stats
}

func (c *CatalogCache) ttlFor(category Category) time.Duration {
	switch category {
	case CategoryProduct:
		return c.config.ProductTTL
	case CategoryCollection, CategoryCollections:
		return c.config.CollectionTTL
	case CategoryFilters:
		return c.config.FilterTTL
	case CategoryPage:
		return c.config.PageTTL
	case CategoryCursor:
		return c.config.CursorTTL
	default:
		return c.config.PageTTL
	}
}

func pageParams(page, limit int, filters map[string]string) map[string]string {
	params := make(map[string]string, len(filters)+2)
	for k, v := range filters {
		params[k] = v
	}
	params["page"] = strconv.Itoa(page)
	params["limit"] = strconv.Itoa(limit)
	return params
}

func cursorParams(page int, filters map[string]string) map[string]string {
	params := make(map[string]string, len(filters)+1)
	for k, v := range filters {
		params[k] = v
	}
	params["page"] = strconv.Itoa(page)
	return params
}
