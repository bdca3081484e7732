package pagination

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avollmaier/shopify-catalog-proxy/pkg/cache"
	"github.com/avollmaier/shopify-catalog-proxy/pkg/retry"
	"github.com/avollmaier/shopify-catalog-proxy/pkg/shopify"
)

// Prometheus metrics for pagination traversal.
var (
	traversalHops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_pagination_traversal_hops_total",
		Help: "Total upstream calls spent walking cursor chains toward a requested page",
	})

	cursorHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_pagination_cursor_hits_total",
		Help: "Total page requests served from a memoized cursor",
	})

	countShortCircuits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_pagination_short_circuits_total",
		Help: "Total page requests answered empty via the cached total count",
	})
)

// MaxLimit is the upstream's page-size cap.
const MaxLimit = 250

// Bridge translates page-number requests into cursor traversal against the
// upstream client, memoizing discovered cursors in the catalog cache.
type Bridge struct {
	client shopify.Client
	cache  *cache.CatalogCache
	retry  *retry.Executor
	logger zerolog.Logger
}

// New creates a Bridge. All upstream calls go through executor.
func New(client shopify.Client, catalogCache *cache.CatalogCache, executor *retry.Executor) *Bridge {
	return &Bridge{
		client: client,
		cache:  catalogCache,
		retry:  executor,
		logger: log.With().Str("component", "pagination").Logger(),
	}
}

// Pagination describes the position of a result page within the full
// filtered listing.
type Pagination struct {
	Page            int     `json:"page"`
	Limit           int     `json:"limit"`
	TotalCount      *int    `json:"total_count"`
	TotalPages      *int    `json:"total_pages"`
	HasNextPage     bool    `json:"has_next_page"`
	HasPreviousPage bool    `json:"has_previous_page"`
	NextCursor      *string `json:"next_cursor"`
	PreviousCursor  *string `json:"previous_cursor"`
}

// Result is one page of a filtered product listing.
type Result struct {
	Products   []shopify.Product `json:"products"`
	Pagination Pagination        `json:"pagination"`
	TenantID   string            `json:"tenant_id"`
}

// GetPage returns page `page` of the tenant's filtered listing.
//
// An explicit cursor, or page 1, is a single direct upstream fetch. Any
// other page first tries the memoized cursor for page-1; on a miss the
// bridge walks forward from the last memoized position, storing every
// cursor it discovers, so the walk happens at most once per filter set.
//
// When the upstream runs out of data before the requested page, or the
// cached total count proves the page empty, the result is an empty listing
// with has_next_page=false, not an error.
func (b *Bridge) GetPage(ctx context.Context, tenantID string, filters shopify.Filters, page, limit int, explicitCursor *string) (*Result, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	filterParams := filters.Params()
	totalCount, totalPages := b.totalCount(ctx, tenantID, filters, limit)

	if totalPages != nil && page > *totalPages {
		countShortCircuits.Inc()
		b.logger.Debug().
			Str("tenant_id", tenantID).
			Int("page", page).
			Int("total_pages", *totalPages).
			Msg("Page beyond total, short-circuiting")
		return b.emptyResult(tenantID, page, limit, totalCount, totalPages), nil
	}

	var fetchCursor *string
	switch {
	case explicitCursor != nil:
		fetchCursor = explicitCursor
	case page == 1:
		fetchCursor = nil
	default:
		cursor, reachedEnd, err := b.cursorFor(ctx, tenantID, filters, page, limit)
		if err != nil {
			return nil, err
		}
		if reachedEnd {
			return b.emptyResult(tenantID, page, limit, totalCount, totalPages), nil
		}
		fetchCursor = cursor
	}

	pg, err := b.fetchPage(ctx, fetchCursor, filters, limit)
	if err != nil {
		return nil, err
	}

	if pg.EndCursor != nil {
		b.cache.SetCursorForPage(ctx, tenantID, page, cursorKeyParams(filterParams, limit), *pg.EndCursor)
	}

	result := &Result{
		Products: pg.Products,
		Pagination: Pagination{
			Page:            page,
			Limit:           limit,
			TotalCount:      totalCount,
			TotalPages:      totalPages,
			HasNextPage:     pg.HasNextPage,
			HasPreviousPage: page > 1,
			NextCursor:      pg.EndCursor,
			PreviousCursor:  pg.StartCursor,
		},
		TenantID: tenantID,
	}
	if result.Products == nil {
		result.Products = []shopify.Product{}
	}

	// The page itself is cached for the serving layer; GetPage never reads
	// it back, so a repeated call re-validates against the upstream with a
	// single cursor-addressed fetch.
	b.cache.SetProductsPage(ctx, tenantID, page, limit, filterParams, result)

	return result, nil
}

// cursorFor returns the cursor addressing the start of `page`. It serves a
// memoized cursor when one exists, otherwise walks forward from the last
// memoized page, storing every newly discovered cursor along the way.
//
// reachedEnd is true when the upstream ran out of pages before the walk
// arrived; the requested page is empty but not an error.
func (b *Bridge) cursorFor(ctx context.Context, tenantID string, filters shopify.Filters, page, limit int) (cursor *string, reachedEnd bool, err error) {
	keyParams := cursorKeyParams(filters.Params(), limit)

	// The cursor memoized at p yields the start of p+1, so page N is
	// addressed by the record at N-1.
	if memo, ok := b.cache.CursorForPage(ctx, tenantID, page-1, keyParams); ok {
		cursorHits.Inc()
		return &memo, false, nil
	}

	// Resume from the deepest memoized position below the target.
	walkPage := 1
	var walkCursor *string
	for p := page - 2; p >= 1; p-- {
		if memo, ok := b.cache.CursorForPage(ctx, tenantID, p, keyParams); ok {
			walkPage = p + 1
			walkCursor = &memo
			break
		}
	}

	b.logger.Debug().
		Str("tenant_id", tenantID).
		Int("target_page", page).
		Int("walk_from", walkPage).
		Msg("Walking cursor chain")

	for walkPage < page {
		pg, err := b.fetchPage(ctx, walkCursor, filters, limit)
		if err != nil {
			// Cursors memoized on the path so far survive; a retried call
			// resumes from further along.
			return nil, false, err
		}
		traversalHops.Inc()

		if pg.EndCursor != nil {
			b.cache.SetCursorForPage(ctx, tenantID, walkPage, keyParams, *pg.EndCursor)
		}
		if !pg.HasNextPage {
			return nil, true, nil
		}

		walkCursor = pg.EndCursor
		walkPage++
	}

	return walkCursor, false, nil
}

// fetchPage issues one retry-wrapped upstream page fetch.
func (b *Bridge) fetchPage(ctx context.Context, cursor *string, filters shopify.Filters, limit int) (*shopify.Page, error) {
	value, err := b.retry.Execute(ctx, "fetch_products_page", func(ctx context.Context) (any, error) {
		return b.client.FetchPage(ctx, cursor, filters, limit)
	})
	if err != nil {
		return nil, err
	}
	return value.(*shopify.Page), nil
}

// totalCount returns the listing's total count and page count, probing the
// upstream once and caching the answer as facet data. A failed probe
// degrades to unknown (nil, nil); it never fails the page request.
func (b *Bridge) totalCount(ctx context.Context, tenantID string, filters shopify.Filters, limit int) (*int, *int) {
	params := filters.Params()
	params["probe"] = "count"

	if value, ok := b.cache.AvailableFilters(ctx, tenantID, params); ok {
		if count, ok := asInt(value); ok {
			return countAndPages(count, limit)
		}
	}

	value, err := b.retry.Execute(ctx, "probe_products_count", func(ctx context.Context) (any, error) {
		return b.client.ProbeCount(ctx, filters)
	})
	if err != nil {
		b.logger.Warn().
			Err(err).
			Str("tenant_id", tenantID).
			Msg("Count probe failed, continuing without count")
		return nil, nil
	}

	count, ok := asInt(value)
	if !ok {
		return nil, nil
	}
	b.cache.SetAvailableFilters(ctx, tenantID, params, count)
	return countAndPages(count, limit)
}

func (b *Bridge) emptyResult(tenantID string, page, limit int, totalCount, totalPages *int) *Result {
	return &Result{
		Products: []shopify.Product{},
		Pagination: Pagination{
			Page:            page,
			Limit:           limit,
			TotalCount:      totalCount,
			TotalPages:      totalPages,
			HasNextPage:     false,
			HasPreviousPage: page > 1,
		},
		TenantID: tenantID,
	}
}

// cursorKeyParams builds the cursor cache key parameters. The limit is part
// of the key: page boundaries shift with page size.
func cursorKeyParams(filterParams map[string]string, limit int) map[string]string {
	params := make(map[string]string, len(filterParams)+1)
	for k, v := range filterParams {
		params[k] = v
	}
	params["limit"] = strconv.Itoa(limit)
	return params
}

func countAndPages(count, limit int) (*int, *int) {
	pages := (count + limit - 1) / limit
	return &count, &pages
}

// asInt normalizes cached counts: the memory backend preserves int, the
// Redis backend round-trips through JSON as float64.
func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
