// Package metrics provides the centralized Prometheus metrics registry for
// the catalog proxy. All metrics are defined in their respective packages
// (shopify, cache, retry, pagination) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the catalog proxy.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_hits_total{backend} (Counter): Cache hits by backend
//   - catalog_cache_misses_total{backend} (Counter): Cache misses by backend
//   - catalog_cache_errors_total{backend, operation} (Counter): Backend operation errors
//   - catalog_cache_evictions_total (Counter): LRU evictions from the memory backend
//   - catalog_cache_invalidations_total{category} (Counter): Invalidation cascades by category
//
// Upstream Request Metrics (pkg/shopify):
//   - shopify_requests_total{operation, status} (Counter): Admin API requests by operation and HTTP status
//   - shopify_request_duration_seconds{operation} (Histogram): Admin API request duration
//   - shopify_errors_total{class} (Counter): Errors by class (auth, rate_limit, network, upstream)
//
// Retry Metrics (pkg/retry):
//   - catalog_retries_total{error_class} (Counter): Retry attempts by error class
//   - catalog_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - catalog_retry_exhausted_total{error_class} (Counter): Operations that exhausted max attempts
//
// Pagination Metrics (pkg/pagination):
//   - catalog_pagination_traversal_hops_total (Counter): Upstream fetches spent walking cursor chains
//   - catalog_pagination_cursor_hits_total (Counter): Page requests answered from a memoized cursor
//   - catalog_pagination_short_circuits_total (Counter): Requests answered empty via the cached total
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(catalog_cache_hits_total[5m])) /
//   (sum(rate(catalog_cache_hits_total[5m])) + sum(rate(catalog_cache_misses_total[5m])))
//
//   # Cursor Memoization Effectiveness
//   rate(catalog_pagination_cursor_hits_total[5m]) /
//   (rate(catalog_pagination_cursor_hits_total[5m]) + rate(catalog_pagination_traversal_hops_total[5m]))
//
//   # Upstream Error Rate
//   rate(shopify_errors_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(shopify_request_duration_seconds_bucket[5m]))
//
//   # Retry Exhaustion by Class
//   rate(catalog_retry_exhausted_total[5m])
