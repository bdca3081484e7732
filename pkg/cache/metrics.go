package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks cache hits by backend.
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Total number of catalog cache hits",
		},
		[]string{"backend"},
	)

	// cacheMisses tracks cache misses by backend.
	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Total number of catalog cache misses",
		},
		[]string{"backend"},
	)

	// cacheErrors tracks degraded backend operations. Every increment here
	// was surfaced to the caller as a plain miss/no-op.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_errors_total",
			Help: "Total number of cache backend errors degraded to misses",
		},
		[]string{"backend", "operation"},
	)

	// cacheEvictions tracks LRU evictions in the in-process backend.
	cacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_evictions_total",
			Help: "Total number of LRU evictions in the memory backend",
		},
	)

	// cacheInvalidations tracks explicit invalidations by category.
	cacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_invalidations_total",
			Help: "Total number of explicit cache invalidations by category",
		},
		[]string{"category"},
	)
)
