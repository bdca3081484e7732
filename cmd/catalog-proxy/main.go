package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/avollmaier/shopify-catalog-proxy/pkg/cache"
	"github.com/avollmaier/shopify-catalog-proxy/pkg/logging"
	"github.com/avollmaier/shopify-catalog-proxy/pkg/pagination"
	"github.com/avollmaier/shopify-catalog-proxy/pkg/retry"
	"github.com/avollmaier/shopify-catalog-proxy/pkg/shopify"
)

func main() {
	// Configuration from environment
	port := getEnv("PORT", "8080")
	logLevel := getEnv("LOG_LEVEL", "info")
	redisURL := getEnv("REDIS_URL", "")
	maxEntries := getEnvInt("CACHE_MAX_ENTRIES", 1000)
	shopDomain := getEnv("SHOPIFY_SHOP_DOMAIN", "")
	accessToken := getEnv("SHOPIFY_ACCESS_TOKEN", "")
	apiVersion := getEnv("SHOPIFY_API_VERSION", "")

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(logLevel),
		Pretty: getEnv("LOG_PRETTY", "") == "true",
		Output: os.Stderr,
	})

	if shopDomain == "" || accessToken == "" {
		logger.Fatal().Msg("SHOPIFY_SHOP_DOMAIN and SHOPIFY_ACCESS_TOKEN are required")
	}

	// Cache backend: Redis when configured, bounded in-process LRU otherwise.
	var store cache.Store
	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			cancel()
			logger.Fatal().Err(err).Str("redis_url", redisURL).Msg("Failed to connect to Redis")
		}
		cancel()

		logger.Info().Str("redis_url", redisURL).Msg("Connected to Redis")
		store = cache.NewRedis(redisClient)
	} else {
		logger.Info().Int("max_entries", maxEntries).Msg("Using in-memory cache")
		store = cache.NewMemory(maxEntries)
	}

	catalogCache := cache.NewCatalogCache(store, cache.DefaultConfig())

	shopifyClient, err := shopify.NewGraphQLClient(shopify.GraphQLConfig{
		ShopDomain:  shopDomain,
		AccessToken: accessToken,
		APIVersion:  apiVersion,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Shopify client")
	}

	bridge := pagination.New(shopifyClient, catalogCache, retry.New(retry.DefaultConfig()))
	srv := &server{
		bridge: bridge,
		cache:  catalogCache,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/products", srv.productsHandler)
	mux.HandleFunc("/cache/invalidate", srv.invalidateHandler)
	mux.HandleFunc("/cache/stats", srv.statsHandler)

	addr := ":" + port
	logger.Info().Str("addr", addr).Str("shop", shopDomain).Msg("Starting catalog proxy")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

type server struct {
	bridge *pagination.Bridge
	cache  *cache.CatalogCache
	logger zerolog.Logger
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// productsHandler serves one listing page. Recently rendered pages are
// answered straight from the cache; everything else goes through the
// pagination bridge.
func (s *server) productsHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		httpError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 50)
	filters := shopify.Filters{
		CollectionID: r.URL.Query().Get("collection_id"),
		ProductType:  r.URL.Query().Get("product_type"),
		Vendor:       r.URL.Query().Get("vendor"),
		Status:       r.URL.Query().Get("status"),
		Search:       r.URL.Query().Get("search"),
	}

	var explicitCursor *string
	if c := r.URL.Query().Get("after_cursor"); c != "" {
		explicitCursor = &c
	}

	ctx := r.Context()

	if explicitCursor == nil {
		if cached, ok := s.cache.ProductsPage(ctx, tenantID, page, limit, filters.Params()); ok {
			if result, ok := cached.(*pagination.Result); ok {
				writeJSON(w, http.StatusOK, result)
				return
			}
		}
	}

	result, err := s.bridge.GetPage(ctx, tenantID, filters, page, limit, explicitCursor)
	if err != nil {
		s.writeUpstreamError(w, tenantID, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// invalidateHandler triggers an invalidation cascade for a tenant.
func (s *server) invalidateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		httpError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	category := cache.Category(r.URL.Query().Get("category"))
	if category == "" {
		category = cache.CategoryPage
	}
	id := r.URL.Query().Get("id")

	ok := s.cache.Invalidate(r.Context(), category, tenantID, id)

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("category", string(category)).
		Str("id", id).
		Bool("ok", ok).
		Msg("Cache invalidation requested")

	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": tenantID,
		"category":  category,
		"ok":        ok,
	})
}

// statsHandler reports cache statistics for one tenant.
func (s *server) statsHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		httpError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Stats(r.Context(), tenantID))
}

// writeUpstreamError maps the error taxonomy onto HTTP statuses.
func (s *server) writeUpstreamError(w http.ResponseWriter, tenantID string, err error) {
	class := shopify.Classify(err)

	status := http.StatusBadGateway
	switch class {
	case shopify.ErrorClassAuth:
		status = http.StatusUnauthorized
	case shopify.ErrorClassRateLimit:
		status = http.StatusTooManyRequests
	}

	s.logger.Error().
		Err(err).
		Str("tenant_id", tenantID).
		Str("error_class", string(class)).
		Msg("Upstream request failed")

	httpError(w, status, err.Error())
}

func httpError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
