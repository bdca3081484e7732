package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for upstream Shopify requests.
var (
	shopifyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopify_requests_total",
		Help: "Total Shopify Admin API requests by operation and status",
	}, []string{"operation", "status"})

	shopifyRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopify_request_duration_seconds",
		Help:    "Shopify Admin API request duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	shopifyErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopify_errors_total",
		Help: "Total Shopify Admin API errors by class",
	}, []string{"class"})
)

// DefaultAPIVersion is the Admin API version requested when the
// configuration does not pin one.
const DefaultAPIVersion = "2024-07"

const gidCollectionPrefix = "gid://shopify/Collection/"

// GraphQLConfig holds the Admin API client configuration.
type GraphQLConfig struct {
	// ShopDomain is the myshopify domain, with or without scheme.
	ShopDomain string

	// AccessToken is the Admin API access token for the shop.
	AccessToken string

	// APIVersion pins the Admin API version (default: DefaultAPIVersion).
	APIVersion string

	// HTTPClient overrides the transport (for testing).
	HTTPClient *http.Client
}

// GraphQLClient is a Client backed by the Shopify Admin GraphQL API.
//
// The client performs exactly one request per call and reports failures
// through the package error taxonomy; retry policy belongs to the caller.
type GraphQLClient struct {
	httpClient *http.Client
	endpoint   string
	token      string
	logger     zerolog.Logger
}

var _ Client = (*GraphQLClient)(nil)

// NewGraphQLClient creates an Admin API client for one shop.
func NewGraphQLClient(cfg GraphQLConfig) (*GraphQLClient, error) {
	if cfg.ShopDomain == "" {
		return nil, fmt.Errorf("shop domain is required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	domain := strings.TrimPrefix(cfg.ShopDomain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimSuffix(domain, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &GraphQLClient{
		httpClient: httpClient,
		endpoint:   fmt.Sprintf("https://%s/admin/api/%s/graphql.json", domain, version),
		token:      cfg.AccessToken,
		logger:     log.With().Str("component", "shopify-client").Logger(),
	}, nil
}

const productsQuery = `query getProducts($first: Int!, $after: String, $query: String) {
  products(first: $first, after: $after, query: $query) {
    edges {
      node {
        id
        title
        handle
        status
        productType
        vendor
        tags
      }
    }
    pageInfo {
      hasNextPage
      hasPreviousPage
      startCursor
      endCursor
    }
  }
}`

const productsCountQuery = `query getProductsCount($query: String) {
  productsCount(query: $query) {
    count
  }
}`

// FetchPage implements Client over the products connection.
func (c *GraphQLClient) FetchPage(ctx context.Context, cursor *string, filters Filters, limit int) (*Page, error) {
	variables := map[string]any{"first": limit}
	if cursor != nil {
		variables["after"] = *cursor
	}
	if q := searchQuery(filters); q != "" {
		variables["query"] = q
	}

	var payload struct {
		Products struct {
			Edges []struct {
				Node productNode `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				HasNextPage bool    `json:"hasNextPage"`
				StartCursor *string `json:"startCursor"`
				EndCursor   *string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"products"`
	}

	if err := c.execute(ctx, "fetch_page", productsQuery, variables, &payload); err != nil {
		return nil, err
	}

	page := &Page{
		Products:    make([]Product, 0, len(payload.Products.Edges)),
		StartCursor: payload.Products.PageInfo.StartCursor,
		EndCursor:   payload.Products.PageInfo.EndCursor,
		HasNextPage: payload.Products.PageInfo.HasNextPage,
	}
	for _, edge := range payload.Products.Edges {
		page.Products = append(page.Products, edge.Node.toProduct())
	}
	return page, nil
}

// ProbeCount implements Client over the productsCount query.
func (c *GraphQLClient) ProbeCount(ctx context.Context, filters Filters) (int, error) {
	variables := map[string]any{}
	if q := searchQuery(filters); q != "" {
		variables["query"] = q
	}

	var payload struct {
		ProductsCount struct {
			Count int `json:"count"`
		} `json:"productsCount"`
	}

	if err := c.execute(ctx, "probe_count", productsCountQuery, variables, &payload); err != nil {
		return 0, err
	}
	return payload.ProductsCount.Count, nil
}

type productNode struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Handle      string   `json:"handle"`
	Status      string   `json:"status"`
	ProductType string   `json:"productType"`
	Vendor      string   `json:"vendor"`
	Tags        []string `json:"tags"`
}

func (n productNode) toProduct() Product {
	return Product{
		ID:          n.ID,
		Title:       n.Title,
		Handle:      n.Handle,
		Status:      n.Status,
		ProductType: n.ProductType,
		Vendor:      n.Vendor,
		Tags:        n.Tags,
	}
}

type graphqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// execute performs one GraphQL request and decodes data into out.
// Failures are mapped onto the package error taxonomy so callers can
// classify them without inspecting transport details.
func (c *GraphQLClient) execute(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	startTime := time.Now()
	defer func() {
		shopifyRequestDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}()

	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("operation", operation).Msg("Shopify request failed")
		shopifyErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		shopifyRequestsTotal.WithLabelValues(operation, "network_error").Inc()
		return &ConnectionError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	shopifyRequestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	if err := c.classifyStatus(resp, operation); err != nil {
		return err
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		shopifyErrorsTotal.WithLabelValues(string(ErrorClassUpstream)).Inc()
		return &UpstreamError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}

	if len(envelope.Errors) > 0 {
		return c.classifyGraphQLErrors(envelope.Errors, operation)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		shopifyErrorsTotal.WithLabelValues(string(ErrorClassUpstream)).Inc()
		return &UpstreamError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("decode data: %v", err)}
	}
	return nil
}

// classifyStatus maps HTTP-level failures onto the error taxonomy.
func (c *GraphQLClient) classifyStatus(resp *http.Response, operation string) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == http.StatusPaymentRequired:
		shopifyErrorsTotal.WithLabelValues(string(ErrorClassAuth)).Inc()
		c.logger.Error().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Msg("Shopify rejected credentials")
		return &AuthError{Message: resp.Status}

	case resp.StatusCode == http.StatusTooManyRequests:
		shopifyErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.logger.Warn().
			Str("operation", operation).
			Dur("retry_after", retryAfter).
			Msg("Shopify rate limited")
		return &RateLimitError{Message: resp.Status, RetryAfter: retryAfter}

	case resp.StatusCode >= 400:
		shopifyErrorsTotal.WithLabelValues(string(ErrorClassUpstream)).Inc()
		c.logger.Warn().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Msg("Shopify request error")
		return &UpstreamError{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	return nil
}

// classifyGraphQLErrors maps a GraphQL error list onto the taxonomy.
// Shopify reports query-cost throttling as a THROTTLED error inside a
// 200 response.
func (c *GraphQLClient) classifyGraphQLErrors(errs []graphqlError, operation string) error {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Extensions.Code == "THROTTLED" {
			shopifyErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
			c.logger.Warn().Str("operation", operation).Msg("Shopify query cost throttled")
			return &RateLimitError{Message: e.Message}
		}
		if e.Extensions.Code == "ACCESS_DENIED" {
			shopifyErrorsTotal.WithLabelValues(string(ErrorClassAuth)).Inc()
			return &AuthError{Message: e.Message}
		}
		messages = append(messages, e.Message)
	}

	shopifyErrorsTotal.WithLabelValues(string(ErrorClassUpstream)).Inc()
	return &UpstreamError{StatusCode: http.StatusOK, Message: strings.Join(messages, "; ")}
}

// searchQuery builds the Admin API search syntax string for the filters.
func searchQuery(filters Filters) string {
	parts := make([]string, 0, 5)
	if filters.Status != "" {
		parts = append(parts, "status:"+filters.Status)
	}
	if filters.CollectionID != "" {
		parts = append(parts, "collection_id:"+strings.TrimPrefix(filters.CollectionID, gidCollectionPrefix))
	}
	if filters.ProductType != "" {
		parts = append(parts, "product_type:"+filters.ProductType)
	}
	if filters.Vendor != "" {
		parts = append(parts, "vendor:"+filters.Vendor)
	}
	if filters.Search != "" {
		parts = append(parts, filters.Search)
	}
	return strings.Join(parts, " AND ")
}

// parseRetryAfter reads a Retry-After header value in seconds. Shopify
// sends fractional seconds.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
