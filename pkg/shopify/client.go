// Package shopify defines the contract of the upstream Shopify catalog
// client together with its error taxonomy. The Admin API only supports
// forward cursor pagination, so the interface is cursor-shaped; page-number
// addressing is layered on top by pkg/pagination.
package shopify

import (
	"context"
	"sort"
	"strings"
)

// Client is the upstream catalog client consumed by this module.
// Implementations are expected to enforce their own per-request timeouts;
// callers only pass a context for cancellation.
type Client interface {
	// FetchPage fetches one page of products. A nil cursor starts from the
	// beginning of the result ordering.
	FetchPage(ctx context.Context, cursor *string, filters Filters, limit int) (*Page, error)

	// ProbeCount returns the total number of products matching filters.
	ProbeCount(ctx context.Context, filters Filters) (int, error)
}

// Filters describes the product listing filters supported by the catalog.
type Filters struct {
	CollectionID string
	ProductType  string
	Vendor       string
	Status       string
	Search       string
}

// Params returns the filter set as a parameter map for cache key derivation.
// Empty values are omitted.
func (f Filters) Params() map[string]string {
	params := make(map[string]string, 5)
	if f.CollectionID != "" {
		params["collection_id"] = f.CollectionID
	}
	if f.ProductType != "" {
		params["product_type"] = f.ProductType
	}
	if f.Vendor != "" {
		params["vendor"] = f.Vendor
	}
	if f.Status != "" {
		params["status"] = f.Status
	}
	if f.Search != "" {
		params["search"] = f.Search
	}
	return params
}

// Fingerprint returns a deterministic canonical representation of the filter
// set, invariant under the order the fields were populated.
func (f Filters) Fingerprint() string {
	params := f.Params()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return strings.Join(pairs, "&")
}

// Product is a catalog product as returned by the upstream listing queries.
type Product struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Handle      string   `json:"handle"`
	Status      string   `json:"status"`
	ProductType string   `json:"product_type"`
	Vendor      string   `json:"vendor"`
	Tags        []string `json:"tags"`
}

// Page is one upstream result page.
type Page struct {
	Products    []Product `json:"products"`
	StartCursor *string   `json:"start_cursor"`
	EndCursor   *string   `json:"end_cursor"`
	HasNextPage bool      `json:"has_next_page"`
}
