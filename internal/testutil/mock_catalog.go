// Package testutil provides a scripted in-memory upstream catalog client
// for testing the pagination and retry layers without a real Shopify store.
package testutil

import (
	"context"
	"strconv"
	"sync"

	"github.com/avollmaier/shopify-catalog-proxy/pkg/shopify"
)

// MockCatalog implements shopify.Client over a fixed product list. Cursors
// are opaque to callers but internally encode the offset of the next item,
// which is exactly how a cursor behaves from the bridge's point of view:
// forward-only, upstream-issued, meaningless to inspect.
type MockCatalog struct {
	mu       sync.Mutex
	products []shopify.Product

	// scripted errors, popped one per call before serving
	fetchErrs []error
	countErrs []error

	fetchCalls int
	countCalls int
}

// NewMockCatalog creates a mock serving the given products in order.
func NewMockCatalog(products []shopify.Product) *MockCatalog {
	return &MockCatalog{products: products}
}

// GenerateProducts returns n distinct active products for test fixtures.
func GenerateProducts(n int) []shopify.Product {
	products := make([]shopify.Product, n)
	for i := range products {
		products[i] = shopify.Product{
			ID:     strconv.Itoa(i + 1),
			Title:  "Product " + strconv.Itoa(i+1),
			Handle: "product-" + strconv.Itoa(i+1),
			Status: "ACTIVE",
		}
	}
	return products
}

// FailNextFetches queues errors returned by the next FetchPage calls, in
// order, before normal serving resumes.
func (m *MockCatalog) FailNextFetches(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErrs = append(m.fetchErrs, errs...)
}

// FailNextCounts queues errors returned by the next ProbeCount calls.
func (m *MockCatalog) FailNextCounts(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countErrs = append(m.countErrs, errs...)
}

// FetchCalls returns how many FetchPage calls were made, failed ones
// included.
func (m *MockCatalog) FetchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

// CountCalls returns how many ProbeCount calls were made.
func (m *MockCatalog) CountCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countCalls
}

// ResetCalls zeroes the call counters.
func (m *MockCatalog) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls = 0
	m.countCalls = 0
}

// FetchPage implements shopify.Client.
func (m *MockCatalog) FetchPage(_ context.Context, cursor *string, filters shopify.Filters, limit int) (*shopify.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetchCalls++
	if len(m.fetchErrs) > 0 {
		err := m.fetchErrs[0]
		m.fetchErrs = m.fetchErrs[1:]
		return nil, err
	}

	matching := m.matching(filters)

	offset := 0
	if cursor != nil {
		n, err := strconv.Atoi(*cursor)
		if err != nil {
			return nil, &shopify.UpstreamError{StatusCode: 400, Message: "invalid cursor"}
		}
		offset = n
	}

	end := offset + limit
	if end > len(matching) {
		end = len(matching)
	}
	var items []shopify.Product
	if offset < len(matching) {
		items = matching[offset:end]
	}

	page := &shopify.Page{
		Products:    items,
		HasNextPage: end < len(matching),
	}
	if offset < end {
		start := strconv.Itoa(offset)
		page.StartCursor = &start
	}
	if page.HasNextPage {
		next := strconv.Itoa(end)
		page.EndCursor = &next
	}
	return page, nil
}

// ProbeCount implements shopify.Client.
func (m *MockCatalog) ProbeCount(_ context.Context, filters shopify.Filters) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.countCalls++
	if len(m.countErrs) > 0 {
		err := m.countErrs[0]
		m.countErrs = m.countErrs[1:]
		return 0, err
	}
	return len(m.matching(filters)), nil
}

// matching filters the product list. Callers must hold mu.
func (m *MockCatalog) matching(filters shopify.Filters) []shopify.Product {
	out := make([]shopify.Product, 0, len(m.products))
	for _, p := range m.products {
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		if filters.Vendor != "" && p.Vendor != filters.Vendor {
			continue
		}
		if filters.ProductType != "" && p.ProductType != filters.ProductType {
			continue
		}
		out = append(out, p)
	}
	return out
}
