package cache

import (
	"strings"
	"testing"
)

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		tenantID string
		params   map[string]string
		want     string
	}{
		{
			name:     "no params",
			category: CategoryFilters,
			tenantID: "t1",
			params:   nil,
			want:     "catalog:filters:t1:",
		},
		{
			name:     "single param",
			category: CategoryProduct,
			tenantID: "t1",
			params:   map[string]string{"id": "42"},
			want:     "catalog:product:t1:id=42",
		},
		{
			name:     "params sorted by name",
			category: CategoryPage,
			tenantID: "t1",
			params:   map[string]string{"vendor": "acme", "limit": "50", "page": "2"},
			want:     "catalog:page:t1:limit=50&page=2&vendor=acme",
		},
		{
			name:     "empty values dropped",
			category: CategoryPage,
			tenantID: "t1",
			params:   map[string]string{"status": "ACTIVE", "vendor": "", "search": ""},
			want:     "catalog:page:t1:status=ACTIVE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildKey(tt.category, tt.tenantID, tt.params); got != tt.want {
				t.Errorf("BuildKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildKey_PermutationInvariant(t *testing.T) {
	a := map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"}
	b := map[string]string{"d": "4", "c": "3", "b": "2", "a": "1"}

	keyA := BuildKey(CategoryPage, "t1", a)
	keyB := BuildKey(CategoryPage, "t1", b)
	if keyA != keyB {
		t.Errorf("keys differ for identical param sets: %q vs %q", keyA, keyB)
	}
}

func TestBuildKey_LongParamsHashed(t *testing.T) {
	params := map[string]string{
		"search": strings.Repeat("x", 200),
		"status": "ACTIVE",
	}

	key := BuildKey(CategoryPage, "t1", params)
	again := BuildKey(CategoryPage, "t1", params)

	if key != again {
		t.Errorf("hashed key not deterministic: %q vs %q", key, again)
	}

	// prefix + category + tenant + 64-char sha256 hex
	want := "catalog:page:t1:"
	if !strings.HasPrefix(key, want) {
		t.Fatalf("key %q missing prefix %q", key, want)
	}
	suffix := strings.TrimPrefix(key, want)
	if len(suffix) != 64 {
		t.Errorf("hashed params length = %d, want 64", len(suffix))
	}
	if strings.Contains(suffix, "=") {
		t.Errorf("hashed params should not contain raw pairs: %q", suffix)
	}
}

func TestBuildKey_DifferentParamsDifferentKeys(t *testing.T) {
	a := BuildKey(CategoryPage, "t1", map[string]string{"page": "1"})
	b := BuildKey(CategoryPage, "t1", map[string]string{"page": "2"})
	if a == b {
		t.Errorf("distinct params produced the same key: %q", a)
	}
}

func TestTenantPattern(t *testing.T) {
	pattern := TenantPattern(CategoryCursor, "t1")
	if pattern != "catalog:cursor:t1:" {
		t.Errorf("TenantPattern() = %q, want catalog:cursor:t1:", pattern)
	}

	key := BuildKey(CategoryCursor, "t1", map[string]string{"page": "3"})
	if !strings.Contains(key, pattern) {
		t.Errorf("key %q does not contain its tenant pattern %q", key, pattern)
	}

	other := BuildKey(CategoryCursor, "t2", map[string]string{"page": "3"})
	if strings.Contains(other, pattern) {
		t.Errorf("other tenant's key %q matches pattern %q", other, pattern)
	}
}

func TestCanonicalParams(t *testing.T) {
	got := CanonicalParams(map[string]string{"b": "2", "a": "1", "empty": ""})
	if got != "a=1&b=2" {
		t.Errorf("CanonicalParams() = %q, want a=1&b=2", got)
	}
}
