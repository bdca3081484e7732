package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is a bounded in-process Store with LRU eviction and lazy TTL
// expiry. An entry's "use" is any Get or Set touching it; Exists and Clear
// do not refresh recency.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List // front = most recently used
	maxEntries int
}

type memoryEntry struct {
	key       string
	value     any
	createdAt time.Time
	expiresAt time.Time
}

// NewMemory creates a memory backend holding at most maxEntries entries.
// Values <= 0 fall back to the default capacity.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultConfig().MaxEntries
	}
	return &Memory{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
	}
}

// Get returns the value for key, purging it first if expired.
func (m *Memory) Get(_ context.Context, key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		cacheMisses.WithLabelValues("memory").Inc()
		return nil, false
	}

	entry := elem.Value.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		m.removeElement(elem)
		cacheMisses.WithLabelValues("memory").Inc()
		return nil, false
	}

	m.lru.MoveToFront(elem)
	cacheHits.WithLabelValues("memory").Inc()
	return entry.value, true
}

// Set stores value under key, overwriting any existing entry and resetting
// its TTL clock. A full store evicts the least-recently-used entry first.
func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if elem, ok := m.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = value
		entry.createdAt = now
		entry.expiresAt = now.Add(ttl)
		m.lru.MoveToFront(elem)
		return true
	}

	if m.lru.Len() >= m.maxEntries {
		if oldest := m.lru.Back(); oldest != nil {
			m.removeElement(oldest)
			cacheEvictions.Inc()
		}
	}

	elem := m.lru.PushFront(&memoryEntry{
		key:       key,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	})
	m.entries[key] = elem
	return true
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		m.removeElement(elem)
	}
	return true
}

// Clear removes every entry whose key contains pattern; an empty pattern
// resets the whole store.
func (m *Memory) Clear(_ context.Context, pattern string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pattern == "" {
		m.entries = make(map[string]*list.Element)
		m.lru.Init()
		return true
	}

	for key, elem := range m.entries {
		if strings.Contains(key, pattern) {
			m.removeElement(elem)
		}
	}
	return true
}

// Exists reports whether key is present and not expired. Expired entries
// are purged on the way.
func (m *Memory) Exists(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		return false
	}
	if time.Now().After(elem.Value.(*memoryEntry).expiresAt) {
		m.removeElement(elem)
		return false
	}
	return true
}

// Count returns the number of live entries whose key contains pattern.
// Used by CatalogCache.Stats; not part of the Store contract.
func (m *Memory) Count(_ context.Context, pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	n := 0
	for key, elem := range m.entries {
		if now.After(elem.Value.(*memoryEntry).expiresAt) {
			continue
		}
		if pattern == "" || strings.Contains(key, pattern) {
			n++
		}
	}
	return n
}

// Len returns the current number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// removeElement deletes an entry from both the map and the LRU list.
// Callers must hold mu.
func (m *Memory) removeElement(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	m.lru.Remove(elem)
	delete(m.entries, entry.key)
}
