package concurrentMap

import (
	"maps"
	"sync"
)

// ConcurrentMap is a concurrent-safe map.
type ConcurrentMap[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// NewConcurrentMap creates a new ConcurrentMap.
func NewConcurrentMap[K comparable, V any]() *ConcurrentMap[K, V] {
	return &ConcurrentMap[K, V]{
		items: make(map[K]V),
	}
}

// Get retrieves the value associated with the given key.
func (m *ConcurrentMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.items[key]
	return value, ok
}

// Set sets the value associated with the given key.
func (m *ConcurrentMap[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = value
}

// GetOrSet returns the existing value for key, or stores and returns the
// result of create. loaded is true when the value already existed.
func (m *ConcurrentMap[K, V]) GetOrSet(key K, create func() V) (value V, loaded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.items[key]; ok {
		return existing, true
	}
	value = create()
	m.items[key] = value
	return value, false
}

// Delete removes the key-value pair associated with the given key.
func (m *ConcurrentMap[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
}

// DeleteFunc removes every entry for which del returns true and reports how many were removed.
func (m *ConcurrentMap[K, V]) DeleteFunc(del func(key K, value V) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, v := range m.items {
		if del(k, v) {
			delete(m.items, k)
			removed++
		}
	}
	return removed
}

// Range iterates over the map under a read lock. f must not write to the map.
func (m *ConcurrentMap[K, V]) Range(f func(key K, value V)) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for key, value := range m.items {
		f(key, value)
	}
}

// Len returns the number of items in the map.
func (m *ConcurrentMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Items returns a copy of all items in the map.
func (m *ConcurrentMap[K, V]) Items() map[K]V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.items)
}
