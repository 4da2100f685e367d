package catalog

import (
	"cmp"
	"maps"
	"slices"
	"sync"
)

// table is a thread-safe map for read-heavy lookups.
type table[K cmp.Ordered, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

func newTable[K cmp.Ordered, V any]() *table[K, V] {
	return &table[K, V]{entries: make(map[K]V)}
}

// insert adds key unless it is already present. It reports whether it did.
func (t *table[K, V]) insert(key K, value V) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[key]; ok {
		return false
	}
	t.entries[key] = value
	return true
}

func (t *table[K, V]) get(key K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[key]
	return v, ok
}

func (t *table[K, V]) has(key K) bool {
	_, ok := t.get(key)
	return ok
}

// keys returns every key in ascending order.
func (t *table[K, V]) keys() []K {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.entries))
}

func (t *table[K, V]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
