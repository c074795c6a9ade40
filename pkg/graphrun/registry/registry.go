package registry

import (
	"iter"
	"maps"
	"sync"
)

// Map is a concurrent map with build-once semantics per key.
type Map[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
	pending map[K]*call[V]
}

// call is an in-flight LoadOrBuild.
type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// New returns an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		entries: make(map[K]V),
		pending: make(map[K]*call[V]),
	}
}

// Store sets the value for key, replacing any previous value.
func (m *Map[K, V]) Store(key K, val V) {
	m.mu.Lock()
	m.entries[key] = val
	m.mu.Unlock()
}

// Load returns the value stored for key.
func (m *Map[K, V]) Load(key K) (V, bool) {
	m.mu.RLock()
	val, ok := m.entries[key]
	m.mu.RUnlock()
	return val, ok
}

// LoadOrBuild returns the value for key, calling build to produce it when
// absent. Concurrent callers for the same key share one build call; builds
// for different keys run in parallel. A failed build stores nothing, and
// every caller waiting on it receives the error.
func (m *Map[K, V]) LoadOrBuild(key K, build func() (V, error)) (V, error) {
	m.mu.Lock()
	if val, ok := m.entries[key]; ok {
		m.mu.Unlock()
		return val, nil
	}
	if c, ok := m.pending[key]; ok {
		m.mu.Unlock()
		<-c.done
		return c.val, c.err
	}
	c := &call[V]{done: make(chan struct{})}
	m.pending[key] = c
	m.mu.Unlock()

	c.val, c.err = build()

	m.mu.Lock()
	delete(m.pending, key)
	if c.err == nil {
		m.entries[key] = c.val
	}
	m.mu.Unlock()
	close(c.done)
	return c.val, c.err
}

// Forget removes key. An in-flight build for key is not affected.
func (m *Map[K, V]) Forget(key K) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Keys iterates over a snapshot of the stored keys in no particular order.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	m.mu.RLock()
	snapshot := maps.Clone(m.entries)
	m.mu.RUnlock()
	return maps.Keys(snapshot)
}

// Len reports the number of stored entries.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
