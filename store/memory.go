package store

import (
	"context"
	"iter"

	"github.com/gozephyr/vstorage/errors"
)

// MemoryStore is the in-process store: a map from key to value with an
// optional fixed capacity. It iterates in insertion order.
type MemoryStore[K comparable, V any] struct {
	items    *table[K, V]
	capacity int
	keys     KeyGenerator[K]
}

// NewMemoryStore creates a new memory store
func NewMemoryStore[K comparable, V any](opts ...Option) (*MemoryStore[K, V], error) {
	options, gen, err := applyOptions[K]("NewMemoryStore", opts)
	if err != nil {
		return nil, err
	}
	return &MemoryStore[K, V]{
		items:    newTable[K, V](),
		capacity: options.Capacity,
		keys:     gen,
	}, nil
}

// Entries returns the number of entries
func (m *MemoryStore[K, V]) Entries(ctx context.Context) int {
	return m.items.len()
}

// Capacity returns the entry ceiling
func (m *MemoryStore[K, V]) Capacity(ctx context.Context) int {
	return m.capacity
}

// IsEmpty reports whether the store has no entries
func (m *MemoryStore[K, V]) IsEmpty(ctx context.Context) bool {
	return m.items.len() == 0
}

// IsFull reports whether the store has reached its capacity
func (m *MemoryStore[K, V]) IsFull(ctx context.Context) bool {
	return isFull(m.items.len(), m.capacity)
}

// Create stores value under a generated key
func (m *MemoryStore[K, V]) Create(ctx context.Context, value V) (K, error) {
	var zero K
	if m.keys == nil {
		return zero, errors.WrapError("Create", nil, errors.ErrMissingKeyGenerator)
	}
	if m.IsFull(ctx) {
		return zero, errors.WrapError("Create", nil, errors.ErrOutOfSpace)
	}
	key, err := generateKey(ctx, m.keys, m.Has)
	if err != nil {
		return zero, err
	}
	if err := m.Update(ctx, key, value); err != nil {
		return zero, err
	}
	return key, nil
}

// Read returns the value bound to key
func (m *MemoryStore[K, V]) Read(ctx context.Context, key K) (V, bool, error) {
	value, ok := m.items.get(key)
	return value, ok, nil
}

// Update inserts or replaces the value bound to key
func (m *MemoryStore[K, V]) Update(ctx context.Context, key K, value V) error {
	if err := checkContext(ctx, "Update", key); err != nil {
		return err
	}
	if !m.items.has(key) && m.IsFull(ctx) {
		return errors.WrapError("Update", key, errors.ErrOutOfSpace)
	}
	m.items.put(key, value)
	return nil
}

// Delete removes key
func (m *MemoryStore[K, V]) Delete(ctx context.Context, key K) error {
	if err := checkContext(ctx, "Delete", key); err != nil {
		return err
	}
	m.items.remove(key)
	return nil
}

// Has reports whether key has an entry
func (m *MemoryStore[K, V]) Has(ctx context.Context, key K) (bool, error) {
	return m.items.has(key), nil
}

// Clear removes every entry
func (m *MemoryStore[K, V]) Clear(ctx context.Context) error {
	if err := checkContext(ctx, "Clear", nil); err != nil {
		return err
	}
	m.items.clear()
	return nil
}

// Swap exchanges the values bound to key1 and key2
func (m *MemoryStore[K, V]) Swap(ctx context.Context, key1, key2 K) error {
	v1, ok := m.items.get(key1)
	if !ok {
		return errors.WrapError("Swap", key1, errors.ErrKeyNotFound)
	}
	v2, ok := m.items.get(key2)
	if !ok {
		return errors.WrapError("Swap", key2, errors.ErrKeyNotFound)
	}
	m.items.put(key1, v2)
	m.items.put(key2, v1)
	return nil
}

// All iterates the entries in insertion order. Keys deleted during the
// iteration are skipped; keys inserted during it are not visited.
func (m *MemoryStore[K, V]) All(ctx context.Context) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, key := range m.items.keys() {
			value, ok := m.items.get(key)
			if !ok {
				continue
			}
			if !yield(key, value) {
				return
			}
		}
	}
}
