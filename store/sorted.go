package store

import (
	"cmp"
	"context"
	"iter"

	"github.com/google/btree"
	"github.com/gozephyr/vstorage/errors"
)

const sortedDegree = 32

type sortedItem[K cmp.Ordered, V any] struct {
	key   K
	value V
}

// SortedMemoryStore is a MemoryStore that iterates in ascending key order.
// Entries live in a B-tree.
type SortedMemoryStore[K cmp.Ordered, V any] struct {
	tree     *btree.BTreeG[sortedItem[K, V]]
	capacity int
	keys     KeyGenerator[K]
}

// NewSortedMemoryStore creates a new sorted memory store
func NewSortedMemoryStore[K cmp.Ordered, V any](opts ...Option) (*SortedMemoryStore[K, V], error) {
	options, gen, err := applyOptions[K]("NewSortedMemoryStore", opts)
	if err != nil {
		return nil, err
	}
	return &SortedMemoryStore[K, V]{
		tree: btree.NewG(sortedDegree, func(a, b sortedItem[K, V]) bool {
			return cmp.Less(a.key, b.key)
		}),
		capacity: options.Capacity,
		keys:     gen,
	}, nil
}

// Entries returns the number of entries
func (s *SortedMemoryStore[K, V]) Entries(ctx context.Context) int {
	return s.tree.Len()
}

// Capacity returns the entry ceiling
func (s *SortedMemoryStore[K, V]) Capacity(ctx context.Context) int {
	return s.capacity
}

// IsEmpty reports whether the store has no entries
func (s *SortedMemoryStore[K, V]) IsEmpty(ctx context.Context) bool {
	return s.tree.Len() == 0
}

// IsFull reports whether the store has reached its capacity
func (s *SortedMemoryStore[K, V]) IsFull(ctx context.Context) bool {
	return isFull(s.tree.Len(), s.capacity)
}

// Create stores value under a generated key
func (s *SortedMemoryStore[K, V]) Create(ctx context.Context, value V) (K, error) {
	var zero K
	if s.keys == nil {
		return zero, errors.WrapError("Create", nil, errors.ErrMissingKeyGenerator)
	}
	if s.IsFull(ctx) {
		return zero, errors.WrapError("Create", nil, errors.ErrOutOfSpace)
	}
	key, err := generateKey(ctx, s.keys, s.Has)
	if err != nil {
		return zero, err
	}
	if err := s.Update(ctx, key, value); err != nil {
		return zero, err
	}
	return key, nil
}

// Read returns the value bound to key
func (s *SortedMemoryStore[K, V]) Read(ctx context.Context, key K) (V, bool, error) {
	item, ok := s.tree.Get(sortedItem[K, V]{key: key})
	return item.value, ok, nil
}

// Update inserts or replaces the value bound to key
func (s *SortedMemoryStore[K, V]) Update(ctx context.Context, key K, value V) error {
	if err := checkContext(ctx, "Update", key); err != nil {
		return err
	}
	item := sortedItem[K, V]{key: key, value: value}
	if !s.tree.Has(item) && s.IsFull(ctx) {
		return errors.WrapError("Update", key, errors.ErrOutOfSpace)
	}
	s.tree.ReplaceOrInsert(item)
	return nil
}

// Delete removes key
func (s *SortedMemoryStore[K, V]) Delete(ctx context.Context, key K) error {
	if err := checkContext(ctx, "Delete", key); err != nil {
		return err
	}
	s.tree.Delete(sortedItem[K, V]{key: key})
	return nil
}

// Has reports whether key has an entry
func (s *SortedMemoryStore[K, V]) Has(ctx context.Context, key K) (bool, error) {
	return s.tree.Has(sortedItem[K, V]{key: key}), nil
}

// Clear removes every entry
func (s *SortedMemoryStore[K, V]) Clear(ctx context.Context) error {
	if err := checkContext(ctx, "Clear", nil); err != nil {
		return err
	}
	s.tree.Clear(false)
	return nil
}

// Swap exchanges the values bound to key1 and key2
func (s *SortedMemoryStore[K, V]) Swap(ctx context.Context, key1, key2 K) error {
	item1, ok := s.tree.Get(sortedItem[K, V]{key: key1})
	if !ok {
		return errors.WrapError("Swap", key1, errors.ErrKeyNotFound)
	}
	item2, ok := s.tree.Get(sortedItem[K, V]{key: key2})
	if !ok {
		return errors.WrapError("Swap", key2, errors.ErrKeyNotFound)
	}
	s.tree.ReplaceOrInsert(sortedItem[K, V]{key: key1, value: item2.value})
	s.tree.ReplaceOrInsert(sortedItem[K, V]{key: key2, value: item1.value})
	return nil
}

// All iterates the entries in ascending key order. Each step seeks past the
// previously yielded key, so the store may be mutated during iteration.
func (s *SortedMemoryStore[K, V]) All(ctx context.Context) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		var last K
		started := false
		for {
			var next sortedItem[K, V]
			found := false
			visit := func(item sortedItem[K, V]) bool {
				if started && item.key == last {
					return true
				}
				next, found = item, true
				return false
			}
			if started {
				s.tree.AscendGreaterOrEqual(sortedItem[K, V]{key: last}, visit)
			} else {
				s.tree.Ascend(visit)
			}
			if !found {
				return
			}
			last, started = next.key, true
			if !yield(next.key, next.value) {
				return
			}
		}
	}
}
