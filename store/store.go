// Package store provides the key-value storage contract and its leaf and
// composite implementations.
//
// Callers address every value through a key obtained from Create or chosen
// by the caller and handed to Update. Composite stores (cached, chained,
// clustered, replicated) delegate to member stores they own exclusively;
// members must not be mutated behind a composite's back because composites
// keep their own aggregate entry counters.
//
// None of the stores lock internally. Wrap a store with Synchronized when it
// is shared between goroutines.
package store

import (
	"context"
	"iter"

	"github.com/gozephyr/vstorage/errors"
)

// Unbounded is the capacity reported by a store without an entry ceiling.
const Unbounded = -1

// Store defines the contract every storage implements.
type Store[K comparable, V any] interface {
	// Entries returns the number of entries in the store
	Entries(ctx context.Context) int

	// Capacity returns the entry ceiling, or Unbounded
	Capacity(ctx context.Context) int

	// Create stores value under a newly generated key
	Create(ctx context.Context, value V) (K, error)

	// Read returns the value bound to key. The boolean is false when there is
	// no entry, which is distinct from an entry holding the zero value.
	Read(ctx context.Context, key K) (V, bool, error)

	// Update inserts or replaces the value bound to key
	Update(ctx context.Context, key K, value V) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key K) error

	// Has reports whether key has an entry
	Has(ctx context.Context, key K) (bool, error)

	// IsEmpty reports whether the store has no entries
	IsEmpty(ctx context.Context) bool

	// IsFull reports whether inserting a new key would exceed the capacity
	IsFull(ctx context.Context) bool

	// Clear removes every entry
	Clear(ctx context.Context) error

	// Swap exchanges the values bound to key1 and key2
	Swap(ctx context.Context, key1, key2 K) error

	// All returns a lazy one-pass sequence of the entries
	All(ctx context.Context) iter.Seq2[K, V]
}

// Entry is a key and its value
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// BulkUpdater is implemented by stores that stage a batch of updates
// before applying any of them.
type BulkUpdater[K comparable, V any] interface {
	UpdateAll(ctx context.Context, entries []Entry[K, V]) error
}

// isFull reports whether entries has reached capacity
func isFull(entries, capacity int) bool {
	return capacity != Unbounded && entries >= capacity
}

// freeSlots returns how many new keys fit, or -1 when unbounded
func freeSlots(entries, capacity int) int {
	if capacity == Unbounded {
		return -1
	}
	if entries >= capacity {
		return 0
	}
	return capacity - entries
}

// checkContext returns a wrapped ErrContextCanceled if ctx is done
func checkContext(ctx context.Context, op string, key any) error {
	if ctx.Err() != nil {
		return errors.WrapError(op, key, errors.ErrContextCanceled)
	}
	return nil
}

// SwapValues exchanges two values with two reads and two updates. It is the
// swap of stores whose backend has no native exchange.
func SwapValues[K comparable, V any](ctx context.Context, s Store[K, V], key1, key2 K) error {
	v1, ok, err := s.Read(ctx, key1)
	if err != nil {
		return errors.WrapError("Swap", key1, err)
	}
	if !ok {
		return errors.WrapError("Swap", key1, errors.ErrKeyNotFound)
	}
	v2, ok, err := s.Read(ctx, key2)
	if err != nil {
		return errors.WrapError("Swap", key2, err)
	}
	if !ok {
		return errors.WrapError("Swap", key2, errors.ErrKeyNotFound)
	}
	if err := s.Update(ctx, key1, v2); err != nil {
		return errors.WrapError("Swap", key1, err)
	}
	if err := s.Update(ctx, key2, v1); err != nil {
		return errors.WrapError("Swap", key2, err)
	}
	return nil
}

// Keys collects the keys of s in iteration order
func Keys[K comparable, V any](ctx context.Context, s Store[K, V]) []K {
	keys := make([]K, 0, s.Entries(ctx))
	for k := range s.All(ctx) {
		keys = append(keys, k)
	}
	return keys
}

// UpdateAll applies entries to s. Stores implementing BulkUpdater stage the
// batch themselves; for any other store the number of new keys is checked
// against the free capacity first, so a batch that cannot fit fails with
// ErrOutOfSpace before anything is written.
func UpdateAll[K comparable, V any](ctx context.Context, s Store[K, V], entries []Entry[K, V]) error {
	if b, ok := s.(BulkUpdater[K, V]); ok {
		return b.UpdateAll(ctx, entries)
	}

	seen := make(map[K]struct{}, len(entries))
	newKeys := 0
	for _, e := range entries {
		if _, dup := seen[e.Key]; dup {
			continue
		}
		seen[e.Key] = struct{}{}
		has, err := s.Has(ctx, e.Key)
		if err != nil {
			return errors.WrapError("UpdateAll", e.Key, err)
		}
		if !has {
			newKeys++
		}
	}
	if free := freeSlots(s.Entries(ctx), s.Capacity(ctx)); free >= 0 && newKeys > free {
		return errors.WrapError("UpdateAll", nil, errors.ErrOutOfSpace)
	}

	for _, e := range entries {
		if err := s.Update(ctx, e.Key, e.Value); err != nil {
			return errors.WrapError("UpdateAll", e.Key, err)
		}
	}
	return nil
}
