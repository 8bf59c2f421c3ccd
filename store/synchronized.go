package store

import (
	"context"
	"iter"
	"sync"
)

// SynchronizedStore serializes every operation of the wrapped store with
// one mutex, including the routing decisions and counter updates a
// composite makes inside a call.
type SynchronizedStore[K comparable, V any] struct {
	mu    sync.Mutex
	inner Store[K, V]
}

// Synchronized wraps s for use from several goroutines. The wrapped store
// must not be used directly afterwards.
func Synchronized[K comparable, V any](s Store[K, V]) *SynchronizedStore[K, V] {
	return &SynchronizedStore[K, V]{inner: s}
}

// Unwrap returns the wrapped store
func (s *SynchronizedStore[K, V]) Unwrap() Store[K, V] {
	return s.inner
}

// Entries returns the entry count of the wrapped store
func (s *SynchronizedStore[K, V]) Entries(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Entries(ctx)
}

// Capacity returns the capacity of the wrapped store
func (s *SynchronizedStore[K, V]) Capacity(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Capacity(ctx)
}

// Create stores value under a generated key while holding the lock
func (s *SynchronizedStore[K, V]) Create(ctx context.Context, value V) (K, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Create(ctx, value)
}

// Read returns the value bound to key while holding the lock
func (s *SynchronizedStore[K, V]) Read(ctx context.Context, key K) (V, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Read(ctx, key)
}

// Update binds value to key while holding the lock
func (s *SynchronizedStore[K, V]) Update(ctx context.Context, key K, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Update(ctx, key, value)
}

// UpdateAll applies the batch under the lock, so no reader observes it half
// applied
func (s *SynchronizedStore[K, V]) UpdateAll(ctx context.Context, entries []Entry[K, V]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return UpdateAll(ctx, s.inner, entries)
}

// Delete removes key while holding the lock
func (s *SynchronizedStore[K, V]) Delete(ctx context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Delete(ctx, key)
}

// Has reports whether key is present
func (s *SynchronizedStore[K, V]) Has(ctx context.Context, key K) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Has(ctx, key)
}

// IsEmpty reports whether the wrapped store holds no entries
func (s *SynchronizedStore[K, V]) IsEmpty(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.IsEmpty(ctx)
}

// IsFull reports whether the wrapped store is at capacity
func (s *SynchronizedStore[K, V]) IsFull(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.IsFull(ctx)
}

// Clear removes every entry while holding the lock
func (s *SynchronizedStore[K, V]) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Clear(ctx)
}

// Swap exchanges the values of key1 and key2 while holding the lock
func (s *SynchronizedStore[K, V]) Swap(ctx context.Context, key1, key2 K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Swap(ctx, key1, key2)
}

// All iterates a snapshot taken under the lock. The lock is not held while
// the caller consumes the sequence.
func (s *SynchronizedStore[K, V]) All(ctx context.Context) iter.Seq2[K, V] {
	s.mu.Lock()
	entries := make([]Entry[K, V], 0, s.inner.Entries(ctx))
	for k, v := range s.inner.All(ctx) {
		entries = append(entries, Entry[K, V]{Key: k, Value: v})
	}
	s.mu.Unlock()

	return func(yield func(K, V) bool) {
		for _, e := range entries {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}
