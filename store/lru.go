package store

import (
	"context"
	"iter"
	"time"

	"github.com/gozephyr/vstorage/errors"
	"github.com/gozephyr/vstorage/metrics"
	"github.com/gozephyr/vstorage/policy"
	"github.com/gozephyr/vstorage/ttl"
	"go.uber.org/zap"
)

type lruEntry[V any] struct {
	value     V
	createdAt time.Time
}

// LRUStore is a bounded memory store with two independent eviction
// triggers.
//
// Capacity: inserting a new key into a full store first evicts the entry
// chosen by the eviction policy (least recently used by default). Unlike
// every other bounded store, Create and Update never fail with
// ErrOutOfSpace; IsFull still reports true once the ceiling is reached.
//
// Retention: when a retention window is set, Read and Has evict an entry
// whose age exceeds the window and report it absent. Entries counts expired
// entries until they are noticed or Purge runs.
//
// A Read that finds an entry and every insert or replacement count as a use.
type LRUStore[K comparable, V any] struct {
	items     *table[K, lruEntry[V]]
	policy    policy.Policy[K]
	capacity  int
	retention time.Duration
	clock     ttl.Clock
	keys      KeyGenerator[K]
	metrics   metrics.Exporter
	logger    *zap.Logger
}

// NewLRUStore creates a new LRU store
func NewLRUStore[K comparable, V any](opts ...Option) (*LRUStore[K, V], error) {
	options, gen, err := applyOptions[K]("NewLRUStore", opts)
	if err != nil {
		return nil, err
	}
	return &LRUStore[K, V]{
		items:     newTable[K, lruEntry[V]](),
		policy:    policy.New[K](options.Policy),
		capacity:  options.Capacity,
		retention: options.Retention,
		clock:     options.Clock,
		keys:      gen,
		metrics:   options.Metrics,
		logger:    options.Logger.With(zap.String("store", options.Name)),
	}, nil
}

// Retention returns the configured retention window
func (l *LRUStore[K, V]) Retention() time.Duration {
	return l.retention
}

// Entries returns the number of entries, including expired ones not yet evicted
func (l *LRUStore[K, V]) Entries(ctx context.Context) int {
	return l.items.len()
}

// Capacity returns the entry ceiling
func (l *LRUStore[K, V]) Capacity(ctx context.Context) int {
	return l.capacity
}

// IsEmpty reports whether the store has no entries
func (l *LRUStore[K, V]) IsEmpty(ctx context.Context) bool {
	return l.items.len() == 0
}

// IsFull reports whether the next new key will cause an eviction
func (l *LRUStore[K, V]) IsFull(ctx context.Context) bool {
	return isFull(l.items.len(), l.capacity)
}

// Create stores value under a generated key, evicting if necessary
func (l *LRUStore[K, V]) Create(ctx context.Context, value V) (K, error) {
	var zero K
	if l.keys == nil {
		return zero, errors.WrapError("Create", nil, errors.ErrMissingKeyGenerator)
	}
	key, err := generateKey(ctx, l.keys, l.Has)
	if err != nil {
		return zero, err
	}
	if err := l.Update(ctx, key, value); err != nil {
		return zero, err
	}
	return key, nil
}

// lookup returns the live entry for key, evicting it if it has expired
func (l *LRUStore[K, V]) lookup(key K) (lruEntry[V], bool) {
	entry, ok := l.items.get(key)
	if !ok {
		return entry, false
	}
	if ttl.IsExpired(entry.createdAt, l.retention, l.clock()) {
		l.evict(key, "retention")
		return lruEntry[V]{}, false
	}
	return entry, true
}

func (l *LRUStore[K, V]) evict(key K, reason string) {
	l.items.remove(key)
	l.policy.OnRemove(key)
	l.metrics.RecordEviction()
	l.metrics.UpdateSize(int64(l.items.len()))
	l.logger.Debug("evicted entry", zap.Any("key", key), zap.String("reason", reason))
}

// Read returns the value bound to key and marks it as used
func (l *LRUStore[K, V]) Read(ctx context.Context, key K) (V, bool, error) {
	entry, ok := l.lookup(key)
	if !ok {
		var zero V
		return zero, false, nil
	}
	l.policy.OnAccess(key)
	return entry.value, true, nil
}

// Has reports whether key has a live entry. It does not count as a use.
func (l *LRUStore[K, V]) Has(ctx context.Context, key K) (bool, error) {
	_, ok := l.lookup(key)
	return ok, nil
}

// Update inserts or replaces the value bound to key. Replacing a value
// restarts its retention window.
func (l *LRUStore[K, V]) Update(ctx context.Context, key K, value V) error {
	if err := checkContext(ctx, "Update", key); err != nil {
		return err
	}
	if !l.items.has(key) {
		for l.IsFull(ctx) {
			victim, ok := l.policy.Victim()
			if !ok {
				return errors.WrapError("Update", key, errors.ErrIllegalState)
			}
			l.evict(victim, "capacity")
		}
	}
	l.items.put(key, lruEntry[V]{value: value, createdAt: l.clock()})
	l.policy.OnInsert(key)
	l.metrics.UpdateSize(int64(l.items.len()))
	return nil
}

// UpdateAll applies entries in order. Eviction makes room, so a batch
// never fails for lack of space.
func (l *LRUStore[K, V]) UpdateAll(ctx context.Context, entries []Entry[K, V]) error {
	for _, e := range entries {
		if err := l.Update(ctx, e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes key
func (l *LRUStore[K, V]) Delete(ctx context.Context, key K) error {
	if err := checkContext(ctx, "Delete", key); err != nil {
		return err
	}
	if l.items.remove(key) {
		l.policy.OnRemove(key)
		l.metrics.UpdateSize(int64(l.items.len()))
	}
	return nil
}

// Clear removes every entry
func (l *LRUStore[K, V]) Clear(ctx context.Context) error {
	if err := checkContext(ctx, "Clear", nil); err != nil {
		return err
	}
	l.items.clear()
	l.policy.OnClear()
	l.metrics.UpdateSize(0)
	return nil
}

// Swap exchanges the values bound to key1 and key2. Retention windows stay
// with the keys.
func (l *LRUStore[K, V]) Swap(ctx context.Context, key1, key2 K) error {
	e1, ok := l.lookup(key1)
	if !ok {
		return errors.WrapError("Swap", key1, errors.ErrKeyNotFound)
	}
	e2, ok := l.lookup(key2)
	if !ok {
		return errors.WrapError("Swap", key2, errors.ErrKeyNotFound)
	}
	e1.value, e2.value = e2.value, e1.value
	l.items.put(key1, e1)
	l.items.put(key2, e2)
	return nil
}

// Purge evicts every expired entry and returns how many were removed
func (l *LRUStore[K, V]) Purge(ctx context.Context) int {
	if l.retention <= ttl.NoRetention {
		return 0
	}
	purged := 0
	now := l.clock()
	for _, key := range l.items.keys() {
		entry, ok := l.items.get(key)
		if ok && ttl.IsExpired(entry.createdAt, l.retention, now) {
			l.evict(key, "retention")
			purged++
		}
	}
	return purged
}

// All iterates live entries in insertion order without marking them used.
// Expired entries are skipped but left for Read, Has or Purge to evict.
func (l *LRUStore[K, V]) All(ctx context.Context) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, key := range l.items.keys() {
			entry, ok := l.items.get(key)
			if !ok || ttl.IsExpired(entry.createdAt, l.retention, l.clock()) {
				continue
			}
			if !yield(key, entry.value) {
				return
			}
		}
	}
}
