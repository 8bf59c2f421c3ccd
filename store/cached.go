package store

import (
	"context"
	"iter"
	"sync/atomic"

	"github.com/gozephyr/vstorage/errors"
	"github.com/gozephyr/vstorage/metrics"
	"go.uber.org/zap"
)

// CacheStats is a copy of a cached store's counters
type CacheStats struct {
	Hits   int64
	Misses int64
}

// CachedStore puts a subset store in front of an authoritative superset.
// The subset never contributes to entry or capacity accounting; a value is
// only ever mirrored into it, so losing the subset loses nothing.
type CachedStore[K comparable, V any] struct {
	superset      Store[K, V]
	subset        Store[K, V]
	cacheOnCreate bool
	cacheOnRead   bool
	cacheOnUpdate bool
	hits          atomic.Int64
	misses        atomic.Int64
	metrics       metrics.Exporter
	logger        *zap.Logger
}

// NewCachedStore creates a cached store over superset with subset as its
// cache tier.
//
// The subset is trusted on Read. A superset that drops entries on its own,
// such as an LRU store, can leave a key in the subset after losing it; Read
// then still serves the cached value while Has, which asks the superset,
// reports the key absent. Give such a superset at least the subset's
// capacity and no shorter retention, or delete through the cached store.
func NewCachedStore[K comparable, V any](superset, subset Store[K, V], opts ...Option) (*CachedStore[K, V], error) {
	if superset == nil || subset == nil {
		return nil, errors.WrapError("NewCachedStore", nil, errors.ErrNotAvailableStorage)
	}
	options, _, err := applyOptions[K]("NewCachedStore", opts)
	if err != nil {
		return nil, err
	}
	return &CachedStore[K, V]{
		superset:      superset,
		subset:        subset,
		cacheOnCreate: options.CacheOnCreate,
		cacheOnRead:   options.CacheOnRead,
		cacheOnUpdate: options.CacheOnUpdate,
		metrics:       options.Metrics,
		logger:        options.Logger.With(zap.String("store", options.Name)),
	}, nil
}

// Superset returns the authoritative store
func (c *CachedStore[K, V]) Superset() Store[K, V] {
	return c.superset
}

// Subset returns the cache tier
func (c *CachedStore[K, V]) Subset() Store[K, V] {
	return c.subset
}

// Stats returns the hit and miss counters
func (c *CachedStore[K, V]) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// Entries returns the number of entries of the superset
func (c *CachedStore[K, V]) Entries(ctx context.Context) int {
	return c.superset.Entries(ctx)
}

// Capacity returns the capacity of the superset
func (c *CachedStore[K, V]) Capacity(ctx context.Context) int {
	return c.superset.Capacity(ctx)
}

// IsEmpty reports whether the superset has no entries
func (c *CachedStore[K, V]) IsEmpty(ctx context.Context) bool {
	return c.superset.IsEmpty(ctx)
}

// IsFull reports whether the superset is full
func (c *CachedStore[K, V]) IsFull(ctx context.Context) bool {
	return c.superset.IsFull(ctx)
}

// mirror copies an entry into the subset. A subset that cannot take it must
// not keep an older value for the key, so a failed mirror evicts instead.
func (c *CachedStore[K, V]) mirror(ctx context.Context, key K, value V) {
	if err := c.subset.Update(ctx, key, value); err != nil {
		c.logger.Debug("cache mirror failed", zap.Any("key", key), zap.Error(err))
		c.evict(ctx, key)
	}
}

// evict removes key from the subset. Errors are logged only: the superset
// already holds the truth.
func (c *CachedStore[K, V]) evict(ctx context.Context, key K) {
	if err := c.subset.Delete(ctx, key); err != nil {
		c.logger.Warn("cache eviction failed", zap.Any("key", key), zap.Error(err))
	}
}

// Create stores value in the superset and optionally mirrors it
func (c *CachedStore[K, V]) Create(ctx context.Context, value V) (K, error) {
	key, err := c.superset.Create(ctx, value)
	if err != nil {
		return key, errors.WrapError("Create", nil, err)
	}
	if c.cacheOnCreate {
		c.mirror(ctx, key, value)
	}
	return key, nil
}

// Read serves key from the subset when it can (a hit), otherwise from the
// superset (a miss). Absent keys change no counter. A subset hit is not
// checked against the superset.
func (c *CachedStore[K, V]) Read(ctx context.Context, key K) (V, bool, error) {
	value, ok, err := c.subset.Read(ctx, key)
	if err != nil {
		c.logger.Debug("cache read failed", zap.Any("key", key), zap.Error(err))
	} else if ok {
		c.hits.Add(1)
		c.metrics.RecordHit()
		return value, true, nil
	}

	value, ok, err = c.superset.Read(ctx, key)
	if err != nil {
		return value, false, errors.WrapError("Read", key, err)
	}
	if !ok {
		return value, false, nil
	}
	c.misses.Add(1)
	c.metrics.RecordMiss()
	if c.cacheOnRead {
		c.mirror(ctx, key, value)
	}
	return value, true, nil
}

// Update writes through to the superset, then mirrors or evicts the key in
// the subset
func (c *CachedStore[K, V]) Update(ctx context.Context, key K, value V) error {
	if err := c.superset.Update(ctx, key, value); err != nil {
		return errors.WrapError("Update", key, err)
	}
	if c.cacheOnUpdate {
		c.mirror(ctx, key, value)
	} else {
		c.evict(ctx, key)
	}
	return nil
}

// UpdateAll stages the batch in the superset, then treats every key as
// Update would
func (c *CachedStore[K, V]) UpdateAll(ctx context.Context, entries []Entry[K, V]) error {
	if err := UpdateAll(ctx, c.superset, entries); err != nil {
		return err
	}
	for _, e := range entries {
		if c.cacheOnUpdate {
			c.mirror(ctx, e.Key, e.Value)
		} else {
			c.evict(ctx, e.Key)
		}
	}
	return nil
}

// Delete removes key from both tiers
func (c *CachedStore[K, V]) Delete(ctx context.Context, key K) error {
	c.evict(ctx, key)
	if err := c.superset.Delete(ctx, key); err != nil {
		return errors.WrapError("Delete", key, err)
	}
	return nil
}

// Has reports whether the superset has key
func (c *CachedStore[K, V]) Has(ctx context.Context, key K) (bool, error) {
	return c.superset.Has(ctx, key)
}

// Flush empties the cache tier and resets the hit and miss counters
func (c *CachedStore[K, V]) Flush(ctx context.Context) error {
	if err := c.subset.Clear(ctx); err != nil {
		return errors.WrapError("Flush", nil, err)
	}
	c.hits.Store(0)
	c.misses.Store(0)
	c.metrics.Reset()
	return nil
}

// Clear flushes the cache, then clears the superset
func (c *CachedStore[K, V]) Clear(ctx context.Context) error {
	if err := c.Flush(ctx); err != nil {
		return err
	}
	if err := c.superset.Clear(ctx); err != nil {
		return errors.WrapError("Clear", nil, err)
	}
	return nil
}

// Swap evicts both keys from the subset and swaps them in the superset
func (c *CachedStore[K, V]) Swap(ctx context.Context, key1, key2 K) error {
	c.evict(ctx, key1)
	c.evict(ctx, key2)
	if err := c.superset.Swap(ctx, key1, key2); err != nil {
		return errors.WrapError("Swap", key1, err)
	}
	return nil
}

// All iterates the superset
func (c *CachedStore[K, V]) All(ctx context.Context) iter.Seq2[K, V] {
	return c.superset.All(ctx)
}
