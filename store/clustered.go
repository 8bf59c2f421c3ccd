package store

import (
	"context"
	"iter"

	"github.com/gozephyr/vstorage/errors"
	"github.com/gozephyr/vstorage/internal"
	"go.uber.org/zap"
)

// ClusteredStore shards keys over unbounded members by a deterministic
// hash. A key's shard is recomputed on every call and never stored, so keys
// never migrate.
type ClusteredStore[K comparable, V any] struct {
	shards   []Store[K, V]
	capacity int
	entries  *internal.Counter
	keys     KeyGenerator[K]
	logger   *zap.Logger
}

// NewClusteredStore creates a clustered store over shards. Every shard must
// be unbounded; WithCapacity bounds the aggregate.
func NewClusteredStore[K comparable, V any](ctx context.Context, shards []Store[K, V], opts ...Option) (*ClusteredStore[K, V], error) {
	if err := checkUnboundedMembers(ctx, "NewClusteredStore", shards); err != nil {
		return nil, err
	}
	options, gen, err := applyOptions[K]("NewClusteredStore", opts)
	if err != nil {
		return nil, err
	}
	return &ClusteredStore[K, V]{
		shards:   shards,
		capacity: options.Capacity,
		entries:  internal.NewCounter(sumEntries(ctx, shards)),
		keys:     gen,
		logger:   options.Logger.With(zap.String("store", options.Name)),
	}, nil
}

// checkUnboundedMembers rejects an empty member list and bounded members
func checkUnboundedMembers[K comparable, V any](ctx context.Context, op string, members []Store[K, V]) error {
	if len(members) == 0 {
		return errors.WrapError(op, nil, errors.ErrNotAvailableStorage)
	}
	for i, m := range members {
		if m == nil {
			return errors.WrapError(op, i, errors.ErrNotAvailableStorage)
		}
		if m.Capacity(ctx) != Unbounded {
			return errors.WrapError(op, i, errors.ErrInvalidConfiguration)
		}
	}
	return nil
}

// Shards returns the member stores
func (c *ClusteredStore[K, V]) Shards() []Store[K, V] {
	return c.shards
}

// Select returns the index of the shard owning key. The zero key maps to
// shard 0.
func (c *ClusteredStore[K, V]) Select(key K) int {
	if internal.IsZero(key) {
		return 0
	}
	return int(internal.Hash(key) % uint32(len(c.shards)))
}

func (c *ClusteredStore[K, V]) shard(key K) Store[K, V] {
	return c.shards[c.Select(key)]
}

// Entries returns the aggregate number of entries
func (c *ClusteredStore[K, V]) Entries(ctx context.Context) int {
	return c.entries.Get()
}

// Capacity returns the aggregate capacity
func (c *ClusteredStore[K, V]) Capacity(ctx context.Context) int {
	return c.capacity
}

// IsEmpty reports whether the aggregate has no entries
func (c *ClusteredStore[K, V]) IsEmpty(ctx context.Context) bool {
	return c.entries.Get() == 0
}

// IsFull reports whether the aggregate has reached its capacity
func (c *ClusteredStore[K, V]) IsFull(ctx context.Context) bool {
	return isFull(c.entries.Get(), c.capacity)
}

// Create stores value under a generated key
func (c *ClusteredStore[K, V]) Create(ctx context.Context, value V) (K, error) {
	var zero K
	if c.keys == nil {
		return zero, errors.WrapError("Create", nil, errors.ErrMissingKeyGenerator)
	}
	key, err := generateKey(ctx, c.keys, c.Has)
	if err != nil {
		return zero, err
	}
	if err := c.Update(ctx, key, value); err != nil {
		return zero, err
	}
	return key, nil
}

// Read returns the value from the shard owning key
func (c *ClusteredStore[K, V]) Read(ctx context.Context, key K) (V, bool, error) {
	value, ok, err := c.shard(key).Read(ctx, key)
	if err != nil {
		return value, false, errors.WrapError("Read", key, err)
	}
	return value, ok, nil
}

// Update writes key to its shard. A new key is checked against the
// aggregate capacity.
func (c *ClusteredStore[K, V]) Update(ctx context.Context, key K, value V) error {
	if err := checkContext(ctx, "Update", key); err != nil {
		return err
	}
	i := c.Select(key)
	s := c.shards[i]
	has, err := s.Has(ctx, key)
	if err != nil {
		return errors.WrapError("Update", key, err)
	}
	if !has && c.IsFull(ctx) {
		return errors.WrapError("Update", key, errors.ErrOutOfSpace)
	}
	if err := s.Update(ctx, key, value); err != nil {
		return errors.WrapError("Update", key, err)
	}
	if !has {
		c.entries.Add(1)
		c.logger.Debug("stored new key", zap.Any("key", key), zap.Int("shard", i))
	}
	return nil
}

// Delete removes key from its shard
func (c *ClusteredStore[K, V]) Delete(ctx context.Context, key K) error {
	if err := checkContext(ctx, "Delete", key); err != nil {
		return err
	}
	s := c.shard(key)
	has, err := s.Has(ctx, key)
	if err != nil {
		return errors.WrapError("Delete", key, err)
	}
	if !has {
		return nil
	}
	if err := s.Delete(ctx, key); err != nil {
		return errors.WrapError("Delete", key, err)
	}
	c.entries.Add(-1)
	return nil
}

// Has reports whether the shard owning key holds it
func (c *ClusteredStore[K, V]) Has(ctx context.Context, key K) (bool, error) {
	has, err := c.shard(key).Has(ctx, key)
	if err != nil {
		return false, errors.WrapError("Has", key, err)
	}
	return has, nil
}

// Clear clears every shard
func (c *ClusteredStore[K, V]) Clear(ctx context.Context) error {
	if err := checkContext(ctx, "Clear", nil); err != nil {
		return err
	}
	for _, s := range c.shards {
		if err := s.Clear(ctx); err != nil {
			c.entries.Reset(sumEntries(ctx, c.shards))
			return errors.WrapError("Clear", nil, err)
		}
	}
	c.entries.Reset(0)
	return nil
}

// Swap exchanges the values of key1 and key2, writing across shards when
// they hash apart
func (c *ClusteredStore[K, V]) Swap(ctx context.Context, key1, key2 K) error {
	i, j := c.Select(key1), c.Select(key2)
	if i == j {
		return errors.WrapError("Swap", key1, c.shards[i].Swap(ctx, key1, key2))
	}
	return swapAcross(ctx, c.shards[i], c.shards[j], key1, key2)
}

// All iterates the shards in order
func (c *ClusteredStore[K, V]) All(ctx context.Context) iter.Seq2[K, V] {
	return concat(ctx, c.shards)
}
