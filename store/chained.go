package store

import (
	"context"
	"iter"

	"github.com/gozephyr/vstorage/errors"
	"github.com/gozephyr/vstorage/internal"
	"go.uber.org/zap"
)

// ChainedStore presents an ordered sequence of bounded members followed by
// one unbounded tail as a single store. New keys go to the first member
// with room; existing keys are never relocated.
type ChainedStore[K comparable, V any] struct {
	members  []Store[K, V]
	capacity int
	entries  *internal.Counter
	keys     KeyGenerator[K]
	logger   *zap.Logger
}

// NewChainedStore creates a chained store. Every member but the last must be
// bounded and the last must be unbounded. WithCapacity bounds the aggregate.
func NewChainedStore[K comparable, V any](ctx context.Context, members []Store[K, V], opts ...Option) (*ChainedStore[K, V], error) {
	if len(members) == 0 {
		return nil, errors.WrapError("NewChainedStore", nil, errors.ErrNotAvailableStorage)
	}
	options, gen, err := applyOptions[K]("NewChainedStore", opts)
	if err != nil {
		return nil, err
	}
	for i, m := range members {
		if m == nil {
			return nil, errors.WrapError("NewChainedStore", i, errors.ErrNotAvailableStorage)
		}
		last := i == len(members)-1
		if (m.Capacity(ctx) == Unbounded) != last {
			return nil, errors.WrapError("NewChainedStore", i, errors.ErrInvalidConfiguration)
		}
	}
	return &ChainedStore[K, V]{
		members:  members,
		capacity: options.Capacity,
		entries:  internal.NewCounter(sumEntries(ctx, members)),
		keys:     gen,
		logger:   options.Logger.With(zap.String("store", options.Name)),
	}, nil
}

// Members returns the member stores in routing order
func (c *ChainedStore[K, V]) Members() []Store[K, V] {
	return c.members
}

// Entries returns the aggregate number of entries
func (c *ChainedStore[K, V]) Entries(ctx context.Context) int {
	return c.entries.Get()
}

// Capacity returns the aggregate capacity
func (c *ChainedStore[K, V]) Capacity(ctx context.Context) int {
	return c.capacity
}

// IsEmpty reports whether the aggregate has no entries
func (c *ChainedStore[K, V]) IsEmpty(ctx context.Context) bool {
	return c.entries.Get() == 0
}

// IsFull reports whether the aggregate has reached its capacity
func (c *ChainedStore[K, V]) IsFull(ctx context.Context) bool {
	return isFull(c.entries.Get(), c.capacity)
}

// owner returns the index of the first member holding key, or -1
func (c *ChainedStore[K, V]) owner(ctx context.Context, key K) (int, error) {
	for i, m := range c.members {
		has, err := m.Has(ctx, key)
		if err != nil {
			return -1, err
		}
		if has {
			return i, nil
		}
	}
	return -1, nil
}

// route returns the index of the first member with room for a new key
func (c *ChainedStore[K, V]) route(ctx context.Context) int {
	for i, m := range c.members {
		if !m.IsFull(ctx) {
			return i
		}
	}
	return -1
}

// Create stores value under a generated key
func (c *ChainedStore[K, V]) Create(ctx context.Context, value V) (K, error) {
	var zero K
	if c.keys == nil {
		return zero, errors.WrapError("Create", nil, errors.ErrMissingKeyGenerator)
	}
	if c.IsFull(ctx) {
		return zero, errors.WrapError("Create", nil, errors.ErrOutOfSpace)
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

// Read returns the value from the first member holding key
func (c *ChainedStore[K, V]) Read(ctx context.Context, key K) (V, bool, error) {
	var zero V
	i, err := c.owner(ctx, key)
	if err != nil {
		return zero, false, errors.WrapError("Read", key, err)
	}
	if i < 0 {
		return zero, false, nil
	}
	value, ok, err := c.members[i].Read(ctx, key)
	if err != nil {
		return zero, false, errors.WrapError("Read", key, err)
	}
	return value, ok, nil
}

// Update replaces key in place in its owning member, or routes a new key to
// the first member that is not full
func (c *ChainedStore[K, V]) Update(ctx context.Context, key K, value V) error {
	if err := checkContext(ctx, "Update", key); err != nil {
		return err
	}
	i, err := c.owner(ctx, key)
	if err != nil {
		return errors.WrapError("Update", key, err)
	}
	if i >= 0 {
		return errors.WrapError("Update", key, c.members[i].Update(ctx, key, value))
	}
	if c.IsFull(ctx) {
		return errors.WrapError("Update", key, errors.ErrOutOfSpace)
	}
	i = c.route(ctx)
	if i < 0 {
		return errors.WrapError("Update", key, errors.ErrIllegalState)
	}
	return c.insert(ctx, i, key, value)
}

// insert writes a new key into member i and counts it
func (c *ChainedStore[K, V]) insert(ctx context.Context, i int, key K, value V) error {
	if err := c.members[i].Update(ctx, key, value); err != nil {
		return errors.WrapError("Update", key, err)
	}
	c.entries.Add(1)
	c.logger.Debug("routed new key", zap.Any("key", key), zap.Int("member", i))
	return nil
}

type chainedWrite[K comparable, V any] struct {
	member int
	entry  Entry[K, V]
	isNew  bool
}

// UpdateAll plans the placement of every entry before writing any of them.
// A batch whose new keys do not fit, in the aggregate or in the members,
// fails with ErrOutOfSpace and leaves the store untouched.
func (c *ChainedStore[K, V]) UpdateAll(ctx context.Context, entries []Entry[K, V]) error {
	if err := checkContext(ctx, "UpdateAll", nil); err != nil {
		return err
	}
	free := make([]int, len(c.members))
	for i, m := range c.members {
		free[i] = freeSlots(m.Entries(ctx), m.Capacity(ctx))
	}
	aggregate := freeSlots(c.entries.Get(), c.capacity)

	placed := make(map[K]int, len(entries))
	plan := make([]chainedWrite[K, V], 0, len(entries))
	for _, e := range entries {
		if i, ok := placed[e.Key]; ok {
			plan = append(plan, chainedWrite[K, V]{member: i, entry: e})
			continue
		}
		i, err := c.owner(ctx, e.Key)
		if err != nil {
			return errors.WrapError("UpdateAll", e.Key, err)
		}
		isNew := i < 0
		if isNew {
			if aggregate == 0 {
				return errors.WrapError("UpdateAll", e.Key, errors.ErrOutOfSpace)
			}
			for j := range free {
				if free[j] != 0 {
					i = j
					break
				}
			}
			if i < 0 {
				return errors.WrapError("UpdateAll", e.Key, errors.ErrIllegalState)
			}
			if free[i] > 0 {
				free[i]--
			}
			if aggregate > 0 {
				aggregate--
			}
		}
		placed[e.Key] = i
		plan = append(plan, chainedWrite[K, V]{member: i, entry: e, isNew: isNew})
	}

	for _, w := range plan {
		if w.isNew {
			if err := c.insert(ctx, w.member, w.entry.Key, w.entry.Value); err != nil {
				return errors.WrapError("UpdateAll", w.entry.Key, err)
			}
			continue
		}
		if err := c.members[w.member].Update(ctx, w.entry.Key, w.entry.Value); err != nil {
			return errors.WrapError("UpdateAll", w.entry.Key, err)
		}
	}
	return nil
}

// Delete removes key from the first member holding it
func (c *ChainedStore[K, V]) Delete(ctx context.Context, key K) error {
	if err := checkContext(ctx, "Delete", key); err != nil {
		return err
	}
	i, err := c.owner(ctx, key)
	if err != nil {
		return errors.WrapError("Delete", key, err)
	}
	if i < 0 {
		return nil
	}
	if err := c.members[i].Delete(ctx, key); err != nil {
		return errors.WrapError("Delete", key, err)
	}
	c.entries.Add(-1)
	return nil
}

// Has reports whether any member holds key
func (c *ChainedStore[K, V]) Has(ctx context.Context, key K) (bool, error) {
	i, err := c.owner(ctx, key)
	if err != nil {
		return false, errors.WrapError("Has", key, err)
	}
	return i >= 0, nil
}

// Clear clears every member
func (c *ChainedStore[K, V]) Clear(ctx context.Context) error {
	if err := checkContext(ctx, "Clear", nil); err != nil {
		return err
	}
	for _, m := range c.members {
		if err := m.Clear(ctx); err != nil {
			c.entries.Reset(sumEntries(ctx, c.members))
			return errors.WrapError("Clear", nil, err)
		}
	}
	c.entries.Reset(0)
	return nil
}

// Swap exchanges the values of key1 and key2. Keys owned by different
// members stay where they are; only the values cross.
func (c *ChainedStore[K, V]) Swap(ctx context.Context, key1, key2 K) error {
	i, err := c.owner(ctx, key1)
	if err != nil {
		return errors.WrapError("Swap", key1, err)
	}
	if i < 0 {
		return errors.WrapError("Swap", key1, errors.ErrKeyNotFound)
	}
	j, err := c.owner(ctx, key2)
	if err != nil {
		return errors.WrapError("Swap", key2, err)
	}
	if j < 0 {
		return errors.WrapError("Swap", key2, errors.ErrKeyNotFound)
	}
	if i == j {
		return errors.WrapError("Swap", key1, c.members[i].Swap(ctx, key1, key2))
	}
	return swapAcross(ctx, c.members[i], c.members[j], key1, key2)
}

// All iterates the members in order, moving to the next member only when
// the current one is exhausted
func (c *ChainedStore[K, V]) All(ctx context.Context) iter.Seq2[K, V] {
	return concat(ctx, c.members)
}

// swapAcross exchanges the values of key1 held by s1 and key2 held by a
// different store s2
func swapAcross[K comparable, V any](ctx context.Context, s1, s2 Store[K, V], key1, key2 K) error {
	v1, ok, err := s1.Read(ctx, key1)
	if err != nil {
		return errors.WrapError("Swap", key1, err)
	}
	if !ok {
		return errors.WrapError("Swap", key1, errors.ErrKeyNotFound)
	}
	v2, ok, err := s2.Read(ctx, key2)
	if err != nil {
		return errors.WrapError("Swap", key2, err)
	}
	if !ok {
		return errors.WrapError("Swap", key2, errors.ErrKeyNotFound)
	}
	if err := s1.Update(ctx, key1, v2); err != nil {
		return errors.WrapError("Swap", key1, err)
	}
	if err := s2.Update(ctx, key2, v1); err != nil {
		return errors.WrapError("Swap", key2, err)
	}
	return nil
}

// concat chains the sequences of members lazily
func concat[K comparable, V any](ctx context.Context, members []Store[K, V]) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, m := range members {
			for k, v := range m.All(ctx) {
				if !yield(k, v) {
					return
				}
			}
		}
	}
}

// sumEntries adds up member entry counts. Composites only use it at
// construction and to recover from a partially failed Clear.
func sumEntries[K comparable, V any](ctx context.Context, members []Store[K, V]) int {
	total := 0
	for _, m := range members {
		total += m.Entries(ctx)
	}
	return total
}
