package store

import (
	"context"
	"iter"

	"github.com/gozephyr/vstorage/errors"
	"github.com/gozephyr/vstorage/internal"
	"go.uber.org/zap"
)

// ReplicatedStore writes every value to all of its unbounded members.
// Reads are served by the first member holding the key; divergence between
// members is only repaired by Synchronise.
type ReplicatedStore[K comparable, V any] struct {
	members  []Store[K, V]
	capacity int
	entries  *internal.Counter
	keys     KeyGenerator[K]
	logger   *zap.Logger
}

// NewReplicatedStore creates a replicated store. Every member must be
// unbounded; WithCapacity bounds the aggregate. The first member is the
// reference for the initial entry count.
func NewReplicatedStore[K comparable, V any](ctx context.Context, members []Store[K, V], opts ...Option) (*ReplicatedStore[K, V], error) {
	if err := checkUnboundedMembers(ctx, "NewReplicatedStore", members); err != nil {
		return nil, err
	}
	options, gen, err := applyOptions[K]("NewReplicatedStore", opts)
	if err != nil {
		return nil, err
	}
	return &ReplicatedStore[K, V]{
		members:  members,
		capacity: options.Capacity,
		entries:  internal.NewCounter(members[0].Entries(ctx)),
		keys:     gen,
		logger:   options.Logger.With(zap.String("store", options.Name)),
	}, nil
}

// Members returns the replicas
func (r *ReplicatedStore[K, V]) Members() []Store[K, V] {
	return r.members
}

// Entries returns the aggregate number of entries
func (r *ReplicatedStore[K, V]) Entries(ctx context.Context) int {
	return r.entries.Get()
}

// Capacity returns the aggregate capacity
func (r *ReplicatedStore[K, V]) Capacity(ctx context.Context) int {
	return r.capacity
}

// IsEmpty reports whether the aggregate has no entries
func (r *ReplicatedStore[K, V]) IsEmpty(ctx context.Context) bool {
	return r.entries.Get() == 0
}

// IsFull reports whether the aggregate has reached its capacity
func (r *ReplicatedStore[K, V]) IsFull(ctx context.Context) bool {
	return isFull(r.entries.Get(), r.capacity)
}

// Create stores value under a generated key
func (r *ReplicatedStore[K, V]) Create(ctx context.Context, value V) (K, error) {
	var zero K
	if r.keys == nil {
		return zero, errors.WrapError("Create", nil, errors.ErrMissingKeyGenerator)
	}
	key, err := generateKey(ctx, r.keys, r.Has)
	if err != nil {
		return zero, err
	}
	if err := r.Update(ctx, key, value); err != nil {
		return zero, err
	}
	return key, nil
}

// Read returns the value from the first member holding key
func (r *ReplicatedStore[K, V]) Read(ctx context.Context, key K) (V, bool, error) {
	var zero V
	for _, m := range r.members {
		value, ok, err := m.Read(ctx, key)
		if err != nil {
			return zero, false, errors.WrapError("Read", key, err)
		}
		if ok {
			return value, true, nil
		}
	}
	return zero, false, nil
}

// Update writes value to every member. The entry is counted once the first
// member has accepted a new key.
func (r *ReplicatedStore[K, V]) Update(ctx context.Context, key K, value V) error {
	if err := checkContext(ctx, "Update", key); err != nil {
		return err
	}
	has, err := r.members[0].Has(ctx, key)
	if err != nil {
		return errors.WrapError("Update", key, err)
	}
	if !has && r.IsFull(ctx) {
		return errors.WrapError("Update", key, errors.ErrOutOfSpace)
	}
	for i, m := range r.members {
		if err := m.Update(ctx, key, value); err != nil {
			return errors.WrapError("Update", key, err)
		}
		if i == 0 && !has {
			r.entries.Add(1)
		}
	}
	return nil
}

// Delete removes key from every member
func (r *ReplicatedStore[K, V]) Delete(ctx context.Context, key K) error {
	if err := checkContext(ctx, "Delete", key); err != nil {
		return err
	}
	has, err := r.members[0].Has(ctx, key)
	if err != nil {
		return errors.WrapError("Delete", key, err)
	}
	for i, m := range r.members {
		if err := m.Delete(ctx, key); err != nil {
			return errors.WrapError("Delete", key, err)
		}
		if i == 0 && has {
			r.entries.Add(-1)
		}
	}
	return nil
}

// Has reports whether any member holds key
func (r *ReplicatedStore[K, V]) Has(ctx context.Context, key K) (bool, error) {
	for _, m := range r.members {
		has, err := m.Has(ctx, key)
		if err != nil {
			return false, errors.WrapError("Has", key, err)
		}
		if has {
			return true, nil
		}
	}
	return false, nil
}

// Clear clears every member
func (r *ReplicatedStore[K, V]) Clear(ctx context.Context) error {
	if err := checkContext(ctx, "Clear", nil); err != nil {
		return err
	}
	for _, m := range r.members {
		if err := m.Clear(ctx); err != nil {
			r.entries.Reset(r.members[0].Entries(ctx))
			return errors.WrapError("Clear", nil, err)
		}
	}
	r.entries.Reset(0)
	return nil
}

// Swap swaps key1 and key2 in every member. Every member is attempted; the
// errors of those that failed are joined.
func (r *ReplicatedStore[K, V]) Swap(ctx context.Context, key1, key2 K) error {
	errs := make([]error, 0, len(r.members))
	for _, m := range r.members {
		if err := m.Swap(ctx, key1, key2); err != nil {
			errs = append(errs, errors.WrapError("Swap", key1, err))
		}
	}
	return errors.Join(errs...)
}

// All iterates the first member
func (r *ReplicatedStore[K, V]) All(ctx context.Context) iter.Seq2[K, V] {
	return r.members[0].All(ctx)
}

// Synchronise repairs the replicas and re-bases the entry count on the
// repaired key set. It returns the number of values copied.
func (r *ReplicatedStore[K, V]) Synchronise(ctx context.Context) (int, error) {
	copies, err := Synchronise(ctx, r.members...)
	r.entries.Reset(r.members[0].Entries(ctx))
	if err != nil {
		r.logger.Warn("synchronise incomplete", zap.Int("copies", copies), zap.Error(err))
		return copies, err
	}
	r.logger.Debug("synchronised replicas", zap.Int("copies", copies))
	return copies, nil
}

// Synchronise copies every key missing from some of stores into them. The
// value copied is the one of the first store, in argument order, that holds
// the key. A copy that fails does not stop the pass; the failures are
// joined. It returns the number of values copied.
func Synchronise[K comparable, V any](ctx context.Context, stores ...Store[K, V]) (int, error) {
	if err := checkContext(ctx, "Synchronise", nil); err != nil {
		return 0, err
	}
	owners := make(map[K]int)
	present := make([]map[K]struct{}, len(stores))
	var order []K
	for i, s := range stores {
		present[i] = make(map[K]struct{}, s.Entries(ctx))
		for k := range s.All(ctx) {
			present[i][k] = struct{}{}
			if _, seen := owners[k]; !seen {
				owners[k] = i
				order = append(order, k)
			}
		}
	}

	copies := 0
	var errs []error
	for _, k := range order {
		owner := owners[k]
		var (
			value  V
			loaded bool
		)
		for i, s := range stores {
			if _, ok := present[i][k]; ok {
				continue
			}
			if !loaded {
				v, ok, err := stores[owner].Read(ctx, k)
				if err != nil {
					errs = append(errs, errors.WrapError("Synchronise", k, err))
					break
				}
				if !ok {
					break
				}
				value, loaded = v, true
			}
			if err := s.Update(ctx, k, value); err != nil {
				errs = append(errs, errors.WrapError("Synchronise", k, err))
				continue
			}
			copies++
		}
	}
	return copies, errors.Join(errs...)
}
