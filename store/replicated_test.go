package store

import (
	"context"
	"testing"

	"github.com/gozephyr/vstorage/errors"
	"github.com/stretchr/testify/require"
)

func newTestReplicated(t *testing.T, n int, opts ...Option) (*ReplicatedStore[string, string], []Store[string, string]) {
	t.Helper()
	members := make([]Store[string, string], n)
	for i := range members {
		m, err := NewMemoryStore[string, string]()
		require.NoError(t, err)
		members[i] = m
	}
	opts = append([]Option{WithKeyGenerator(UUIDKeys())}, opts...)
	r, err := NewReplicatedStore(context.Background(), members, opts...)
	require.NoError(t, err)
	return r, members
}

func TestReplicatedStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Every Member Holds The Value", func(t *testing.T) {
		r, members := newTestReplicated(t, 3)
		require.NoError(t, r.Update(ctx, "k", "v"))
		for _, m := range members {
			v, ok, err := m.Read(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "v", v)
		}
		require.Equal(t, 1, r.Entries(ctx))

		require.NoError(t, r.Delete(ctx, "k"))
		for _, m := range members {
			require.True(t, m.IsEmpty(ctx))
		}
		require.Equal(t, 0, r.Entries(ctx))
	})

	t.Run("Read Falls Through", func(t *testing.T) {
		r, members := newTestReplicated(t, 2)
		require.NoError(t, members[1].Update(ctx, "only-second", "v"))
		v, ok, err := r.Read(ctx, "only-second")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "v", v)
	})

	t.Run("Synchronise", func(t *testing.T) {
		r, members := newTestReplicated(t, 3)
		key, err := r.Create(ctx, "shared")
		require.NoError(t, err)
		require.NoError(t, members[1].Update(ctx, "drift", "first"))
		require.NoError(t, members[2].Update(ctx, "drift", "second"))
		require.NoError(t, members[2].Update(ctx, "late", "x"))

		copies, err := r.Synchronise(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, copies)

		for _, m := range members {
			v, ok, err := m.Read(ctx, "drift")
			require.NoError(t, err)
			require.True(t, ok)
			if m == members[2] {
				require.Equal(t, "second", v)
			} else {
				require.Equal(t, "first", v)
			}
			has, err := m.Has(ctx, "late")
			require.NoError(t, err)
			require.True(t, has)
			has, err = m.Has(ctx, key)
			require.NoError(t, err)
			require.True(t, has)
		}
		require.Equal(t, 3, r.Entries(ctx))
	})

	t.Run("Synchronise Reports Failed Copies", func(t *testing.T) {
		full, err := NewMemoryStore[string, string](WithCapacity(1))
		require.NoError(t, err)
		require.NoError(t, full.Update(ctx, "a", "1"))
		other, err := NewMemoryStore[string, string]()
		require.NoError(t, err)
		require.NoError(t, other.Update(ctx, "b", "2"))

		copies, err := Synchronise[string, string](ctx, full, other)
		require.Error(t, err)
		require.True(t, errors.IsOutOfSpace(err))
		require.Equal(t, 1, copies)
		has, err := other.Has(ctx, "a")
		require.NoError(t, err)
		require.True(t, has)
	})

	t.Run("Swap Attempts Every Member", func(t *testing.T) {
		r, members := newTestReplicated(t, 2)
		require.NoError(t, r.Update(ctx, "a", "1"))
		require.NoError(t, r.Update(ctx, "b", "2"))
		require.NoError(t, members[0].Delete(ctx, "b"))

		err := r.Swap(ctx, "a", "b")
		require.True(t, errors.IsKeyNotFound(err))
		v, _, err := members[1].Read(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, "2", v)
	})

	t.Run("Aggregate Capacity", func(t *testing.T) {
		r, _ := newTestReplicated(t, 2, WithCapacity(1))
		_, err := r.Create(ctx, "v")
		require.NoError(t, err)
		_, err = r.Create(ctx, "w")
		require.True(t, errors.IsOutOfSpace(err))
		require.Equal(t, 1, r.Entries(ctx))
	})

	t.Run("Invalid Members", func(t *testing.T) {
		_, err := NewReplicatedStore[string, string](ctx, []Store[string, string]{})
		require.ErrorIs(t, err, errors.ErrNotAvailableStorage)
	})
}
