// Package storetest provides the behaviour every store.Store implementation
// shares, as a reusable test suite.
package storetest

import (
	"context"
	"testing"

	"github.com/gozephyr/vstorage/errors"
	"github.com/gozephyr/vstorage/store"
	"github.com/stretchr/testify/require"
)

// Factory creates an empty store with a key generator. capacity is either
// store.Unbounded or a small positive ceiling.
type Factory func(t *testing.T, capacity int) store.Store[string, string]

// Suite describes the store under test
type Suite struct {
	New Factory
	// Bounded is set when New honours a finite capacity
	Bounded bool
	// Evicting is set for stores that make room instead of failing when full
	Evicting bool
}

// Run runs the shared behaviour tests against the store built by s.New
func Run(t *testing.T, s Suite) {
	ctx := context.Background()

	t.Run("Round Trip", func(t *testing.T) {
		st := s.New(t, store.Unbounded)
		for _, v := range []string{"value", ""} {
			key, err := st.Create(ctx, v)
			require.NoError(t, err)

			got, ok, err := st.Read(ctx, key)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, v, got)

			has, err := st.Has(ctx, key)
			require.NoError(t, err)
			require.True(t, has)
		}
		require.Equal(t, 2, st.Entries(ctx))
	})

	t.Run("Absent Key", func(t *testing.T) {
		st := s.New(t, store.Unbounded)
		_, ok, err := st.Read(ctx, "missing")
		require.NoError(t, err)
		require.False(t, ok)

		has, err := st.Has(ctx, "missing")
		require.NoError(t, err)
		require.False(t, has)

		require.NoError(t, st.Delete(ctx, "missing"))
		require.True(t, st.IsEmpty(ctx))
	})

	t.Run("Update And Delete", func(t *testing.T) {
		st := s.New(t, store.Unbounded)
		require.NoError(t, st.Update(ctx, "k", "v1"))
		require.NoError(t, st.Update(ctx, "k", "v2"))
		require.Equal(t, 1, st.Entries(ctx))

		got, ok, err := st.Read(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "v2", got)

		require.NoError(t, st.Delete(ctx, "k"))
		has, err := st.Has(ctx, "k")
		require.NoError(t, err)
		require.False(t, has)
		require.Equal(t, 0, st.Entries(ctx))
	})

	t.Run("Swap Symmetry", func(t *testing.T) {
		st := s.New(t, store.Unbounded)
		keys := make([]string, 0, 8)
		for _, v := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
			key, err := st.Create(ctx, v)
			require.NoError(t, err)
			keys = append(keys, key)
		}
		k1, k2 := keys[0], keys[len(keys)-1]

		require.NoError(t, st.Swap(ctx, k1, k2))
		requireValue(t, st, k1, "h")
		requireValue(t, st, k2, "a")

		require.NoError(t, st.Swap(ctx, k1, k2))
		requireValue(t, st, k1, "a")
		requireValue(t, st, k2, "h")
		require.Equal(t, len(keys), st.Entries(ctx))
	})

	t.Run("Swap Missing Key", func(t *testing.T) {
		st := s.New(t, store.Unbounded)
		key, err := st.Create(ctx, "v")
		require.NoError(t, err)

		err = st.Swap(ctx, key, "missing")
		require.Error(t, err)
		require.True(t, errors.IsKeyNotFound(err))
		requireValue(t, st, key, "v")
	})

	t.Run("Iteration", func(t *testing.T) {
		st := s.New(t, store.Unbounded)
		want := map[string]string{}
		for _, v := range []string{"one", "two", "three"} {
			key, err := st.Create(ctx, v)
			require.NoError(t, err)
			want[key] = v
		}

		got := map[string]string{}
		for k, v := range st.All(ctx) {
			_, dup := got[k]
			require.False(t, dup, "key %q yielded twice", k)
			got[k] = v
		}
		require.Equal(t, want, got)

		// stops early without panicking
		n := 0
		for range st.All(ctx) {
			n++
			break
		}
		require.Equal(t, 1, n)
	})

	t.Run("Clear", func(t *testing.T) {
		st := s.New(t, store.Unbounded)
		for _, v := range []string{"x", "y"} {
			_, err := st.Create(ctx, v)
			require.NoError(t, err)
		}
		require.False(t, st.IsEmpty(ctx))
		require.NoError(t, st.Clear(ctx))
		require.True(t, st.IsEmpty(ctx))
		require.Equal(t, 0, st.Entries(ctx))
		for range st.All(ctx) {
			t.Fatal("cleared store yielded an entry")
		}
	})

	if !s.Bounded {
		return
	}

	t.Run("Capacity", func(t *testing.T) {
		const capacity = 3
		st := s.New(t, capacity)
		require.Equal(t, capacity, st.Capacity(ctx))

		keys := make([]string, 0, capacity)
		for i := 0; i < capacity; i++ {
			require.False(t, st.IsFull(ctx))
			key, err := st.Create(ctx, "v")
			require.NoError(t, err)
			keys = append(keys, key)
		}
		require.Equal(t, capacity, st.Entries(ctx))
		require.True(t, st.IsFull(ctx))

		// replacing an existing key never needs room
		require.NoError(t, st.Update(ctx, keys[0], "replaced"))
		require.Equal(t, capacity, st.Entries(ctx))

		if s.Evicting {
			_, err := st.Create(ctx, "extra")
			require.NoError(t, err)
			require.Equal(t, capacity, st.Entries(ctx))
			return
		}

		_, err := st.Create(ctx, "extra")
		require.Error(t, err)
		require.True(t, errors.IsOutOfSpace(err))
		require.Equal(t, capacity, st.Entries(ctx))

		err = st.Update(ctx, "new-key", "extra")
		require.Error(t, err)
		require.True(t, errors.IsOutOfSpace(err))
		require.Equal(t, capacity, st.Entries(ctx))

		require.NoError(t, st.Delete(ctx, keys[1]))
		require.False(t, st.IsFull(ctx))
		require.NoError(t, st.Update(ctx, "new-key", "fits"))
		require.True(t, st.IsFull(ctx))
	})

	t.Run("Batch Does Not Fit", func(t *testing.T) {
		if s.Evicting {
			t.Skip("evicting stores make room for any batch")
		}
		st := s.New(t, 2)
		require.NoError(t, st.Update(ctx, "a", "1"))

		err := store.UpdateAll(ctx, st, []store.Entry[string, string]{
			{Key: "a", Value: "2"},
			{Key: "b", Value: "2"},
			{Key: "c", Value: "2"},
		})
		require.Error(t, err)
		require.True(t, errors.IsOutOfSpace(err))
		requireValue(t, st, "a", "1")
		require.Equal(t, 1, st.Entries(ctx))

		require.NoError(t, store.UpdateAll(ctx, st, []store.Entry[string, string]{
			{Key: "a", Value: "2"},
			{Key: "b", Value: "2"},
		}))
		require.Equal(t, 2, st.Entries(ctx))
		requireValue(t, st, "a", "2")
	})
}

func requireValue(t *testing.T, st store.Store[string, string], key, want string) {
	t.Helper()
	got, ok, err := st.Read(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok, "key %q is absent", key)
	require.Equal(t, want, got)
}
