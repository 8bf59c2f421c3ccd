package store

import (
	"context"
	"testing"
	"time"

	"github.com/gozephyr/vstorage/metrics"
	"github.com/gozephyr/vstorage/policy"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestLRUStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Evicts Least Recently Used", func(t *testing.T) {
		s, err := NewLRUStore[string, string](WithCapacity(2))
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, "key1", "value1"))
		require.NoError(t, s.Update(ctx, "key2", "value2"))

		_, ok, err := s.Read(ctx, "key2")
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, s.Update(ctx, "key3", "value3"))

		has, err := s.Has(ctx, "key1")
		require.NoError(t, err)
		require.False(t, has)
		has, err = s.Has(ctx, "key2")
		require.NoError(t, err)
		require.True(t, has)
		require.Equal(t, 2, s.Entries(ctx))
	})

	t.Run("Read Refreshes Recency", func(t *testing.T) {
		s, err := NewLRUStore[string, int](WithCapacity(2))
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, "a", 1))
		require.NoError(t, s.Update(ctx, "b", 2))
		_, _, err = s.Read(ctx, "a")
		require.NoError(t, err)

		require.NoError(t, s.Update(ctx, "c", 3))
		require.Equal(t, []string{"a", "c"}, Keys[string, int](ctx, s))
	})

	t.Run("Has Is Not A Use", func(t *testing.T) {
		s, err := NewLRUStore[string, int](WithCapacity(2))
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, "a", 1))
		require.NoError(t, s.Update(ctx, "b", 2))
		_, err = s.Has(ctx, "a")
		require.NoError(t, err)

		require.NoError(t, s.Update(ctx, "c", 3))
		has, err := s.Has(ctx, "a")
		require.NoError(t, err)
		require.False(t, has)
	})

	t.Run("FIFO Policy", func(t *testing.T) {
		s, err := NewLRUStore[string, int](WithCapacity(2), WithEvictionPolicy(policy.KindFIFO))
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, "a", 1))
		require.NoError(t, s.Update(ctx, "b", 2))
		_, _, err = s.Read(ctx, "a")
		require.NoError(t, err)

		require.NoError(t, s.Update(ctx, "c", 3))
		require.Equal(t, []string{"b", "c"}, Keys[string, int](ctx, s))
	})

	t.Run("LFU Policy", func(t *testing.T) {
		s, err := NewLRUStore[string, int](WithCapacity(2), WithEvictionPolicy(policy.KindLFU))
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, "a", 1))
		require.NoError(t, s.Update(ctx, "b", 2))
		for i := 0; i < 3; i++ {
			_, _, err = s.Read(ctx, "b")
			require.NoError(t, err)
		}

		require.NoError(t, s.Update(ctx, "c", 3))
		require.Equal(t, []string{"b", "c"}, Keys[string, int](ctx, s))
	})

	t.Run("Retention", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		s, err := NewLRUStore[string, string](WithRetention(time.Minute), WithClock(clock.Now))
		require.NoError(t, err)
		require.Equal(t, time.Minute, s.Retention())
		require.NoError(t, s.Update(ctx, "old", "v"))

		clock.Advance(30 * time.Second)
		require.NoError(t, s.Update(ctx, "young", "v"))

		clock.Advance(time.Minute)
		// expired entries still count until noticed
		require.Equal(t, 2, s.Entries(ctx))

		_, ok, err := s.Read(ctx, "old")
		require.NoError(t, err)
		require.False(t, ok)
		require.Equal(t, 1, s.Entries(ctx))

		has, err := s.Has(ctx, "young")
		require.NoError(t, err)
		require.True(t, has)
	})

	t.Run("Update Restarts Retention", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		s, err := NewLRUStore[string, string](WithRetention(time.Minute), WithClock(clock.Now))
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, "k", "v1"))
		clock.Advance(50 * time.Second)
		require.NoError(t, s.Update(ctx, "k", "v2"))
		clock.Advance(50 * time.Second)

		v, ok, err := s.Read(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "v2", v)
	})

	t.Run("Purge", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		counters := metrics.NewCounters()
		s, err := NewLRUStore[int, int](
			WithRetention(time.Second),
			WithClock(clock.Now),
			WithMetrics(counters),
		)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			require.NoError(t, s.Update(ctx, i, i))
		}
		clock.Advance(2 * time.Second)
		require.NoError(t, s.Update(ctx, 99, 99))

		// iteration skips expired entries without evicting them
		require.Equal(t, []int{99}, Keys[int, int](ctx, s))
		require.Equal(t, 6, s.Entries(ctx))

		require.Equal(t, 5, s.Purge(ctx))
		require.Equal(t, 1, s.Entries(ctx))
		snap := counters.GetSnapshot()
		require.Equal(t, int64(5), snap.Evictions)
		require.Equal(t, int64(1), snap.Size)
	})

	t.Run("Capacity Evictions Are Counted", func(t *testing.T) {
		counters := metrics.NewCounters()
		s, err := NewLRUStore[int, int](WithCapacity(3), WithMetrics(counters))
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			require.NoError(t, s.Update(ctx, i, i))
		}
		require.Equal(t, 3, s.Entries(ctx))
		require.Equal(t, int64(7), counters.GetSnapshot().Evictions)
		require.Equal(t, []int{7, 8, 9}, Keys[int, int](ctx, s))
	})

	t.Run("Swap Keeps Recency Per Key", func(t *testing.T) {
		s, err := NewLRUStore[string, int](WithCapacity(3))
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, "a", 1))
		require.NoError(t, s.Update(ctx, "b", 2))
		require.NoError(t, s.Swap(ctx, "a", "b"))

		v, _, err := s.Read(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, 2, v)
		v, _, err = s.Read(ctx, "b")
		require.NoError(t, err)
		require.Equal(t, 1, v)
	})
}
