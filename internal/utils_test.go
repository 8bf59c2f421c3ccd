package internal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	t.Run("Basic Operations", func(t *testing.T) {
		counter := NewCounter(2)
		require.Equal(t, 2, counter.Get())

		counter.Add(1)
		require.Equal(t, 3, counter.Get())

		counter.Add(-2)
		require.Equal(t, 1, counter.Get())

		counter.Reset(0)
		require.Equal(t, 0, counter.Get())
	})

	t.Run("Never Below Zero", func(t *testing.T) {
		counter := NewCounter(0)
		counter.Add(-1)
		require.Equal(t, 0, counter.Get())
	})

	t.Run("Concurrent Operations", func(t *testing.T) {
		counter := NewCounter(0)
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				counter.Add(1)
			}()
		}
		wg.Wait()
		require.Equal(t, 100, counter.Get())
	})
}

func TestIsZero(t *testing.T) {
	require.True(t, IsZero(""))
	require.True(t, IsZero(0))
	require.False(t, IsZero("a"))
	require.False(t, IsZero(7))

	var p *int
	require.True(t, IsZero(p))
}

type point struct{ X, Y int }

func TestHash(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		require.Equal(t, Hash("key1"), Hash("key1"))
		require.Equal(t, Hash(42), Hash(42))
		require.Equal(t, Hash(point{1, 2}), Hash(point{1, 2}))
	})

	t.Run("Distinguishes Keys", func(t *testing.T) {
		require.NotEqual(t, Hash("key1"), Hash("key2"))
		require.NotEqual(t, Hash(1), Hash(2))
	})

	t.Run("Spreads Keys", func(t *testing.T) {
		buckets := make(map[uint32]int)
		for i := 0; i < 1000; i++ {
			buckets[Hash(i)%4]++
		}
		require.Len(t, buckets, 4)
	})
}
