package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFIFO(t *testing.T) {
	t.Run("Insertion Order", func(t *testing.T) {
		fifo := NewFIFO[string]()
		fifo.OnInsert("key1")
		fifo.OnInsert("key2")
		fifo.OnInsert("key3")

		// neither reads nor rewrites move a key
		fifo.OnAccess("key1")
		fifo.OnInsert("key1")

		key, ok := fifo.Victim()
		require.True(t, ok)
		require.Equal(t, "key1", key)

		key, ok = fifo.Victim()
		require.True(t, ok)
		require.Equal(t, "key2", key)
		require.Equal(t, 1, fifo.Len())
	})

	t.Run("Remove And Clear", func(t *testing.T) {
		fifo := NewFIFO[int]()
		fifo.OnInsert(1)
		fifo.OnInsert(2)
		fifo.OnRemove(1)

		key, ok := fifo.Victim()
		require.True(t, ok)
		require.Equal(t, 2, key)

		fifo.OnInsert(3)
		fifo.OnClear()
		_, ok = fifo.Victim()
		require.False(t, ok)
	})
}
