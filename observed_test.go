package vstorage

import (
	"context"
	"testing"

	"github.com/gozephyr/vstorage/errors"
	"github.com/gozephyr/vstorage/store"
	"github.com/stretchr/testify/require"
)

func TestObserved(t *testing.T) {
	ctx := context.Background()

	newObserved := func(t *testing.T, capacity int) (*Observed[string, string], *[]Event[string, string]) {
		t.Helper()
		mem, err := store.NewMemoryStore[string, string](
			store.WithCapacity(capacity), store.WithKeyGenerator(store.UUIDKeys()))
		require.NoError(t, err)
		o := Observe[string, string](mem)
		var events []Event[string, string]
		o.OnEvent(func(e Event[string, string]) {
			events = append(events, e)
		})
		return o, &events
	}

	t.Run("Mutations Emit Events", func(t *testing.T) {
		o, events := newObserved(t, store.Unbounded)
		key, err := o.Create(ctx, "v1")
		require.NoError(t, err)
		require.NoError(t, o.Update(ctx, "other", "v2"))
		require.NoError(t, o.Swap(ctx, key, "other"))
		require.NoError(t, o.Delete(ctx, key))
		require.NoError(t, o.Clear(ctx))

		types := make([]EventType, 0, len(*events))
		for _, e := range *events {
			types = append(types, e.Type)
			require.False(t, e.Timestamp.IsZero())
		}
		require.Equal(t, []EventType{
			EventTypeCreate, EventTypeUpdate, EventTypeSwap, EventTypeDelete, EventTypeClear,
		}, types)

		require.Equal(t, key, (*events)[0].Key)
		require.Equal(t, "v1", (*events)[0].Value)
		require.Equal(t, "other", (*events)[2].Other)
	})

	t.Run("Reads Emit Nothing", func(t *testing.T) {
		o, events := newObserved(t, store.Unbounded)
		_, _, err := o.Read(ctx, "missing")
		require.NoError(t, err)
		_, err = o.Has(ctx, "missing")
		require.NoError(t, err)
		require.NoError(t, o.Delete(ctx, "missing"))
		require.Empty(t, *events)
	})

	t.Run("Failures Emit Nothing", func(t *testing.T) {
		o, events := newObserved(t, 1)
		_, err := o.Create(ctx, "v")
		require.NoError(t, err)

		_, err = o.Create(ctx, "v")
		require.True(t, errors.IsOutOfSpace(err))
		err = o.Swap(ctx, "a", "b")
		require.True(t, errors.IsKeyNotFound(err))
		require.Len(t, *events, 1)
	})

	t.Run("Batch Updates", func(t *testing.T) {
		o, events := newObserved(t, 2)
		entries := []store.Entry[string, string]{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}
		require.NoError(t, store.UpdateAll(ctx, o, entries))
		require.Len(t, *events, 2)

		err := store.UpdateAll(ctx, o, []store.Entry[string, string]{{Key: "c", Value: "3"}})
		require.True(t, errors.IsOutOfSpace(err))
		require.Len(t, *events, 2)
	})

	t.Run("Event Type Names", func(t *testing.T) {
		require.Equal(t, "create", EventTypeCreate.String())
		require.Equal(t, "swap", EventTypeSwap.String())
		require.Equal(t, "unknown", EventType(42).String())
	})
}
