package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gozephyr/vstorage/errors"
	"github.com/gozephyr/vstorage/store"
	"github.com/gozephyr/vstorage/store/storetest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// testRedisClient returns a client on DB 15 of a local server, or skips
// the test when none is reachable
func testRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis is not available for testing:", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func testRedisStore[V any](t *testing.T, client *redis.Client, opts ...store.Option) *store.RedisStore[V] {
	t.Helper()
	key := fmt.Sprintf("test:vstorage:%s:%d", t.Name(), time.Now().UnixNano())
	s, err := store.NewRedisStore[V](client, key, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Del(context.Background(), key) })
	return s
}

type document struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func TestRedisStore(t *testing.T) {
	client := testRedisClient(t)
	ctx := context.Background()

	t.Run("Contract", func(t *testing.T) {
		storetest.Run(t, storetest.Suite{
			New: func(t *testing.T, capacity int) store.Store[string, string] {
				return testRedisStore[string](t, client, store.WithCapacity(capacity), store.WithKeyGenerator(store.UUIDKeys()))
			},
			Bounded: true,
		})
	})

	t.Run("Structured Values", func(t *testing.T) {
		s := testRedisStore[document](t, client)
		doc := document{Title: "t", Tags: []string{"x"}}
		require.NoError(t, s.Update(ctx, "d", doc))

		got, ok, err := s.Read(ctx, "d")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, doc, got)
	})

	t.Run("Swap Missing Key", func(t *testing.T) {
		s := testRedisStore[string](t, client)
		require.NoError(t, s.Update(ctx, "a", "1"))
		err := s.Swap(ctx, "a", "b")
		require.True(t, errors.IsKeyNotFound(err))
	})
}

func TestNewRedisStoreValidation(t *testing.T) {
	_, err := store.NewRedisStore[string](nil, "k")
	require.ErrorIs(t, err, errors.ErrNotAvailableStorage)

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()
	_, err = store.NewRedisStore[string](client, "")
	require.ErrorIs(t, err, errors.ErrInvalidConfiguration)
}
