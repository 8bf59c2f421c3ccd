package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"iter"

	"github.com/gozephyr/vstorage/codec"
	"github.com/gozephyr/vstorage/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisScanCount is the HSCAN page size used by All
const redisScanCount = 128

// RedisStore keeps its entries as the fields of one Redis hash. Values are
// encoded with the store's codec. Several stores can share a server as long
// as their hash keys differ.
type RedisStore[V any] struct {
	client   redis.UniversalClient
	key      string
	capacity int
	keys     KeyGenerator[string]
	codec    *codec.Codec[V]
	logger   *zap.Logger
}

// NewRedisStore creates a store backed by the hash key on client
func NewRedisStore[V any](client redis.UniversalClient, key string, opts ...Option) (*RedisStore[V], error) {
	if client == nil {
		return nil, errors.WrapError("NewRedisStore", nil, errors.ErrNotAvailableStorage)
	}
	if key == "" {
		return nil, errors.WrapError("NewRedisStore", nil, errors.ErrInvalidConfiguration)
	}
	options, gen, err := applyOptions[string]("NewRedisStore", opts)
	if err != nil {
		return nil, err
	}
	return &RedisStore[V]{
		client:   client,
		key:      key,
		capacity: options.Capacity,
		keys:     gen,
		codec:    codec.New[V](options.Codec),
		logger:   options.Logger.With(zap.String("store", options.Name), zap.String("hash", key)),
	}, nil
}

// redisError translates a client error. redis.Nil never reaches it.
func redisError(op string, key any, err error) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.WrapError(op, key, errors.ErrContextCanceled)
	}
	return errors.WrapError(op, key, fmt.Errorf("%w: %v", errors.ErrStoreConnection, err))
}

// Key returns the hash key
func (r *RedisStore[V]) Key() string {
	return r.key
}

// Entries returns the number of fields of the hash. A failed lookup is
// logged and reported as 0.
func (r *RedisStore[V]) Entries(ctx context.Context) int {
	n, err := r.client.HLen(ctx, r.key).Result()
	if err != nil {
		r.logger.Warn("counting entries failed", zap.Error(err))
		return 0
	}
	return int(n)
}

// Capacity returns the entry ceiling
func (r *RedisStore[V]) Capacity(ctx context.Context) int {
	return r.capacity
}

// IsEmpty reports whether the hash has no fields
func (r *RedisStore[V]) IsEmpty(ctx context.Context) bool {
	return r.Entries(ctx) == 0
}

// IsFull reports whether the hash has reached the capacity
func (r *RedisStore[V]) IsFull(ctx context.Context) bool {
	if r.capacity == Unbounded {
		return false
	}
	return isFull(r.Entries(ctx), r.capacity)
}

// Create stores value under a generated key
func (r *RedisStore[V]) Create(ctx context.Context, value V) (string, error) {
	if r.keys == nil {
		return "", errors.WrapError("Create", nil, errors.ErrMissingKeyGenerator)
	}
	if r.IsFull(ctx) {
		return "", errors.WrapError("Create", nil, errors.ErrOutOfSpace)
	}
	key, err := generateKey(ctx, r.keys, r.Has)
	if err != nil {
		return "", err
	}
	if err := r.Update(ctx, key, value); err != nil {
		return "", err
	}
	return key, nil
}

// Read returns the value of field key
func (r *RedisStore[V]) Read(ctx context.Context, key string) (V, bool, error) {
	var zero V
	data, err := r.client.HGet(ctx, r.key, key).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		return zero, false, redisError("Read", key, err)
	}
	value, err := r.codec.Decode(data)
	if err != nil {
		return zero, false, errors.WrapError("Read", key, err)
	}
	return value, true, nil
}

// Update sets field key. The capacity check and the write are separate
// round trips, so concurrent writers can overshoot a bounded store.
func (r *RedisStore[V]) Update(ctx context.Context, key string, value V) error {
	if r.capacity != Unbounded {
		has, err := r.Has(ctx, key)
		if err != nil {
			return err
		}
		if !has && r.IsFull(ctx) {
			return errors.WrapError("Update", key, errors.ErrOutOfSpace)
		}
	}
	data, err := r.codec.Encode(value)
	if err != nil {
		return errors.WrapError("Update", key, err)
	}
	if err := r.client.HSet(ctx, r.key, key, data).Err(); err != nil {
		return redisError("Update", key, err)
	}
	return nil
}

// Delete removes field key
func (r *RedisStore[V]) Delete(ctx context.Context, key string) error {
	if err := r.client.HDel(ctx, r.key, key).Err(); err != nil {
		return redisError("Delete", key, err)
	}
	return nil
}

// Has reports whether field key exists
func (r *RedisStore[V]) Has(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.HExists(ctx, r.key, key).Result()
	if err != nil {
		return false, redisError("Has", key, err)
	}
	return ok, nil
}

// Clear deletes the hash
func (r *RedisStore[V]) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return redisError("Clear", nil, err)
	}
	return nil
}

// Swap exchanges two fields in one transaction. The hash is watched, so a
// concurrent change aborts the swap with ErrStoreError.
func (r *RedisStore[V]) Swap(ctx context.Context, key1, key2 string) error {
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		values, err := tx.HMGet(ctx, r.key, key1, key2).Result()
		if err != nil {
			return err
		}
		if values[0] == nil {
			return errors.WrapError("Swap", key1, errors.ErrKeyNotFound)
		}
		if values[1] == nil {
			return errors.WrapError("Swap", key2, errors.ErrKeyNotFound)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.key, key1, values[1], key2, values[0])
			return nil
		})
		return err
	}, r.key)
	switch {
	case err == nil:
		return nil
	case errors.IsStorageError(err):
		return err
	case stderrors.Is(err, redis.TxFailedErr):
		return errors.WrapError("Swap", key1, errors.ErrStoreError)
	default:
		return redisError("Swap", key1, err)
	}
}

// All scans the hash. Fields whose value cannot be decoded are logged and
// skipped. Redis may return a field more than once if the hash is modified
// during the scan.
func (r *RedisStore[V]) All(ctx context.Context) iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		var cursor uint64
		for {
			page, next, err := r.client.HScan(ctx, r.key, cursor, "", redisScanCount).Result()
			if err != nil {
				r.logger.Warn("scanning entries failed", zap.Error(err))
				return
			}
			for i := 0; i+1 < len(page); i += 2 {
				value, err := r.codec.Decode([]byte(page[i+1]))
				if err != nil {
					r.logger.Warn("skipping unreadable entry", zap.String("field", page[i]), zap.Error(err))
					continue
				}
				if !yield(page[i], value) {
					return
				}
			}
			if next == 0 {
				return
			}
			cursor = next
		}
	}
}
