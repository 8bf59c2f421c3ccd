package store

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gozephyr/vstorage/errors"
)

// KeyGenerator produces a new key on every call
type KeyGenerator[K comparable] func() K

// maxKeyAttempts bounds how often Create retries a generated key that is
// already taken, e.g. because a caller used Update with the same key.
const maxKeyAttempts = 16

// UUIDKeys generates random UUID strings
func UUIDKeys() KeyGenerator[string] {
	return func() string {
		return uuid.NewString()
	}
}

// Integer is the constraint of SequentialKeys
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// SequentialKeys generates 1, 2, 3, ... It is safe for concurrent use.
func SequentialKeys[K Integer]() KeyGenerator[K] {
	var next atomic.Uint64
	return func() K {
		return K(next.Add(1))
	}
}

// PrefixedKeys generates prefix-1, prefix-2, ...
func PrefixedKeys(prefix string) KeyGenerator[string] {
	seq := SequentialKeys[uint64]()
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, seq())
	}
}

// generateKey returns a generated key that has no entry yet
func generateKey[K comparable](ctx context.Context, gen KeyGenerator[K], has func(context.Context, K) (bool, error)) (K, error) {
	var zero K
	if gen == nil {
		return zero, errors.WrapError("Create", nil, errors.ErrMissingKeyGenerator)
	}
	for i := 0; i < maxKeyAttempts; i++ {
		key := gen()
		taken, err := has(ctx, key)
		if err != nil {
			return zero, errors.WrapError("Create", key, err)
		}
		if !taken {
			return key, nil
		}
	}
	return zero, errors.WrapError("Create", nil, errors.ErrIllegalState)
}
