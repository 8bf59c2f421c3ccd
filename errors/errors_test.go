package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorageErrorBasics(t *testing.T) {
	err := errors.New("base error")
	se := &StorageError{
		Op:      "Read",
		Key:     "foo",
		Err:     err,
		ErrType: ErrorTypeStorage,
	}
	require.Contains(t, se.Error(), "Read")
	require.Contains(t, se.Error(), "foo")
	require.Contains(t, se.Error(), "base error")
	require.Equal(t, err, se.Unwrap())

	se2 := &StorageError{
		Op:      "Read",
		Key:     "foo",
		Err:     err,
		ErrType: ErrorTypeStorage,
	}
	require.True(t, se.Is(se2))

	noKey := &StorageError{Op: "Clear", Err: err, ErrType: ErrorTypeIO}
	require.Equal(t, "io: Clear: base error", noKey.Error())
}

func TestWrapErrorAndTypeChecks(t *testing.T) {
	ResetErrorMetrics()
	wrapped := WrapError("Swap", "bar", ErrKeyNotFound)
	require.Error(t, wrapped)
	se, ok := wrapped.(*StorageError)
	require.True(t, ok)
	require.Equal(t, ErrorTypeStorage, se.ErrType)
	require.Equal(t, "Swap", se.Op)
	require.Equal(t, "bar", se.Key)
	require.True(t, errors.Is(wrapped, ErrKeyNotFound))
	require.True(t, IsKeyNotFound(wrapped))

	require.True(t, IsStorageError(wrapped))
	require.NotNil(t, GetStorageError(wrapped))
	require.True(t, IsErrorType(wrapped, ErrorTypeStorage))

	require.NoError(t, WrapError("Read", "k", nil))
}

func TestWrapErrorDoesNotNest(t *testing.T) {
	inner := WrapError("Update", "k", ErrOutOfSpace)
	outer := WrapError("Create", nil, inner)
	require.Same(t, GetStorageError(inner), GetStorageError(outer))
	require.True(t, IsOutOfSpace(outer))

	viaFmt := fmt.Errorf("member 1: %w", inner)
	require.True(t, IsStorageError(viaFmt))
	require.True(t, IsOutOfSpace(viaFmt))
}

func TestErrorTypes(t *testing.T) {
	require.True(t, IsErrorType(WrapError("New", nil, ErrNotAvailableStorage), ErrorTypeConfiguration))
	require.True(t, IsErrorType(WrapError("New", nil, ErrIllegalState), ErrorTypeConfiguration))
	require.True(t, IsErrorType(WrapError("Read", "k", ErrDeserialization), ErrorTypeIO))
	require.True(t, IsErrorType(WrapError("Read", "k", ErrContextCanceled), ErrorTypeOperation))
	require.True(t, IsContextCanceled(WrapError("Read", "k", ErrContextCanceled)))
}

func TestErrorMetrics(t *testing.T) {
	ResetErrorMetrics()
	_ = WrapError("Update", "baz", ErrOutOfSpace)
	_ = WrapError("New", nil, ErrInvalidConfiguration)
	_ = WrapError("Update", "baz", ErrStoreError)
	_ = WrapError("Update", "baz", ErrInvalidOperation)
	m := GetErrorMetrics()
	require.Equal(t, int64(1), m.StorageErrors.Load())
	require.Equal(t, int64(1), m.ConfigurationErrors.Load())
	require.Equal(t, int64(1), m.IOErrors.Load())
	require.Equal(t, int64(1), m.OperationErrors.Load())

	ResetErrorMetrics()
	m = GetErrorMetrics()
	require.Equal(t, int64(0), m.StorageErrors.Load())
	require.Equal(t, int64(0), m.ConfigurationErrors.Load())
	require.Equal(t, int64(0), m.IOErrors.Load())
	require.Equal(t, int64(0), m.OperationErrors.Load())
}

func TestJoin(t *testing.T) {
	require.NoError(t, Join(nil, nil))

	joined := Join(nil, WrapError("Swap", "a", ErrKeyNotFound), WrapError("Swap", "b", ErrStoreError))
	require.Error(t, joined)
	require.True(t, IsKeyNotFound(joined))
	require.True(t, errors.Is(joined, ErrStoreError))
	require.True(t, IsStorageError(joined))
}
