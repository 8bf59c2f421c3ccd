// Package errors provides error kinds and utilities for the storage packages.
package errors

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeStorage represents capacity and key lookup errors raised by a store
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeConfiguration represents construction-time errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeIO represents failures of file or network backed stores
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeOperation represents any other operation error
	ErrorTypeOperation ErrorType = "operation"
)

// Common error kinds
var (
	// Storage errors
	ErrOutOfSpace          = errors.New("out of space")
	ErrKeyNotFound         = errors.New("key not found")
	ErrMissingKeyGenerator = errors.New("no key generator configured")

	// Configuration errors
	ErrNotAvailableStorage  = errors.New("no member storage available")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrIllegalState         = errors.New("illegal state")
	ErrInvalidCapacity      = fmt.Errorf("%w: capacity must be greater than 0", ErrInvalidConfiguration)
	ErrInvalidRetention     = fmt.Errorf("%w: retention cannot be negative", ErrInvalidConfiguration)

	// IO errors
	ErrStoreError      = errors.New("store operation failed")
	ErrStoreConnection = errors.New("store connection failed")
	ErrSerialization   = errors.New("serialization error")
	ErrDeserialization = errors.New("deserialization error")

	// Operation errors
	ErrContextCanceled  = errors.New("operation canceled by context")
	ErrInvalidOperation = errors.New("invalid operation")
)

// StorageError represents a storage operation error
type StorageError struct {
	Op      string
	Key     any
	Err     error
	ErrType ErrorType
}

// determineErrorType determines the error type based on the error
func determineErrorType(err error) ErrorType {
	switch {
	case errors.Is(err, ErrOutOfSpace) || errors.Is(err, ErrKeyNotFound) ||
		errors.Is(err, ErrMissingKeyGenerator):
		return ErrorTypeStorage
	case errors.Is(err, ErrNotAvailableStorage) || errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrIllegalState) || errors.Is(err, ErrInvalidCapacity) ||
		errors.Is(err, ErrInvalidRetention):
		return ErrorTypeConfiguration
	case errors.Is(err, ErrStoreError) || errors.Is(err, ErrStoreConnection) ||
		errors.Is(err, ErrSerialization) || errors.Is(err, ErrDeserialization):
		return ErrorTypeIO
	default:
		return ErrorTypeOperation
	}
}

// Error implements the error interface
func (e *StorageError) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("%s: %s: key=%v: %v", e.ErrType, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.ErrType, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error is of the same type as the receiver
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.ErrType == t.ErrType && e.Op == t.Op && errors.Is(e.Err, t.Err)
}

// NewStorageError creates a new StorageError
func NewStorageError(errType ErrorType, op string, key any, err error) error {
	return &StorageError{
		ErrType: errType,
		Op:      op,
		Key:     key,
		Err:     err,
	}
}

// ErrorMetrics tracks error statistics
type ErrorMetrics struct {
	StorageErrors       atomic.Int64
	ConfigurationErrors atomic.Int64
	IOErrors            atomic.Int64
	OperationErrors     atomic.Int64

	LastStorageError       atomic.Value // time.Time
	LastConfigurationError atomic.Value // time.Time
	LastIOError            atomic.Value // time.Time
	LastOperationError     atomic.Value // time.Time
}

var metrics = &ErrorMetrics{}

// GetErrorMetrics returns the current error metrics
func GetErrorMetrics() *ErrorMetrics {
	return metrics
}

// ResetErrorMetrics resets all error metrics
func ResetErrorMetrics() {
	metrics.StorageErrors.Store(0)
	metrics.ConfigurationErrors.Store(0)
	metrics.IOErrors.Store(0)
	metrics.OperationErrors.Store(0)
	metrics.LastStorageError.Store(time.Time{})
	metrics.LastConfigurationError.Store(time.Time{})
	metrics.LastIOError.Store(time.Time{})
	metrics.LastOperationError.Store(time.Time{})
}

func updateErrorMetrics(errType ErrorType) {
	now := time.Now()
	switch errType {
	case ErrorTypeStorage:
		metrics.StorageErrors.Add(1)
		metrics.LastStorageError.Store(now)
	case ErrorTypeConfiguration:
		metrics.ConfigurationErrors.Add(1)
		metrics.LastConfigurationError.Store(now)
	case ErrorTypeIO:
		metrics.IOErrors.Add(1)
		metrics.LastIOError.Store(now)
	case ErrorTypeOperation:
		metrics.OperationErrors.Add(1)
		metrics.LastOperationError.Store(now)
	}
}

// WrapError wraps an error with context and updates metrics.
// An error that is already a StorageError is returned as is so that
// composites do not stack one wrapper per delegation level.
func WrapError(op string, key any, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}

	errType := determineErrorType(err)
	updateErrorMetrics(errType)
	return NewStorageError(errType, op, key, err)
}

// IsStorageError checks if an error is a StorageError
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// GetStorageError returns the StorageError if the error is one
func GetStorageError(err error) *StorageError {
	var se *StorageError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	if se := GetStorageError(err); se != nil {
		return se.ErrType == errType
	}
	return false
}

// IsOutOfSpace checks if the error is an out of space error
func IsOutOfSpace(err error) bool {
	return errors.Is(err, ErrOutOfSpace)
}

// IsKeyNotFound checks if the error is a key not found error
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsContextCanceled checks if the error is a context canceled error
func IsContextCanceled(err error) bool {
	return errors.Is(err, ErrContextCanceled)
}

// Join combines the errors of a fan-out operation. It returns nil when
// every error is nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
