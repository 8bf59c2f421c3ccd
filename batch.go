package vstorage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gozephyr/vstorage/errors"
	"github.com/gozephyr/vstorage/store"
	"golang.org/x/sync/errgroup"
)

// BatchConfig represents configuration for batch operations
type BatchConfig struct {
	// MaxBatchSize is the largest number of keys a single call accepts
	MaxBatchSize int
	// OperationTimeout bounds each batch call
	OperationTimeout time.Duration
	// MaxConcurrent is the number of keys processed at once
	MaxConcurrent int
}

// DefaultBatchConfig returns the default batch configuration
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxBatchSize:     1000,
		OperationTimeout: 5 * time.Second,
		MaxConcurrent:    10,
	}
}

// BatchMetrics represents metrics for batch operations
type BatchMetrics struct {
	TotalOperations atomic.Int64
	TotalItems      atomic.Int64
	SuccessCount    atomic.Int64
	ErrorCount      atomic.Int64
	TimeoutCount    atomic.Int64
	LastOperation   atomic.Value // time.Time
}

// Batch runs multi-key operations against a store. Reads and deletes fan
// out over up to MaxConcurrent goroutines; the store is wrapped with
// store.Synchronized for that unless it already is.
type Batch[K comparable, V any] struct {
	store   store.Store[K, V]
	config  BatchConfig
	metrics BatchMetrics
}

// NewBatch creates batch operations over s
func NewBatch[K comparable, V any](s store.Store[K, V], config BatchConfig) (*Batch[K, V], error) {
	if s == nil {
		return nil, errors.WrapError("NewBatch", nil, errors.ErrNotAvailableStorage)
	}
	if config.MaxBatchSize <= 0 || config.MaxConcurrent <= 0 || config.OperationTimeout <= 0 {
		return nil, errors.WrapError("NewBatch", nil, errors.ErrInvalidConfiguration)
	}
	if config.MaxConcurrent > 1 {
		if _, ok := s.(*store.SynchronizedStore[K, V]); !ok {
			s = store.Synchronized(s)
		}
	}
	return &Batch[K, V]{store: s, config: config}, nil
}

// Store returns the store the batch operates on
func (b *Batch[K, V]) Store() store.Store[K, V] {
	return b.store
}

// begin records the start of a call over n items and rejects oversized batches
func (b *Batch[K, V]) begin(op string, n int) error {
	b.metrics.TotalOperations.Add(1)
	b.metrics.TotalItems.Add(int64(n))
	b.metrics.LastOperation.Store(time.Now())
	if n > b.config.MaxBatchSize {
		b.metrics.ErrorCount.Add(1)
		return errors.WrapError(op, nil, fmt.Errorf("%w: %d items exceed the batch size of %d",
			errors.ErrInvalidOperation, n, b.config.MaxBatchSize))
	}
	return nil
}

// finish accounts for the outcome of a call
func (b *Batch[K, V]) finish(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		b.metrics.TimeoutCount.Add(1)
	}
	return err
}

// ReadMany reads keys. Absent keys are left out of the result.
func (b *Batch[K, V]) ReadMany(ctx context.Context, keys []K) (map[K]V, error) {
	if err := b.begin("ReadMany", len(keys)); err != nil {
		return nil, err
	}
	opCtx, cancel := context.WithTimeout(ctx, b.config.OperationTimeout)
	defer cancel()

	result := make(map[K]V, len(keys))
	var resultMu sync.Mutex

	g, gctx := errgroup.WithContext(opCtx)
	g.SetLimit(b.config.MaxConcurrent)
	for _, key := range keys {
		g.Go(func() error {
			if gctx.Err() != nil {
				return errors.WrapError("ReadMany", key, errors.ErrContextCanceled)
			}
			value, ok, err := b.store.Read(gctx, key)
			if err != nil {
				b.metrics.ErrorCount.Add(1)
				return errors.WrapError("ReadMany", key, err)
			}
			b.metrics.SuccessCount.Add(1)
			if ok {
				resultMu.Lock()
				result[key] = value
				resultMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, b.finish(opCtx, err)
	}
	return result, nil
}

// UpdateMany writes entries with store.UpdateAll, so a batch that does not
// fit fails before any entry is written.
func (b *Batch[K, V]) UpdateMany(ctx context.Context, entries []store.Entry[K, V]) error {
	if err := b.begin("UpdateMany", len(entries)); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, b.config.OperationTimeout)
	defer cancel()

	if err := store.UpdateAll(opCtx, b.store, entries); err != nil {
		b.metrics.ErrorCount.Add(1)
		return b.finish(opCtx, errors.WrapError("UpdateMany", nil, err))
	}
	b.metrics.SuccessCount.Add(int64(len(entries)))
	return nil
}

// DeleteMany removes keys. Every key is attempted and the failures are
// returned together.
func (b *Batch[K, V]) DeleteMany(ctx context.Context, keys []K) error {
	if err := b.begin("DeleteMany", len(keys)); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, b.config.OperationTimeout)
	defer cancel()

	var (
		errs  []error
		errMu sync.Mutex
		g     errgroup.Group
	)
	g.SetLimit(b.config.MaxConcurrent)
	for _, key := range keys {
		g.Go(func() error {
			err := errors.ErrContextCanceled
			if opCtx.Err() == nil {
				err = b.store.Delete(opCtx, key)
			}
			if err != nil {
				b.metrics.ErrorCount.Add(1)
				errMu.Lock()
				errs = append(errs, errors.WrapError("DeleteMany", key, err))
				errMu.Unlock()
				return nil
			}
			b.metrics.SuccessCount.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return b.finish(opCtx, errors.Join(errs...))
}

// Metrics returns the batch operation metrics. Every field is atomic and
// may be read while calls are in flight.
func (b *Batch[K, V]) Metrics() *BatchMetrics {
	return &b.metrics
}

// ResetMetrics resets the batch operation metrics. It is safe to call
// concurrently with batch calls.
func (b *Batch[K, V]) ResetMetrics() {
	b.metrics.TotalOperations.Store(0)
	b.metrics.TotalItems.Store(0)
	b.metrics.SuccessCount.Store(0)
	b.metrics.ErrorCount.Store(0)
	b.metrics.TimeoutCount.Store(0)
	b.metrics.LastOperation.Store(time.Time{})
}
