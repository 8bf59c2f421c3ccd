package vstorage

import (
	"context"
	"sync"
	"time"

	"github.com/gozephyr/vstorage/store"
)

// EventType represents the kind of mutation an Observed store reports
type EventType int

const (
	EventTypeCreate EventType = iota
	EventTypeUpdate
	EventTypeDelete
	EventTypeClear
	EventTypeSwap
)

func (t EventType) String() string {
	switch t {
	case EventTypeCreate:
		return "create"
	case EventTypeUpdate:
		return "update"
	case EventTypeDelete:
		return "delete"
	case EventTypeClear:
		return "clear"
	case EventTypeSwap:
		return "swap"
	default:
		return "unknown"
	}
}

// Event represents a mutation that succeeded. Value is set for creates and
// updates. Swap events carry the second key in Other.
type Event[K comparable, V any] struct {
	Type      EventType
	Key       K
	Other     K
	Value     V
	Timestamp time.Time
}

// Callback is a function that handles store events
type Callback[K comparable, V any] func(Event[K, V])

// Observed reports every successful mutation of the embedded store to the
// registered callbacks. Callbacks run synchronously on the mutating
// goroutine. Reads pass straight through.
type Observed[K comparable, V any] struct {
	store.Store[K, V]
	callbacks   []Callback[K, V]
	callbacksMu sync.RWMutex
	now         func() time.Time
}

// Observe wraps s
func Observe[K comparable, V any](s store.Store[K, V]) *Observed[K, V] {
	return &Observed[K, V]{Store: s, now: time.Now}
}

// OnEvent registers a callback for store events
func (o *Observed[K, V]) OnEvent(callback Callback[K, V]) {
	o.callbacksMu.Lock()
	o.callbacks = append(o.callbacks, callback)
	o.callbacksMu.Unlock()
}

func (o *Observed[K, V]) emit(event Event[K, V]) {
	event.Timestamp = o.now()
	o.callbacksMu.RLock()
	defer o.callbacksMu.RUnlock()
	for _, callback := range o.callbacks {
		callback(event)
	}
}

// Create stores value under a new key and emits EventTypeCreate
func (o *Observed[K, V]) Create(ctx context.Context, value V) (K, error) {
	key, err := o.Store.Create(ctx, value)
	if err == nil {
		o.emit(Event[K, V]{Type: EventTypeCreate, Key: key, Value: value})
	}
	return key, err
}

// Update writes key and emits EventTypeUpdate
func (o *Observed[K, V]) Update(ctx context.Context, key K, value V) error {
	err := o.Store.Update(ctx, key, value)
	if err == nil {
		o.emit(Event[K, V]{Type: EventTypeUpdate, Key: key, Value: value})
	}
	return err
}

// UpdateAll writes entries through store.UpdateAll and emits one
// EventTypeUpdate per entry once the whole batch succeeded
func (o *Observed[K, V]) UpdateAll(ctx context.Context, entries []store.Entry[K, V]) error {
	if err := store.UpdateAll(ctx, o.Store, entries); err != nil {
		return err
	}
	for _, e := range entries {
		o.emit(Event[K, V]{Type: EventTypeUpdate, Key: e.Key, Value: e.Value})
	}
	return nil
}

// Delete removes key and emits EventTypeDelete. No event is emitted for an
// absent key. Presence is checked with Has, which counts as neither a use
// nor a cache hit.
func (o *Observed[K, V]) Delete(ctx context.Context, key K) error {
	ok, err := o.Store.Has(ctx, key)
	if err != nil {
		return err
	}
	if err := o.Store.Delete(ctx, key); err != nil {
		return err
	}
	if ok {
		o.emit(Event[K, V]{Type: EventTypeDelete, Key: key})
	}
	return nil
}

// Clear removes every entry and emits EventTypeClear
func (o *Observed[K, V]) Clear(ctx context.Context) error {
	if err := o.Store.Clear(ctx); err != nil {
		return err
	}
	o.emit(Event[K, V]{Type: EventTypeClear})
	return nil
}

// Swap exchanges two values and emits EventTypeSwap
func (o *Observed[K, V]) Swap(ctx context.Context, key1, key2 K) error {
	if err := o.Store.Swap(ctx, key1, key2); err != nil {
		return err
	}
	o.emit(Event[K, V]{Type: EventTypeSwap, Key: key1, Other: key2})
	return nil
}
