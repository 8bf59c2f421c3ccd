package vstorage

import (
	"context"
	"iter"

	"github.com/gozephyr/vstorage/errors"
	"github.com/gozephyr/vstorage/store"
)

// Node is the record a LinkedList keeps per element. Prev and Next hold the
// keys of the neighbouring nodes, nil at the ends.
type Node[K comparable, V any] struct {
	Value V  `json:"value"`
	Prev  *K `json:"prev,omitempty"`
	Next  *K `json:"next,omitempty"`
}

// LinkedList is a doubly linked list whose nodes live in a store. Elements
// are addressed by the key Create assigned to their node, and every link is
// followed with a store lookup, so the nodes can sit in any store,
// including a composite or a persistent one. Stores that evict entries on
// their own are not suitable.
type LinkedList[K comparable, V any] struct {
	nodes  store.Store[K, Node[K, V]]
	head   *K
	tail   *K
	length int
}

// NewLinkedList creates an empty list over nodes, which must be empty and
// have a key generator
func NewLinkedList[K comparable, V any](ctx context.Context, nodes store.Store[K, Node[K, V]]) (*LinkedList[K, V], error) {
	if nodes == nil {
		return nil, errors.WrapError("NewLinkedList", nil, errors.ErrNotAvailableStorage)
	}
	if !nodes.IsEmpty(ctx) {
		return nil, errors.WrapError("NewLinkedList", nil, errors.ErrInvalidConfiguration)
	}
	return &LinkedList[K, V]{nodes: nodes}, nil
}

func ref[K comparable](key K) *K {
	return &key
}

// node resolves key. A missing node is ErrKeyNotFound.
func (l *LinkedList[K, V]) node(ctx context.Context, op string, key K) (Node[K, V], error) {
	n, ok, err := l.nodes.Read(ctx, key)
	if err != nil {
		return Node[K, V]{}, errors.WrapError(op, key, err)
	}
	if !ok {
		return Node[K, V]{}, errors.WrapError(op, key, errors.ErrKeyNotFound)
	}
	return n, nil
}

// link resolves the neighbour a node points to. A link to a missing node
// means the list was changed behind its back.
func (l *LinkedList[K, V]) link(ctx context.Context, op string, key K) (Node[K, V], error) {
	n, err := l.node(ctx, op, key)
	if errors.IsKeyNotFound(err) {
		return n, errors.WrapError(op, key, errors.ErrIllegalState)
	}
	return n, err
}

// PushBack appends value and returns the key of its node
func (l *LinkedList[K, V]) PushBack(ctx context.Context, value V) (K, error) {
	var zero K
	key, err := l.nodes.Create(ctx, Node[K, V]{Value: value, Prev: l.tail})
	if err != nil {
		return zero, errors.WrapError("PushBack", nil, err)
	}
	if l.tail != nil {
		last, err := l.link(ctx, "PushBack", *l.tail)
		if err == nil {
			last.Next = ref(key)
			err = l.nodes.Update(ctx, *l.tail, last)
		}
		if err != nil {
			_ = l.nodes.Delete(ctx, key)
			return zero, errors.WrapError("PushBack", key, err)
		}
	} else {
		l.head = ref(key)
	}
	l.tail = ref(key)
	l.length++
	return key, nil
}

// PushFront prepends value and returns the key of its node
func (l *LinkedList[K, V]) PushFront(ctx context.Context, value V) (K, error) {
	var zero K
	key, err := l.nodes.Create(ctx, Node[K, V]{Value: value, Next: l.head})
	if err != nil {
		return zero, errors.WrapError("PushFront", nil, err)
	}
	if l.head != nil {
		first, err := l.link(ctx, "PushFront", *l.head)
		if err == nil {
			first.Prev = ref(key)
			err = l.nodes.Update(ctx, *l.head, first)
		}
		if err != nil {
			_ = l.nodes.Delete(ctx, key)
			return zero, errors.WrapError("PushFront", key, err)
		}
	} else {
		l.tail = ref(key)
	}
	l.head = ref(key)
	l.length++
	return key, nil
}

// Get returns the value of the node at key
func (l *LinkedList[K, V]) Get(ctx context.Context, key K) (V, error) {
	n, err := l.node(ctx, "Get", key)
	return n.Value, err
}

// Set replaces the value of the node at key, keeping its position
func (l *LinkedList[K, V]) Set(ctx context.Context, key K, value V) error {
	n, err := l.node(ctx, "Set", key)
	if err != nil {
		return err
	}
	n.Value = value
	return errors.WrapError("Set", key, l.nodes.Update(ctx, key, n))
}

// Remove unlinks the node at key and returns its value. Both neighbours are
// resolved before anything is written.
func (l *LinkedList[K, V]) Remove(ctx context.Context, key K) (V, error) {
	var zero V
	n, err := l.node(ctx, "Remove", key)
	if err != nil {
		return zero, err
	}
	var prev, next Node[K, V]
	if n.Prev != nil {
		if prev, err = l.link(ctx, "Remove", *n.Prev); err != nil {
			return zero, err
		}
	}
	if n.Next != nil {
		if next, err = l.link(ctx, "Remove", *n.Next); err != nil {
			return zero, err
		}
	}

	if n.Prev != nil {
		prev.Next = n.Next
		if err := l.nodes.Update(ctx, *n.Prev, prev); err != nil {
			return zero, errors.WrapError("Remove", key, err)
		}
	} else {
		l.head = n.Next
	}
	if n.Next != nil {
		next.Prev = n.Prev
		if err := l.nodes.Update(ctx, *n.Next, next); err != nil {
			return zero, errors.WrapError("Remove", key, err)
		}
	} else {
		l.tail = n.Prev
	}
	if err := l.nodes.Delete(ctx, key); err != nil {
		return zero, errors.WrapError("Remove", key, err)
	}
	l.length--
	return n.Value, nil
}

// Front returns the first element. ok is false for an empty list.
func (l *LinkedList[K, V]) Front(ctx context.Context) (key K, value V, ok bool, err error) {
	if l.head == nil {
		return key, value, false, nil
	}
	n, err := l.link(ctx, "Front", *l.head)
	if err != nil {
		return key, value, false, err
	}
	return *l.head, n.Value, true, nil
}

// Back returns the last element. ok is false for an empty list.
func (l *LinkedList[K, V]) Back(ctx context.Context) (key K, value V, ok bool, err error) {
	if l.tail == nil {
		return key, value, false, nil
	}
	n, err := l.link(ctx, "Back", *l.tail)
	if err != nil {
		return key, value, false, err
	}
	return *l.tail, n.Value, true, nil
}

// Len returns the number of elements
func (l *LinkedList[K, V]) Len() int {
	return l.length
}

// walk follows links from start in the direction chosen by step. It stops
// silently at the first link it cannot resolve.
func (l *LinkedList[K, V]) walk(ctx context.Context, start *K, step func(Node[K, V]) *K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for cur := start; cur != nil; {
			n, err := l.link(ctx, "All", *cur)
			if err != nil {
				return
			}
			if !yield(*cur, n.Value) {
				return
			}
			cur = step(n)
		}
	}
}

// All yields the elements front to back
func (l *LinkedList[K, V]) All(ctx context.Context) iter.Seq2[K, V] {
	return l.walk(ctx, l.head, func(n Node[K, V]) *K { return n.Next })
}

// Backward yields the elements back to front
func (l *LinkedList[K, V]) Backward(ctx context.Context) iter.Seq2[K, V] {
	return l.walk(ctx, l.tail, func(n Node[K, V]) *K { return n.Prev })
}

// Clear removes every element
func (l *LinkedList[K, V]) Clear(ctx context.Context) error {
	if err := l.nodes.Clear(ctx); err != nil {
		return errors.WrapError("Clear", nil, err)
	}
	l.head, l.tail, l.length = nil, nil, 0
	return nil
}
