package store

import "container/list"

// table is an insertion-ordered map. Iteration order is the order in which
// keys were first inserted; replacing a value keeps the key's position.
type table[K comparable, E any] struct {
	items map[K]*list.Element
	order *list.List
}

type tableItem[K comparable, E any] struct {
	key   K
	entry E
}

func newTable[K comparable, E any]() *table[K, E] {
	return &table[K, E]{
		items: make(map[K]*list.Element),
		order: list.New(),
	}
}

func (t *table[K, E]) get(key K) (E, bool) {
	element, ok := t.items[key]
	if !ok {
		var zero E
		return zero, false
	}
	return element.Value.(*tableItem[K, E]).entry, true
}

func (t *table[K, E]) has(key K) bool {
	_, ok := t.items[key]
	return ok
}

// put inserts or replaces key and reports whether it was new
func (t *table[K, E]) put(key K, entry E) bool {
	if element, ok := t.items[key]; ok {
		element.Value.(*tableItem[K, E]).entry = entry
		return false
	}
	t.items[key] = t.order.PushBack(&tableItem[K, E]{key: key, entry: entry})
	return true
}

// remove deletes key and reports whether it was present
func (t *table[K, E]) remove(key K) bool {
	element, ok := t.items[key]
	if !ok {
		return false
	}
	t.order.Remove(element)
	delete(t.items, key)
	return true
}

func (t *table[K, E]) len() int {
	return len(t.items)
}

func (t *table[K, E]) clear() {
	t.items = make(map[K]*list.Element)
	t.order = list.New()
}

// keys snapshots the keys in insertion order
func (t *table[K, E]) keys() []K {
	keys := make([]K, 0, len(t.items))
	for e := t.order.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*tableItem[K, E]).key)
	}
	return keys
}
