package policy

import (
	"container/list"
	"sync"
)

// FIFO evicts keys in insertion order. Reads and value replacements do
// not change a key's position.
type FIFO[K comparable] struct {
	items map[K]*list.Element
	list  *list.List
	mu    sync.Mutex
}

// NewFIFO creates a new FIFO policy
func NewFIFO[K comparable]() *FIFO[K] {
	return &FIFO[K]{
		items: make(map[K]*list.Element),
		list:  list.New(),
	}
}

// OnAccess is a no-op for FIFO
func (p *FIFO[K]) OnAccess(key K) {}

// OnInsert tracks key if it is new
func (p *FIFO[K]) OnInsert(key K) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.items[key]; exists {
		return
	}
	p.items[key] = p.list.PushBack(key)
}

// OnRemove stops tracking key
func (p *FIFO[K]) OnRemove(key K) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if element, exists := p.items[key]; exists {
		p.list.Remove(element)
		delete(p.items, key)
	}
}

// OnClear forgets every key
func (p *FIFO[K]) OnClear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.list = list.New()
	p.items = make(map[K]*list.Element)
}

// Victim returns the oldest inserted key
func (p *FIFO[K]) Victim() (K, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	element := p.list.Front()
	if element == nil {
		var zero K
		return zero, false
	}
	key := element.Value.(K)
	p.list.Remove(element)
	delete(p.items, key)
	return key, true
}

// Len returns the number of keys tracked
func (p *FIFO[K]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.list.Len()
}
