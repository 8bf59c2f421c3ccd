package policy

import (
	"container/list"
	"sync"
)

// LRU orders keys by recency of use. Both reads and writes count as a use.
type LRU[K comparable] struct {
	items map[K]*list.Element
	list  *list.List
	mu    sync.Mutex
}

// NewLRU creates a new LRU policy
func NewLRU[K comparable]() *LRU[K] {
	return &LRU[K]{
		items: make(map[K]*list.Element),
		list:  list.New(),
	}
}

// OnAccess moves key to the most recently used end
func (p *LRU[K]) OnAccess(key K) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if element, exists := p.items[key]; exists {
		p.list.MoveToFront(element)
	}
}

// OnInsert tracks key as the most recently used
func (p *LRU[K]) OnInsert(key K) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if element, exists := p.items[key]; exists {
		p.list.MoveToFront(element)
		return
	}
	p.items[key] = p.list.PushFront(key)
}

// OnRemove stops tracking key
func (p *LRU[K]) OnRemove(key K) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if element, exists := p.items[key]; exists {
		p.list.Remove(element)
		delete(p.items, key)
	}
}

// OnClear forgets every key
func (p *LRU[K]) OnClear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.list = list.New()
	p.items = make(map[K]*list.Element)
}

// Victim returns the least recently used key
func (p *LRU[K]) Victim() (K, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	element := p.list.Back()
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
func (p *LRU[K]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.list.Len()
}
