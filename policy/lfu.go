package policy

import (
	"container/heap"
	"sync"
)

// LFU evicts the least frequently used key. Ties go to the key whose last
// use is oldest.
type LFU[K comparable] struct {
	items map[K]*lfuItem[K]
	queue *lfuQueue[K]
	tick  uint64
	mu    sync.Mutex
}

type lfuItem[K comparable] struct {
	key     K
	count   int64
	lastUse uint64
	index   int
}

type lfuQueue[K comparable] []*lfuItem[K]

func (q lfuQueue[K]) Len() int { return len(q) }

func (q lfuQueue[K]) Less(i, j int) bool {
	if q[i].count == q[j].count {
		return q[i].lastUse < q[j].lastUse
	}
	return q[i].count < q[j].count
}

func (q lfuQueue[K]) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *lfuQueue[K]) Push(x any) {
	item := x.(*lfuItem[K])
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *lfuQueue[K]) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[0 : n-1]
	return item
}

// NewLFU creates a new LFU policy
func NewLFU[K comparable]() *LFU[K] {
	queue := &lfuQueue[K]{}
	heap.Init(queue)
	return &LFU[K]{
		items: make(map[K]*lfuItem[K]),
		queue: queue,
	}
}

func (p *LFU[K]) use(item *lfuItem[K]) {
	p.tick++
	item.count++
	item.lastUse = p.tick
	heap.Fix(p.queue, item.index)
}

// OnAccess bumps the use count of key
func (p *LFU[K]) OnAccess(key K) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if item, exists := p.items[key]; exists {
		p.use(item)
	}
}

// OnInsert tracks key, counting a replacement as a use
func (p *LFU[K]) OnInsert(key K) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if item, exists := p.items[key]; exists {
		p.use(item)
		return
	}
	p.tick++
	item := &lfuItem[K]{key: key, count: 1, lastUse: p.tick}
	heap.Push(p.queue, item)
	p.items[key] = item
}

// OnRemove stops tracking key
func (p *LFU[K]) OnRemove(key K) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if item, exists := p.items[key]; exists {
		heap.Remove(p.queue, item.index)
		delete(p.items, key)
	}
}

// OnClear forgets every key
func (p *LFU[K]) OnClear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queue = &lfuQueue[K]{}
	heap.Init(p.queue)
	p.items = make(map[K]*lfuItem[K])
}

// Victim returns the least frequently used key
func (p *LFU[K]) Victim() (K, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.queue.Len() == 0 {
		var zero K
		return zero, false
	}
	item := heap.Pop(p.queue).(*lfuItem[K])
	delete(p.items, item.key)
	return item.key, true
}

// Len returns the number of keys tracked
func (p *LFU[K]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}
