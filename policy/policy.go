// Package policy provides the orderings a bounded store uses to pick an
// eviction victim: LRU, FIFO and LFU.
package policy

// Policy tracks the keys resident in a store and decides which one to
// evict next. The store owns the key/value map; a policy only orders keys.
type Policy[K comparable] interface {
	// OnAccess is called when a resident key is read
	OnAccess(key K)

	// OnInsert is called when a key is inserted or its value replaced
	OnInsert(key K)

	// OnRemove is called when a key leaves the store
	OnRemove(key K)

	// OnClear is called when the store is cleared
	OnClear()

	// Victim removes and returns the next key to evict
	Victim() (K, bool)

	// Len returns the number of keys tracked
	Len() int
}

// Kind names a policy in configuration
type Kind string

const (
	// KindLRU evicts the least recently used key
	KindLRU Kind = "lru"
	// KindFIFO evicts the oldest inserted key
	KindFIFO Kind = "fifo"
	// KindLFU evicts the least frequently used key
	KindLFU Kind = "lfu"
)

// New creates the policy named by kind, defaulting to LRU
func New[K comparable](kind Kind) Policy[K] {
	switch kind {
	case KindFIFO:
		return NewFIFO[K]()
	case KindLFU:
		return NewLFU[K]()
	default:
		return NewLRU[K]()
	}
}
