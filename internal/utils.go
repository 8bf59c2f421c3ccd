// Package internal provides helpers shared by the store implementations.
package internal

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
)

// Counter is the aggregate entry counter of a composite store.
// Every mutation of the count goes through Add so a composite has exactly
// one code path that changes it.
type Counter struct {
	mu    sync.RWMutex
	count int
}

// NewCounter creates a counter starting at initial
func NewCounter(initial int) *Counter {
	return &Counter{count: initial}
}

// Add changes the counter by delta, never dropping below zero
func (c *Counter) Add(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count += delta
	if c.count < 0 {
		c.count = 0
	}
}

// Get returns the current count
func (c *Counter) Get() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// Reset sets the counter to n
func (c *Counter) Reset(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = n
}

// IsZero reports whether key is the zero value of its type
func IsZero[K comparable](key K) bool {
	var zero K
	return key == zero
}

// Hash returns the FNV-1a hash of key. Strings, byte-sized integers and
// floats are hashed from their bytes; any other key is hashed from its
// %v representation, so the result is stable across processes.
func Hash[K comparable](key K) uint32 {
	h := fnv.New32a()
	var buf [8]byte
	switch k := any(key).(type) {
	case string:
		h.Write([]byte(k))
	case int:
		binary.LittleEndian.PutUint64(buf[:], uint64(k))
		h.Write(buf[:])
	case int64:
		binary.LittleEndian.PutUint64(buf[:], uint64(k))
		h.Write(buf[:])
	case int32:
		binary.LittleEndian.PutUint64(buf[:], uint64(k))
		h.Write(buf[:])
	case uint:
		binary.LittleEndian.PutUint64(buf[:], uint64(k))
		h.Write(buf[:])
	case uint64:
		binary.LittleEndian.PutUint64(buf[:], k)
		h.Write(buf[:])
	case uint32:
		binary.LittleEndian.PutUint64(buf[:], uint64(k))
		h.Write(buf[:])
	case float64:
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(k))
		h.Write(buf[:])
	default:
		fmt.Fprintf(h, "%v", key)
	}
	return h.Sum32()
}
