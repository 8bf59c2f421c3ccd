// Package metrics provides counters for store hit, miss and eviction activity.
package metrics

import (
	"sync/atomic"
	"time"
)

// Counters is the in-process Exporter
type Counters struct {
	Hits              atomic.Int64
	Misses            atomic.Int64
	Evictions         atomic.Int64
	Size              atomic.Int64
	LastOperationTime atomic.Value // time.Time
}

// Snapshot is a copy of the counters at one instant
type Snapshot struct {
	Hits              int64
	Misses            int64
	Evictions         int64
	Size              int64
	LastOperationTime time.Time
}

// HitRatio returns hits / (hits + misses), or 0 when nothing was looked up
func (s Snapshot) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// NewCounters creates a new Counters instance
func NewCounters() *Counters {
	c := &Counters{}
	c.LastOperationTime.Store(time.Time{})
	return c
}

// RecordHit records a cache hit
func (c *Counters) RecordHit() {
	c.Hits.Add(1)
	c.LastOperationTime.Store(time.Now())
}

// RecordMiss records a cache miss
func (c *Counters) RecordMiss() {
	c.Misses.Add(1)
	c.LastOperationTime.Store(time.Now())
}

// RecordEviction records an eviction
func (c *Counters) RecordEviction() {
	c.Evictions.Add(1)
}

// UpdateSize records the current number of entries
func (c *Counters) UpdateSize(size int64) {
	c.Size.Store(size)
}

// GetSnapshot returns a copy of the current counters
func (c *Counters) GetSnapshot() Snapshot {
	return Snapshot{
		Hits:              c.Hits.Load(),
		Misses:            c.Misses.Load(),
		Evictions:         c.Evictions.Load(),
		Size:              c.Size.Load(),
		LastOperationTime: c.LastOperationTime.Load().(time.Time),
	}
}

// Reset resets all counters to zero
func (c *Counters) Reset() {
	c.Hits.Store(0)
	c.Misses.Store(0)
	c.Evictions.Store(0)
	c.Size.Store(0)
	c.LastOperationTime.Store(time.Time{})
}
