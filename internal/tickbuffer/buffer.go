// Package tickbuffer keeps a bounded, time-ordered buffer of recent trade
// prints with windowed retrieval.
package tickbuffer

import (
	"sync"

	"orderflow-lab/internal/domain"
)

// DefaultCapacity bounds the buffer when no explicit capacity is given.
// A few minutes of an active derivatives tape fits comfortably.
const DefaultCapacity = 50000

// Buffer is a single-writer, multi-reader trade buffer. Push appends in
// arrival order; entries older than the trailing retention window (or past
// capacity) are evicted silently. Readers receive copies and never observe
// an append in progress.
type Buffer struct {
	mu          sync.RWMutex
	trades      []domain.Trade // time-ordered ring content, oldest first
	capacity    int
	retentionMs int64
}

// New creates a buffer. capacity <= 0 selects DefaultCapacity;
// retentionMs <= 0 disables time-based eviction (capacity still bounds).
func New(capacity int, retentionMs int64) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		trades:      make([]domain.Trade, 0, 256),
		capacity:    capacity,
		retentionMs: retentionMs,
	}
}

// Push appends one trade and evicts expired entries. Eviction is a normal
// lifecycle step, not an error.
func (b *Buffer) Push(t domain.Trade) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trades = append(b.trades, t)
	b.evictLocked(t.TimestampMs)
}

// Len returns the current number of buffered trades.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.trades)
}

// Since returns a copy of all trades with TimestampMs >= ts, in
// non-decreasing time order.
func (b *Buffer) Since(ts int64) []domain.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()

	idx := b.searchLocked(ts)
	if idx == len(b.trades) {
		return nil
	}
	out := make([]domain.Trade, len(b.trades)-idx)
	copy(out, b.trades[idx:])
	return out
}

// Window returns a copy of trades with startMs <= TimestampMs <= endMs.
func (b *Buffer) Window(startMs, endMs int64) []domain.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []domain.Trade
	for i := b.searchLocked(startMs); i < len(b.trades); i++ {
		if b.trades[i].TimestampMs > endMs {
			break
		}
		out = append(out, b.trades[i])
	}
	return out
}

// evictLocked drops entries outside the retention window and over capacity.
func (b *Buffer) evictLocked(nowMs int64) {
	drop := 0
	if b.retentionMs > 0 {
		cutoff := nowMs - b.retentionMs
		for drop < len(b.trades) && b.trades[drop].TimestampMs < cutoff {
			drop++
		}
	}
	if over := len(b.trades) - drop - b.capacity; over > 0 {
		drop += over
	}
	if drop > 0 {
		b.trades = append(b.trades[:0], b.trades[drop:]...)
	}
}

// searchLocked returns the index of the first trade with TimestampMs >= ts.
// Arrival order is time order for a venue tape, so binary search applies.
func (b *Buffer) searchLocked(ts int64) int {
	lo, hi := 0, len(b.trades)
	for lo < hi {
		mid := (lo + hi) / 2
		if b.trades[mid].TimestampMs < ts {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
