// Package book maintains an in-memory order-book ladder consistent under
// snapshot+delta updates, and a trade-derived synthetic approximation of it
// for replay.
package book

import (
	"sort"

	"orderflow-lab/internal/domain"
)

// Delta is one incremental book update. A level with size 0 removes that
// price; a non-zero size replaces it.
type Delta struct {
	Sequence    int64
	TimestampMs int64
	Bids        []domain.PriceLevel
	Asks        []domain.PriceLevel
}

// Snapshot is a deep, immutable copy of book state handed to readers.
// Bids are sorted descending by price, asks ascending; index 0 is
// top-of-book on both sides.
type Snapshot struct {
	Symbol      string
	Bids        []domain.PriceLevel
	Asks        []domain.PriceLevel
	Sequence    int64
	UpdatedAtMs int64
}

// BestBid returns the top bid level, or a zero level when the side is empty.
func (s *Snapshot) BestBid() domain.PriceLevel {
	if len(s.Bids) == 0 {
		return domain.PriceLevel{}
	}
	return s.Bids[0]
}

// BestAsk returns the top ask level, or a zero level when the side is empty.
func (s *Snapshot) BestAsk() domain.PriceLevel {
	if len(s.Asks) == 0 {
		return domain.PriceLevel{}
	}
	return s.Asks[0]
}

// Mid returns the mid price, or 0 when either side is empty.
func (s *Snapshot) Mid() float64 {
	if len(s.Bids) == 0 || len(s.Asks) == 0 {
		return 0
	}
	return (s.Bids[0].Price + s.Asks[0].Price) / 2
}

// BookState is a side-keyed price ladder advanced by exactly one owner
// (the stream or replay component). It is not internally synchronized:
// the owner serializes writes and hands out copies via Snapshot().
type BookState struct {
	symbol      string
	bids        map[float64]float64
	asks        map[float64]float64
	sequence    int64
	updatedAtMs int64
}

// New creates an empty book for a symbol.
func New(symbol string) *BookState {
	return &BookState{
		symbol: symbol,
		bids:   make(map[float64]float64),
		asks:   make(map[float64]float64),
	}
}

// Sequence returns the sequence of the last applied update.
func (b *BookState) Sequence() int64 {
	return b.sequence
}

// ApplySnapshot replaces both sides atomically and resets the sequence.
// Zero-size levels in the snapshot are dropped. A crossed snapshot is
// rejected with CrossedBookError and the previous state is kept.
func (b *BookState) ApplySnapshot(bids, asks []domain.PriceLevel, sequence, timestampMs int64) error {
	newBids := make(map[float64]float64, len(bids))
	for _, l := range bids {
		if l.Size > 0 {
			newBids[l.Price] = l.Size
		}
	}
	newAsks := make(map[float64]float64, len(asks))
	for _, l := range asks {
		if l.Size > 0 {
			newAsks[l.Price] = l.Size
		}
	}

	if bestBid, bestAsk, crossed := crossed(newBids, newAsks); crossed {
		return &CrossedBookError{BestBid: bestBid, BestAsk: bestAsk}
	}

	b.bids = newBids
	b.asks = newAsks
	b.sequence = sequence
	b.updatedAtMs = timestampMs
	return nil
}

// ApplyDelta applies one incremental update. The delta sequence must be the
// immediate successor of the current sequence; otherwise SequenceGapError
// is returned and the book is unchanged. If the update would cross the
// book it is discarded entirely and CrossedBookError is returned.
func (b *BookState) ApplyDelta(d Delta) error {
	if d.Sequence != b.sequence+1 {
		return &SequenceGapError{Expected: b.sequence + 1, Got: d.Sequence}
	}

	// Stage on copies so a rejected update leaves no partial application.
	newBids := copyLevels(b.bids)
	newAsks := copyLevels(b.asks)
	applyLevels(newBids, d.Bids)
	applyLevels(newAsks, d.Asks)

	if bestBid, bestAsk, crossed := crossed(newBids, newAsks); crossed {
		return &CrossedBookError{BestBid: bestBid, BestAsk: bestAsk}
	}

	b.bids = newBids
	b.asks = newAsks
	b.sequence = d.Sequence
	b.updatedAtMs = d.TimestampMs
	return nil
}

// Snapshot returns a deep copy for readers. Callers never observe a level
// change mid-read.
func (b *BookState) Snapshot() *Snapshot {
	return &Snapshot{
		Symbol:      b.symbol,
		Bids:        sortedLevels(b.bids, true),
		Asks:        sortedLevels(b.asks, false),
		Sequence:    b.sequence,
		UpdatedAtMs: b.updatedAtMs,
	}
}

// applyLevels folds delta levels into a side: size 0 removes, otherwise
// inserts or replaces.
func applyLevels(side map[float64]float64, levels []domain.PriceLevel) {
	for _, l := range levels {
		if l.Size == 0 {
			delete(side, l.Price)
		} else {
			side[l.Price] = l.Size
		}
	}
}

func copyLevels(side map[float64]float64) map[float64]float64 {
	out := make(map[float64]float64, len(side))
	for p, s := range side {
		out[p] = s
	}
	return out
}

// crossed reports whether best bid >= best ask; both sides must be
// non-empty for a book to be crossed.
func crossed(bids, asks map[float64]float64) (bestBid, bestAsk float64, ok bool) {
	if len(bids) == 0 || len(asks) == 0 {
		return 0, 0, false
	}
	first := true
	for p := range bids {
		if first || p > bestBid {
			bestBid = p
			first = false
		}
	}
	first = true
	for p := range asks {
		if first || p < bestAsk {
			bestAsk = p
			first = false
		}
	}
	return bestBid, bestAsk, bestBid >= bestAsk
}

// sortedLevels converts a side map to a sorted level slice.
func sortedLevels(side map[float64]float64, descending bool) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(side))
	for p, s := range side {
		out = append(out, domain.PriceLevel{Price: p, Size: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}
