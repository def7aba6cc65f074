package book

import (
	"errors"
	"testing"

	"orderflow-lab/internal/domain"
)

func levels(pairs ...float64) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.PriceLevel{Price: pairs[i], Size: pairs[i+1]})
	}
	return out
}

func TestApplySnapshot_ResetsSequence(t *testing.T) {
	b := New("BTCUSDT")
	if err := b.ApplySnapshot(levels(100, 5), levels(101, 5), 1, 1000); err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}

	snap := b.Snapshot()
	if snap.Sequence != 1 {
		t.Errorf("expected sequence 1, got %d", snap.Sequence)
	}
	if got := snap.BestBid(); got.Price != 100 || got.Size != 5 {
		t.Errorf("unexpected best bid %+v", got)
	}
	if got := snap.BestAsk(); got.Price != 101 || got.Size != 5 {
		t.Errorf("unexpected best ask %+v", got)
	}
	if snap.Mid() != 100.5 {
		t.Errorf("expected mid 100.5, got %g", snap.Mid())
	}
}

func TestApplyDelta_RemovalAndInsert(t *testing.T) {
	// Snapshot bid 100@5 / ask 101@5 (sequence 1); delta sequence 2 removes
	// bid 100 and adds bid 99.5@3. Top bid becomes {99.5, 3}; the book must
	// not be reported crossed.
	b := New("BTCUSDT")
	if err := b.ApplySnapshot(levels(100, 5), levels(101, 5), 1, 1000); err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}

	err := b.ApplyDelta(Delta{
		Sequence:    2,
		TimestampMs: 1100,
		Bids:        levels(100, 0, 99.5, 3),
	})
	if err != nil {
		t.Fatalf("apply delta: %v", err)
	}

	snap := b.Snapshot()
	if got := snap.BestBid(); got.Price != 99.5 || got.Size != 3 {
		t.Errorf("expected best bid {99.5 3}, got %+v", got)
	}
	for _, l := range snap.Bids {
		if l.Size <= 0 {
			t.Errorf("zero-size level leaked into snapshot: %+v", l)
		}
	}
}

func TestApplyDelta_SequenceGapLeavesStateUnchanged(t *testing.T) {
	b := New("BTCUSDT")
	if err := b.ApplySnapshot(levels(100, 5), levels(101, 5), 1, 1000); err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}

	err := b.ApplyDelta(Delta{Sequence: 3, Bids: levels(100, 7)})
	var gap *SequenceGapError
	if !errors.As(err, &gap) {
		t.Fatalf("expected SequenceGapError, got %v", err)
	}
	if gap.Expected != 2 || gap.Got != 3 {
		t.Errorf("unexpected gap detail: %+v", gap)
	}

	// State untouched until a fresh snapshot arrives.
	snap := b.Snapshot()
	if got := snap.BestBid(); got.Price != 100 || got.Size != 5 {
		t.Errorf("state changed after gap: %+v", got)
	}
	if snap.Sequence != 1 {
		t.Errorf("sequence advanced after gap: %d", snap.Sequence)
	}
}

func TestApplyDelta_CrossedBookRejectedEntirely(t *testing.T) {
	b := New("BTCUSDT")
	if err := b.ApplySnapshot(levels(100, 5), levels(101, 5), 1, 1000); err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}

	// Bid at 102 would cross the 101 ask.
	err := b.ApplyDelta(Delta{Sequence: 2, Bids: levels(102, 1)})
	var crossed *CrossedBookError
	if !errors.As(err, &crossed) {
		t.Fatalf("expected CrossedBookError, got %v", err)
	}

	// Entire delta discarded: no partial application, sequence unchanged.
	snap := b.Snapshot()
	if got := snap.BestBid(); got.Price != 100 {
		t.Errorf("partial application after crossed delta: %+v", got)
	}
	if snap.Sequence != 1 {
		t.Errorf("sequence advanced after rejected delta: %d", snap.Sequence)
	}
}

func TestApplySnapshot_CrossedRejected(t *testing.T) {
	b := New("BTCUSDT")
	err := b.ApplySnapshot(levels(101, 5), levels(100, 5), 1, 1000)
	var crossed *CrossedBookError
	if !errors.As(err, &crossed) {
		t.Fatalf("expected CrossedBookError, got %v", err)
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	b := New("BTCUSDT")
	if err := b.ApplySnapshot(levels(100, 5, 99, 2), levels(101, 5), 1, 1000); err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}

	snap := b.Snapshot()
	if err := b.ApplyDelta(Delta{Sequence: 2, Bids: levels(100, 0)}); err != nil {
		t.Fatalf("apply delta: %v", err)
	}

	// The earlier snapshot still shows the removed level.
	if got := snap.BestBid(); got.Price != 100 || got.Size != 5 {
		t.Errorf("snapshot mutated by later delta: %+v", got)
	}
}

func TestSnapshot_Ordering(t *testing.T) {
	b := New("BTCUSDT")
	err := b.ApplySnapshot(
		levels(99, 1, 100, 2, 98, 3),
		levels(103, 1, 101, 2, 102, 3),
		1, 1000,
	)
	if err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}

	snap := b.Snapshot()
	for i := 1; i < len(snap.Bids); i++ {
		if snap.Bids[i].Price >= snap.Bids[i-1].Price {
			t.Errorf("bids not descending at %d: %+v", i, snap.Bids)
		}
	}
	for i := 1; i < len(snap.Asks); i++ {
		if snap.Asks[i].Price <= snap.Asks[i-1].Price {
			t.Errorf("asks not ascending at %d: %+v", i, snap.Asks)
		}
	}
}
