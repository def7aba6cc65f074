package memory

import (
	"context"
	"errors"
	"testing"

	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/storage"
)

func transition(id, runID string, tsMs int64, kind domain.TransitionKind) *domain.PositionTransition {
	return &domain.PositionTransition{
		TransitionID: id,
		RunID:        runID,
		Symbol:       "BTCUSDT",
		TimestampMs:  tsMs,
		Kind:         kind,
		Side:         domain.PositionLong,
		Price:        100,
		Size:         1,
		Direction:    domain.DirectionLong,
		Confidence:   0.5,
	}
}

func TestPositionTransitionStore_InsertAndGet(t *testing.T) {
	store := NewPositionTransitionStore()
	ctx := context.Background()

	tr := transition("t1", "run1", 1000, domain.TransitionOpen)
	if err := store.Insert(ctx, tr); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.RunID != "run1" || got.Price != 100 {
		t.Errorf("unexpected transition %+v", got)
	}

	// Mutating the returned copy must not affect the store
	got.Price = 999
	again, _ := store.GetByID(ctx, "t1")
	if again.Price != 100 {
		t.Error("store returned a live reference, not a copy")
	}
}

func TestPositionTransitionStore_DuplicateKey(t *testing.T) {
	store := NewPositionTransitionStore()
	ctx := context.Background()

	tr := transition("t1", "run1", 1000, domain.TransitionOpen)
	if err := store.Insert(ctx, tr); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, tr)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestPositionTransitionStore_GetByIDNotFound(t *testing.T) {
	store := NewPositionTransitionStore()

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPositionTransitionStore_InsertBulkAtomic(t *testing.T) {
	store := NewPositionTransitionStore()
	ctx := context.Background()

	if err := store.Insert(ctx, transition("t1", "run1", 1000, domain.TransitionOpen)); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	batch := []*domain.PositionTransition{
		transition("t2", "run1", 2000, domain.TransitionClose),
		transition("t1", "run1", 3000, domain.TransitionOpen), // duplicate
	}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// The whole batch must have been rejected
	if _, err := store.GetByID(ctx, "t2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("batch was partially applied: %v", err)
	}
}

func TestPositionTransitionStore_GetByRunIDOrder(t *testing.T) {
	store := NewPositionTransitionStore()
	ctx := context.Background()

	batch := []*domain.PositionTransition{
		transition("t3", "run1", 3000, domain.TransitionClose),
		transition("t1", "run1", 1000, domain.TransitionOpen),
		transition("t2", "run1", 2000, domain.TransitionClose),
		transition("x1", "run2", 500, domain.TransitionOpen),
	}
	if err := store.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 transitions, got %d", len(result))
	}
	for i := 1; i < len(result); i++ {
		if result[i].TimestampMs < result[i-1].TimestampMs {
			t.Errorf("result not ordered by timestamp: %+v", result)
		}
	}
}

func TestPositionTransitionStore_ReverseLegOrderWithinTick(t *testing.T) {
	store := NewPositionTransitionStore()
	ctx := context.Background()

	closeLeg := transition("tc", "run1", 1000, domain.TransitionClose)
	openLeg := transition("to", "run1", 1000, domain.TransitionReverse)
	if err := store.InsertBulk(ctx, []*domain.PositionTransition{openLeg, closeLeg}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if result[0].Kind != domain.TransitionClose {
		t.Errorf("closing leg must sort before the reverse open leg: %+v", result)
	}
}

func TestPositionTransitionStore_GetByTimeRange(t *testing.T) {
	store := NewPositionTransitionStore()
	ctx := context.Background()

	batch := []*domain.PositionTransition{
		transition("t1", "run1", 1000, domain.TransitionOpen),
		transition("t2", "run1", 2000, domain.TransitionClose),
		transition("t3", "run1", 3000, domain.TransitionOpen),
	}
	if err := store.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, "BTCUSDT", 1000, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("Expected 2 transitions in range, got %d", len(result))
	}
}

func TestPositionTransitionStore_InvalidInput(t *testing.T) {
	store := NewPositionTransitionStore()

	if err := store.Insert(context.Background(), &domain.PositionTransition{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
