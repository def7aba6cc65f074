package memory

import (
	"context"
	"errors"
	"testing"

	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/storage"
)

func snapshot(symbol string, tsMs int64) *domain.FlowSnapshot {
	return &domain.FlowSnapshot{
		Symbol:         symbol,
		TimestampMs:    tsMs,
		MidPrice:       100,
		ImbalanceRatio: 1.2,
		Delta:          5,
	}
}

func TestFlowSnapshotStore_InsertBulkAndGet(t *testing.T) {
	store := NewFlowSnapshotStore()
	ctx := context.Background()

	batch := []*domain.FlowSnapshot{
		snapshot("BTCUSDT", 3000),
		snapshot("BTCUSDT", 1000),
		snapshot("ETHUSDT", 2000),
	}
	if err := store.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetBySymbol(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(result))
	}
	if result[0].TimestampMs != 1000 || result[1].TimestampMs != 3000 {
		t.Errorf("result not ordered by timestamp: %+v", result)
	}
}

func TestFlowSnapshotStore_DuplicateKey(t *testing.T) {
	store := NewFlowSnapshotStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.FlowSnapshot{snapshot("BTCUSDT", 1000)}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.FlowSnapshot{snapshot("BTCUSDT", 1000)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestFlowSnapshotStore_IntraBatchDuplicate(t *testing.T) {
	store := NewFlowSnapshotStore()

	batch := []*domain.FlowSnapshot{
		snapshot("BTCUSDT", 1000),
		snapshot("BTCUSDT", 1000),
	}
	err := store.InsertBulk(context.Background(), batch)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	result, _ := store.GetBySymbol(context.Background(), "BTCUSDT")
	if len(result) != 0 {
		t.Errorf("batch was partially applied: %+v", result)
	}
}

func TestFlowSnapshotStore_GetByTimeRange(t *testing.T) {
	store := NewFlowSnapshotStore()
	ctx := context.Background()

	batch := []*domain.FlowSnapshot{
		snapshot("BTCUSDT", 1000),
		snapshot("BTCUSDT", 2000),
		snapshot("BTCUSDT", 3000),
	}
	if err := store.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, "BTCUSDT", 2000, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("Expected 2 snapshots in range, got %d", len(result))
	}
}
