package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/storage"
)

// FlowSnapshotStore is an in-memory implementation of storage.FlowSnapshotStore.
type FlowSnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FlowSnapshot // keyed by symbol|timestamp_ms
}

// NewFlowSnapshotStore creates a new in-memory flow snapshot store.
func NewFlowSnapshotStore() *FlowSnapshotStore {
	return &FlowSnapshotStore{
		data: make(map[string]*domain.FlowSnapshot),
	}
}

func flowSnapshotKey(symbol string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", symbol, timestampMs)
}

// InsertBulk adds multiple snapshots. Fails entire batch on duplicate (symbol, timestamp_ms).
func (s *FlowSnapshotStore) InsertBulk(_ context.Context, snaps []*domain.FlowSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(snaps))
	for _, sn := range snaps {
		if sn == nil || sn.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := flowSnapshotKey(sn.Symbol, sn.TimestampMs)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, sn := range snaps {
		snCopy := *sn
		s.data[flowSnapshotKey(sn.Symbol, sn.TimestampMs)] = &snCopy
	}

	return nil
}

// GetBySymbol retrieves all snapshots for a symbol, ordered by timestamp ASC.
func (s *FlowSnapshotStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.FlowSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FlowSnapshot
	for _, sn := range s.data {
		if sn.Symbol == symbol {
			snCopy := *sn
			result = append(result, &snCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// GetByTimeRange retrieves snapshots for a symbol within [start, end] (inclusive).
func (s *FlowSnapshotStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.FlowSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FlowSnapshot
	for _, sn := range s.data {
		if sn.Symbol == symbol && sn.TimestampMs >= start && sn.TimestampMs <= end {
			snCopy := *sn
			result = append(result, &snCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

var _ storage.FlowSnapshotStore = (*FlowSnapshotStore)(nil)
