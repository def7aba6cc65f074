package memory

import (
	"context"
	"sort"
	"sync"

	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/storage"
)

// PositionTransitionStore is an in-memory implementation of storage.PositionTransitionStore.
type PositionTransitionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PositionTransition // keyed by transition_id
}

// NewPositionTransitionStore creates a new in-memory transition store.
func NewPositionTransitionStore() *PositionTransitionStore {
	return &PositionTransitionStore{
		data: make(map[string]*domain.PositionTransition),
	}
}

// Insert adds a new transition. Returns ErrDuplicateKey if transition_id exists.
func (s *PositionTransitionStore) Insert(_ context.Context, tr *domain.PositionTransition) error {
	if tr == nil || tr.TransitionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[tr.TransitionID]; exists {
		return storage.ErrDuplicateKey
	}

	trCopy := *tr
	s.data[tr.TransitionID] = &trCopy
	return nil
}

// InsertBulk adds multiple transitions atomically. Fails entire batch on any duplicate.
func (s *PositionTransitionStore) InsertBulk(_ context.Context, trs []*domain.PositionTransition) error {
	if len(trs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(trs))

	// First pass: check for duplicates (existing + intra-batch)
	for _, tr := range trs {
		if tr == nil || tr.TransitionID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[tr.TransitionID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[tr.TransitionID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[tr.TransitionID] = struct{}{}
	}

	// Second pass: insert all
	for _, tr := range trs {
		trCopy := *tr
		s.data[tr.TransitionID] = &trCopy
	}

	return nil
}

// GetByID retrieves a transition by its ID. Returns ErrNotFound if not exists.
func (s *PositionTransitionStore) GetByID(_ context.Context, transitionID string) (*domain.PositionTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tr, exists := s.data[transitionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	trCopy := *tr
	return &trCopy, nil
}

// GetByRunID retrieves all transitions of a run, ordered by timestamp ASC.
func (s *PositionTransitionStore) GetByRunID(_ context.Context, runID string) ([]*domain.PositionTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PositionTransition
	for _, tr := range s.data {
		if tr.RunID == runID {
			trCopy := *tr
			result = append(result, &trCopy)
		}
	}

	sortTransitions(result)
	return result, nil
}

// GetByTimeRange retrieves transitions for a symbol within [start, end] (inclusive).
func (s *PositionTransitionStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.PositionTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PositionTransition
	for _, tr := range s.data {
		if tr.Symbol == symbol && tr.TimestampMs >= start && tr.TimestampMs <= end {
			trCopy := *tr
			result = append(result, &trCopy)
		}
	}

	sortTransitions(result)
	return result, nil
}

// sortTransitions orders by timestamp, close legs before the reverse open
// leg sharing the same tick, id as the final tie-break.
func sortTransitions(trs []*domain.PositionTransition) {
	sort.Slice(trs, func(i, j int) bool {
		if trs[i].TimestampMs != trs[j].TimestampMs {
			return trs[i].TimestampMs < trs[j].TimestampMs
		}
		if trs[i].Kind != trs[j].Kind {
			return trs[i].Kind == domain.TransitionClose
		}
		return trs[i].TransitionID < trs[j].TransitionID
	})
}

var _ storage.PositionTransitionStore = (*PositionTransitionStore)(nil)
