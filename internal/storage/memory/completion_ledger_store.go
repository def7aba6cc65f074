package memory

import (
	"context"
	"sort"
	"sync"

	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/storage"
)

// CompletionLedgerStore is an in-memory implementation of storage.CompletionLedgerStore.
type CompletionLedgerStore struct {
	mu      sync.RWMutex
	entries []domain.ReplayRange
}

// NewCompletionLedgerStore creates a new in-memory completion ledger.
func NewCompletionLedgerStore() *CompletionLedgerStore {
	return &CompletionLedgerStore{}
}

// MarkCompleted appends a completed range. Returns ErrDuplicateKey if the
// identical (symbol, from_date, to_date) entry already exists.
func (s *CompletionLedgerStore) MarkCompleted(_ context.Context, r domain.ReplayRange) error {
	if r.Symbol == "" || r.FromDate == "" || r.ToDate == "" || r.FromDate > r.ToDate {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e == r {
			return storage.ErrDuplicateKey
		}
	}

	s.entries = append(s.entries, r)
	return nil
}

// Completed retrieves all completed ranges for a symbol, ordered by from_date ASC.
func (s *CompletionLedgerStore) Completed(_ context.Context, symbol string) ([]domain.ReplayRange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.ReplayRange
	for _, e := range s.entries {
		if e.Symbol == symbol {
			result = append(result, e)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].FromDate != result[j].FromDate {
			return result[i].FromDate < result[j].FromDate
		}
		return result[i].ToDate < result[j].ToDate
	})

	return result, nil
}

var _ storage.CompletionLedgerStore = (*CompletionLedgerStore)(nil)
