package postgres

import (
	"context"
	"fmt"

	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/storage"
)

// CompletionLedgerStore implements storage.CompletionLedgerStore using PostgreSQL.
type CompletionLedgerStore struct {
	pool *Pool
}

// NewCompletionLedgerStore creates a new CompletionLedgerStore.
func NewCompletionLedgerStore(pool *Pool) *CompletionLedgerStore {
	return &CompletionLedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CompletionLedgerStore = (*CompletionLedgerStore)(nil)

// MarkCompleted appends a completed range. Returns ErrDuplicateKey if the
// identical (symbol, from_date, to_date) entry already exists.
func (s *CompletionLedgerStore) MarkCompleted(ctx context.Context, r domain.ReplayRange) error {
	if r.Symbol == "" || r.FromDate == "" || r.ToDate == "" || r.FromDate > r.ToDate {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO replay_completions (symbol, from_date, to_date)
		VALUES ($1, $2, $3)
	`

	_, err := s.pool.Exec(ctx, query, r.Symbol, r.FromDate, r.ToDate)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert replay completion: %w", err)
	}
	return nil
}

// Completed retrieves all completed ranges for a symbol, ordered by from_date ASC.
func (s *CompletionLedgerStore) Completed(ctx context.Context, symbol string) ([]domain.ReplayRange, error) {
	query := `
		SELECT symbol, from_date, to_date
		FROM replay_completions
		WHERE symbol = $1
		ORDER BY from_date ASC, to_date ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get replay completions: %w", err)
	}
	defer rows.Close()

	var ranges []domain.ReplayRange
	for rows.Next() {
		var r domain.ReplayRange
		if err := rows.Scan(&r.Symbol, &r.FromDate, &r.ToDate); err != nil {
			return nil, fmt.Errorf("scan replay completion row: %w", err)
		}
		ranges = append(ranges, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replay completion rows: %w", err)
	}

	return ranges, nil
}
