package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/storage"
)

// PositionTransitionStore implements storage.PositionTransitionStore using PostgreSQL.
type PositionTransitionStore struct {
	pool *Pool
}

// NewPositionTransitionStore creates a new PositionTransitionStore.
func NewPositionTransitionStore(pool *Pool) *PositionTransitionStore {
	return &PositionTransitionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionTransitionStore = (*PositionTransitionStore)(nil)

const insertTransitionQuery = `
	INSERT INTO position_transitions (
		transition_id, run_id, symbol, timestamp_ms,
		kind, side, price, size,
		direction, confidence, realized_pnl, exit_reason
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8,
		$9, $10, $11, $12
	)
`

const selectTransitionColumns = `
	transition_id, run_id, symbol, timestamp_ms,
	kind, side, price, size,
	direction, confidence, realized_pnl, exit_reason
`

// Insert adds a new transition. Returns ErrDuplicateKey if transition_id exists.
func (s *PositionTransitionStore) Insert(ctx context.Context, tr *domain.PositionTransition) error {
	if tr == nil || tr.TransitionID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTransitionQuery,
		tr.TransitionID, tr.RunID, tr.Symbol, tr.TimestampMs,
		tr.Kind, tr.Side, tr.Price, tr.Size,
		tr.Direction, tr.Confidence, tr.RealizedPnL, tr.ExitReason,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position transition: %w", err)
	}
	return nil
}

// InsertBulk adds multiple transitions atomically. Fails entire batch on any duplicate.
func (s *PositionTransitionStore) InsertBulk(ctx context.Context, trs []*domain.PositionTransition) error {
	if len(trs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, tr := range trs {
		if tr == nil || tr.TransitionID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertTransitionQuery,
			tr.TransitionID, tr.RunID, tr.Symbol, tr.TimestampMs,
			tr.Kind, tr.Side, tr.Price, tr.Size,
			tr.Direction, tr.Confidence, tr.RealizedPnL, tr.ExitReason,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert position transition in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a transition by its ID. Returns ErrNotFound if not exists.
func (s *PositionTransitionStore) GetByID(ctx context.Context, transitionID string) (*domain.PositionTransition, error) {
	query := `SELECT` + selectTransitionColumns + `FROM position_transitions WHERE transition_id = $1`

	row := s.pool.QueryRow(ctx, query, transitionID)
	tr, err := scanTransition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position transition by id: %w", err)
	}
	return tr, nil
}

// GetByRunID retrieves all transitions of a run, ordered by timestamp ASC.
// Within one timestamp the closing leg of a reverse sorts first.
func (s *PositionTransitionStore) GetByRunID(ctx context.Context, runID string) ([]*domain.PositionTransition, error) {
	query := `
		SELECT` + selectTransitionColumns + `
		FROM position_transitions
		WHERE run_id = $1
		ORDER BY timestamp_ms ASC, (kind = 'close') DESC, transition_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get position transitions by run id: %w", err)
	}
	defer rows.Close()

	return scanTransitions(rows)
}

// GetByTimeRange retrieves transitions for a symbol within [start, end] (inclusive).
func (s *PositionTransitionStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.PositionTransition, error) {
	query := `
		SELECT` + selectTransitionColumns + `
		FROM position_transitions
		WHERE symbol = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY timestamp_ms ASC, (kind = 'close') DESC, transition_id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("get position transitions by time range: %w", err)
	}
	defer rows.Close()

	return scanTransitions(rows)
}

// scanTransition scans a single row into a PositionTransition.
func scanTransition(row pgx.Row) (*domain.PositionTransition, error) {
	var tr domain.PositionTransition

	err := row.Scan(
		&tr.TransitionID, &tr.RunID, &tr.Symbol, &tr.TimestampMs,
		&tr.Kind, &tr.Side, &tr.Price, &tr.Size,
		&tr.Direction, &tr.Confidence, &tr.RealizedPnL, &tr.ExitReason,
	)
	if err != nil {
		return nil, err
	}

	return &tr, nil
}

// scanTransitions scans multiple rows into a slice of PositionTransition.
func scanTransitions(rows pgx.Rows) ([]*domain.PositionTransition, error) {
	var trs []*domain.PositionTransition

	for rows.Next() {
		var tr domain.PositionTransition

		err := rows.Scan(
			&tr.TransitionID, &tr.RunID, &tr.Symbol, &tr.TimestampMs,
			&tr.Kind, &tr.Side, &tr.Price, &tr.Size,
			&tr.Direction, &tr.Confidence, &tr.RealizedPnL, &tr.ExitReason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position transition row: %w", err)
		}

		trs = append(trs, &tr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position transition rows: %w", err)
	}

	return trs, nil
}
