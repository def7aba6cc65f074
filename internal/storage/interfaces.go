package storage

import (
	"context"

	"orderflow-lab/internal/domain"
)

// PositionTransitionStore provides access to position_transitions storage.
type PositionTransitionStore interface {
	// Insert adds a new transition. Returns ErrDuplicateKey if transition_id exists.
	Insert(ctx context.Context, tr *domain.PositionTransition) error

	// InsertBulk adds multiple transitions atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trs []*domain.PositionTransition) error

	// GetByID retrieves a transition by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, transitionID string) (*domain.PositionTransition, error)

	// GetByRunID retrieves all transitions of a run, ordered by timestamp ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.PositionTransition, error)

	// GetByTimeRange retrieves transitions for a symbol within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.PositionTransition, error)
}

// FlowSnapshotStore provides access to flow_snapshots timeseries storage.
type FlowSnapshotStore interface {
	// InsertBulk adds multiple snapshots. Fails entire batch on duplicate (symbol, timestamp_ms).
	InsertBulk(ctx context.Context, snaps []*domain.FlowSnapshot) error

	// GetBySymbol retrieves all snapshots for a symbol, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.FlowSnapshot, error)

	// GetByTimeRange retrieves snapshots for a symbol within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.FlowSnapshot, error)
}

// CompletionLedgerStore provides access to the replay completion ledger.
// The ledger is append-only: entries record date ranges fully replayed.
type CompletionLedgerStore interface {
	// MarkCompleted appends a completed range. Returns ErrDuplicateKey if the
	// identical (symbol, from_date, to_date) entry already exists.
	MarkCompleted(ctx context.Context, r domain.ReplayRange) error

	// Completed retrieves all completed ranges for a symbol, ordered by from_date ASC.
	Completed(ctx context.Context, symbol string) ([]domain.ReplayRange, error)
}
