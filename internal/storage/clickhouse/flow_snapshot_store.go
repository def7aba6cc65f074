package clickhouse

import (
	"context"
	"fmt"

	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/storage"
)

// FlowSnapshotStore implements storage.FlowSnapshotStore using ClickHouse.
type FlowSnapshotStore struct {
	conn *Conn
}

// NewFlowSnapshotStore creates a new FlowSnapshotStore.
func NewFlowSnapshotStore(conn *Conn) *FlowSnapshotStore {
	return &FlowSnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FlowSnapshotStore = (*FlowSnapshotStore)(nil)

// InsertBulk adds multiple snapshots. Fails entire batch on duplicate (symbol, timestamp_ms).
func (s *FlowSnapshotStore) InsertBulk(ctx context.Context, snaps []*domain.FlowSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol      string
		timestampMs int64
	}
	seen := make(map[key]struct{})
	for _, sn := range snaps {
		if sn == nil || sn.Symbol == "" {
			return storage.ErrInvalidInput
		}
		k := key{sn.Symbol, sn.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, sn := range snaps {
		exists, err := s.exists(ctx, sn.Symbol, sn.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO flow_snapshots (
			symbol, timestamp_ms, mid_price, imbalance_ratio,
			delta, delta_ratio, volume_per_sec, trade_count,
			wall_count, sweep_side, signal_direction, confidence, degraded
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, sn := range snaps {
		var degraded uint8
		if sn.Degraded {
			degraded = 1
		}
		err = batch.Append(
			sn.Symbol, sn.TimestampMs, sn.MidPrice, sn.ImbalanceRatio,
			sn.Delta, sn.DeltaRatio, sn.VolumePerSec, int32(sn.TradeCount),
			int32(sn.WallCount), sn.SweepSide, sn.SignalDirection, sn.Confidence, degraded,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all snapshots for a symbol, ordered by timestamp ASC.
func (s *FlowSnapshotStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.FlowSnapshot, error) {
	query := `
		SELECT symbol, timestamp_ms, mid_price, imbalance_ratio,
		       delta, delta_ratio, volume_per_sec, trade_count,
		       wall_count, sweep_side, signal_direction, confidence, degraded
		FROM flow_snapshots
		WHERE symbol = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanFlowSnapshots(rows)
}

// GetByTimeRange retrieves snapshots for a symbol within [start, end] (inclusive).
func (s *FlowSnapshotStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.FlowSnapshot, error) {
	query := `
		SELECT symbol, timestamp_ms, mid_price, imbalance_ratio,
		       delta, delta_ratio, volume_per_sec, trade_count,
		       wall_count, sweep_side, signal_direction, confidence, degraded
		FROM flow_snapshots
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanFlowSnapshots(rows)
}

// exists checks if a snapshot with the given key exists.
func (s *FlowSnapshotStore) exists(ctx context.Context, symbol string, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM flow_snapshots
		WHERE symbol = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, timestampMs).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanFlowSnapshots scans multiple rows into a slice.
func scanFlowSnapshots(rows chRows) ([]*domain.FlowSnapshot, error) {
	var snaps []*domain.FlowSnapshot

	for rows.Next() {
		var sn domain.FlowSnapshot
		var tradeCount, wallCount int32
		var degraded uint8

		err := rows.Scan(
			&sn.Symbol, &sn.TimestampMs, &sn.MidPrice, &sn.ImbalanceRatio,
			&sn.Delta, &sn.DeltaRatio, &sn.VolumePerSec, &tradeCount,
			&wallCount, &sn.SweepSide, &sn.SignalDirection, &sn.Confidence, &degraded,
		)
		if err != nil {
			return nil, fmt.Errorf("scan flow snapshot row: %w", err)
		}

		sn.TradeCount = int(tradeCount)
		sn.WallCount = int(wallCount)
		sn.Degraded = degraded != 0
		snaps = append(snaps, &sn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flow snapshot rows: %w", err)
	}

	return snaps, nil
}
