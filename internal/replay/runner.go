package replay

import (
	"context"
	"errors"
	"fmt"
	"log"

	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/history"
	"orderflow-lab/internal/idhash"
	"orderflow-lab/internal/observability"
	"orderflow-lab/internal/sandbox"
	"orderflow-lab/internal/storage"
)

// snapshotBatchSize batches replay flow snapshots per storage write.
const snapshotBatchSize = 500

// RunConfig describes one replay invocation.
type RunConfig struct {
	Symbol   string
	FromDate string // YYYY-MM-DD, inclusive
	ToDate   string // YYYY-MM-DD, inclusive
	// Force replays the range even when the ledger already covers it.
	Force   bool
	Sandbox sandbox.Config
	Engine  Options
}

// RunResult summarizes one replay invocation.
type RunResult struct {
	RunID       string
	Skipped     bool // range already covered, nothing replayed
	Ticks       int
	Transitions int
	FinalEquity float64
	Position    domain.SandboxPosition
}

// Runner replays tick history ranges and keeps the completion ledger.
// Only a full uninterrupted pass over a range is recorded; any failure or
// cancellation leaves the ledger unmarked so the range replays again.
type Runner struct {
	dir     string
	ledger  storage.CompletionLedgerStore
	snaps   storage.FlowSnapshotStore
	trans   storage.PositionTransitionStore
	logger  *log.Logger
	metrics *observability.Metrics
}

// NewRunner creates a replay runner reading tick files under dir. The
// snapshot and transition stores may be nil to replay without persistence;
// the ledger is required.
func NewRunner(dir string, ledger storage.CompletionLedgerStore, snaps storage.FlowSnapshotStore, trans storage.PositionTransitionStore, logger *log.Logger, metrics *observability.Metrics) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		dir:     dir,
		ledger:  ledger,
		snaps:   snaps,
		trans:   trans,
		logger:  logger,
		metrics: metrics,
	}
}

// Run replays [FromDate, ToDate] for a symbol. A range the ledger already
// covers is skipped as a successful no-op unless Force is set.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	dates, err := history.DatesBetween(cfg.FromDate, cfg.ToDate)
	if err != nil {
		return nil, err
	}

	if !cfg.Force {
		covered, err := r.covered(ctx, cfg.Symbol, cfg.FromDate, cfg.ToDate)
		if err != nil {
			return nil, err
		}
		if covered {
			if r.metrics != nil {
				r.metrics.ReplayRangesSkipped.Inc()
			}
			r.logger.Printf("replay %s %s..%s already completed, skipping", cfg.Symbol, cfg.FromDate, cfg.ToDate)
			return &RunResult{Skipped: true}, nil
		}
	}

	runID := idhash.ComputeRunID("replay", cfg.Symbol, cfg.FromDate, cfg.ToDate)
	box := sandbox.New(runID, cfg.Symbol, cfg.Sandbox)
	engine := NewEngine(cfg.Symbol, box, cfg.Engine)

	sink := &persistSink{ctx: ctx, runner: r}

	for _, date := range dates {
		if err := r.replayDay(ctx, engine, sink, cfg.Symbol, date); err != nil {
			return nil, fmt.Errorf("replay %s %s: %w", cfg.Symbol, date, err)
		}
	}

	// Close out the virtual position at the end of the range so realized
	// PnL reflects the full pass.
	if tr := box.ForceClose(endOfRangeMs(engine)); tr != nil {
		if err := sink.transitions([]domain.PositionTransition{*tr}); err != nil {
			return nil, err
		}
	}

	if err := sink.flush(); err != nil {
		return nil, err
	}

	if err := r.markCompleted(ctx, cfg); err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.ReplayRangesCompleted.Inc()
	}

	return &RunResult{
		RunID:       runID,
		Ticks:       engine.Ticks(),
		Transitions: len(box.Transitions()),
		FinalEquity: box.Equity(),
		Position:    box.Position(),
	}, nil
}

// covered reports whether the merged ledger ranges contain [from, to].
func (r *Runner) covered(ctx context.Context, symbol, from, to string) (bool, error) {
	completed, err := r.ledger.Completed(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("read completion ledger: %w", err)
	}
	for _, rng := range domain.MergeRanges(completed) {
		if rng.Covers(from, to) {
			return true, nil
		}
	}
	return false, nil
}

// replayDay streams one day's tick file through the engine.
func (r *Runner) replayDay(ctx context.Context, engine *Engine, sink *persistSink, symbol, date string) error {
	reader, err := history.OpenDay(r.dir, symbol, date)
	if err != nil {
		// A missing day leaves a hole in the range; the pass aborts and
		// the ledger stays unmarked.
		return err
	}
	defer reader.Close()

	ticksBefore := engine.Ticks()
	if err := engine.Process(ctx, reader, sink.emit); err != nil {
		return err
	}
	if n := reader.Skipped(); n > 0 {
		r.logger.Printf("replay %s %s: skipped %d malformed rows", symbol, date, n)
	}
	if r.metrics != nil {
		r.metrics.ReplayTicksProcessed.Add(float64(engine.Ticks() - ticksBefore))
	}
	return nil
}

// markCompleted records the pass, tolerating an exact duplicate entry
// from a forced re-run.
func (r *Runner) markCompleted(ctx context.Context, cfg RunConfig) error {
	err := r.ledger.MarkCompleted(ctx, domain.ReplayRange{
		Symbol:   cfg.Symbol,
		FromDate: cfg.FromDate,
		ToDate:   cfg.ToDate,
	})
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("mark range completed: %w", err)
	}
	return nil
}

// persistSink buffers replay output into the stores. Transition IDs are
// deterministic, so a forced re-run hits duplicate keys for rows already
// stored; those are dropped rather than failed.
type persistSink struct {
	ctx     context.Context
	runner  *Runner
	pending []*domain.FlowSnapshot
}

func (s *persistSink) emit(snap *domain.FlowSnapshot, transitions []domain.PositionTransition) error {
	if err := s.transitions(transitions); err != nil {
		return err
	}
	if s.runner.snaps == nil {
		return nil
	}
	s.pending = append(s.pending, snap)
	if len(s.pending) >= snapshotBatchSize {
		return s.flush()
	}
	return nil
}

func (s *persistSink) transitions(transitions []domain.PositionTransition) error {
	if s.runner.trans == nil || len(transitions) == 0 {
		return nil
	}
	for i := range transitions {
		err := s.runner.trans.Insert(s.ctx, &transitions[i])
		if errors.Is(err, storage.ErrDuplicateKey) {
			continue
		}
		if err != nil {
			return fmt.Errorf("insert transition: %w", err)
		}
	}
	return nil
}

func (s *persistSink) flush() error {
	if s.runner.snaps == nil || len(s.pending) == 0 {
		return nil
	}
	err := s.runner.snaps.InsertBulk(s.ctx, s.pending)
	if errors.Is(err, storage.ErrDuplicateKey) {
		// Rows from a previous pass over the same range.
		s.pending = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert flow snapshots: %w", err)
	}
	s.pending = nil
	return nil
}

// endOfRangeMs is the timestamp for the closing transition: the last
// evaluated synthetic tick.
func endOfRangeMs(e *Engine) int64 {
	if e.nextTickMs == 0 {
		return 0
	}
	return e.nextTickMs - int64(e.opts.TickSec*1000)
}
