// Package evaluator drives the live evaluation loop: each tick it reads a
// consistent book snapshot and trade window, computes order-flow analytics
// and the directional signal, advances the virtual position, and persists
// the flattened snapshot plus any position transitions.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"orderflow-lab/internal/book"
	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/observability"
	"orderflow-lab/internal/orderflow"
	"orderflow-lab/internal/sandbox"
	"orderflow-lab/internal/signal"
	"orderflow-lab/internal/storage"
)

// Default evaluation parameters.
const (
	DefaultInterval   = 1 * time.Second
	DefaultStaleAfter = 5 * time.Second
	DefaultFlushEvery = 10
)

// Config tunes the evaluation loop.
type Config struct {
	Symbol string
	RunID  string
	// Interval between evaluation ticks.
	Interval time.Duration
	// StaleAfter marks inputs degraded when the book has not advanced for
	// this long. Degraded ticks still evaluate; confidence is downgraded
	// downstream, never blocked.
	StaleAfter time.Duration
	// FlushEvery batches this many flow snapshots per storage write.
	FlushEvery int
	Flow       orderflow.Options
	Signal     signal.Options
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = DefaultFlushEvery
	}
	return c
}

// BookSource hands out consistent ladder snapshots.
type BookSource interface {
	Snapshot() *book.Snapshot
	Synced() bool
}

// TradeSource hands out time-windowed trade slices.
type TradeSource interface {
	Window(startMs, endMs int64) []domain.Trade
}

// Evaluator is the live evaluation loop. Single-owner: Run is the only
// goroutine touching the sandbox and the pending snapshot batch.
type Evaluator struct {
	cfg     Config
	books   BookSource
	trades  TradeSource
	box     *sandbox.Sandbox
	snaps   storage.FlowSnapshotStore
	trans   storage.PositionTransitionStore
	logger  *log.Logger
	metrics *observability.Metrics
	now     func() time.Time

	pending []*domain.FlowSnapshot
}

// New creates an evaluator. Stores may be nil to run without persistence.
func New(cfg Config, books BookSource, trades TradeSource, box *sandbox.Sandbox, snaps storage.FlowSnapshotStore, trans storage.PositionTransitionStore, logger *log.Logger, metrics *observability.Metrics) *Evaluator {
	if logger == nil {
		logger = log.Default()
	}
	return &Evaluator{
		cfg:     cfg.withDefaults(),
		books:   books,
		trades:  trades,
		box:     box,
		snaps:   snaps,
		trans:   trans,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Run evaluates on every interval tick until the context is cancelled,
// then force-closes any open position and flushes pending writes.
func (e *Evaluator) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return e.shutdown()
		case <-ticker.C:
			if err := e.evaluateOnce(ctx, e.now()); err != nil {
				e.logger.Printf("evaluate: %v", err)
			}
		}
	}
}

// evaluateOnce runs one full tick: analytics, signal, position, persistence.
func (e *Evaluator) evaluateOnce(ctx context.Context, now time.Time) error {
	started := e.now()
	nowMs := now.UnixMilli()

	snap := e.books.Snapshot()
	windowMs := int64(e.cfg.Flow.WindowSec * 1000)
	if windowMs <= 0 {
		windowMs = int64(orderflow.DefaultWindowSec * 1000)
	}
	trades := e.trades.Window(nowMs-windowMs, nowMs)

	degraded := snap == nil ||
		!e.books.Synced() ||
		snap.UpdatedAtMs == 0 ||
		nowMs-snap.UpdatedAtMs > e.cfg.StaleAfter.Milliseconds()

	flow := orderflow.Analyze(orderflow.Inputs{
		Symbol: e.cfg.Symbol,
		Book:   snap,
		Trades: trades,
		NowMs:  nowMs,
	}, e.cfg.Flow)
	flow.Degraded = degraded

	sig := signal.Compute(flow, nowMs, e.cfg.Signal)

	transitions := e.box.Tick(sig, flow.MidPrice, nowMs)

	e.observe(flow, sig, transitions, degraded, started)

	var firstErr error
	if len(transitions) > 0 && e.trans != nil {
		batch := make([]*domain.PositionTransition, len(transitions))
		for i := range transitions {
			batch[i] = &transitions[i]
		}
		if err := e.trans.InsertBulk(ctx, batch); err != nil {
			firstErr = fmt.Errorf("insert transitions: %w", err)
		}
	}

	if e.snaps != nil {
		e.pending = append(e.pending, Flatten(flow, sig))
		if len(e.pending) >= e.cfg.FlushEvery {
			if err := e.flush(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// flush writes the pending snapshot batch. On failure the batch is kept
// for the next attempt; on a duplicate-key failure it is dropped, since
// retrying the same batch can never succeed.
func (e *Evaluator) flush(ctx context.Context) error {
	if len(e.pending) == 0 {
		return nil
	}
	if err := e.snaps.InsertBulk(ctx, e.pending); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			e.pending = nil
		}
		return fmt.Errorf("insert flow snapshots: %w", err)
	}
	e.pending = nil
	return nil
}

// shutdown force-closes the position and drains pending writes. Uses a
// fresh context: the run context is already cancelled.
func (e *Evaluator) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error
	if tr := e.box.ForceClose(e.now().UnixMilli()); tr != nil {
		if e.metrics != nil {
			e.metrics.TransitionsRecorded.WithLabelValues(string(tr.Kind)).Inc()
		}
		if e.trans != nil {
			if err := e.trans.Insert(ctx, tr); err != nil {
				firstErr = fmt.Errorf("insert forced close: %w", err)
			}
		}
	}

	if e.snaps != nil {
		if err := e.flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// observe updates metrics for one tick.
func (e *Evaluator) observe(flow domain.OrderFlowResult, sig domain.SignalResult, transitions []domain.PositionTransition, degraded bool, started time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.TicksEvaluated.Inc()
	if degraded {
		e.metrics.StaleEvaluations.Inc()
	}
	e.metrics.SignalsEmitted.WithLabelValues(string(sig.Direction)).Inc()
	for _, tr := range transitions {
		e.metrics.TransitionsRecorded.WithLabelValues(string(tr.Kind)).Inc()
	}
	e.metrics.BookBidVolume.Set(flow.DOM.BidVolume)
	e.metrics.BookAskVolume.Set(flow.DOM.AskVolume)
	e.metrics.SandboxEquity.Set(e.box.Equity())
	e.metrics.EvaluationDuration.Observe(e.now().Sub(started).Seconds())
}

// Flatten converts one tick's analytics and signal into the persisted
// snapshot row.
func Flatten(flow domain.OrderFlowResult, sig domain.SignalResult) *domain.FlowSnapshot {
	return &domain.FlowSnapshot{
		Symbol:          flow.Symbol,
		TimestampMs:     flow.TimestampMs,
		MidPrice:        flow.MidPrice,
		ImbalanceRatio:  flow.DOM.ImbalanceRatio,
		Delta:           flow.Delta.Delta,
		DeltaRatio:      flow.Delta.DeltaRatio,
		VolumePerSec:    flow.Tape.VolumePerSec,
		TradeCount:      flow.Tape.TradeCount,
		WallCount:       len(flow.DOM.Walls),
		SweepSide:       string(flow.Sweeps.LastSide),
		SignalDirection: string(sig.Direction),
		Confidence:      sig.Confidence,
		Degraded:        flow.Degraded,
	}
}
