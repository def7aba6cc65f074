// Package replay re-runs the evaluation pipeline over archived tick
// history. The book is synthesized from trade prints, analytics run on a
// fixed synthetic clock, and every emitted result is flagged degraded so
// downstream consumers never mistake replay output for live L2 state.
package replay

import (
	"context"
	"errors"
	"io"

	"orderflow-lab/internal/book"
	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/evaluator"
	"orderflow-lab/internal/orderflow"
	"orderflow-lab/internal/sandbox"
	"orderflow-lab/internal/signal"
)

// Default engine parameters.
const (
	DefaultTickSec   = 1.0
	DefaultWindowSec = 60.0
)

// Options tunes the replay engine.
type Options struct {
	// TickSec is the synthetic evaluation step in seconds.
	TickSec float64
	// WindowSec is the trailing trade window folded into each tick.
	WindowSec float64
	// TickSize sets the synthetic book's half-spread around the mid.
	TickSize float64
	Flow     orderflow.Options
	Signal   signal.Options
}

func (o Options) withDefaults() Options {
	if o.TickSec <= 0 {
		o.TickSec = DefaultTickSec
	}
	if o.WindowSec <= 0 {
		o.WindowSec = DefaultWindowSec
	}
	// The analytics window follows the engine window so live and replay
	// ticks measure the same trailing span.
	if o.Flow.WindowSec <= 0 {
		o.Flow.WindowSec = o.WindowSec
	}
	return o
}

// TradeIterator streams trades in non-decreasing time order. Next returns
// io.EOF after the last trade.
type TradeIterator interface {
	Next() (domain.Trade, error)
}

// Emit receives the result of one synthetic tick. Returning an error
// aborts the pass.
type Emit func(snap *domain.FlowSnapshot, transitions []domain.PositionTransition) error

// Engine folds a time-ordered trade stream into fixed synthetic ticks.
// State carries over between Process calls, so consecutive days of one
// range replay as a single continuous pass.
type Engine struct {
	symbol string
	opts   Options
	box    *sandbox.Sandbox
	synth  *book.SyntheticBook

	window     []domain.Trade
	lastPrice  float64
	nextTickMs int64
	ticks      int
}

// NewEngine creates a replay engine driving the given sandbox.
func NewEngine(symbol string, box *sandbox.Sandbox, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		symbol: symbol,
		opts:   opts,
		box:    box,
		synth:  book.NewSynthetic(symbol, opts.TickSize),
	}
}

// Ticks returns how many synthetic ticks have been evaluated.
func (e *Engine) Ticks() int {
	return e.ticks
}

// Sandbox returns the driven sandbox.
func (e *Engine) Sandbox() *sandbox.Sandbox {
	return e.box
}

// Process consumes the iterator until io.EOF, evaluating a tick at every
// TickSec boundary the stream crosses. Cancelling the context aborts the
// pass mid-stream; an aborted pass must not be recorded as complete.
func (e *Engine) Process(ctx context.Context, it TradeIterator, emit Emit) error {
	tickMs := int64(e.opts.TickSec * 1000)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		trade, err := it.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		if e.nextTickMs == 0 {
			e.nextTickMs = trade.TimestampMs + tickMs
		}

		// The tick boundary closes before this trade joins the window.
		for trade.TimestampMs >= e.nextTickMs {
			if err := e.evaluateTick(e.nextTickMs, emit); err != nil {
				return err
			}
			e.nextTickMs += tickMs
		}

		e.window = append(e.window, trade)
		e.lastPrice = trade.Price
	}

	// Fold the tail of the stream into one closing tick.
	if e.nextTickMs != 0 && len(e.window) > 0 && e.window[len(e.window)-1].TimestampMs < e.nextTickMs {
		if err := e.evaluateTick(e.nextTickMs, emit); err != nil {
			return err
		}
		e.nextTickMs += tickMs
	}

	return nil
}

// evaluateTick runs one synthetic evaluation at tsMs.
func (e *Engine) evaluateTick(tsMs int64, emit Emit) error {
	e.pruneWindow(tsMs)

	delta := orderflow.ComputeDelta(e.window, tsMs, e.opts.Flow)
	e.synth.Update(e.lastPrice, delta.DeltaRatio, tsMs)

	flow := orderflow.Analyze(orderflow.Inputs{
		Symbol: e.symbol,
		Book:   e.synth.Snapshot(),
		Trades: e.window,
		NowMs:  tsMs,
	}, e.opts.Flow)
	flow.Degraded = true

	sig := signal.Compute(flow, tsMs, e.opts.Signal)
	transitions := e.box.Tick(sig, flow.MidPrice, tsMs)

	e.ticks++
	if emit == nil {
		return nil
	}
	return emit(evaluator.Flatten(flow, sig), transitions)
}

// pruneWindow drops trades older than the trailing window ending at tsMs.
func (e *Engine) pruneWindow(tsMs int64) {
	cutoff := tsMs - int64(e.opts.WindowSec*1000)
	drop := 0
	for drop < len(e.window) && e.window[drop].TimestampMs < cutoff {
		drop++
	}
	if drop > 0 {
		e.window = append(e.window[:0], e.window[drop:]...)
	}
}
