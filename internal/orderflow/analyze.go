package orderflow

import (
	"sync"

	"orderflow-lab/internal/book"
	"orderflow-lab/internal/domain"
)

// Inputs carries everything one evaluation tick analyzes: a consistent book
// snapshot, the trade window ending at NowMs, and optional external sweep
// references.
type Inputs struct {
	Symbol  string
	Book    *book.Snapshot
	Trades  []domain.Trade
	Zones   []domain.ReferenceLevel
	Candles []domain.Candle
	NowMs   int64
}

// Analyze runs the four analytics concurrently over the same inputs and
// joins the results. Each branch works on its own copy-safe view: the
// snapshot is never mutated and the sweep branch derives its own wall set
// rather than reading the DOM branch's output.
func Analyze(in Inputs, opts Options) domain.OrderFlowResult {
	opts = opts.withDefaults()

	res := domain.OrderFlowResult{
		Symbol:      in.Symbol,
		TimestampMs: in.NowMs,
	}
	if in.Book != nil {
		res.MidPrice = in.Book.Mid()
	}

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		if in.Book != nil {
			res.DOM = AnalyzeDOM(in.Book, opts)
		}
	}()
	go func() {
		defer wg.Done()
		res.Tape = AnalyzeTape(in.Trades, in.NowMs, opts)
	}()
	go func() {
		defer wg.Done()
		res.Delta = ComputeDelta(in.Trades, in.NowMs, opts)
	}()
	go func() {
		defer wg.Done()
		var walls []domain.Wall
		if in.Book != nil {
			walls = bookWalls(in.Book, opts)
		}
		res.Sweeps = DetectSweeps(windowTrades(in.Trades, in.NowMs, opts), walls, in.Zones, in.Candles, in.NowMs, opts)
	}()
	wg.Wait()

	return res
}

// bookWalls recomputes wall levels from the snapshot for the sweep branch,
// so the two branches stay independent under the fan-out.
func bookWalls(snap *book.Snapshot, opts Options) []domain.Wall {
	bids := topLevels(snap.Bids, opts.DepthLevels)
	asks := topLevels(snap.Asks, opts.DepthLevels)
	return wallLevels(bids, asks, opts)
}

// windowTrades narrows the trade slice to [nowMs-window, nowMs].
func windowTrades(trades []domain.Trade, nowMs int64, opts Options) []domain.Trade {
	startMs := nowMs - int64(opts.WindowSec*1000)
	lo := 0
	for lo < len(trades) && trades[lo].TimestampMs < startMs {
		lo++
	}
	hi := len(trades)
	for hi > lo && trades[hi-1].TimestampMs > nowMs {
		hi--
	}
	return trades[lo:hi]
}
