package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-lab/internal/book"
	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/sandbox"
	"orderflow-lab/internal/storage/memory"
)

type fakeBook struct {
	snap   *book.Snapshot
	synced bool
}

func (f *fakeBook) Snapshot() *book.Snapshot { return f.snap }
func (f *fakeBook) Synced() bool             { return f.synced }

type fakeTape struct {
	trades []domain.Trade
}

func (f *fakeTape) Window(startMs, endMs int64) []domain.Trade {
	var out []domain.Trade
	for _, tr := range f.trades {
		if tr.TimestampMs >= startMs && tr.TimestampMs <= endMs {
			out = append(out, tr)
		}
	}
	return out
}

const testNowMs = int64(1_700_000_000_000)

// balancedSnapshot builds a ladder with equal resting volume per side so
// the imbalance contribution stays neutral.
func balancedSnapshot(updatedAtMs int64) *book.Snapshot {
	return &book.Snapshot{
		Symbol:      "BTCUSDT",
		Bids:        []domain.PriceLevel{{Price: 100, Size: 5}, {Price: 99, Size: 5}},
		Asks:        []domain.PriceLevel{{Price: 102, Size: 5}, {Price: 103, Size: 5}},
		Sequence:    7,
		UpdatedAtMs: updatedAtMs,
	}
}

// buyTape produces an all-buy window, which drives the delta contribution
// to its cap and yields a long signal.
func buyTape(nowMs int64) *fakeTape {
	trades := make([]domain.Trade, 0, 30)
	for i := 0; i < 30; i++ {
		trades = append(trades, domain.Trade{
			TradeID:     "t" + string(rune('a'+i%26)),
			Symbol:      "BTCUSDT",
			Price:       101,
			Size:        2,
			Side:        domain.SideBuy,
			TimestampMs: nowMs - int64(30-i)*1000,
		})
	}
	return &fakeTape{trades: trades}
}

func newTestEvaluator(cfg Config, books BookSource, tape TradeSource) (*Evaluator, *sandbox.Sandbox, *memory.FlowSnapshotStore, *memory.PositionTransitionStore) {
	if cfg.Symbol == "" {
		cfg.Symbol = "BTCUSDT"
	}
	if cfg.RunID == "" {
		cfg.RunID = "run-1"
	}
	box := sandbox.New(cfg.RunID, cfg.Symbol, sandbox.Config{
		InitialBalance: 1000,
		TakerFeeRate:   -1,
	})
	snaps := memory.NewFlowSnapshotStore()
	trans := memory.NewPositionTransitionStore()
	ev := New(cfg, books, tape, box, snaps, trans, nil, nil)
	return ev, box, snaps, trans
}

func TestEvaluateOnce_OpensPositionAndPersists(t *testing.T) {
	books := &fakeBook{snap: balancedSnapshot(testNowMs), synced: true}
	ev, box, snaps, trans := newTestEvaluator(Config{FlushEvery: 1}, books, buyTape(testNowMs))

	require.NoError(t, ev.evaluateOnce(context.Background(), time.UnixMilli(testNowMs)))

	assert.Equal(t, domain.PositionLong, box.Position().Side)

	stored, err := trans.GetByRunID(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.TransitionOpen, stored[0].Kind)
	assert.Equal(t, 101.0, stored[0].Price, "opened at mid")

	rows, err := snaps.GetBySymbol(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "long", rows[0].SignalDirection)
	assert.False(t, rows[0].Degraded)
	assert.Equal(t, 30, rows[0].TradeCount)
}

func TestEvaluateOnce_StaleBookDegrades(t *testing.T) {
	stale := balancedSnapshot(testNowMs - 10_000)
	books := &fakeBook{snap: stale, synced: true}
	ev, _, snaps, _ := newTestEvaluator(Config{FlushEvery: 1}, books, buyTape(testNowMs))

	require.NoError(t, ev.evaluateOnce(context.Background(), time.UnixMilli(testNowMs)))

	rows, err := snaps.GetBySymbol(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Degraded, "book older than StaleAfter must degrade the tick")
}

func TestEvaluateOnce_UnsyncedBookDegrades(t *testing.T) {
	books := &fakeBook{snap: balancedSnapshot(testNowMs), synced: false}
	ev, _, snaps, _ := newTestEvaluator(Config{FlushEvery: 1}, books, buyTape(testNowMs))

	require.NoError(t, ev.evaluateOnce(context.Background(), time.UnixMilli(testNowMs)))

	rows, err := snaps.GetBySymbol(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Degraded)
}

func TestEvaluateOnce_FlushBatching(t *testing.T) {
	books := &fakeBook{snap: balancedSnapshot(testNowMs), synced: true}
	ev, _, snaps, _ := newTestEvaluator(Config{FlushEvery: 3}, books, buyTape(testNowMs+3000))

	for i := int64(0); i < 2; i++ {
		require.NoError(t, ev.evaluateOnce(context.Background(), time.UnixMilli(testNowMs+i*1000)))
	}
	rows, err := snaps.GetBySymbol(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Empty(t, rows, "batch below FlushEvery must not be written yet")

	require.NoError(t, ev.evaluateOnce(context.Background(), time.UnixMilli(testNowMs+2000)))
	rows, err = snaps.GetBySymbol(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestShutdown_ForceClosesAndFlushes(t *testing.T) {
	books := &fakeBook{snap: balancedSnapshot(testNowMs), synced: true}
	ev, box, snaps, trans := newTestEvaluator(Config{FlushEvery: 100}, books, buyTape(testNowMs))
	ev.now = func() time.Time { return time.UnixMilli(testNowMs + 5000) }

	require.NoError(t, ev.evaluateOnce(context.Background(), time.UnixMilli(testNowMs)))
	require.Equal(t, domain.PositionLong, box.Position().Side)

	require.NoError(t, ev.shutdown())

	assert.Equal(t, domain.PositionFlat, box.Position().Side)

	stored, err := trans.GetByRunID(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, domain.TransitionClose, stored[1].Kind)
	assert.Equal(t, domain.ExitReasonForcedClose, stored[1].ExitReason)

	rows, err := snaps.GetBySymbol(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "pending snapshots must be flushed on shutdown")
}

func TestRun_StopsOnCancel(t *testing.T) {
	books := &fakeBook{snap: balancedSnapshot(testNowMs), synced: true}
	ev, _, _, _ := newTestEvaluator(Config{Interval: 5 * time.Millisecond, FlushEvery: 1000}, books, &fakeTape{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, ev.Run(ctx))
}

func TestFlatten(t *testing.T) {
	flow := domain.OrderFlowResult{
		Symbol:      "BTCUSDT",
		TimestampMs: testNowMs,
		MidPrice:    101,
		DOM: domain.DOMResult{
			ImbalanceRatio: 1.4,
			Walls:          []domain.Wall{{Price: 99, Size: 50, Side: domain.BidSide}},
		},
		Tape:     domain.TapeResult{VolumePerSec: 2.5, TradeCount: 42},
		Delta:    domain.DeltaResult{Delta: 11, DeltaRatio: 0.3},
		Sweeps:   domain.SweepResult{LastSide: domain.AskSide, LastTime: testNowMs - 500},
		Degraded: true,
	}
	sig := domain.SignalResult{Direction: domain.DirectionLong, Confidence: 0.42}

	sn := Flatten(flow, sig)
	assert.Equal(t, "BTCUSDT", sn.Symbol)
	assert.Equal(t, testNowMs, sn.TimestampMs)
	assert.Equal(t, 1.4, sn.ImbalanceRatio)
	assert.Equal(t, 11.0, sn.Delta)
	assert.Equal(t, 0.3, sn.DeltaRatio)
	assert.Equal(t, 2.5, sn.VolumePerSec)
	assert.Equal(t, 42, sn.TradeCount)
	assert.Equal(t, 1, sn.WallCount)
	assert.Equal(t, "ask", sn.SweepSide)
	assert.Equal(t, "long", sn.SignalDirection)
	assert.Equal(t, 0.42, sn.Confidence)
	assert.True(t, sn.Degraded)
}
