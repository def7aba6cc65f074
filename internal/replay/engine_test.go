package replay

import (
	"context"
	"io"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/sandbox"
)

type sliceIterator struct {
	trades []domain.Trade
	pos    int
}

func (it *sliceIterator) Next() (domain.Trade, error) {
	if it.pos >= len(it.trades) {
		return domain.Trade{}, io.EOF
	}
	tr := it.trades[it.pos]
	it.pos++
	return tr, nil
}

// buyStream yields n all-buy prints one second apart starting at startMs.
func buyStream(startMs int64, n int) []domain.Trade {
	trades := make([]domain.Trade, 0, n)
	for i := 0; i < n; i++ {
		trades = append(trades, domain.Trade{
			TradeID:     "t" + string(rune('0'+i%10)),
			Symbol:      "BTCUSDT",
			Price:       42000 + float64(i),
			Size:        1.5,
			Side:        domain.SideBuy,
			TimestampMs: startMs + int64(i)*1000,
		})
	}
	return trades
}

func feeFreeBox(runID string) *sandbox.Sandbox {
	return sandbox.New(runID, "BTCUSDT", sandbox.Config{InitialBalance: 1000, TakerFeeRate: -1})
}

type capture struct {
	snaps []domain.FlowSnapshot
	trans []domain.PositionTransition
}

func (c *capture) emit(snap *domain.FlowSnapshot, transitions []domain.PositionTransition) error {
	c.snaps = append(c.snaps, *snap)
	c.trans = append(c.trans, transitions...)
	return nil
}

func TestEngine_TickPerBoundaryPlusClosingTick(t *testing.T) {
	trades := buyStream(1_700_000_001_000, 10)
	engine := NewEngine("BTCUSDT", feeFreeBox("run-e"), Options{TickSec: 1})

	var c capture
	require.NoError(t, engine.Process(context.Background(), &sliceIterator{trades: trades}, c.emit))

	// Nine boundary ticks inside the stream and one closing tick for the
	// tail trade.
	assert.Equal(t, 10, engine.Ticks())
	assert.Len(t, c.snaps, 10)

	for _, sn := range c.snaps {
		assert.True(t, sn.Degraded, "every replay tick must be flagged degraded")
		assert.Equal(t, "BTCUSDT", sn.Symbol)
	}
	for i := 1; i < len(c.snaps); i++ {
		assert.Greater(t, c.snaps[i].TimestampMs, c.snaps[i-1].TimestampMs)
	}
}

func TestEngine_AllBuyFlowOpensLong(t *testing.T) {
	box := feeFreeBox("run-e2")
	engine := NewEngine("BTCUSDT", box, Options{TickSec: 1})

	var c capture
	require.NoError(t, engine.Process(context.Background(), &sliceIterator{trades: buyStream(1_700_000_001_000, 10)}, c.emit))

	assert.Equal(t, domain.PositionLong, box.Position().Side)
	require.NotEmpty(t, c.trans)
	assert.Equal(t, domain.TransitionOpen, c.trans[0].Kind)
	assert.Equal(t, "run-e2", c.trans[0].RunID)
}

func TestEngine_EmptyStream(t *testing.T) {
	engine := NewEngine("BTCUSDT", feeFreeBox("run-e3"), Options{})

	var c capture
	require.NoError(t, engine.Process(context.Background(), &sliceIterator{}, c.emit))
	assert.Zero(t, engine.Ticks())
	assert.Empty(t, c.snaps)
}

func TestEngine_CancelledContextAborts(t *testing.T) {
	engine := NewEngine("BTCUSDT", feeFreeBox("run-e4"), Options{TickSec: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := engine.Process(ctx, &sliceIterator{trades: buyStream(1_700_000_001_000, 10)}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, engine.Ticks())
}

func TestEngine_Deterministic(t *testing.T) {
	trades := buyStream(1_700_000_001_000, 30)

	run := func() capture {
		engine := NewEngine("BTCUSDT", feeFreeBox("run-d"), Options{TickSec: 1})
		var c capture
		require.NoError(t, engine.Process(context.Background(), &sliceIterator{trades: trades}, c.emit))
		return c
	}

	first := run()
	second := run()
	assert.True(t, reflect.DeepEqual(first.snaps, second.snaps), "snapshots must be bit-identical across runs")
	assert.True(t, reflect.DeepEqual(first.trans, second.trans), "transitions must be bit-identical across runs")
}
