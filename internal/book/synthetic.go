package book

import "orderflow-lab/internal/domain"

// SyntheticBook approximates a two-sided book from trade prints alone, for
// replay over tick history when no L2 feed was recorded. The mid tracks the
// last trade price; top-of-book sizes are derived from the recent volume
// delta so DOM imbalance roughly follows aggressor flow.
//
// This is a deliberate approximation: imbalance and sweep metrics computed
// from it are lower fidelity than from a live BookState. It is a distinct
// type so callers cannot mistake replay output for L2-accurate state.
type SyntheticBook struct {
	symbol      string
	tickSize    float64
	mid         float64
	deltaRatio  float64
	updatedAtMs int64
	steps       int64
}

// minSyntheticSize keeps both synthetic sides non-empty even at extreme
// one-sided flow, so downstream DOM math never divides by zero.
const minSyntheticSize = 0.01

// NewSynthetic creates a synthetic book. tickSize sets the half-spread
// around the mid.
func NewSynthetic(symbol string, tickSize float64) *SyntheticBook {
	if tickSize <= 0 {
		tickSize = 0.1
	}
	return &SyntheticBook{symbol: symbol, tickSize: tickSize}
}

// Update folds in the state of one synthetic step: the last trade price and
// the delta ratio of the trailing window.
func (s *SyntheticBook) Update(lastPrice, deltaRatio float64, timestampMs int64) {
	if lastPrice > 0 {
		s.mid = lastPrice
	}
	s.deltaRatio = clampRatio(deltaRatio)
	s.updatedAtMs = timestampMs
	s.steps++
}

// Snapshot renders the synthetic two-level book in the same shape the live
// ladder produces. The step counter doubles as the sequence so downstream
// consumers see it advance monotonically.
func (s *SyntheticBook) Snapshot() *Snapshot {
	snap := &Snapshot{
		Symbol:      s.symbol,
		Sequence:    s.steps,
		UpdatedAtMs: s.updatedAtMs,
	}
	if s.mid <= 0 {
		return snap
	}

	imb := 0.5 + 0.5*s.deltaRatio
	bidSize := 2 * imb
	if bidSize < minSyntheticSize {
		bidSize = minSyntheticSize
	}
	askSize := 2 * (1 - imb)
	if askSize < minSyntheticSize {
		askSize = minSyntheticSize
	}

	snap.Bids = []domain.PriceLevel{{Price: s.mid - s.tickSize, Size: bidSize}}
	snap.Asks = []domain.PriceLevel{{Price: s.mid + s.tickSize, Size: askSize}}
	return snap
}

func clampRatio(r float64) float64 {
	if r > 1 {
		return 1
	}
	if r < -1 {
		return -1
	}
	return r
}
