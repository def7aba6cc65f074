package domain

// Direction is the directional reading of the microstructure signal.
type Direction string

// Direction constants.
const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionNone  Direction = "none"
)

// SignalContributions breaks the composite score into its weighted parts.
// Positive values are bullish, negative bearish.
type SignalContributions struct {
	Delta      float64
	Imbalance  float64
	Sweep      float64
	DeltaTrend float64
	Walls      float64
}

// Sum returns the raw composite before clipping.
func (c SignalContributions) Sum() float64 {
	return c.Delta + c.Imbalance + c.Sweep + c.DeltaTrend + c.Walls
}

// SignalResult is the scored directional signal derived from one
// OrderFlowResult. Pure value: identical inputs produce identical results.
type SignalResult struct {
	Direction     Direction
	Confidence    float64 // |composite| clipped to [0, 1], after penalties
	Score         float64 // composite in [-1, 1]
	Reason        string
	Contributions SignalContributions
	SweepOnly     bool // direction rests on a sweep alone, without delta/imbalance backing
	Degraded      bool // carried through from stale/synthetic inputs
}
