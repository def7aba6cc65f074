// Package orderflow computes depth-of-market, time-and-sales, volume-delta
// and sweep metrics from one book snapshot and one trade window. Every
// function is pure: results are derived values, recomputed per evaluation
// tick, with no state kept between calls.
package orderflow

// Options tunes the analytics. All values come from configuration; zero
// values select the documented defaults.
type Options struct {
	// DepthLevels is how many levels per side feed imbalance and walls.
	DepthLevels int
	// WallPercentile marks a level as a wall when its size reaches this
	// percentile of the sizes in the depth slice.
	WallPercentile float64
	// WallMinMult additionally requires a wall to be at least this multiple
	// of the mean level size, so a flat ladder yields no walls.
	WallMinMult float64
	// WindowSec is the trade window length in seconds.
	WindowSec float64
	// SpikeMult flags a volume spike when the newer half of the window
	// carries at least this multiple of the older half's volume.
	SpikeMult float64
	// SweepMinZoneVolume is the aggressor volume required to count a sweep
	// of an external support/resistance level, which has no resting size.
	SweepMinZoneVolume float64
	// CandleLookback is how many trailing candles contribute swing
	// high/low reference levels for sweep detection.
	CandleLookback int
}

// Default option values.
const (
	DefaultDepthLevels    = 20
	DefaultWallPercentile = 90.0
	DefaultWallMinMult    = 2.0
	DefaultWindowSec      = 60.0
	DefaultSpikeMult      = 2.0
	DefaultCandleLookback = 5
)

func (o Options) withDefaults() Options {
	if o.DepthLevels <= 0 {
		o.DepthLevels = DefaultDepthLevels
	}
	if o.WallPercentile <= 0 {
		o.WallPercentile = DefaultWallPercentile
	}
	if o.WallMinMult <= 0 {
		o.WallMinMult = DefaultWallMinMult
	}
	if o.WindowSec <= 0 {
		o.WindowSec = DefaultWindowSec
	}
	if o.SpikeMult <= 0 {
		o.SpikeMult = DefaultSpikeMult
	}
	if o.CandleLookback <= 0 {
		o.CandleLookback = DefaultCandleLookback
	}
	return o
}
