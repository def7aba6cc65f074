// Package signal turns one order-flow result into a directional
// microstructure signal: long / short / none with a confidence in [0, 1].
// The computation is a deterministic weighted combination with no side
// effects, safe to call at arbitrary frequency.
package signal

// Options tunes the composite scoring. Zero values select the documented
// defaults; Enable* toggles default to on via the Disable* flags.
type Options struct {
	// DeltaRatioMin is the dead zone for the delta contribution: delta
	// ratios inside (-min, +min) contribute nothing.
	DeltaRatioMin float64
	// ImbalanceEps is the dead zone around a balanced book for the
	// imbalance contribution, expressed as deviation of the bid share
	// from 0.5.
	ImbalanceEps float64
	// SweepWeight is the magnitude of the sweep contribution before decay.
	SweepWeight float64
	// SweepBookWeight and SweepZoneWeight resolve disagreement between
	// book-derived and zone-derived sweeps: each recent sweep event counts
	// with the weight of its source when choosing the dominant side.
	SweepBookWeight float64
	SweepZoneWeight float64
	// SweepDecaySec is how many seconds it takes the last sweep's
	// contribution to decay to zero.
	SweepDecaySec float64
	// DeltaTrendWeight caps the contribution of the delta trend (newer
	// half-window ratio minus older half-window ratio).
	DeltaTrendWeight float64
	// WallWeight caps the contribution of book walls relative to price.
	WallWeight float64
	// ConflictPenalty scales confidence down when significant
	// contributions disagree in sign.
	ConflictPenalty float64
	// VolumeSpikePenalty scales confidence down during a volume spike.
	VolumeSpikePenalty float64
	// DegradedPenalty scales confidence down when the inputs were stale
	// or synthetic.
	DegradedPenalty float64
	// MinScore is the absolute composite score required for a non-none
	// direction. MinScoreLong / MinScoreShort override it per side when
	// positive.
	MinScore      float64
	MinScoreLong  float64
	MinScoreShort float64
	// MinConfirmContrib flags the signal sweep-only when both delta and
	// imbalance contributions stay below this threshold.
	MinConfirmContrib float64

	// DisableDeltaTrend, DisableWalls, DisableSweepDecay and
	// DisableConflictPenalty switch individual components off.
	DisableDeltaTrend      bool
	DisableWalls           bool
	DisableSweepDecay      bool
	DisableConflictPenalty bool
}

// Default option values.
const (
	DefaultDeltaRatioMin      = 0.15
	DefaultImbalanceEps       = 0.08
	DefaultSweepWeight        = 0.3
	DefaultSweepBookWeight    = 1.0
	DefaultSweepZoneWeight    = 1.0
	DefaultSweepDecaySec      = 120.0
	DefaultDeltaTrendWeight   = 0.2
	DefaultWallWeight         = 0.1
	DefaultConflictPenalty    = 0.25
	DefaultVolumeSpikePenalty = 0.15
	DefaultDegradedPenalty    = 0.2
	DefaultMinScore           = 0.25
	DefaultMinConfirmContrib  = 0.05
)

func (o Options) withDefaults() Options {
	if o.DeltaRatioMin <= 0 {
		o.DeltaRatioMin = DefaultDeltaRatioMin
	}
	if o.ImbalanceEps <= 0 {
		o.ImbalanceEps = DefaultImbalanceEps
	}
	if o.SweepWeight <= 0 {
		o.SweepWeight = DefaultSweepWeight
	}
	if o.SweepBookWeight <= 0 {
		o.SweepBookWeight = DefaultSweepBookWeight
	}
	if o.SweepZoneWeight <= 0 {
		o.SweepZoneWeight = DefaultSweepZoneWeight
	}
	if o.SweepDecaySec <= 0 {
		o.SweepDecaySec = DefaultSweepDecaySec
	}
	if o.DeltaTrendWeight <= 0 {
		o.DeltaTrendWeight = DefaultDeltaTrendWeight
	}
	if o.WallWeight <= 0 {
		o.WallWeight = DefaultWallWeight
	}
	if o.ConflictPenalty <= 0 {
		o.ConflictPenalty = DefaultConflictPenalty
	}
	if o.VolumeSpikePenalty <= 0 {
		o.VolumeSpikePenalty = DefaultVolumeSpikePenalty
	}
	if o.DegradedPenalty <= 0 {
		o.DegradedPenalty = DefaultDegradedPenalty
	}
	if o.MinScore <= 0 {
		o.MinScore = DefaultMinScore
	}
	if o.MinScoreLong <= 0 {
		o.MinScoreLong = o.MinScore
	}
	if o.MinScoreShort <= 0 {
		o.MinScoreShort = o.MinScore
	}
	if o.MinConfirmContrib <= 0 {
		o.MinConfirmContrib = DefaultMinConfirmContrib
	}
	return o
}
