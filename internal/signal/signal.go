package signal

import (
	"math"
	"strings"

	"orderflow-lab/internal/domain"
)

// Compute derives a directional signal from one order-flow result. nowMs is
// the evaluation time used for sweep decay; pass flow.TimestampMs for
// reproducible replay output.
func Compute(flow domain.OrderFlowResult, nowMs int64, opts Options) domain.SignalResult {
	o := opts.withDefaults()

	if flow.DOM.BidVolume == 0 && flow.DOM.AskVolume == 0 && flow.MidPrice == 0 {
		return domain.SignalResult{
			Direction: domain.DirectionNone,
			Reason:    "no book data",
			Degraded:  flow.Degraded,
		}
	}
	noTrades := flow.Delta.TradeCount == 0

	c := domain.SignalContributions{
		Delta:     deltaContribution(flow.Delta.DeltaRatio, o),
		Imbalance: imbalanceContribution(flow.DOM.ImbalanceRatio, o),
		Sweep:     sweepContribution(flow.Sweeps, nowMs, o),
	}
	if !o.DisableDeltaTrend && !noTrades {
		trend := flow.Delta.SecondHalfRatio - flow.Delta.FirstHalfRatio
		c.DeltaTrend = clamp(trend*0.5, -o.DeltaTrendWeight, o.DeltaTrendWeight)
	}
	if !o.DisableWalls && flow.MidPrice > 0 {
		c.Walls = wallContribution(flow.DOM.Walls, flow.MidPrice, o)
	}

	score := clamp(c.Sum(), -1, 1)
	confidence := math.Abs(score)

	if !o.DisableConflictPenalty && conflicting(c) {
		confidence *= 1 - o.ConflictPenalty
	}
	if flow.Tape.IsVolumeSpike {
		confidence *= 1 - o.VolumeSpikePenalty
	}
	if flow.Degraded {
		confidence *= 1 - o.DegradedPenalty
	}
	if confidence < 0 {
		confidence = 0
	}

	res := domain.SignalResult{
		Score:         score,
		Confidence:    confidence,
		Contributions: c,
		Degraded:      flow.Degraded,
	}
	switch {
	case score >= o.MinScoreLong:
		res.Direction = domain.DirectionLong
	case score <= -o.MinScoreShort:
		res.Direction = domain.DirectionShort
	default:
		res.Direction = domain.DirectionNone
	}
	res.Reason = reason(res.Direction, c)
	res.SweepOnly = res.Direction != domain.DirectionNone &&
		math.Abs(c.Delta) < o.MinConfirmContrib &&
		math.Abs(c.Imbalance) < o.MinConfirmContrib
	return res
}

// deltaContribution maps the signed delta ratio to [-0.4, 0.4] with a dead
// zone of +-DeltaRatioMin and a base step of 0.2 past it.
func deltaContribution(ratio float64, o Options) float64 {
	switch {
	case ratio >= o.DeltaRatioMin:
		return math.Min(0.4, 0.2+(ratio-o.DeltaRatioMin)*0.5)
	case ratio <= -o.DeltaRatioMin:
		return math.Max(-0.4, -0.2+(ratio+o.DeltaRatioMin)*0.5)
	}
	return 0
}

// imbalanceContribution converts the stored bid/ask ratio to a bid share in
// [0, 1] and maps its deviation from balanced to [-0.3, 0.3].
func imbalanceContribution(ratio float64, o Options) float64 {
	if ratio <= 0 {
		return 0
	}
	share := ratio / (1 + ratio)
	switch {
	case share >= 0.5+o.ImbalanceEps:
		return math.Min(0.3, (share-0.5)*2)
	case share <= 0.5-o.ImbalanceEps:
		return math.Max(-0.3, (share-0.5)*2)
	}
	return 0
}

// sweepContribution scores recent sweeps. Consuming the ask side is
// aggressive buying, so ask sweeps push the score up and bid sweeps push it
// down. When both sides swept recently the dominant side wins by
// source-weighted event count, recency breaking ties; the contribution then
// decays linearly with the age of the dominant side's newest event.
func sweepContribution(s domain.SweepResult, nowMs int64, o Options) float64 {
	bidW, bidLast := sideWeight(s.Bid, o)
	askW, askLast := sideWeight(s.Ask, o)
	if bidW == 0 && askW == 0 {
		return 0
	}

	sign := 1.0
	last := askLast
	if bidW > askW || (bidW == askW && s.LastSide == domain.BidSide) {
		sign = -1
		last = bidLast
	}

	contrib := sign * o.SweepWeight
	if !o.DisableSweepDecay && last > 0 && nowMs > 0 {
		ageSec := float64(nowMs-last) / 1000.0
		if ageSec < 0 {
			ageSec = 0
		}
		decay := 1 - ageSec/o.SweepDecaySec
		if decay < 0 {
			decay = 0
		}
		contrib *= decay
	}

	// Repeated sweeps on the dominant side reinforce the contribution.
	diff := askW - bidW
	if diff > 0 && sign > 0 {
		contrib = math.Min(o.SweepWeight, contrib+0.05*diff)
	} else if diff < 0 && sign < 0 {
		contrib = math.Max(-o.SweepWeight, contrib+0.05*diff)
	}
	return contrib
}

func sideWeight(events []domain.SweepEvent, o Options) (weight float64, lastTs int64) {
	for _, ev := range events {
		if ev.FromBook {
			weight += o.SweepBookWeight
		} else {
			weight += o.SweepZoneWeight
		}
		if ev.TimestampMs > lastTs {
			lastTs = ev.TimestampMs
		}
	}
	return weight, lastTs
}

// wallContribution treats bid walls below price as support and ask walls
// above price as resistance, each worth a fifth of WallWeight.
func wallContribution(walls []domain.Wall, price float64, o Options) float64 {
	if len(walls) == 0 {
		return 0
	}
	perWall := o.WallWeight / 5
	var contrib float64
	for _, w := range walls {
		switch {
		case w.Side == domain.BidSide && w.Price < price:
			contrib += perWall
		case w.Side == domain.AskSide && w.Price > price:
			contrib -= perWall
		}
	}
	return clamp(contrib, -o.WallWeight, o.WallWeight)
}

// conflicting reports whether at least two significant contributions
// disagree in sign.
func conflicting(c domain.SignalContributions) bool {
	var signs []int
	for _, v := range []float64{c.Delta, c.Imbalance, c.Sweep, c.DeltaTrend} {
		if math.Abs(v) >= 0.05 {
			s := 1
			if v < 0 {
				s = -1
			}
			signs = append(signs, s)
		}
	}
	if len(signs) < 2 {
		return false
	}
	for _, s := range signs[1:] {
		if s != signs[0] {
			return true
		}
	}
	return false
}

func reason(dir domain.Direction, c domain.SignalContributions) string {
	var parts []string
	if math.Abs(c.Delta) >= 0.1 {
		parts = append(parts, pick(c.Delta > 0, "delta positive", "delta negative"))
	}
	if math.Abs(c.Imbalance) >= 0.05 {
		parts = append(parts, pick(c.Imbalance > 0, "imbalance bid", "imbalance ask"))
	}
	if math.Abs(c.Sweep) >= 0.1 {
		parts = append(parts, pick(c.Sweep > 0, "sweep ask", "sweep bid"))
	}
	if math.Abs(c.DeltaTrend) >= 0.05 {
		parts = append(parts, pick(c.DeltaTrend > 0, "delta trend up", "delta trend down"))
	}
	if math.Abs(c.Walls) >= 0.03 {
		parts = append(parts, pick(c.Walls > 0, "walls support", "walls resistance"))
	}
	if len(parts) == 0 {
		if dir == domain.DirectionNone {
			return "neutral microstructure"
		}
		return "slight " + string(dir) + " lean"
	}
	return strings.Join(parts, " | ")
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
