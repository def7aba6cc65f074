package orderflow

import (
	"math"
	"sort"

	"orderflow-lab/internal/book"
	"orderflow-lab/internal/domain"
)

// imbalanceCap bounds the bid/ask ratio when one side is nearly empty so
// the value stays storable and comparable.
const imbalanceCap = 1000.0

// AnalyzeDOM computes imbalance and wall levels over the top DepthLevels of
// each side. ImbalanceRatio is aggregated bid size / aggregated ask size:
// 1 is balanced, above the configured threshold is buy pressure, below its
// inverse is sell pressure.
func AnalyzeDOM(snap *book.Snapshot, opts Options) domain.DOMResult {
	opts = opts.withDefaults()

	bids := topLevels(snap.Bids, opts.DepthLevels)
	asks := topLevels(snap.Asks, opts.DepthLevels)

	var bidVol, askVol float64
	for _, l := range bids {
		bidVol += l.Size
	}
	for _, l := range asks {
		askVol += l.Size
	}

	return domain.DOMResult{
		ImbalanceRatio: imbalanceRatio(bidVol, askVol),
		BidVolume:      bidVol,
		AskVolume:      askVol,
		Walls:          wallLevels(bids, asks, opts),
	}
}

func imbalanceRatio(bidVol, askVol float64) float64 {
	switch {
	case bidVol == 0 && askVol == 0:
		return 1
	case askVol == 0:
		return imbalanceCap
	}
	r := bidVol / askVol
	if r > imbalanceCap {
		return imbalanceCap
	}
	return r
}

// wallLevels flags levels whose size clears both the percentile cut and
// the multiple-of-mean guard.
func wallLevels(bids, asks []domain.PriceLevel, opts Options) []domain.Wall {
	sizes := make([]float64, 0, len(bids)+len(asks))
	for _, l := range bids {
		sizes = append(sizes, l.Size)
	}
	for _, l := range asks {
		sizes = append(sizes, l.Size)
	}
	if len(sizes) == 0 {
		return nil
	}

	threshold := percentile(sizes, opts.WallPercentile)
	floor := opts.WallMinMult * mean(sizes)
	if floor > threshold {
		threshold = floor
	}
	if threshold <= 0 {
		return nil
	}

	var walls []domain.Wall
	for _, l := range bids {
		if l.Size >= threshold {
			walls = append(walls, domain.Wall{Price: l.Price, Size: l.Size, Side: domain.BidSide})
		}
	}
	for _, l := range asks {
		if l.Size >= threshold {
			walls = append(walls, domain.Wall{Price: l.Price, Size: l.Size, Side: domain.AskSide})
		}
	}
	return walls
}

func topLevels(levels []domain.PriceLevel, n int) []domain.PriceLevel {
	if len(levels) > n {
		return levels[:n]
	}
	return levels
}

// percentile returns the p-th percentile (0..100) of values by rank.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(math.Floor(float64(len(sorted)) * p / 100.0))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
