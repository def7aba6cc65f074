package orderflow

import "orderflow-lab/internal/domain"

// AnalyzeTape aggregates time-and-sales over [nowMs-window, nowMs]:
// volumes by aggressor side, per-second rates, and a volume-spike flag
// comparing the newer half of the window against the older half as the
// trailing baseline.
func AnalyzeTape(trades []domain.Trade, nowMs int64, opts Options) domain.TapeResult {
	opts = opts.withDefaults()
	windowMs := int64(opts.WindowSec * 1000)
	startMs := nowMs - windowMs
	halfMs := nowMs - windowMs/2

	var res domain.TapeResult
	var firstHalfVol, secondHalfVol float64
	for _, t := range trades {
		if t.TimestampMs < startMs || t.TimestampMs > nowMs {
			continue
		}
		res.TradeCount++
		if t.IsBuy() {
			res.BuyVolume += t.Size
		} else {
			res.SellVolume += t.Size
		}
		if t.TimestampMs < halfMs {
			firstHalfVol += t.Size
		} else {
			secondHalfVol += t.Size
		}
	}

	res.TotalVolume = res.BuyVolume + res.SellVolume
	if opts.WindowSec > 0 {
		res.VolumePerSec = res.TotalVolume / opts.WindowSec
		res.TradesPerSec = float64(res.TradeCount) / opts.WindowSec
	}
	res.IsVolumeSpike = firstHalfVol > 0 && secondHalfVol >= opts.SpikeMult*firstHalfVol
	return res
}
