package orderflow

import "orderflow-lab/internal/domain"

// ComputeDelta sums signed aggressor volume over [nowMs-window, nowMs]:
// positive for buy-aggressor trades, negative for sell-aggressor. The
// half-window ratios feed the delta-trend contribution of the signal.
func ComputeDelta(trades []domain.Trade, nowMs int64, opts Options) domain.DeltaResult {
	opts = opts.withDefaults()
	windowMs := int64(opts.WindowSec * 1000)
	startMs := nowMs - windowMs
	halfMs := nowMs - windowMs/2

	var res domain.DeltaResult
	var firstBuy, firstSell, secondBuy, secondSell float64
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
			if t.IsBuy() {
				firstBuy += t.Size
			} else {
				firstSell += t.Size
			}
		} else {
			if t.IsBuy() {
				secondBuy += t.Size
			} else {
				secondSell += t.Size
			}
		}
	}

	res.Delta = res.BuyVolume - res.SellVolume
	res.DeltaRatio = deltaRatio(res.BuyVolume, res.SellVolume)
	res.FirstHalfRatio = deltaRatio(firstBuy, firstSell)
	res.SecondHalfRatio = deltaRatio(secondBuy, secondSell)
	return res
}

func deltaRatio(buy, sell float64) float64 {
	total := buy + sell
	if total == 0 {
		return 0
	}
	return (buy - sell) / total
}
