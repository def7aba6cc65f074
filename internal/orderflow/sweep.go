package orderflow

import "orderflow-lab/internal/domain"

// DetectSweeps finds trade clusters that consumed a tracked level and moved
// price through it within the window. Tracked levels come from three
// sources: book walls (with a known resting size), externally computed
// support/resistance zones, and swing high/low of the recent candle window.
//
// A sweep of an ask-side level requires buy-aggressor volume at or beyond
// the level of at least the level's resting size (or SweepMinZoneVolume for
// sizeless levels), with the last window trade printing through the level.
// Bid-side detection is symmetric.
func DetectSweeps(
	trades []domain.Trade,
	walls []domain.Wall,
	zones []domain.ReferenceLevel,
	candles []domain.Candle,
	nowMs int64,
	opts Options,
) domain.SweepResult {
	opts = opts.withDefaults()

	var res domain.SweepResult
	if len(trades) == 0 {
		return res
	}
	lastPrice := trades[len(trades)-1].Price

	type tracked struct {
		price    float64
		side     domain.BookSide
		minVol   float64
		fromBook bool
	}
	var levels []tracked
	for _, w := range walls {
		levels = append(levels, tracked{price: w.Price, side: w.Side, minVol: w.Size, fromBook: true})
	}
	for _, z := range zones {
		side := domain.BidSide
		if z.Kind == domain.LevelResistance {
			side = domain.AskSide
		}
		levels = append(levels, tracked{price: z.Price, side: side, minVol: opts.SweepMinZoneVolume})
	}
	for _, c := range swingLevels(candles, opts.CandleLookback) {
		levels = append(levels, tracked{price: c.Price, side: bookSideForKind(c.Kind), minVol: opts.SweepMinZoneVolume})
	}

	for _, lev := range levels {
		if lev.price <= 0 {
			continue
		}
		var vol float64
		var lastTs int64
		for _, t := range trades {
			consumed := (lev.side == domain.AskSide && t.IsBuy() && t.Price >= lev.price) ||
				(lev.side == domain.BidSide && !t.IsBuy() && t.Price <= lev.price)
			if consumed {
				vol += t.Size
				if t.TimestampMs > lastTs {
					lastTs = t.TimestampMs
				}
			}
		}
		if vol < lev.minVol || vol == 0 {
			continue
		}
		through := (lev.side == domain.AskSide && lastPrice > lev.price) ||
			(lev.side == domain.BidSide && lastPrice < lev.price)
		if !through {
			continue
		}

		ev := domain.SweepEvent{
			Side:        lev.side,
			Level:       lev.price,
			Volume:      vol,
			TimestampMs: lastTs,
			FromBook:    lev.fromBook,
		}
		if lev.side == domain.AskSide {
			res.Ask = append(res.Ask, ev)
		} else {
			res.Bid = append(res.Bid, ev)
		}
		if lastTs > res.LastTime {
			res.LastTime = lastTs
			res.LastSide = lev.side
		}
	}

	_ = nowMs // window filtering is the caller's responsibility via Since
	return res
}

// swingLevels extracts the highest high and lowest low of the trailing
// candle window as resistance/support references.
func swingLevels(candles []domain.Candle, lookback int) []domain.ReferenceLevel {
	if len(candles) == 0 {
		return nil
	}
	if len(candles) > lookback {
		candles = candles[len(candles)-lookback:]
	}

	hi, lo := candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		if c.High > hi {
			hi = c.High
		}
		if c.Low < lo {
			lo = c.Low
		}
	}
	return []domain.ReferenceLevel{
		{Price: hi, Kind: domain.LevelResistance},
		{Price: lo, Kind: domain.LevelSupport},
	}
}

func bookSideForKind(k domain.LevelKind) domain.BookSide {
	if k == domain.LevelResistance {
		return domain.AskSide
	}
	return domain.BidSide
}
