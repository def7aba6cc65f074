package domain

// PriceLevel is one resting level of the order book.
type PriceLevel struct {
	Price float64
	Size  float64
}

// BookSide identifies a side of the order book.
type BookSide string

// Book side constants.
const (
	BidSide BookSide = "bid"
	AskSide BookSide = "ask"
)

// Wall is a resting level whose size stands out from the local ladder.
type Wall struct {
	Price float64
	Size  float64
	Side  BookSide
}

// DOMResult holds depth-of-market metrics computed from one book snapshot.
type DOMResult struct {
	ImbalanceRatio float64 // bid volume / ask volume over top-N, 1 = balanced, capped at 1000
	BidVolume      float64
	AskVolume      float64
	Walls          []Wall
}

// TapeResult holds time-and-sales metrics over one trade window.
type TapeResult struct {
	TotalVolume   float64
	BuyVolume     float64
	SellVolume    float64
	VolumePerSec  float64
	TradesPerSec  float64
	TradeCount    int
	IsVolumeSpike bool // second half of the window outran the first by the spike multiple
}

// DeltaResult holds signed aggressor volume over one trade window.
type DeltaResult struct {
	Delta           float64 // buy volume - sell volume
	DeltaRatio      float64 // delta / total, in [-1, 1]
	FirstHalfRatio  float64 // delta ratio of the older half of the window
	SecondHalfRatio float64 // delta ratio of the newer half of the window
	BuyVolume       float64
	SellVolume      float64
	TradeCount      int
}

// SweepEvent records a burst of aggressive trades that consumed a tracked
// level and pushed price through it.
type SweepEvent struct {
	Side        BookSide // side whose level was consumed
	Level       float64
	Volume      float64 // aggressor volume that went through the level
	TimestampMs int64
	FromBook    bool // level came from book walls rather than external zones
}

// SweepResult holds sweep detections over the lookback window.
type SweepResult struct {
	Bid      []SweepEvent // support levels swept from below
	Ask      []SweepEvent // resistance levels swept from above
	LastSide BookSide     // side of the most recent sweep, "" when none
	LastTime int64        // ms timestamp of the most recent sweep, 0 when none
}

// Last returns the most recent sweep event, or nil when none was detected.
func (s *SweepResult) Last() *SweepEvent {
	var last *SweepEvent
	for i := range s.Bid {
		if last == nil || s.Bid[i].TimestampMs > last.TimestampMs {
			last = &s.Bid[i]
		}
	}
	for i := range s.Ask {
		if last == nil || s.Ask[i].TimestampMs > last.TimestampMs {
			last = &s.Ask[i]
		}
	}
	return last
}

// OrderFlowResult is the combined analytics output for one evaluation tick.
// Derived and ephemeral: recomputed from a snapshot + window each tick,
// never mutated in place.
type OrderFlowResult struct {
	Symbol      string
	TimestampMs int64 // end of the evaluation window
	DOM         DOMResult
	Tape        TapeResult
	Delta       DeltaResult
	Sweeps      SweepResult
	MidPrice    float64 // (best bid + best ask) / 2, 0 when a side is empty
	Degraded    bool    // inputs were stale or synthetic; confidence downgraded downstream
}

// FlowSnapshot is the persisted form of an OrderFlowResult, flattened for
// timeseries storage.
type FlowSnapshot struct {
	Symbol          string
	TimestampMs     int64
	MidPrice        float64
	ImbalanceRatio  float64
	Delta           float64
	DeltaRatio      float64
	VolumePerSec    float64
	TradeCount      int
	WallCount       int
	SweepSide       string // "bid", "ask" or ""
	SignalDirection string
	Confidence      float64
	Degraded        bool
}
