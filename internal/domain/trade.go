package domain

// TradeSide identifies the aggressor side of a public trade print.
type TradeSide string

// Trade side constants. Bybit reports the taker side as "Buy" or "Sell".
const (
	SideBuy  TradeSide = "Buy"
	SideSell TradeSide = "Sell"
)

// Trade is one executed trade print from the public feed or a history file.
// Immutable once created.
type Trade struct {
	TradeID     string    // venue execution id, or a synthetic row id for history files
	Symbol      string
	Price       float64
	Size        float64
	Side        TradeSide // aggressor side
	TimestampMs int64     // execution time (ms)
	Sequence    int64     // venue cross sequence, 0 when unknown
}

// IsBuy reports whether the aggressor was a buyer.
func (t *Trade) IsBuy() bool {
	return t.Side == SideBuy
}

// Candle is one OHLC bar of the reference timeframe, used as sweep
// reference input. Candles are produced by external analysis modules.
type Candle struct {
	StartTimeMs int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}

// ReferenceLevel is an externally computed support/resistance level used
// as a sweep reference alongside book-derived walls.
type ReferenceLevel struct {
	Price float64
	Kind  LevelKind
}

// LevelKind classifies a reference level.
type LevelKind string

// Level kind constants.
const (
	LevelSupport    LevelKind = "support"
	LevelResistance LevelKind = "resistance"
)
