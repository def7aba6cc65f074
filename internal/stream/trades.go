package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/observability"
	"orderflow-lab/internal/tickbuffer"
)

// TradeStream feeds the trade tape from the public trade topic into a
// tick buffer. Pushes carry up to 1024 prints per message; malformed
// prints are skipped without failing the batch.
type TradeStream struct {
	symbol  string
	topic   string
	buffer  *tickbuffer.Buffer
	logger  *log.Logger
	metrics *observability.Metrics
}

// NewTradeStream subscribes to the public trade topic for a symbol and
// starts filling the buffer.
func NewTradeStream(ctx context.Context, client *WSClient, symbol string, buffer *tickbuffer.Buffer, logger *log.Logger, metrics *observability.Metrics) (*TradeStream, error) {
	if buffer == nil {
		return nil, fmt.Errorf("trade buffer is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &TradeStream{
		symbol:  symbol,
		topic:   "publicTrade." + symbol,
		buffer:  buffer,
		logger:  logger,
		metrics: metrics,
	}

	if err := client.Subscribe(ctx, s.topic, s.handle); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	return s, nil
}

// Buffer returns the underlying tick buffer.
func (s *TradeStream) Buffer() *tickbuffer.Buffer {
	return s.buffer
}

// tradePayload is one trade print as pushed by the venue. Volume and
// price arrive as strings.
type tradePayload struct {
	TimestampMs int64  `json:"T"`
	Symbol      string `json:"s"`
	Side        string `json:"S"`
	Volume      string `json:"v"`
	Price       string `json:"p"`
	TradeID     string `json:"i"`
	Seq         int64  `json:"seq"`
}

// handle parses one trade push. Runs on the client's read loop.
func (s *TradeStream) handle(msg TopicMessage) {
	var payload []tradePayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		s.logger.Printf("trade payload for %s: %v", s.symbol, err)
		return
	}

	for _, p := range payload {
		trade, reason := parseTrade(p)
		if reason != "" {
			if s.metrics != nil {
				s.metrics.TradesRejected.WithLabelValues(reason).Inc()
			}
			continue
		}
		s.buffer.Push(trade)
		if s.metrics != nil {
			s.metrics.TradesIngested.Inc()
		}
	}
}

// parseTrade validates one print. The returned reason is empty on
// success and names the rejected field otherwise.
func parseTrade(p tradePayload) (domain.Trade, string) {
	var side domain.TradeSide
	switch p.Side {
	case "Buy":
		side = domain.SideBuy
	case "Sell":
		side = domain.SideSell
	default:
		return domain.Trade{}, "side"
	}

	price, err := strconv.ParseFloat(p.Price, 64)
	if err != nil || price <= 0 {
		return domain.Trade{}, "price"
	}
	size, err := strconv.ParseFloat(p.Volume, 64)
	if err != nil || size <= 0 {
		return domain.Trade{}, "size"
	}
	if p.TimestampMs <= 0 {
		return domain.Trade{}, "timestamp"
	}

	return domain.Trade{
		TradeID:     p.TradeID,
		Symbol:      p.Symbol,
		Price:       price,
		Size:        size,
		Side:        side,
		TimestampMs: p.TimestampMs,
		Sequence:    p.Seq,
	}, ""
}
