package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"orderflow-lab/internal/book"
	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/observability"
)

// Order book depths the venue serves for linear contracts.
var validBookDepths = map[int]bool{1: true, 50: true, 200: true, 1000: true}

// OrderBookStream owns a book ladder advanced by one WebSocket topic.
// The first push on the topic is a full snapshot; subsequent deltas must
// be contiguous by update id. On a gap or a crossed update the stream
// drops to unsynced, forces a resubscription and waits for the fresh
// snapshot the venue replays.
type OrderBookStream struct {
	symbol  string
	topic   string
	client  *WSClient
	logger  *log.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	book   *book.BookState
	synced bool

	resyncMu  sync.Mutex
	resyncing bool
}

// NewOrderBookStream subscribes to the book topic for a symbol at the
// given depth and starts maintaining the ladder.
func NewOrderBookStream(ctx context.Context, client *WSClient, symbol string, depth int, logger *log.Logger, metrics *observability.Metrics) (*OrderBookStream, error) {
	if !validBookDepths[depth] {
		return nil, fmt.Errorf("unsupported book depth %d", depth)
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &OrderBookStream{
		symbol:  symbol,
		topic:   fmt.Sprintf("orderbook.%d.%s", depth, symbol),
		client:  client,
		logger:  logger,
		metrics: metrics,
		book:    book.New(symbol),
	}

	if err := client.Subscribe(ctx, s.topic, s.handle); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	return s, nil
}

// Snapshot returns a deep copy of the current ladder. The copy is safe to
// read concurrently with further updates.
func (s *OrderBookStream) Snapshot() *book.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Snapshot()
}

// Synced reports whether the ladder reflects a contiguous update stream
// since the last snapshot.
func (s *OrderBookStream) Synced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

// bookPayload is the data section of a book push. Price and size arrive
// as string pairs; a size of "0" removes the level.
type bookPayload struct {
	Symbol   string      `json:"s"`
	Bids     [][2]string `json:"b"`
	Asks     [][2]string `json:"a"`
	UpdateID int64       `json:"u"`
	Seq      int64       `json:"seq"`
}

// handle applies one book push. Runs on the client's read loop.
func (s *OrderBookStream) handle(msg TopicMessage) {
	var payload bookPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		s.logger.Printf("book payload for %s: %v", s.symbol, err)
		return
	}

	bids, err := parseLevels(payload.Bids)
	if err != nil {
		s.logger.Printf("book bids for %s: %v", s.symbol, err)
		return
	}
	asks, err := parseLevels(payload.Asks)
	if err != nil {
		s.logger.Printf("book asks for %s: %v", s.symbol, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// update id 1 marks a feed restart and carries the full book again.
	if msg.Type == "snapshot" || payload.UpdateID == 1 {
		if err := s.book.ApplySnapshot(bids, asks, payload.UpdateID, msg.TS); err != nil {
			s.logger.Printf("book snapshot for %s: %v", s.symbol, err)
			s.synced = false
			s.requestResync()
			return
		}
		s.synced = true
		if s.metrics != nil {
			s.metrics.BookSnapshotsApplied.Inc()
		}
		return
	}

	if !s.synced {
		// Deltas between a desync and the replayed snapshot are stale.
		return
	}

	delta := book.Delta{
		Sequence:    payload.UpdateID,
		TimestampMs: msg.TS,
		Bids:        bids,
		Asks:        asks,
	}
	if err := s.book.ApplyDelta(delta); err != nil {
		var gap *book.SequenceGapError
		var crossed *book.CrossedBookError
		switch {
		case errors.As(err, &gap):
			if s.metrics != nil {
				s.metrics.BookSequenceGaps.Inc()
			}
		case errors.As(err, &crossed):
			// Crossed updates signal desync the same way a gap does.
		}
		s.logger.Printf("book delta for %s: %v", s.symbol, err)
		s.synced = false
		s.requestResync()
		return
	}

	if s.metrics != nil {
		s.metrics.BookDeltasApplied.Inc()
	}
}

// requestResync forces a resubscription so the venue replays a snapshot.
// At most one resync runs at a time; repeated desyncs while one is in
// flight collapse into it.
func (s *OrderBookStream) requestResync() {
	s.resyncMu.Lock()
	if s.resyncing {
		s.resyncMu.Unlock()
		return
	}
	s.resyncing = true
	s.resyncMu.Unlock()

	if s.metrics != nil {
		s.metrics.BookResnapshots.Inc()
	}

	go func() {
		defer func() {
			s.resyncMu.Lock()
			s.resyncing = false
			s.resyncMu.Unlock()
		}()

		delay := 500 * time.Millisecond
		for !s.client.Closed() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := s.client.Resubscribe(ctx, s.topic)
			cancel()
			if err == nil {
				return
			}
			s.logger.Printf("book resync for %s: %v", s.symbol, err)

			time.Sleep(delay)
			delay *= 2
			if delay > 5*time.Second {
				delay = 5 * time.Second
			}
		}
	}()
}

// parseLevels converts [price, size] string pairs to levels.
func parseLevels(raw [][2]string) ([]domain.PriceLevel, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]domain.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		price, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", pair[0], err)
		}
		size, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parse size %q: %w", pair[1], err)
		}
		out = append(out, domain.PriceLevel{Price: price, Size: size})
	}
	return out, nil
}
