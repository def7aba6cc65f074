// Package stream maintains live market state from the venue's public
// WebSocket feeds: the order book ladder and the trade tape.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending protocol pings.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      20 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// TopicMessage is one data push on a subscribed topic. Type is "snapshot"
// or "delta" for book topics and "snapshot" for trade topics.
type TopicMessage struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	TS    int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`
}

// Handler consumes pushes for one topic. Handlers run on the read loop
// goroutine and must not block.
type Handler func(msg TopicMessage)

// WSClient is a client for the venue's public WebSocket endpoint. It
// reconnects with exponential backoff and resubscribes to all active
// topics, after which the venue replays a fresh snapshot per topic.
type WSClient struct {
	endpoint string
	config   WSConfig
	logger   *log.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// handlers maps topic to its consumer; topics double as the
	// resubscription list after reconnect.
	handlers   map[string]Handler
	handlersMu sync.RWMutex

	// pendingAcks maps request ID to channel waiting for the op ack
	pendingAcks   map[string]chan wsResponse
	pendingAcksMu sync.Mutex

	// onReconnect, when set, runs after every successful reconnect.
	onReconnect   func()
	onReconnectMu sync.Mutex

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSConfig, logger *log.Logger) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &WSClient{
		endpoint:    endpoint,
		config:      cfg,
		logger:      logger,
		handlers:    make(map[string]Handler),
		pendingAcks: make(map[string]chan wsResponse),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	// Start reader goroutine
	c.wg.Add(1)
	go c.readLoop()

	// Start ping goroutine
	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes WebSocket connection.
func (c *WSClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// OnReconnect registers a hook invoked after every successful reconnect,
// once all topics have been resubscribed.
func (c *WSClient) OnReconnect(fn func()) {
	c.onReconnectMu.Lock()
	c.onReconnect = fn
	c.onReconnectMu.Unlock()
}

// Subscribe subscribes to a topic and registers its handler. The venue
// sends a full snapshot as the first push on book topics.
func (c *WSClient) Subscribe(ctx context.Context, topic string, h Handler) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}

	c.handlersMu.Lock()
	c.handlers[topic] = h
	c.handlersMu.Unlock()

	if err := c.sendOp(ctx, "subscribe", []string{topic}, true); err != nil {
		c.handlersMu.Lock()
		delete(c.handlers, topic)
		c.handlersMu.Unlock()
		return err
	}
	return nil
}

// Resubscribe forces a fresh subscription for a topic the handler of which
// is already registered. Book streams use this to obtain a new snapshot
// after a sequence gap or a crossed update.
func (c *WSClient) Resubscribe(ctx context.Context, topic string) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}

	c.handlersMu.RLock()
	_, known := c.handlers[topic]
	c.handlersMu.RUnlock()
	if !known {
		return fmt.Errorf("topic %q not subscribed", topic)
	}

	// Unsubscribe first; the venue replays a snapshot on the new
	// subscription. Failure to unsubscribe is not fatal.
	if err := c.sendOp(ctx, "unsubscribe", []string{topic}, false); err != nil {
		c.logger.Printf("unsubscribe %s: %v", topic, err)
	}
	return c.sendOp(ctx, "subscribe", []string{topic}, true)
}

// sendOp writes one op request. When waitAck is set it blocks until the
// venue acknowledges the request or the context expires.
func (c *WSClient) sendOp(ctx context.Context, op string, args []string, waitAck bool) error {
	reqID := strconv.FormatUint(c.requestID.Add(1), 10)
	req := wsRequest{ReqID: reqID, Op: op, Args: args}

	var ackCh chan wsResponse
	if waitAck {
		ackCh = make(chan wsResponse, 1)
		c.pendingAcksMu.Lock()
		c.pendingAcks[reqID] = ackCh
		c.pendingAcksMu.Unlock()
	}

	clearPending := func() {
		if !waitAck {
			return
		}
		c.pendingAcksMu.Lock()
		delete(c.pendingAcks, reqID)
		c.pendingAcksMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		clearPending()
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		clearPending()
		return fmt.Errorf("write %s: %w", op, err)
	}

	if !waitAck {
		return nil
	}

	select {
	case resp := <-ackCh:
		if !resp.Success {
			return fmt.Errorf("%s rejected: %s", op, resp.RetMsg)
		}
		return nil
	case <-time.After(10 * time.Second):
		clearPending()
		return fmt.Errorf("%s ack timeout", op)
	case <-c.done:
		return fmt.Errorf("client closed")
	case <-ctx.Done():
		clearPending()
		return ctx.Err()
	}
}

// Closed reports whether Close has been called.
func (c *WSClient) Closed() bool {
	return c.closed.Load()
}

// Close closes the WebSocket connection.
func (c *WSClient) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	// Release pending ack waiters
	c.pendingAcksMu.Lock()
	for id, ch := range c.pendingAcks {
		close(ch)
		delete(c.pendingAcks, id)
	}
	c.pendingAcksMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages from WebSocket and dispatches to topic handlers.
func (c *WSClient) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			// Connection error - attempt reconnect with exponential backoff
			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			// Increase delay for next reconnect (exponential backoff)
			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe.
func (c *WSClient) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	// Wait before reconnecting
	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	// Close existing connection
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	// Attempt reconnect
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}

	c.resubscribeAll()

	c.onReconnectMu.Lock()
	fn := c.onReconnect
	c.onReconnectMu.Unlock()
	if fn != nil {
		fn()
	}
}

// resubscribeAll resubscribes to all registered topics after reconnect.
// The venue replays a fresh snapshot on each book topic, which resets the
// ladder through the normal handler path.
func (c *WSClient) resubscribeAll() {
	c.handlersMu.RLock()
	topics := make([]string, 0, len(c.handlers))
	for topic := range c.handlers {
		topics = append(topics, topic)
	}
	c.handlersMu.RUnlock()

	if len(topics) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.sendOp(ctx, "subscribe", topics, true); err != nil {
		c.logger.Printf("resubscribe after reconnect: %v", err)
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSClient) handleMessage(message []byte) {
	// Topic pushes carry a topic field; op responses do not.
	var msg TopicMessage
	if err := json.Unmarshal(message, &msg); err == nil && msg.Topic != "" {
		c.handlersMu.RLock()
		h, ok := c.handlers[msg.Topic]
		c.handlersMu.RUnlock()
		if ok {
			h(msg)
		}
		return
	}

	var resp wsResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		return
	}

	switch resp.Op {
	case "pong", "ping":
		// Keepalive reply, nothing to do.
	case "subscribe", "unsubscribe":
		c.pendingAcksMu.Lock()
		ch, ok := c.pendingAcks[resp.ReqID]
		if ok {
			delete(c.pendingAcks, resp.ReqID)
		}
		c.pendingAcksMu.Unlock()
		if ok {
			select {
			case ch <- resp:
			default:
			}
		}
	}
}

// pingLoop sends periodic protocol pings to keep connection alive. The
// venue expects a JSON ping op, not a WebSocket ping frame.
func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteJSON(wsRequest{Op: "ping"}); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	ReqID string   `json:"req_id,omitempty"`
	Op    string   `json:"op"`
	Args  []string `json:"args,omitempty"`
}

type wsResponse struct {
	ReqID   string `json:"req_id"`
	Op      string `json:"op"`
	Success bool   `json:"success"`
	RetMsg  string `json:"ret_msg"`
}
