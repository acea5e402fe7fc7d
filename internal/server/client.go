package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomhub/internal/config"
	"github.com/Tyrowin/roomhub/internal/hub"
	"github.com/Tyrowin/roomhub/internal/metrics"
)

// Client is the session actor for one websocket connection. It is the hub
// Recipient for that session: deliveries land in a bounded send buffer that
// the write pump drains.
type Client struct {
	conn   *websocket.Conn
	hub    *hub.Hub
	id     hub.SessionID
	addr   string
	name   string
	logger logr.Logger

	mu     sync.RWMutex
	send   chan []byte
	closed bool

	maxMessageSize int64
	heartbeat      config.HeartbeatConfig
	rateLimiter    *rateLimiter
	rateLimit      config.RateLimitConfig
}

var _ hub.Recipient = (*Client)(nil)

// NewClient creates a Client for conn. The session is not registered with
// the hub until Start is called.
func NewClient(conn *websocket.Conn, h *hub.Hub, addr string, cfg config.Config, logger logr.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		conn:           conn,
		hub:            h,
		addr:           addr,
		logger:         logger.WithValues("remote", addr),
		send:           make(chan []byte, cfg.SendBufferSize),
		maxMessageSize: cfg.MaxMessageSize,
		heartbeat:      cfg.Heartbeat,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
	}
}

// ID returns the hub session id, zero before Start.
func (c *Client) ID() hub.SessionID {
	return c.id
}

// Deliver queues text for the write pump without blocking. It fails with
// ErrSendBufferFull when the peer is not keeping up and with
// ErrSessionClosed once the session is gone.
func (c *Client) Deliver(text string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrSessionClosed
	}

	select {
	case c.send <- []byte(text):
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Start registers the session with the hub and runs both pumps. done is
// called once per pump when it exits.
func (c *Client) Start(done func()) {
	c.id = c.hub.Connect(c)
	c.logger = c.logger.WithValues("session", c.id)
	c.logger.Info("session started")

	go func() {
		defer done()
		c.writePump()
	}()
	go func() {
		defer done()
		c.readPump()
	}()
}

// Close closes the underlying connection, which ends both pumps.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Error(err, "close connection")
	}
}

// closeSend stops further deliveries and lets the write pump finish.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.heartbeat.PongWait)); err != nil {
		c.logger.Error(err, "set initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.heartbeat.PongWait))
	})
}

// logReadError logs why the read loop is ending.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Info("message exceeded maximum size", "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.logger.V(1).Info("client disconnected", "reason", err.Error())
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.V(1).Info("connection closed", "reason", err.Error())
	default:
		c.logger.Info("websocket read error", "reason", err.Error())
	}
}

// checkRateLimit reports whether the next inbound frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		metrics.RateLimitedFrames.Inc()
		c.logger.Info("rate limit exceeded, discarding message",
			"burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval.String())
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c.id)
		// The write pump sends the close frame and closes the connection.
		c.closeSend()
		c.logger.Info("session ended")
	}()

	c.setupReadConnection()

	for {
		messageType, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if messageType != websocket.TextMessage {
			c.logger.V(1).Info("ignoring non-text frame", "type", messageType)
			continue
		}

		if !c.checkRateLimit() {
			continue
		}

		c.handleText(string(rawMessage))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.heartbeat.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		if !ok {
			c.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return false
		}
		return c.writeText(message)
	case <-ticker.C:
		return c.writeControl(websocket.PingMessage, nil)
	}
}

// writeText writes one delivery as one text frame.
func (c *Client) writeText(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.heartbeat.WriteWait)); err != nil {
		c.logger.Error(err, "set write deadline")
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Info("write message failed", "reason", err.Error())
		}
		return false
	}
	return true
}

func (c *Client) writeControl(messageType int, data []byte) bool {
	deadline := time.Now().Add(c.heartbeat.WriteWait)
	if err := c.conn.WriteControl(messageType, data, deadline); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.V(1).Info("write control frame failed", "type", messageType, "reason", err.Error())
		}
		return false
	}
	return true
}
