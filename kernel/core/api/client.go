package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"

	"github.com/atriumweb/atrium/kernel/events"
	"github.com/atriumweb/atrium/kernel/perf"
	"github.com/atriumweb/atrium/kernel/utils"
)

// ErrNotConnected indicates sends before Connect or after a drop
var ErrNotConnected = errors.New("api: not connected")

// Config holds API client configuration
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	MaxMessageSize   int
	CompressionFloor int
	BreakerTimeout   time.Duration
	BreakerFailures  uint32
}

// DefaultConfig returns production defaults
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   1 << 20,
		CompressionFloor: 512,
		BreakerTimeout:   30 * time.Second,
		BreakerFailures:  5,
	}
}

// Handler consumes an inbound payload for one frame kind
type Handler func(payload []byte)

// Client is the backend API adapter: a websocket session wrapped in a
// circuit breaker, with brotli-compressed JSON frames. Connection
// state changes are published as net.state events.
type Client struct {
	mu sync.RWMutex

	cfg     Config
	conn    *websocket.Conn
	breaker *gobreaker.CircuitBreaker

	handlers map[string]Handler

	// telemetry gating follows the performance level: low keeps only
	// essential frames on the wire
	telemetry bool

	bus    *events.Bus
	logger *utils.Logger

	shutdown chan struct{}
	closed   bool

	sent       uint64
	received   uint64
	compressed uint64
}

func NewClient(cfg Config, bus *events.Bus, logger *utils.Logger) *Client {
	if logger == nil {
		logger = utils.DefaultLogger("api")
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	c := &Client{
		cfg:       cfg,
		handlers:  make(map[string]Handler),
		telemetry: true,
		bus:       bus,
		logger:    logger,
		shutdown:  make(chan struct{}),
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "api",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				utils.String("from", from.String()),
				utils.String("to", to.String()),
			)
		},
	})

	return c
}

// Connect dials the backend and starts the receive loop
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
		ReadBufferSize:   c.cfg.MaxMessageSize,
		WriteBufferSize:  c.cfg.MaxMessageSize,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return utils.WrapError(err, "api: dial failed")
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.publishNetState(true)
	c.logger.Info("API connected", utils.String("url", c.cfg.URL))

	go c.receiveLoop(conn)
	return nil
}

// RegisterHandler routes inbound frames of the given kind
func (c *Client) RegisterHandler(kind string, handler Handler) {
	c.mu.Lock()
	c.handlers[kind] = handler
	c.mu.Unlock()
}

// SetQualityLevel implements perf.QualityAdjustable: below medium the
// client stops shipping non-essential telemetry frames.
func (c *Client) SetQualityLevel(level perf.Level) {
	c.mu.Lock()
	c.telemetry = level != perf.LevelLow
	c.mu.Unlock()
}

// Send encodes and ships a frame through the circuit breaker
func (c *Client) Send(kind string, v interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.write(kind, v)
	})
	return err
}

// SendTelemetry ships a non-essential frame; silently dropped while
// the level gates telemetry off. Dropping is not a send failure, so it
// never feeds the breaker.
func (c *Client) SendTelemetry(kind string, v interface{}) error {
	c.mu.RLock()
	enabled := c.telemetry
	c.mu.RUnlock()

	if !enabled {
		return nil
	}
	return c.Send(kind, v)
}

func (c *Client) write(kind string, v interface{}) error {
	data, wasCompressed, err := encodeFrame(kind, v, c.cfg.CompressionFloor)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.sent++
	if wasCompressed {
		c.compressed++
	}
	return nil
}

func (c *Client) receiveLoop(conn *websocket.Conn) {
	for {
		select {
		case <-c.shutdown:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			closed := c.closed
			c.mu.Unlock()

			if !closed {
				c.logger.Warn("API connection lost", utils.Err(err))
				c.publishNetState(false)
			}
			return
		}

		kind, payload, err := decodeFrame(message)
		if err != nil {
			c.logger.Error("Bad inbound frame", utils.Err(err))
			continue
		}

		c.mu.Lock()
		c.received++
		handler := c.handlers[kind]
		c.mu.Unlock()

		if handler == nil {
			c.logger.Debug("Unhandled frame kind", utils.String("kind", kind))
			continue
		}
		handler(payload)
	}
}

// Close tears the session down
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.shutdown)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Stats returns client counters
func (c *Client) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]interface{}{
		"sent":       c.sent,
		"received":   c.received,
		"compressed": c.compressed,
		"connected":  c.conn != nil,
		"telemetry":  c.telemetry,
	}
}

func (c *Client) publishNetState(connected bool) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.Event{
		Type: events.NetState,
		Net: &events.NetPayload{
			Connected: connected,
			Endpoint:  c.cfg.URL,
		},
	})
}
