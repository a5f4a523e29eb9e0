package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"coin-market-history/internal/domain"
)

// StreamConfig configures the live ticker WebSocket client.
type StreamConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing control frames.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// StreamClient consumes a live quote feed over WebSocket. Each message is one
// markets API item; malformed messages are dropped with a log line rather than
// killing the stream.
type StreamClient struct {
	endpoint string
	config   StreamConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	quotes chan domain.Quote
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewStreamClient connects to the endpoint and starts consuming quotes.
func NewStreamClient(ctx context.Context, endpoint string, config *StreamConfig, logger *log.Logger) (*StreamClient, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}

	c := &StreamClient{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		quotes:   make(chan domain.Quote, 1024),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Quotes returns the channel of decoded live quotes. It is closed on Close.
func (c *StreamClient) Quotes() <-chan domain.Quote {
	return c.quotes
}

// connect establishes the WebSocket connection.
func (c *StreamClient) connect(ctx context.Context) error {
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

// Close closes the connection and the quotes channel.
func (c *StreamClient) Close() error {
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

	c.wg.Wait()
	close(c.quotes)
	return nil
}

// readLoop reads feed messages and pushes decoded quotes, reconnecting with
// exponential backoff on connection errors.
func (c *StreamClient) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if err := c.reconnect(reconnectDelay); err != nil {
				reconnectDelay = reconnectDelay * 2
				if reconnectDelay > c.config.MaxReconnectDelay {
					reconnectDelay = c.config.MaxReconnectDelay
				}
			}
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

			c.connMu.Lock()
			if c.conn != nil {
				c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()
			continue
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect waits for the backoff delay and redials.
func (c *StreamClient) reconnect(delay time.Duration) error {
	select {
	case <-c.done:
		return nil
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		if c.logger != nil {
			c.logger.Printf("reconnect failed: %v", err)
		}
		return err
	}
	return nil
}

// handleMessage decodes one feed message and forwards the quote.
func (c *StreamClient) handleMessage(message []byte) {
	var ticker marketTicker
	if err := json.Unmarshal(message, &ticker); err != nil {
		if c.logger != nil {
			c.logger.Printf("drop malformed feed message: %v", err)
		}
		return
	}

	// Block until we can send - never drop quotes on backpressure
	select {
	case c.quotes <- ticker.quote():
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *StreamClient) pingLoop() {
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
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			c.connMu.Unlock()
		}
	}
}
