// Package wsconn provides a production-grade WebSocket client with reconnection.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// ErrClosed is returned when operating on a closed client.
var ErrClosed = errors.New("wsconn: client closed")

// ErrNotConnected is returned when sending before Connect succeeds.
var ErrNotConnected = errors.New("wsconn: not connected")

// MessageHandler is invoked for every inbound message.
type MessageHandler func(ctx context.Context, msg []byte)

// StateChangeHandler is invoked on every state transition. err is non-nil
// when the transition was caused by a failure.
type StateChangeHandler func(state State, err error)

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string // label used in errors
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = infinite
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64 // 0 = library default
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(wsURL, name string) Config {
	return Config{
		URL:            wsURL,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0, // infinite
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

// Client is a reconnecting WebSocket client backed by coder/websocket.
type Client struct {
	config Config

	mu       sync.RWMutex
	state    State
	conn     *websocket.Conn
	closed   bool
	loopDone chan struct{}

	writeMu sync.Mutex

	onMessage     MessageHandler
	onStateChange StateChangeHandler
	handlerMu     sync.RWMutex
}

// New creates a new WebSocket client. The connection is established by Connect.
func New(config Config) (*Client, error) {
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("wsconn %s: invalid url: %w", config.Name, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("wsconn %s: unsupported scheme %q", config.Name, u.Scheme)
	}
	return &Client{
		config: config,
		state:  StateDisconnected,
	}, nil
}

// OnMessage registers the inbound message handler. Must be called before
// Connect; the handler runs on the client's read goroutine.
func (c *Client) OnMessage(h MessageHandler) {
	c.handlerMu.Lock()
	c.onMessage = h
	c.handlerMu.Unlock()
}

// OnStateChange registers the state transition handler.
func (c *Client) OnStateChange(h StateChangeHandler) {
	c.handlerMu.Lock()
	c.onStateChange = h
	c.handlerMu.Unlock()
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops. On read failure the client reconnects with exponential backoff.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	c.setState(StateConnecting, nil)

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected, err)
		return fmt.Errorf("wsconn %s: dial: %w", c.config.Name, err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.loopDone = done
	c.mu.Unlock()

	c.setState(StateConnected, nil)

	go c.readLoop(conn, done)
	if c.config.PingInterval > 0 {
		go c.pingLoop(conn, done)
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
	if err != nil {
		return nil, err
	}
	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}
	return conn, nil
}

// Send sends a raw message through the WebSocket.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.mu.RLock()
	conn := c.conn
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.Write(ctx, websocket.MessageText, msg)
}

// SendJSON marshals v and sends it as a text message.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wsconn %s: marshal: %w", c.config.Name, err)
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the client currently holds a live connection.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Close gracefully closes the WebSocket connection. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	done := c.loopDone
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}

	c.setState(StateClosed, nil)
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	ctx := context.Background()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.mu.RLock()
			closed := c.closed
			c.mu.RUnlock()
			if closed {
				return
			}
			c.setState(StateDisconnected, err)
			go c.reconnect()
			return
		}

		c.handlerMu.RLock()
		h := c.onMessage
		c.handlerMu.RUnlock()
		if h != nil {
			h(ctx, data)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.PongTimeout)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				// Read loop observes the broken connection and reconnects.
				_ = conn.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}

func (c *Client) reconnect() {
	backoff := c.config.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	for attempt := 1; ; attempt++ {
		if c.config.MaxReconnects > 0 && attempt > c.config.MaxReconnects {
			c.setState(StateDisconnected,
				fmt.Errorf("wsconn %s: gave up after %d reconnect attempts", c.config.Name, c.config.MaxReconnects))
			return
		}

		c.mu.RLock()
		closed := c.closed
		c.mu.RUnlock()
		if closed {
			return
		}

		c.setState(StateReconnecting, nil)
		time.Sleep(backoff)
		backoff = time.Duration(math.Min(float64(backoff)*2, float64(c.config.MaxBackoff)))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			continue
		}

		done := make(chan struct{})
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close(websocket.StatusNormalClosure, "client closing")
			return
		}
		c.conn = conn
		c.loopDone = done
		c.mu.Unlock()

		c.setState(StateConnected, nil)
		go c.readLoop(conn, done)
		if c.config.PingInterval > 0 {
			go c.pingLoop(conn, done)
		}
		return
	}
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	if c.state == StateClosed && state != StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	c.handlerMu.RLock()
	h := c.onStateChange
	c.handlerMu.RUnlock()
	if h != nil {
		h(state, err)
	}
}
