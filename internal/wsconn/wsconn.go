// Package wsconn provides a WebSocket client with automatic reconnection.
package wsconn

import (
	"context"
	"fmt"
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

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string // connection name for errors and logs
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = infinite
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0,
		PingInterval:   30 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadLimit:      1 << 20,
	}
}

// Client is a reconnecting WebSocket client. Incoming messages are delivered
// to the OnMessage handler from a single goroutine, in arrival order.
type Client struct {
	config Config

	conn   *websocket.Conn
	connMu sync.RWMutex

	state   State
	stateMu sync.RWMutex

	onMessage    func([]byte)
	onDisconnect func(error)
	handlerMu    sync.RWMutex

	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a new WebSocket client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("wsconn: empty URL")
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Client{
		config: cfg,
		state:  StateDisconnected,
		closed: make(chan struct{}),
	}, nil
}

// OnMessage registers the handler invoked for every received message.
func (c *Client) OnMessage(handler func([]byte)) {
	c.handlerMu.Lock()
	c.onMessage = handler
	c.handlerMu.Unlock()
}

// OnDisconnect registers a handler invoked when the connection drops and
// cannot be re-established.
func (c *Client) OnDisconnect(handler func(error)) {
	c.handlerMu.Lock()
	c.onDisconnect = handler
	c.handlerMu.Unlock()
}

// Connect performs a single connection attempt and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	c.setState(StateConnecting)

	conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("wsconn %s: dial %s: %w", c.config.Name, c.config.URL, err)
	}
	if c.config.ReadLimit > 0 {
		conn.SetReadLimit(c.config.ReadLimit)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.setState(StateConnected)

	go c.readLoop()
	go c.pingLoop()

	return nil
}

// ConnectWithRetry connects with exponential backoff until it succeeds,
// the retry budget is spent, or the context is cancelled.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	backoff := c.config.InitialBackoff
	attempt := 0

	for {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}

		attempt++
		if c.config.MaxReconnects > 0 && attempt >= c.config.MaxReconnects {
			return fmt.Errorf("wsconn %s: giving up after %d attempts: %w", c.config.Name, attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return fmt.Errorf("wsconn %s: closed", c.config.Name)
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.config.MaxBackoff {
			backoff = c.config.MaxBackoff
		}
	}
}

// Send writes a text message to the connection.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return fmt.Errorf("wsconn %s: not connected", c.config.Name)
	}

	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}
	return conn.Write(ctx, websocket.MessageText, msg)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Close permanently closes the client. It does not reconnect afterwards.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	c.setState(StateClosed)

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	return nil
}

func (c *Client) readLoop() {
	for {
		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()
		if conn == nil {
			return
		}

		ctx := context.Background()
		cancel := context.CancelFunc(func() {})
		if c.config.ReadTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, c.config.ReadTimeout)
		}

		_, data, err := conn.Read(ctx)
		cancel()
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			c.handleReadError(err)
			return
		}

		c.handlerMu.RLock()
		handler := c.onMessage
		c.handlerMu.RUnlock()
		if handler != nil {
			handler(data)
		}
	}
}

func (c *Client) handleReadError(err error) {
	c.setState(StateReconnecting)

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusAbnormalClosure, "read failed")
		c.conn = nil
	}
	c.connMu.Unlock()

	if rerr := c.ConnectWithRetry(context.Background()); rerr != nil {
		c.setState(StateDisconnected)
		c.handlerMu.RLock()
		handler := c.onDisconnect
		c.handlerMu.RUnlock()
		if handler != nil {
			handler(fmt.Errorf("wsconn %s: reconnect failed after %v: %w", c.config.Name, err, rerr))
		}
	}
}

func (c *Client) pingLoop() {
	if c.config.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()
			if conn == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), c.config.WriteTimeout)
			_ = conn.Ping(ctx)
			cancel()
		}
	}
}

func (c *Client) setState(state State) {
	c.stateMu.Lock()
	// Closed is terminal.
	if c.state != StateClosed {
		c.state = state
	}
	c.stateMu.Unlock()
}
