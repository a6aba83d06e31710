// Package websocket provides a read-mostly websocket client that reconnects
// with backoff when the connection drops.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/retry"
)

// Config holds dial, keepalive and reconnection settings
type Config struct {
	// Dial is the backoff for the first connection.
	Dial *retry.RetryConfig
	// Reconnect is the backoff after a drop. MaxRetries 0 means unlimited.
	Reconnect *retry.RetryConfig

	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	MaxMessageSize   int64
	// Buffer is the capacity of the message channel; a full channel drops messages.
	Buffer int
}

func DefaultConfig() *Config {
	return &Config{
		Dial: &retry.RetryConfig{
			MaxRetries:      3,
			InitialDelay:    time.Second,
			MaxDelay:        10 * time.Second,
			BackoffFactor:   2.0,
			JitterFactor:    0.2,
			LogRetryAttempt: true,
		},
		Reconnect: &retry.RetryConfig{
			MaxRetries:    0,
			InitialDelay:  2 * time.Second,
			MaxDelay:      time.Minute,
			BackoffFactor: 2.0,
			JitterFactor:  0.25,
		},
		HandshakeTimeout: 10 * time.Second,
		WriteWait:        10 * time.Second,
		PingInterval:     30 * time.Second,
		PongWait:         60 * time.Second,
		MaxMessageSize:   512 * 1024,
		Buffer:           100,
	}
}

func (c *Config) Validate() error {
	if c.Dial == nil || c.Reconnect == nil {
		return errors.New("dial and reconnect backoff must be set")
	}
	if c.Reconnect.InitialDelay <= 0 || c.Reconnect.MaxDelay <= 0 {
		return errors.New("reconnect delays must be positive")
	}
	if c.HandshakeTimeout <= 0 || c.WriteWait <= 0 {
		return errors.New("handshake timeout and write wait must be positive")
	}
	if c.PingInterval <= 0 || c.PongWait <= c.PingInterval {
		return errors.New("pongWait must be greater than a positive pingInterval")
	}
	if c.MaxMessageSize < 0 || c.Buffer < 1 {
		return errors.New("maxMessageSize must be >= 0 and buffer >= 1")
	}
	return nil
}

// HandshakeError is returned when the server answers the upgrade with a
// non-101 status.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("websocket handshake failed with status %d: %v", e.StatusCode, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// retryable keeps retrying network errors, 429 and 5xx answers.
func retryable(err error, _ int) bool {
	var hs *HandshakeError
	if errors.As(err, &hs) {
		return hs.StatusCode == http.StatusTooManyRequests || hs.StatusCode >= http.StatusInternalServerError
	}
	return true
}

type Client struct {
	url    string
	config *Config
	logger logging.Logger
	dialer *websocket.Dialer

	mu             sync.RWMutex
	conn           *websocket.Conn
	connected      bool
	closed         bool
	headers        http.Header
	reconnectCount int
	lastMessage    time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	messages chan []byte
	errs     chan error
}

func NewClient(url string, config *Config, logger logging.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid websocket config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	dial := *config.Dial
	if dial.ShouldRetry == nil {
		dial.ShouldRetry = retryable
	}
	config.Dial = &dial

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:    url,
		config: config,
		logger: logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: config.HandshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
		headers:  make(http.Header),
		ctx:      ctx,
		cancel:   cancel,
		messages: make(chan []byte, config.Buffer),
		errs:     make(chan error, 1),
	}, nil
}

// SetHeaders sets the HTTP headers sent with every handshake
func (c *Client) SetHeaders(headers http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers = headers.Clone()
}

// Connect dials with the Dial backoff and starts the read and ping loops.
// It is a no-op while connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return errors.New("websocket client is closed")
	}
	if c.connected {
		c.mu.RUnlock()
		return nil
	}
	headers := c.headers.Clone()
	c.mu.RUnlock()

	conn, err := retry.Retry(ctx, func() (*websocket.Conn, error) {
		conn, resp, err := c.dialer.DialContext(ctx, c.url, headers)
		if err != nil {
			if resp != nil {
				return nil, &HandshakeError{StatusCode: resp.StatusCode, Err: err}
			}
			return nil, fmt.Errorf("failed to connect to %s: %w", c.url, err)
		}
		return conn, nil
	}, c.config.Dial, c.logger)
	if err != nil {
		return fmt.Errorf("failed to establish websocket connection: %w", err)
	}

	conn.SetReadLimit(c.config.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	conn.SetPongHandler(func(string) error {
		c.touch()
		return conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return errors.New("websocket client is closed")
	}
	c.conn = conn
	c.connected = true
	c.lastMessage = time.Now()
	c.wg.Add(2)
	c.mu.Unlock()

	c.logger.Infof("Connected to websocket %s", c.url)
	go c.pingLoop(conn)
	go c.readLoop(conn)
	return nil
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastMessage = time.Now()
	c.mu.Unlock()
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteWait)); err != nil {
				c.logger.Debugf("Failed to send ping: %v", err)
				c.disconnected(conn)
				return
			}
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Warnf("Websocket closed unexpectedly: %v", err)
				} else {
					c.logger.Debugf("Websocket read error: %v", err)
				}
			}
			c.disconnected(conn)
			return
		}
		c.touch()
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case c.messages <- message:
		case <-c.ctx.Done():
			return
		default:
			c.logger.Warn("Message channel full, dropping message")
		}
	}
}

// disconnected tears down conn once and starts reconnecting unless the
// client is closing.
func (c *Client) disconnected(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	_ = conn.Close()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Warn("Websocket disconnected, reconnecting")
	go c.reconnectLoop()
}

func (c *Client) reconnectLoop() {
	defer c.wg.Done()
	cfg := c.config.Reconnect
	backoff := cfg.Backoff()

	for attempt := 1; cfg.MaxRetries == 0 || attempt <= cfg.MaxRetries; attempt++ {
		c.mu.Lock()
		c.reconnectCount++
		c.mu.Unlock()

		wait := backoff.Next()
		c.logger.Debugf("Reconnecting to %s in %s (attempt %d)", c.url, wait, attempt)
		timer := time.NewTimer(wait)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		dialCtx, cancel := context.WithTimeout(c.ctx, 2*c.config.HandshakeTimeout)
		err := c.Connect(dialCtx)
		cancel()
		if err == nil {
			c.logger.Infof("Reconnected to %s after %d attempts", c.url, attempt)
			return
		}
		if c.ctx.Err() != nil {
			return
		}
		c.logger.Warnf("Reconnection attempt %d failed: %v", attempt, err)
	}

	select {
	case c.errs <- fmt.Errorf("gave up reconnecting to %s after %d attempts", c.url, cfg.MaxRetries):
	default:
	}
}

// ReadMessage waits for the next message. It fails when ctx ends, the
// client closes or reconnection gives up.
func (c *Client) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, errors.New("websocket client is closed")
	case msg := <-c.messages:
		return msg, nil
	case err := <-c.errs:
		return nil, err
	}
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// ReconnectCount is the number of reconnection attempts made so far.
func (c *Client) ReconnectCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconnectCount
}

func (c *Client) LastMessageTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastMessage
}

// Close stops reconnecting and closes the connection with a normal closure.
// It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	c.cancel()
	var err error
	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.config.WriteWait))
		err = conn.Close()
	}
	c.wg.Wait()
	return err
}
