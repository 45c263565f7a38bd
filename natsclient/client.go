package natsclient

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/sigport/config"
	"github.com/c360/sigport/errors"
	"github.com/c360/sigport/metric"
	"github.com/c360/sigport/pkg/retry"
	"github.com/c360/sigport/pkg/tlsutil"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int32

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client owns one NATS connection and its subscriptions.
type Client struct {
	url        string
	status     atomic.Int32
	reconnects atomic.Int32
	logger     *slog.Logger
	metrics    *metric.Metrics

	// Connection options
	name          string
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	connectRetry  retry.Config

	// Authentication, cleared on close
	username string
	password string
	token    string

	tlsConfig *tls.Config

	onHealthChange func(bool)

	mu     sync.RWMutex
	conn   *nats.Conn
	closed atomic.Bool
}

// NewClient creates a client for cfg. It does not connect.
func NewClient(cfg config.NATSConfig, opts ...ClientOption) (*Client, error) {
	if len(cfg.URLs) == 0 {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Client", "NewClient", "nats urls")
	}

	c := &Client{
		url:           strings.Join(cfg.URLs, ","),
		logger:        slog.Default(),
		name:          cfg.Name,
		maxReconnects: cfg.MaxReconnects,
		reconnectWait: cfg.ReconnectWait,
		timeout:       cfg.ConnectTimeout,
		drainTimeout:  10 * time.Second,
		connectRetry:  retry.ForConnect(),
		username:      cfg.Username,
		password:      cfg.Password,
		token:         cfg.Token,
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}

	tlsConfig, err := tlsutil.LoadClientTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}
	c.tlsConfig = tlsConfig

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.logger = c.logger.With("component", "natsclient", "url", c.url)
	c.setStatus(StatusDisconnected)
	return c, nil
}

// URL returns the comma separated server list.
func (c *Client) URL() string { return c.url }

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	return ConnectionStatus(c.status.Load())
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(int32(status))
}

// IsHealthy returns true if the connection is up
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Reconnects returns how many times the connection was re-established.
func (c *Client) Reconnects() int32 { return c.reconnects.Load() }

// Conn returns the underlying connection, nil before Connect.
func (c *Client) Conn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// buildConnectionOptions builds NATS connection options from client configuration
func (c *Client) buildConnectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}
	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.name != "" {
		opts = append(opts, nats.Name(c.name))
	}
	if c.tlsConfig != nil {
		opts = append(opts, nats.Secure(c.tlsConfig))
	}
	return opts
}

// Connect dials the servers, retrying transient failures with backoff.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.WrapInvalid(errors.ErrConnectionLost, "Client", "Connect", "client closed")
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("Connecting to NATS")

	cfg := c.connectRetry
	cfg.Retryable = errors.IsTransient
	cfg.Notify = func(attempt int, err error, next time.Duration) {
		c.logger.Warn("NATS connect failed, retrying", "attempt", attempt, "error", err, "backoff", next)
	}

	conn, err := retry.DoWithResult(ctx, cfg, func() (*nats.Conn, error) {
		return c.dial(ctx)
	})
	if err != nil {
		c.setStatus(StatusDisconnected)
		if errors.IsFatal(err) {
			return errors.WrapFatal(err, "Client", "Connect", "establish connection")
		}
		return errors.WrapTransient(err, "Client", "Connect", "establish connection")
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setStatus(StatusConnected)
	c.recordHealth(true)
	c.logger.Info("Connected to NATS", "server", conn.ConnectedUrl())
	return nil
}

// dial makes one connection attempt bounded by ctx.
func (c *Client) dial(ctx context.Context) (*nats.Conn, error) {
	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.buildConnectionOptions()...)
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, classifyConnectError(r.err)
		}
		return r.conn, nil
	case <-ctx.Done():
		// Close a connection that completes after we gave up on it.
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, retry.NonRetryable(ctx.Err())
	}
}

func classifyConnectError(err error) error {
	switch {
	case stderrors.Is(err, nats.ErrAuthorization), stderrors.Is(err, nats.ErrAuthExpired):
		return retry.NonRetryable(errors.WrapFatal(err, "Client", "Connect", "authenticate"))
	case stderrors.Is(err, nats.ErrNoServers), stderrors.Is(err, nats.ErrTimeout):
		return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrNoConnection, err), "Client", "Connect", "dial")
	default:
		return errors.WrapTransient(err, "Client", "Connect", "dial")
	}
}

// Publish sends data on subject. It fails with ErrNoConnection before
// Connect and after Close.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Publish", "publish")
	}

	if err := conn.Publish(subject, data); err != nil {
		switch {
		case stderrors.Is(err, nats.ErrMaxPayload), stderrors.Is(err, nats.ErrBadSubject):
			return errors.WrapInvalid(err, "Client", "Publish", "publish")
		case stderrors.Is(err, nats.ErrConnectionClosed):
			return errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrConnectionLost, err), "Client", "Publish", "publish")
		default:
			return errors.WrapTransient(err, "Client", "Publish", "publish")
		}
	}
	return nil
}

// Flush waits until the server has processed everything published so far.
// Without a deadline on ctx the connect timeout bounds the wait.
func (c *Client) Flush(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Flush", "flush")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		return errors.WrapTransient(err, "Client", "Flush", "flush")
	}
	return nil
}

// SubscribeSync creates a synchronous subscription. Messages queue in the
// client until read with Subscription.NextMsg.
func (c *Client) SubscribeSync(subject string) (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		return nil, errors.WrapTransient(errors.ErrNoConnection, "Client", "SubscribeSync", "subscribe")
	}

	sub, err := c.conn.SubscribeSync(subject)
	if err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrSubscriptionFailed, err),
			"Client", "SubscribeSync", fmt.Sprintf("subscribe %s", subject))
	}
	return &Subscription{sub: sub}, nil
}

// RTT returns the round-trip time to the server.
func (c *Client) RTT() (time.Duration, error) {
	conn := c.Conn()
	if conn == nil || !conn.IsConnected() {
		return 0, errors.ErrNoConnection
	}
	return conn.RTT()
}

// Close drains pending messages on all subscriptions and closes the
// connection. It is safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.conn != nil {
		drainTimeout := c.drainTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
				drainTimeout = remaining
			}
		}

		conn := c.conn
		if err := conn.Drain(); err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, errors.Wrap(err, "Client", "Close", "drain connection"))
		} else if err := waitClosed(ctx, conn, drainTimeout); err != nil {
			errs = append(errs, errors.WrapTransient(err, "Client", "Close", "drain"))
		}

		conn.Close()
		c.conn = nil
	}

	c.username = ""
	c.password = ""
	c.token = ""
	c.setStatus(StatusClosed)

	return stderrors.Join(errs...)
}

// waitClosed polls until an asynchronous drain has closed conn.
func waitClosed(ctx context.Context, conn *nats.Conn, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for !conn.IsClosed() {
		select {
		case <-ticker.C:
		case <-deadline.C:
			return fmt.Errorf("drain timeout after %v", timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *Client) recordHealth(healthy bool) {
	if c.metrics != nil {
		c.metrics.RecordNATSStatus(healthy)
	}
	if c.onHealthChange != nil {
		go c.onHealthChange(healthy)
	}
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.closed.Load() {
		return
	}
	c.setStatus(StatusReconnecting)
	c.logger.Warn("NATS disconnected", "error", err)
	c.recordHealth(false)
}

func (c *Client) handleReconnect(conn *nats.Conn) {
	c.setStatus(StatusConnected)
	n := c.reconnects.Add(1)
	c.logger.Info("NATS reconnected", "server", conn.ConnectedUrl(), "reconnects", n)
	if c.metrics != nil {
		c.metrics.RecordNATSReconnect()
	}
	c.recordHealth(true)
}

func (c *Client) handleClosed(_ *nats.Conn) {
	if !c.closed.Load() {
		// Reconnect attempts ran out.
		c.logger.Error("NATS connection closed")
		c.setStatus(StatusDisconnected)
		c.recordHealth(false)
		return
	}
	c.logger.Debug("NATS connection closed")
	if c.metrics != nil {
		c.metrics.RecordNATSStatus(false)
	}
}

func (c *Client) handleError(_ *nats.Conn, sub *nats.Subscription, err error) {
	attrs := []any{"error", err}
	if sub != nil {
		attrs = append(attrs, "subject", sub.Subject)
	}
	c.logger.Error("NATS async error", attrs...)
}

// Subscription is a synchronous subscription.
type Subscription struct {
	sub *nats.Subscription
}

// NextMsg blocks until a message arrives or ctx is done and returns its
// payload.
func (s *Subscription) NextMsg(ctx context.Context) ([]byte, error) {
	msg, err := s.sub.NextMsgWithContext(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.WrapTransient(err, "Subscription", "NextMsg", "receive")
	}
	return msg.Data, nil
}

// Subject returns the subscribed subject.
func (s *Subscription) Subject() string { return s.sub.Subject }

// Dropped returns how many messages the client discarded because the
// subscription fell behind.
func (s *Subscription) Dropped() (int, error) { return s.sub.Dropped() }

// Unsubscribe removes interest in the subject.
func (s *Subscription) Unsubscribe() error { return s.sub.Unsubscribe() }
