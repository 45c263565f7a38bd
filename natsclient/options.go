package natsclient

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/sigport/metric"
	"github.com/c360/sigport/pkg/retry"
)

// ClientOption is a functional option for configuring the Client
type ClientOption func(*Client) error

// WithLogger sets the structured logger for connection events
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithMetrics reports connection status and reconnects to m
func WithMetrics(m *metric.Metrics) ClientOption {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

// WithHealthChangeCallback sets a callback invoked when the connection
// goes up or down. It runs on its own goroutine.
func WithHealthChangeCallback(fn func(healthy bool)) ClientOption {
	return func(c *Client) error {
		c.onHealthChange = fn
		return nil
	}
}

// WithDrainTimeout bounds how long Close waits for pending messages
func WithDrainTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("drain timeout must be positive, got %v", d)
		}
		c.drainTimeout = d
		return nil
	}
}

// WithConnectRetry replaces the backoff policy used by Connect
func WithConnectRetry(cfg retry.Config) ClientOption {
	return func(c *Client) error {
		if cfg.MaxAttempts < 1 {
			return fmt.Errorf("connect retry needs at least one attempt, got %d", cfg.MaxAttempts)
		}
		c.connectRetry = cfg
		return nil
	}
}
