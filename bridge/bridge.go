package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/c360/sigport/config"
	errs "github.com/c360/sigport/errors"
	"github.com/c360/sigport/metric"
	"github.com/c360/sigport/pkg/retry"
)

// SampleSource is the consuming side of a port feeding a Publisher.
// port.Consumer[complex64] implements it.
type SampleSource interface {
	ConsumeAvailableContext(ctx context.Context, dst []complex64) (int, error)
	Name() string
}

// SampleSink is the producing side of a port fed by a Subscriber.
// port.Producer[complex64] implements it.
type SampleSink interface {
	ProduceContext(ctx context.Context, src []complex64) (int, error)
	Close() error
	Name() string
}

// FramePublisher sends encoded frames. natsclient.Client implements it.
type FramePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Flush(ctx context.Context) error
}

// FrameSource yields encoded frames in arrival order.
// natsclient.Subscription implements it.
type FrameSource interface {
	NextMsg(ctx context.Context) ([]byte, error)
}

// Config configures one direction of the bridge.
type Config struct {
	Subject   string
	FrameSize int
	Retry     retry.Config
}

// FromNATSConfig derives a bridge configuration from the NATS section.
func FromNATSConfig(cfg config.NATSConfig) Config {
	return Config{
		Subject:   cfg.Subject,
		FrameSize: cfg.FrameSize,
		Retry:     retry.ForPublish(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Subject == "" {
		return errs.WrapInvalid(errs.ErrMissingConfig, "bridge", "Validate", "subject")
	}
	if c.FrameSize <= 0 || c.FrameSize > config.MaxFrameSamples {
		return errs.WrapInvalid(
			fmt.Errorf("%w: frame size %d not in [1, %d]", errs.ErrInvalidConfig, c.FrameSize, config.MaxFrameSamples),
			"bridge", "Validate", "frame size")
	}
	return nil
}

// Option configures a Publisher or Subscriber.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metric.Metrics
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records frame, sample and error counts in m.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Stats tracks bridge traffic. All methods are safe for concurrent use.
type Stats struct {
	frames       atomic.Int64
	samples      atomic.Int64
	gaps         atomic.Int64
	decodeErrors atomic.Int64
	retries      atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Frames       int64 `json:"frames"`
	Samples      int64 `json:"samples"`
	Gaps         int64 `json:"gaps"`
	DecodeErrors int64 `json:"decode_errors"`
	Retries      int64 `json:"retries"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Frames:       s.frames.Load(),
		Samples:      s.samples.Load(),
		Gaps:         s.gaps.Load(),
		DecodeErrors: s.decodeErrors.Load(),
		Retries:      s.retries.Load(),
	}
}
