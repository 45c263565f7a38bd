package port

import (
	"log/slog"

	"github.com/c360/sigport/metric"
)

// Option configures a port using the functional options pattern.
// Options are not generic so the same list can configure ports of any
// element type.
type Option func(*portOptions)

// portOptions holds internal configuration for port instances.
// Statistics are always collected; Prometheus metrics are opt-in.
type portOptions struct {
	name        string
	logger      *slog.Logger
	registry    *metric.MetricsRegistry
	metricsName string
}

// WithName sets the port name used in logs, metrics and Describe output.
// Without it a name is derived from the port ID.
func WithName(name string) Option {
	return func(o *portOptions) {
		o.name = name
	}
}

// WithLogger sets the logger. Nil is ignored and slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *portOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics exports port statistics as Prometheus metrics labelled
// port=name. An empty name falls back to the port name. A nil registry is
// ignored.
func WithMetrics(registry *metric.MetricsRegistry, name string) Option {
	return func(o *portOptions) {
		if registry != nil {
			o.registry = registry
			o.metricsName = name
		}
	}
}

func applyOptions(options ...Option) *portOptions {
	opts := &portOptions{
		logger: slog.Default(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
