package pipeline

import (
	"log/slog"

	"github.com/c360/sigport/health"
	"github.com/c360/sigport/metric"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger passed to every stage and port.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics exports port and stage metrics to registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(p *Pipeline) {
		p.registry = registry
	}
}

// WithMonitor publishes port and stage health to monitor while running.
func WithMonitor(monitor *health.Monitor) Option {
	return func(p *Pipeline) {
		p.monitor = monitor
	}
}

// WithTransport carries the NATS hop over t instead of a client built from
// the NATS configuration. The hop still only runs when NATS is enabled.
func WithTransport(t Transport) Option {
	return func(p *Pipeline) {
		p.transport = t
	}
}
