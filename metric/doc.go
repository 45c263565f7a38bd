// Package metric provides Prometheus metrics collection and the HTTP
// endpoint that exposes them.
//
// MetricsRegistry wraps a private prometheus.Registry. It registers the
// pipeline-level metrics (stage status, samples, bridge frames, NATS
// connection) and the Go runtime collectors, and lets components such as
// ports register their own collectors keyed by "service.metric":
//
//	registry := metric.NewMetricsRegistry()
//	p, err := port.New[complex64](4096, port.WithMetrics(registry, "modulated"))
//
// Server serves the registry on /metrics in OpenMetrics format:
//
//	server := metric.NewServer(9090, "/metrics", registry)
//	server.Handle("/health", healthHandler)
//	errCh, err := server.Start()
package metric
