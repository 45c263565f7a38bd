// Package health reports the health of pipeline stages and ports.
//
// # Health States
//
// The package supports three health states:
//   - Healthy: operating normally
//   - Degraded: working, but a port is near full or a stage hit a
//     recoverable error
//   - Unhealthy: a stage failed with a fatal error
//
// A port's status is derived from a State snapshot with FromPort. A port
// at or above DegradedUtilization is degraded: the consumer is not keeping
// up and the producer spends its time blocked. A closed port is healthy
// once drained and degraded while data is still pending.
//
// # Monitor
//
// Monitor keeps the latest status per component and aggregates them; the
// worst component decides the aggregate. It implements http.Handler so it
// can be mounted next to /metrics:
//
//	monitor := health.NewMonitor("sigport")
//	monitor.Update("modulated", health.FromPortStats("modulated", p.State(), p.Stats()))
//	server.Handle("/health", monitor)
//
// Error messages passed through FromError are sanitized; server URLs, IP
// addresses, file paths and credentials are replaced by placeholders.
package health
