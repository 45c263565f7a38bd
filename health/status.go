package health

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	errs "github.com/c360/sigport/errors"
	"github.com/c360/sigport/pkg/port"
)

// Status values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// DegradedUtilization is the fill level at which a port is reported as
// degraded. Above it the producer is being held back by the consumer.
const DegradedUtilization = 0.9

// Pre-compiled regexes for error message sanitization
var (
	urlRegex        = regexp.MustCompile(`(?:https?|nats|tls|wss?)://[^\s,]+`)
	unixPathRegex   = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex       = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status represents the health state of a stage, a port or the pipeline
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"` // true if status is "healthy"
	Status      string    `json:"status"`  // "healthy", "unhealthy", "degraded"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics contains the port figures behind a status
type Metrics struct {
	Uptime      time.Duration `json:"uptime"`
	Capacity    int           `json:"capacity"`
	Fill        int           `json:"fill"`
	MaxFill     int64         `json:"max_fill"`
	Utilization float64       `json:"utilization"`
	Produced    int64         `json:"produced"`
	Consumed    int64         `json:"consumed"`
	ErrorCount  int           `json:"error_count,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool { return s.Status == StatusHealthy }

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool { return s.Status == StatusDegraded }

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool { return s.Status == StatusUnhealthy }

// WithMetrics returns a copy of the status with metrics attached
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

// FromPort derives a status from a port snapshot:
//   - open, below DegradedUtilization: healthy
//   - open, at or above DegradedUtilization: degraded (back-pressure)
//   - closed and drained: healthy
//   - closed with data left: degraded until the consumer drains it
func FromPort(name string, state port.State) Status {
	utilization := state.Utilization()
	switch {
	case state.Drained():
		return NewHealthy(name, "drained")
	case state.Closed:
		return NewDegraded(name, fmt.Sprintf("closed with %d of %d elements pending", state.Readable, state.Capacity))
	case utilization >= DegradedUtilization:
		return NewDegraded(name, fmt.Sprintf("back-pressure: %.0f%% full", utilization*100))
	default:
		return NewHealthy(name, fmt.Sprintf("%.0f%% full", utilization*100))
	}
}

// FromPortStats is FromPort with metrics taken from the port statistics.
func FromPortStats(name string, state port.State, stats *port.Statistics) Status {
	return FromPort(name, state).WithMetrics(&Metrics{
		Uptime:      stats.Uptime(),
		Capacity:    state.Capacity,
		Fill:        state.Readable,
		MaxFill:     stats.MaxFill(),
		Utilization: state.Utilization(),
		Produced:    stats.Produced(),
		Consumed:    stats.Consumed(),
	})
}

// FromError reports a failed stage. Fatal errors make the stage unhealthy;
// anything else degrades it. The message is sanitized.
func FromError(name string, err error) Status {
	if err == nil {
		return NewHealthy(name, "running")
	}
	message := sanitizeErrorMessage(err.Error())
	if errs.IsFatal(err) {
		return NewUnhealthy(name, message)
	}
	return NewDegraded(name, message)
}

// sanitizeErrorMessage removes server addresses, file paths and credentials
// from error messages before they are served on the health endpoint.
//
// Sanitization patterns:
//   - URLs (http://, https://, nats://, tls://, ws://, wss://) → [URL]
//   - Unix file paths → [PATH]
//   - IP addresses (192.168.1.100) → [IP]
//   - Port numbers (:8080) → [PORT]
//   - Credentials (password=X, token=X, secret=X) → [REDACTED]
func sanitizeErrorMessage(err string) string {
	if err == "" {
		return ""
	}

	// URLs first, they contain paths
	sanitized := urlRegex.ReplaceAllString(err, "[URL]")
	sanitized = unixPathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")

	lower := strings.ToLower(sanitized)
	if strings.Contains(lower, "password") || strings.Contains(lower, "token") ||
		strings.Contains(lower, "secret") || strings.Contains(lower, "credential") {
		sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
	}
	return sanitized
}
