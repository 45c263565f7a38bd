package pipeline

import (
	"log/slog"
	"time"

	"github.com/c360/sigport/bridge"
	"github.com/c360/sigport/health"
	"github.com/c360/sigport/pkg/port"
)

// Report summarizes a finished run.
type Report struct {
	Produced    int64         `json:"produced"`    // samples modulated by the source
	Samples     int64         `json:"samples"`     // samples demodulated
	Verified    int64         `json:"verified"`    // samples compared with the reference tone
	Violations  int64         `json:"violations"`  // samples off by more than the tolerance
	MaxError    float64       `json:"max_error"`   // largest absolute demodulation error
	Interrupted bool          `json:"interrupted"` // stopped by the caller before the source finished
	Duration    time.Duration `json:"duration"`
	Ports       []PortReport  `json:"ports"`
	Bridge      *BridgeReport `json:"bridge,omitempty"`
}

// PortReport is the final state of one port.
type PortReport struct {
	Name   string            `json:"name"`
	State  port.State        `json:"state"`
	Stats  port.StatsSummary `json:"stats"`
	Health health.Status     `json:"health"`
}

// BridgeReport holds both ends of the NATS hop.
type BridgeReport struct {
	Published bridge.StatsSnapshot `json:"published"`
	Received  bridge.StatsSnapshot `json:"received"`
}

// LogValue implements slog.LogValuer.
func (r *Report) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("produced", r.Produced),
		slog.Int64("samples", r.Samples),
		slog.Int64("verified", r.Verified),
		slog.Int64("violations", r.Violations),
		slog.Float64("max_error", r.MaxError),
		slog.Bool("interrupted", r.Interrupted),
		slog.Duration("duration", r.Duration),
	}
	for _, pr := range r.Ports {
		attrs = append(attrs, slog.Group(pr.Name,
			slog.Int64("produced", pr.Stats.Produced),
			slog.Int64("producer_waits", pr.Stats.ProducerWaits),
			slog.Int64("consumer_waits", pr.Stats.ConsumerWaits),
			slog.Int64("max_fill", pr.Stats.MaxFill),
			slog.String("health", pr.Health.Status),
		))
	}
	if r.Bridge != nil {
		attrs = append(attrs, slog.Group("bridge",
			slog.Int64("frames", r.Bridge.Published.Frames),
			slog.Int64("retries", r.Bridge.Published.Retries),
			slog.Int64("gaps", r.Bridge.Received.Gaps),
			slog.Int64("decode_errors", r.Bridge.Received.DecodeErrors),
		))
	}
	return slog.GroupValue(attrs...)
}
