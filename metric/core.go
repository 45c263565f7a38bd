package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the Prometheus namespace shared by every sigport metric.
const Namespace = "sigport"

// Stage status values reported by StageStatus.
const (
	StageStopped = iota
	StageStarting
	StageRunning
	StageStopping
	StageFailed
)

// Metrics contains the pipeline-level metrics (not per-port ones)
type Metrics struct {
	// Stage metrics
	StageStatus      *prometheus.GaugeVec
	SamplesProcessed *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	ErrorsTotal      *prometheus.CounterVec

	// Bridge metrics
	FramesPublished *prometheus.CounterVec
	FramesReceived  *prometheus.CounterVec
	NATSConnected   prometheus.Gauge
	NATSReconnects  prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all pipeline metrics
func NewMetrics() *Metrics {
	return &Metrics{
		StageStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "stage",
				Name:      "status",
				Help:      "Stage status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"stage"},
		),

		SamplesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "stage",
				Name:      "samples_total",
				Help:      "Total number of samples processed by a stage",
			},
			[]string{"stage"},
		),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "stage",
				Name:      "block_duration_seconds",
				Help:      "Time spent processing one block of samples",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
			},
			[]string{"stage"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"stage", "class"},
		),

		FramesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "bridge",
				Name:      "frames_published_total",
				Help:      "Total number of sample frames published to NATS",
			},
			[]string{"subject"},
		),

		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "bridge",
				Name:      "frames_received_total",
				Help:      "Total number of sample frames received from NATS",
			},
			[]string{"subject"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

func (c *Metrics) mustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		c.StageStatus,
		c.SamplesProcessed,
		c.StageDuration,
		c.ErrorsTotal,
		c.FramesPublished,
		c.FramesReceived,
		c.NATSConnected,
		c.NATSReconnects,
	)
}

// RecordStageStatus updates the stage status metric
func (c *Metrics) RecordStageStatus(stage string, status int) {
	c.StageStatus.WithLabelValues(stage).Set(float64(status))
}

// RecordSamples adds n to the processed sample counter of a stage
func (c *Metrics) RecordSamples(stage string, n int) {
	c.SamplesProcessed.WithLabelValues(stage).Add(float64(n))
}

// RecordBlockDuration records the time a stage spent on one block
func (c *Metrics) RecordBlockDuration(stage string, duration time.Duration) {
	c.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordError increments the error counter for a stage and error class
func (c *Metrics) RecordError(stage, class string) {
	c.ErrorsTotal.WithLabelValues(stage, class).Inc()
}

// RecordFramePublished increments the published frame counter
func (c *Metrics) RecordFramePublished(subject string) {
	c.FramesPublished.WithLabelValues(subject).Inc()
}

// RecordFrameReceived increments the received frame counter
func (c *Metrics) RecordFrameReceived(subject string) {
	c.FramesReceived.WithLabelValues(subject).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}
