package port

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sigport/metric"
)

// portMetrics mirrors Statistics as Prometheus collectors.
type portMetrics struct {
	produced      prometheus.Counter
	consumed      prometheus.Counter
	producerWaits prometheus.Counter
	consumerWaits prometheus.Counter
	wraps         prometheus.Counter

	fill        prometheus.Gauge
	utilization prometheus.Gauge
}

func newPortMetrics(registry *metric.MetricsRegistry, name string) (*portMetrics, error) {
	labels := prometheus.Labels{"port": name}
	counter := func(metricName, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "port",
			Name:        metricName,
			ConstLabels: labels,
			Help:        help,
		})
	}
	gauge := func(metricName, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "port",
			Name:        metricName,
			ConstLabels: labels,
			Help:        help,
		})
	}

	m := &portMetrics{
		produced:      counter("produced_total", "Total number of elements written to the port"),
		consumed:      counter("consumed_total", "Total number of elements read from the port"),
		producerWaits: counter("producer_waits_total", "Times a producer blocked on a full port"),
		consumerWaits: counter("consumer_waits_total", "Times a consumer blocked on an empty port"),
		wraps:         counter("wraps_total", "Transfers split across the end of storage"),
		fill:          gauge("fill", "Number of elements currently buffered"),
		utilization:   gauge("utilization", "Buffered elements as a fraction of capacity (0.0 to 1.0)"),
	}

	collectors := []struct {
		name string
		c    prometheus.Collector
	}{
		{"port_produced", m.produced},
		{"port_consumed", m.consumed},
		{"port_producer_waits", m.producerWaits},
		{"port_consumer_waits", m.consumerWaits},
		{"port_wraps", m.wraps},
		{"port_fill", m.fill},
		{"port_utilization", m.utilization},
	}
	for i, c := range collectors {
		var err error
		switch col := c.c.(type) {
		case prometheus.Gauge:
			err = registry.RegisterGauge(name, c.name, col)
		case prometheus.Counter:
			err = registry.RegisterCounter(name, c.name, col)
		}
		if err != nil {
			// Roll back only what this call registered.
			for _, done := range collectors[:i] {
				registry.Unregister(name, done.name)
			}
			return nil, err
		}
	}
	return m, nil
}

func (m *portMetrics) recordProduce(n int, wrapped bool, fill, capacity int) {
	m.produced.Add(float64(n))
	if wrapped {
		m.wraps.Inc()
	}
	m.updateFill(fill, capacity)
}

func (m *portMetrics) recordConsume(n int, wrapped bool, fill, capacity int) {
	m.consumed.Add(float64(n))
	if wrapped {
		m.wraps.Inc()
	}
	m.updateFill(fill, capacity)
}

func (m *portMetrics) recordProducerWait() { m.producerWaits.Inc() }

func (m *portMetrics) recordConsumerWait() { m.consumerWaits.Inc() }

func (m *portMetrics) updateFill(fill, capacity int) {
	m.fill.Set(float64(fill))
	m.utilization.Set(float64(fill) / float64(capacity))
}
