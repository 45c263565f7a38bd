package port

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks port activity. Counters are in elements except where a
// name says calls or waits. It is safe for concurrent use.
type Statistics struct {
	produced      atomic.Int64
	consumed      atomic.Int64
	produceCalls  atomic.Int64
	consumeCalls  atomic.Int64
	producerWaits atomic.Int64
	consumerWaits atomic.Int64
	wraps         atomic.Int64

	// Protected by mutex
	mu          sync.RWMutex
	startTime   time.Time
	currentFill int64
	maxFill     int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

// AddProduced records one successful produce call that wrote n elements.
func (s *Statistics) AddProduced(n int) {
	s.produceCalls.Add(1)
	s.produced.Add(int64(n))
}

// AddConsumed records one successful consume call that read n elements.
func (s *Statistics) AddConsumed(n int) {
	s.consumeCalls.Add(1)
	s.consumed.Add(int64(n))
}

// ProducerWait records a producer blocking on a full port.
func (s *Statistics) ProducerWait() { s.producerWaits.Add(1) }

// ConsumerWait records a consumer blocking on an empty port.
func (s *Statistics) ConsumerWait() { s.consumerWaits.Add(1) }

// Wrap records a transfer that was split across the end of storage.
func (s *Statistics) Wrap() { s.wraps.Add(1) }

// UpdateFill sets the number of buffered elements.
func (s *Statistics) UpdateFill(fill int64) {
	s.mu.Lock()
	s.currentFill = fill
	if fill > s.maxFill {
		s.maxFill = fill
	}
	s.mu.Unlock()
}

// Produced returns the total number of elements written.
func (s *Statistics) Produced() int64 { return s.produced.Load() }

// Consumed returns the total number of elements read.
func (s *Statistics) Consumed() int64 { return s.consumed.Load() }

// ProduceCalls returns the number of successful produce gate passes.
func (s *Statistics) ProduceCalls() int64 { return s.produceCalls.Load() }

// ConsumeCalls returns the number of successful consume gate passes.
func (s *Statistics) ConsumeCalls() int64 { return s.consumeCalls.Load() }

// ProducerWaits returns how many times a producer blocked.
func (s *Statistics) ProducerWaits() int64 { return s.producerWaits.Load() }

// ConsumerWaits returns how many times a consumer blocked.
func (s *Statistics) ConsumerWaits() int64 { return s.consumerWaits.Load() }

// Wraps returns the number of transfers that wrapped around.
func (s *Statistics) Wraps() int64 { return s.wraps.Load() }

// CurrentFill returns the number of buffered elements at the last transfer.
func (s *Statistics) CurrentFill() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentFill
}

// MaxFill returns the highest fill level observed.
func (s *Statistics) MaxFill() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxFill
}

// Uptime returns how long the port has been tracked.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// Throughput returns consumed elements per second since start.
func (s *Statistics) Throughput() float64 {
	elapsed := s.Uptime()
	if elapsed <= 0 {
		return 0.0
	}
	return float64(s.Consumed()) / elapsed.Seconds()
}

// Utilization returns the current fill as a fraction of capacity.
func (s *Statistics) Utilization(capacity int64) float64 {
	if capacity == 0 {
		return 0.0
	}
	return float64(s.CurrentFill()) / float64(capacity)
}

// Reset zeroes all counters and restarts the clock.
func (s *Statistics) Reset() {
	s.produced.Store(0)
	s.consumed.Store(0)
	s.produceCalls.Store(0)
	s.consumeCalls.Store(0)
	s.producerWaits.Store(0)
	s.consumerWaits.Store(0)
	s.wraps.Store(0)

	s.mu.Lock()
	s.startTime = time.Now()
	s.currentFill = 0
	s.maxFill = 0
	s.mu.Unlock()
}

// StatsSummary is a point-in-time copy of Statistics.
type StatsSummary struct {
	Produced      int64         `json:"produced"`
	Consumed      int64         `json:"consumed"`
	ProduceCalls  int64         `json:"produce_calls"`
	ConsumeCalls  int64         `json:"consume_calls"`
	ProducerWaits int64         `json:"producer_waits"`
	ConsumerWaits int64         `json:"consumer_waits"`
	Wraps         int64         `json:"wraps"`
	CurrentFill   int64         `json:"current_fill"`
	MaxFill       int64         `json:"max_fill"`
	Throughput    float64       `json:"throughput"`
	Uptime        time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Produced:      s.Produced(),
		Consumed:      s.Consumed(),
		ProduceCalls:  s.ProduceCalls(),
		ConsumeCalls:  s.ConsumeCalls(),
		ProducerWaits: s.ProducerWaits(),
		ConsumerWaits: s.ConsumerWaits(),
		Wraps:         s.Wraps(),
		CurrentFill:   s.CurrentFill(),
		MaxFill:       s.MaxFill(),
		Throughput:    s.Throughput(),
		Uptime:        s.Uptime(),
	}
}
