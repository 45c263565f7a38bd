package port

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	errs "github.com/c360/sigport/errors"
)

// Port is a fixed-capacity circular buffer that hands elements from one
// producer role to one consumer role. Both roles block until the transfer
// they asked for can make progress.
//
// Two tiers of locking are used. A role lock serializes callers of the same
// role so at most one producer and one consumer are inside the port at any
// time. The state lock protects storage, indices and counts, and is the lock
// of both condition variables.
type Port[T any] struct {
	id      string
	name    string
	logger  *slog.Logger
	stats   *Statistics  // always present
	metrics *portMetrics // optional
	produce roleLock
	consume roleLock

	mu             sync.Mutex
	spaceAvailable *sync.Cond
	dataAvailable  *sync.Cond
	items          []T
	capacity       int
	writeIdx       int
	readIdx        int
	writable       int
	readable       int
	closed         bool
}

// State is a consistent snapshot of a port's bookkeeping.
type State struct {
	Capacity   int  `json:"capacity"`
	Writable   int  `json:"writable"`
	Readable   int  `json:"readable"`
	WriteIndex int  `json:"write_index"`
	ReadIndex  int  `json:"read_index"`
	Closed     bool `json:"closed"`
}

// Utilization returns Readable/Capacity in the range 0.0 to 1.0.
func (s State) Utilization() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return float64(s.Readable) / float64(s.Capacity)
}

// Drained reports whether the port is closed and holds no data.
func (s State) Drained() bool {
	return s.Closed && s.Readable == 0
}

// New creates a port holding up to capacity elements.
// A non-positive capacity is a configuration error.
func New[T any](capacity int, opts ...Option) (*Port[T], error) {
	if capacity <= 0 {
		return nil, errs.WrapFatal(errs.ErrInvalidConfig, "Port", "New",
			fmt.Sprintf("capacity %d must be positive", capacity))
	}
	o := applyOptions(opts...)

	id := uuid.NewString()
	name := o.name
	if name == "" {
		name = "port-" + id[:8]
	}

	p := &Port[T]{
		id:       id,
		name:     name,
		logger:   o.logger.With("port", name, "port_id", id),
		stats:    NewStatistics(),
		produce:  newRoleLock(),
		consume:  newRoleLock(),
		items:    make([]T, capacity),
		capacity: capacity,
		writable: capacity,
	}
	p.spaceAvailable = sync.NewCond(&p.mu)
	p.dataAvailable = sync.NewCond(&p.mu)

	if o.registry != nil {
		label := o.metricsName
		if label == "" {
			label = name
		}
		m, err := newPortMetrics(o.registry, label)
		if err != nil {
			return nil, errs.Wrap(err, "Port", "New", "metrics registration")
		}
		p.metrics = m
	}

	p.logger.Debug("Port created", "capacity", capacity)
	return p, nil
}

// ID returns the unique identifier assigned at creation.
func (p *Port[T]) ID() string { return p.id }

// Name returns the port name used in logs, metrics and Describe output.
func (p *Port[T]) Name() string { return p.name }

// Capacity returns the fixed number of element slots.
func (p *Port[T]) Capacity() int { return p.capacity }

// Stats returns the always-on statistics tracker.
func (p *Port[T]) Stats() *Statistics { return p.stats }

// Len returns the number of elements ready to be consumed.
func (p *Port[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readable
}

// Free returns the number of slots ready to be produced into.
func (p *Port[T]) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writable
}

// State returns a snapshot taken under the state lock.
func (p *Port[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Port[T]) stateLocked() State {
	return State{
		Capacity:   p.capacity,
		Writable:   p.writable,
		Readable:   p.readable,
		WriteIndex: p.writeIdx,
		ReadIndex:  p.readIdx,
		Closed:     p.closed,
	}
}

// Close marks the port closed and wakes every blocked caller.
// Producers fail from then on; consumers drain what is left and then fail.
// Calling Close more than once is a no-op.
func (p *Port[T]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	remaining := p.readable
	p.releaseIfDrained()
	p.spaceAvailable.Broadcast()
	p.dataAvailable.Broadcast()
	p.mu.Unlock()

	p.logger.Debug("Port closed", "remaining", remaining)
	return nil
}

// releaseIfDrained drops storage once nothing can be read or written again.
// Caller holds p.mu.
func (p *Port[T]) releaseIfDrained() {
	if p.closed && p.readable == 0 {
		p.items = nil
	}
}

// Producer returns a handle restricted to the producing role.
func (p *Port[T]) Producer() Producer[T] { return Producer[T]{p: p} }

// Consumer returns a handle restricted to the consuming role.
func (p *Port[T]) Consumer() Consumer[T] { return Consumer[T]{p: p} }

// String returns a one-line summary.
func (p *Port[T]) String() string {
	s := p.State()
	return fmt.Sprintf("port %q [%d @ %d bytes] readable=%d writable=%d closed=%t",
		p.name, s.Capacity, elementWidth[T](), s.Readable, s.Writable, s.Closed)
}

// wait blocks on cond until ready reports true, the port is closed or ctx is
// done. It reports whether it had to block. Caller holds p.mu.
func (p *Port[T]) wait(ctx context.Context, cond *sync.Cond, ready func() bool) (bool, error) {
	if ready() || p.closed {
		return false, nil
	}
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			p.mu.Lock()
			cond.Broadcast()
			p.mu.Unlock()
		})
		defer stop()
	}
	for !ready() && !p.closed {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		cond.Wait()
	}
	return true, nil
}
