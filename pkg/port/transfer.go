package port

import (
	"context"

	errs "github.com/c360/sigport/errors"
)

// roleLock serializes callers of one role. It is a channel semaphore so a
// waiting caller can give up when its context is cancelled.
type roleLock chan struct{}

func newRoleLock() roleLock { return make(roleLock, 1) }

func (l roleLock) lock(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	default:
	}
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l roleLock) unlock() { <-l }

// ProduceAvailable writes as many elements of src as currently fit, blocking
// only while the port is full. It returns the number written, which is at
// least one unless src is empty or an error is returned.
func (p *Port[T]) ProduceAvailable(src []T) (int, error) {
	return p.ProduceAvailableContext(context.Background(), src)
}

// ProduceAvailableContext is ProduceAvailable with cancellation.
func (p *Port[T]) ProduceAvailableContext(ctx context.Context, src []T) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}
	if err := p.produce.lock(ctx); err != nil {
		return 0, err
	}
	defer p.produce.unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	waited, err := p.wait(ctx, p.spaceAvailable, func() bool { return p.writable > 0 })
	if waited {
		p.stats.ProducerWait()
		if p.metrics != nil {
			p.metrics.recordProducerWait()
		}
	}
	if err != nil {
		return 0, err
	}
	if p.closed {
		return 0, errs.WrapInvalid(errs.ErrPortClosed, "Port", "ProduceAvailable", "produce")
	}

	n := min(len(src), p.writable)
	wrapped := p.writeRegion(src[:n])
	p.writable -= n
	p.readable += n

	p.stats.AddProduced(n)
	p.stats.UpdateFill(int64(p.readable))
	if wrapped {
		p.stats.Wrap()
	}
	if p.metrics != nil {
		p.metrics.recordProduce(n, wrapped, p.readable, p.capacity)
	}

	p.dataAvailable.Signal()
	return n, nil
}

// Produce writes all of src, blocking as often as needed. It returns the
// number of elements written, which is len(src) unless an error is returned.
func (p *Port[T]) Produce(src []T) (int, error) {
	return p.ProduceContext(context.Background(), src)
}

// ProduceContext is Produce with cancellation. Elements written before ctx
// is done stay in the port and are included in the returned count.
func (p *Port[T]) ProduceContext(ctx context.Context, src []T) (int, error) {
	total := 0
	for total < len(src) {
		n, err := p.ProduceAvailableContext(ctx, src[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ConsumeAvailable reads as many elements into dst as are currently
// buffered, blocking only while the port is empty. It returns the number
// read, which is at least one unless dst is empty or an error is returned.
// A closed port keeps returning data until it is drained.
func (p *Port[T]) ConsumeAvailable(dst []T) (int, error) {
	return p.ConsumeAvailableContext(context.Background(), dst)
}

// ConsumeAvailableContext is ConsumeAvailable with cancellation.
func (p *Port[T]) ConsumeAvailableContext(ctx context.Context, dst []T) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if err := p.consume.lock(ctx); err != nil {
		return 0, err
	}
	defer p.consume.unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	waited, err := p.wait(ctx, p.dataAvailable, func() bool { return p.readable > 0 })
	if waited {
		p.stats.ConsumerWait()
		if p.metrics != nil {
			p.metrics.recordConsumerWait()
		}
	}
	if err != nil {
		return 0, err
	}
	if p.readable == 0 {
		return 0, errs.WrapInvalid(errs.ErrPortClosed, "Port", "ConsumeAvailable", "consume")
	}

	n := min(len(dst), p.readable)
	wrapped := p.readRegion(dst[:n])
	p.readable -= n
	p.writable += n

	p.stats.AddConsumed(n)
	p.stats.UpdateFill(int64(p.readable))
	if wrapped {
		p.stats.Wrap()
	}
	if p.metrics != nil {
		p.metrics.recordConsume(n, wrapped, p.readable, p.capacity)
	}

	p.releaseIfDrained()
	p.spaceAvailable.Signal()
	return n, nil
}

// Consume fills all of dst, blocking as often as needed.
func (p *Port[T]) Consume(dst []T) (int, error) {
	return p.ConsumeContext(context.Background(), dst)
}

// ConsumeContext is Consume with cancellation. Elements read before ctx is
// done are in dst[:n].
func (p *Port[T]) ConsumeContext(ctx context.Context, dst []T) (int, error) {
	total := 0
	for total < len(dst) {
		n, err := p.ConsumeAvailableContext(ctx, dst[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// writeRegion copies src into storage at writeIdx, wrapping to the start
// when it passes the end. It reports whether the copy wrapped.
// Caller holds p.mu and guarantees len(src) <= writable.
func (p *Port[T]) writeRegion(src []T) bool {
	n := copy(p.items[p.writeIdx:], src)
	if n < len(src) {
		copy(p.items, src[n:])
	}
	p.writeIdx = (p.writeIdx + len(src)) % p.capacity
	return n < len(src)
}

// readRegion copies from storage at readIdx into dst and zeroes the
// consumed slots. Caller holds p.mu and guarantees len(dst) <= readable.
func (p *Port[T]) readRegion(dst []T) bool {
	n := copy(dst, p.items[p.readIdx:])
	clear(p.items[p.readIdx : p.readIdx+n])
	if n < len(dst) {
		m := copy(dst[n:], p.items)
		clear(p.items[:m])
	}
	p.readIdx = (p.readIdx + len(dst)) % p.capacity
	return n < len(dst)
}
