package port

import "context"

// Producer is the producing half of a Port. Several goroutines may share a
// Producer; the port serializes them.
type Producer[T any] struct {
	p *Port[T]
}

// Produce writes all of src. See Port.Produce.
func (h Producer[T]) Produce(src []T) (int, error) { return h.p.Produce(src) }

// ProduceContext writes all of src or stops when ctx is done.
func (h Producer[T]) ProduceContext(ctx context.Context, src []T) (int, error) {
	return h.p.ProduceContext(ctx, src)
}

// ProduceAvailable writes what fits. See Port.ProduceAvailable.
func (h Producer[T]) ProduceAvailable(src []T) (int, error) { return h.p.ProduceAvailable(src) }

// ProduceAvailableContext writes what fits or stops when ctx is done.
func (h Producer[T]) ProduceAvailableContext(ctx context.Context, src []T) (int, error) {
	return h.p.ProduceAvailableContext(ctx, src)
}

// Close signals end of stream to the consumer.
func (h Producer[T]) Close() error { return h.p.Close() }

// Name returns the underlying port name.
func (h Producer[T]) Name() string { return h.p.name }

// Consumer is the consuming half of a Port.
type Consumer[T any] struct {
	p *Port[T]
}

// Consume fills all of dst. See Port.Consume.
func (h Consumer[T]) Consume(dst []T) (int, error) { return h.p.Consume(dst) }

// ConsumeContext fills all of dst or stops when ctx is done.
func (h Consumer[T]) ConsumeContext(ctx context.Context, dst []T) (int, error) {
	return h.p.ConsumeContext(ctx, dst)
}

// ConsumeAvailable reads what is buffered. See Port.ConsumeAvailable.
func (h Consumer[T]) ConsumeAvailable(dst []T) (int, error) { return h.p.ConsumeAvailable(dst) }

// ConsumeAvailableContext reads what is buffered or stops when ctx is done.
func (h Consumer[T]) ConsumeAvailableContext(ctx context.Context, dst []T) (int, error) {
	return h.p.ConsumeAvailableContext(ctx, dst)
}

// Name returns the underlying port name.
func (h Consumer[T]) Name() string { return h.p.name }
