package port

import (
	"context"
	"fmt"
	"io"

	errs "github.com/c360/sigport/errors"
)

// BytePort moves opaque fixed-width elements. It is a byte port of
// capacity*elementSize bytes where every transfer is a whole number of
// elements. Counts on its API are in elements; its Statistics count bytes.
type BytePort struct {
	port        *Port[byte]
	elementSize int
}

// NewBytes creates a port of capacity elements, each elementSize bytes wide.
func NewBytes(capacity, elementSize int, opts ...Option) (*BytePort, error) {
	if capacity <= 0 {
		return nil, errs.WrapFatal(errs.ErrInvalidConfig, "BytePort", "New",
			fmt.Sprintf("capacity %d must be positive", capacity))
	}
	if elementSize <= 0 {
		return nil, errs.WrapFatal(errs.ErrInvalidConfig, "BytePort", "New",
			fmt.Sprintf("element size %d must be positive", elementSize))
	}
	p, err := New[byte](capacity*elementSize, opts...)
	if err != nil {
		return nil, err
	}
	return &BytePort{port: p, elementSize: elementSize}, nil
}

// Capacity returns the number of element slots.
func (b *BytePort) Capacity() int { return b.port.capacity / b.elementSize }

// ElementSize returns the width of one element in bytes.
func (b *BytePort) ElementSize() int { return b.elementSize }

// Len returns the number of elements ready to be consumed.
func (b *BytePort) Len() int { return b.port.Len() / b.elementSize }

// Free returns the number of element slots ready to be produced into.
func (b *BytePort) Free() int { return b.port.Free() / b.elementSize }

// Name returns the port name.
func (b *BytePort) Name() string { return b.port.name }

// ID returns the unique identifier assigned at creation.
func (b *BytePort) ID() string { return b.port.id }

// Stats returns byte-level statistics.
func (b *BytePort) Stats() *Statistics { return b.port.stats }

// State returns a snapshot with counts and indices in elements.
func (b *BytePort) State() State {
	s := b.port.State()
	return State{
		Capacity:   s.Capacity / b.elementSize,
		Writable:   s.Writable / b.elementSize,
		Readable:   s.Readable / b.elementSize,
		WriteIndex: s.WriteIndex / b.elementSize,
		ReadIndex:  s.ReadIndex / b.elementSize,
		Closed:     s.Closed,
	}
}

// Close closes the underlying port.
func (b *BytePort) Close() error { return b.port.Close() }

func (b *BytePort) check(method string, buf []byte) error {
	if len(buf)%b.elementSize != 0 {
		return errs.WrapInvalid(errs.ErrShortTransfer, "BytePort", method,
			fmt.Sprintf("buffer of %d bytes is not a multiple of %d", len(buf), b.elementSize))
	}
	return nil
}

// Produce writes every element in src, blocking as needed.
func (b *BytePort) Produce(src []byte) (int, error) {
	return b.ProduceContext(context.Background(), src)
}

// ProduceContext is Produce with cancellation.
func (b *BytePort) ProduceContext(ctx context.Context, src []byte) (int, error) {
	if err := b.check("Produce", src); err != nil {
		return 0, err
	}
	n, err := b.port.ProduceContext(ctx, src)
	return n / b.elementSize, err
}

// ProduceAvailable writes as many whole elements of src as fit.
func (b *BytePort) ProduceAvailable(src []byte) (int, error) {
	return b.ProduceAvailableContext(context.Background(), src)
}

// ProduceAvailableContext is ProduceAvailable with cancellation.
func (b *BytePort) ProduceAvailableContext(ctx context.Context, src []byte) (int, error) {
	if err := b.check("ProduceAvailable", src); err != nil {
		return 0, err
	}
	n, err := b.port.ProduceAvailableContext(ctx, src)
	return n / b.elementSize, err
}

// Consume fills dst with whole elements, blocking as needed.
func (b *BytePort) Consume(dst []byte) (int, error) {
	return b.ConsumeContext(context.Background(), dst)
}

// ConsumeContext is Consume with cancellation.
func (b *BytePort) ConsumeContext(ctx context.Context, dst []byte) (int, error) {
	if err := b.check("Consume", dst); err != nil {
		return 0, err
	}
	n, err := b.port.ConsumeContext(ctx, dst)
	return n / b.elementSize, err
}

// ConsumeAvailable reads as many whole elements as are buffered.
func (b *BytePort) ConsumeAvailable(dst []byte) (int, error) {
	return b.ConsumeAvailableContext(context.Background(), dst)
}

// ConsumeAvailableContext is ConsumeAvailable with cancellation.
func (b *BytePort) ConsumeAvailableContext(ctx context.Context, dst []byte) (int, error) {
	if err := b.check("ConsumeAvailable", dst); err != nil {
		return 0, err
	}
	n, err := b.port.ConsumeAvailableContext(ctx, dst)
	return n / b.elementSize, err
}

// Describe writes the header and one hex line per element slot.
func (b *BytePort) Describe(w io.Writer) error {
	p := b.port
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := fmt.Fprintf(w, "port %q [%d @ %d bytes]\n", p.name, b.Capacity(), b.elementSize); err != nil {
		return err
	}
	for i := 0; i+b.elementSize <= len(p.items); i += b.elementSize {
		if _, err := fmt.Fprintf(w, "  %3d:  0x%x\n", i/b.elementSize, p.items[i:i+b.elementSize]); err != nil {
			return err
		}
	}
	return nil
}

// String returns a one-line summary.
func (b *BytePort) String() string {
	s := b.State()
	return fmt.Sprintf("port %q [%d @ %d bytes] readable=%d writable=%d closed=%t",
		b.port.name, s.Capacity, b.elementSize, s.Readable, s.Writable, s.Closed)
}
