// Package port provides a bounded, blocking circular buffer that connects one
// producing stage to one consuming stage of a streaming signal pipeline.
//
// # Overview
//
// A Port[T] has a fixed number of element slots. The producer writes into
// free slots and the consumer reads buffered elements in FIFO order. When the
// port is full the producer blocks; when it is empty the consumer blocks.
// Transfers that run past the end of storage wrap to the start transparently.
//
//	p, err := port.New[complex64](1024, port.WithName("modulated"))
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	go func() {
//	    p.Produce(samples)   // blocks until every sample is written
//	    p.Close()            // end of stream
//	}()
//
//	buf := make([]complex64, 256)
//	for {
//	    n, err := p.ConsumeAvailable(buf)
//	    if err != nil {
//	        break // closed and drained
//	    }
//	    process(buf[:n])
//	}
//
// # Transfer Operations
//
//   - ProduceAvailable / ConsumeAvailable: move as much as possible right now,
//     blocking only while nothing at all can move. They return at least one
//     element unless the slice is empty or an error occurs.
//   - Produce / Consume: move the whole slice, repeating the partial transfer
//     until done.
//   - The ...Context variants stop when the context is done and report how
//     many elements moved before that.
//
// # Roles
//
// Producer() and Consumer() return handles exposing only one side. Callers of
// the same role are serialized by a role lock, so a handle may be shared by
// goroutines that take turns. Ordering across such goroutines is whatever
// order they win the role lock in.
//
// # Close
//
// Close wakes every blocked caller. Produce calls then fail with
// errors.ErrPortClosed; consume calls return the remaining data and fail with
// the same error once the port is drained. Storage is released at that point.
//
// # Byte Ports
//
// NewBytes creates a BytePort for opaque fixed-width records. Every buffer
// passed to it must be a whole number of elements long.
//
// # Observability
//
// Statistics are always collected and available through Stats(). WithMetrics
// additionally exports them as sigport_port_* Prometheus metrics labelled
// with the port name. Describe dumps the storage for debugging.
package port
