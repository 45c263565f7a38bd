package port

import (
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
)

// elementWidth returns the in-memory size of one T in bytes.
func elementWidth[T any]() int {
	return int(reflect.TypeFor[T]().Size())
}

// Describe writes the port header, its bookkeeping and one line per slot.
// Slots of fixed-size types are printed as little-endian hex bytes, anything
// else with %v. A closed and drained port has no slots left to print.
func (p *Port[T]) Describe(w io.Writer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stateLocked()
	if _, err := fmt.Fprintf(w, "port %q [%d @ %d bytes] id=%s\n", p.name, p.capacity, elementWidth[T](), p.id); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "  write=%d read=%d writable=%d readable=%d closed=%t\n",
		s.WriteIndex, s.ReadIndex, s.Writable, s.Readable, s.Closed); err != nil {
		return err
	}

	var buf []byte
	for i, item := range p.items {
		var err error
		if binary.Size(item) > 0 {
			buf, err = binary.Append(buf[:0], binary.LittleEndian, item)
			if err == nil {
				_, err = fmt.Fprintf(w, "  %3d:  0x%x\n", i, buf)
			}
		} else {
			_, err = fmt.Fprintf(w, "  %3d:  %v\n", i, item)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
