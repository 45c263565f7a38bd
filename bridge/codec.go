package bridge

import (
	"encoding/binary"
	"fmt"

	"github.com/c360/sigport/config"
	errs "github.com/c360/sigport/errors"
)

// FrameHeaderSize is the encoded size of the sequence number and sample
// count that precede the samples.
const FrameHeaderSize = 12

// sampleSize is the encoded size of one complex64 sample.
const sampleSize = 8

// Frame is one decoded NATS message. A frame without samples marks the end
// of the stream.
type Frame struct {
	Seq     uint64
	Samples []complex64
}

// EOS reports whether the frame is the end-of-stream marker.
func (f Frame) EOS() bool { return len(f.Samples) == 0 }

// FrameSize returns the encoded size of a frame carrying n samples.
func FrameSize(n int) int { return FrameHeaderSize + n*sampleSize }

// AppendFrame appends the little endian encoding of a frame to dst:
// seq (uint64), sample count (uint32), then each sample as two float32.
func AppendFrame(dst []byte, seq uint64, samples []complex64) ([]byte, error) {
	if len(samples) > config.MaxFrameSamples {
		return dst, errs.WrapInvalid(
			fmt.Errorf("%w: %d samples exceeds %d", errs.ErrInvalidData, len(samples), config.MaxFrameSamples),
			"codec", "AppendFrame", "encode frame")
	}
	dst = binary.LittleEndian.AppendUint64(dst, seq)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(samples)))
	if len(samples) == 0 {
		return dst, nil
	}
	out, err := binary.Append(dst, binary.LittleEndian, samples)
	if err != nil {
		return dst, errs.WrapInvalid(err, "codec", "AppendFrame", "encode samples")
	}
	return out, nil
}

// DecodeFrame decodes data into a Frame. Samples are written into buf when
// it has room, otherwise a new slice is allocated.
func DecodeFrame(data []byte, buf []complex64) (Frame, error) {
	if len(data) < FrameHeaderSize {
		return Frame{}, invalidFrame("frame of %d bytes is shorter than header", len(data))
	}

	seq := binary.LittleEndian.Uint64(data)
	count := int(binary.LittleEndian.Uint32(data[8:]))
	if count > config.MaxFrameSamples {
		return Frame{}, invalidFrame("sample count %d exceeds %d", count, config.MaxFrameSamples)
	}
	if want := FrameSize(count); len(data) != want {
		return Frame{}, invalidFrame("frame is %d bytes, header declares %d", len(data), want)
	}
	if count == 0 {
		return Frame{Seq: seq}, nil
	}

	if cap(buf) < count {
		buf = make([]complex64, count)
	}
	samples := buf[:count]
	if _, err := binary.Decode(data[FrameHeaderSize:], binary.LittleEndian, samples); err != nil {
		return Frame{}, errs.WrapInvalid(err, "codec", "DecodeFrame", "decode samples")
	}
	return Frame{Seq: seq, Samples: samples}, nil
}

func invalidFrame(format string, args ...any) error {
	return errs.WrapInvalid(fmt.Errorf("%w: "+format, append([]any{errs.ErrInvalidData}, args...)...),
		"codec", "DecodeFrame", "decode frame")
}
