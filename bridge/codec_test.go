package bridge

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sigport/config"
	errs "github.com/c360/sigport/errors"
)

func TestAppendFrame_Layout(t *testing.T) {
	data, err := AppendFrame(nil, 0x0102030405060708, []complex64{complex(1, -2)})
	require.NoError(t, err)

	want := []byte{
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, // seq
		0x01, 0x00, 0x00, 0x00, // count
		0x00, 0x00, 0x80, 0x3f, // 1.0
		0x00, 0x00, 0x00, 0xc0, // -2.0
	}
	assert.Equal(t, want, data)
	assert.Len(t, data, FrameSize(1))
}

func TestDecodeFrame(t *testing.T) {
	samples := []complex64{1 + 1i, -0.5 + 0.25i, 0, complex(3.5, -7)}
	data, err := AppendFrame(nil, 42, samples)
	require.NoError(t, err)

	frame, err := DecodeFrame(data, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), frame.Seq)
	assert.False(t, frame.EOS())
	if diff := cmp.Diff(samples, frame.Samples); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeFrame_ReusesBuffer(t *testing.T) {
	data, err := AppendFrame(nil, 1, []complex64{1, 2})
	require.NoError(t, err)

	buf := make([]complex64, 8)
	frame, err := DecodeFrame(data, buf)
	require.NoError(t, err)
	assert.Same(t, &buf[0], &frame.Samples[0])
}

func TestAppendFrame_AppendsToPrefix(t *testing.T) {
	prefix := []byte("hdr")
	data, err := AppendFrame(prefix, 0, []complex64{1})
	require.NoError(t, err)
	assert.Equal(t, "hdr", string(data[:3]))

	frame, err := DecodeFrame(data[3:], nil)
	require.NoError(t, err)
	assert.Equal(t, []complex64{1}, frame.Samples)
}

func TestEndOfStreamFrame(t *testing.T) {
	data, err := AppendFrame(nil, 7, nil)
	require.NoError(t, err)
	assert.Len(t, data, FrameHeaderSize)

	frame, err := DecodeFrame(data, nil)
	require.NoError(t, err)
	assert.True(t, frame.EOS())
	assert.Equal(t, uint64(7), frame.Seq)
}

func TestAppendFrame_TooManySamples(t *testing.T) {
	_, err := AppendFrame(nil, 0, make([]complex64, config.MaxFrameSamples+1))
	require.Error(t, err)
	assert.True(t, errs.IsInvalid(err))
	assert.ErrorIs(t, err, errs.ErrInvalidData)
}

func TestDecodeFrame_Malformed(t *testing.T) {
	valid, err := AppendFrame(nil, 3, []complex64{1, 2, 3})
	require.NoError(t, err)

	oversized := make([]byte, FrameHeaderSize)
	oversized[8], oversized[9], oversized[10] = 0xff, 0xff, 0xff

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", valid[:FrameHeaderSize-1]},
		{"truncated samples", valid[:len(valid)-1]},
		{"trailing bytes", append(append([]byte{}, valid...), 0)},
		{"count too large", oversized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame(tt.data, nil)
			require.Error(t, err)
			assert.True(t, errs.IsInvalid(err))
			assert.ErrorIs(t, err, errs.ErrInvalidData)
		})
	}
}
