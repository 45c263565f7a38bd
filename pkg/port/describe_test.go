package port

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPort_DescribeFixedSize(t *testing.T) {
	p := newTestPort[uint16](t, 3, WithName("d"))
	_, err := p.Produce([]uint16{0x0102, 0xbeef})
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, p.Describe(&sb))
	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")

	require.Len(t, lines, 5)
	assert.Equal(t, `port "d" [3 @ 2 bytes] id=`+p.ID(), lines[0])
	assert.Equal(t, "  write=2 read=0 writable=1 readable=2 closed=false", lines[1])
	assert.Equal(t, "    0:  0x0201", lines[2])
	assert.Equal(t, "    1:  0xefbe", lines[3])
	assert.Equal(t, "    2:  0x0000", lines[4])
}

func TestPort_DescribeComplex(t *testing.T) {
	p := newTestPort[complex64](t, 1, WithName("iq"))
	_, err := p.Produce([]complex64{complex(1, 0)})
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, p.Describe(&sb))
	// 1.0 as float32 is 0x3f800000, written little endian, then 0.0.
	assert.Contains(t, sb.String(), "    0:  0x0000803f00000000\n")
	assert.Contains(t, sb.String(), "[1 @ 8 bytes]")
}

func TestPort_DescribeVariableSize(t *testing.T) {
	p := newTestPort[string](t, 2, WithName("labels"))
	_, err := p.Produce([]string{"sync"})
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, p.Describe(&sb))
	assert.Contains(t, sb.String(), "    0:  sync\n")
	assert.Contains(t, sb.String(), "    1:  \n")
}

func TestPort_DescribeAfterDrain(t *testing.T) {
	p := newTestPort[int32](t, 2, WithName("gone"))
	require.NoError(t, p.Close())

	var sb strings.Builder
	require.NoError(t, p.Describe(&sb))
	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[1], "closed=true")
}
