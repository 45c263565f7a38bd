package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	errs "github.com/c360/sigport/errors"
	"github.com/c360/sigport/metric"
	"github.com/c360/sigport/pkg/port"
	"github.com/c360/sigport/pkg/retry"
)

const testSubject = "sigport.test"

func testConfig(frameSize int) Config {
	return Config{
		Subject:   testSubject,
		FrameSize: frameSize,
		Retry: retry.Config{
			MaxAttempts:  4,
			InitialDelay: time.Millisecond,
			MaxDelay:     2 * time.Millisecond,
			Multiplier:   2,
		},
	}
}

// memBus is an in-memory FramePublisher and FrameSource.
type memBus struct {
	frames chan []byte

	mu       sync.Mutex
	failures []error
	flushed  int
}

func newMemBus(size int) *memBus {
	return &memBus{frames: make(chan []byte, size)}
}

func (b *memBus) Publish(ctx context.Context, _ string, data []byte) error {
	b.mu.Lock()
	if len(b.failures) > 0 {
		err := b.failures[0]
		b.failures = b.failures[1:]
		b.mu.Unlock()
		return err
	}
	b.mu.Unlock()

	select {
	case b.frames <- append([]byte(nil), data...):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *memBus) Flush(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushed++
	return nil
}

func (b *memBus) NextMsg(ctx context.Context) ([]byte, error) {
	select {
	case data := <-b.frames:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drain decodes every frame published so far.
func (b *memBus) drain(t *testing.T) []Frame {
	t.Helper()
	var frames []Frame
	for {
		select {
		case data := <-b.frames:
			frame, err := DecodeFrame(data, nil)
			require.NoError(t, err)
			frames = append(frames, frame)
		default:
			return frames
		}
	}
}

func ramp(n int) []complex64 {
	out := make([]complex64, n)
	for i := range out {
		out[i] = complex(float32(i), -float32(i))
	}
	return out
}

func newTestPort(t *testing.T, capacity int) *port.Port[complex64] {
	t.Helper()
	p, err := port.New[complex64](capacity)
	require.NoError(t, err)
	return p
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, testConfig(16).Validate())

	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty subject", Config{FrameSize: 16}},
		{"zero frame size", Config{Subject: testSubject}},
		{"huge frame size", Config{Subject: testSubject, FrameSize: 1 << 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.True(t, errs.IsInvalid(err))
		})
	}
}

func TestPublisher_FramesAndEndOfStream(t *testing.T) {
	p := newTestPort(t, 64)
	_, err := p.Produce(ramp(10))
	require.NoError(t, err)
	require.NoError(t, p.Close())

	bus := newMemBus(16)
	pub, err := NewPublisher(testConfig(4), p.Consumer(), bus)
	require.NoError(t, err)
	assert.NotEmpty(t, pub.ID())

	require.NoError(t, pub.Run(context.Background()))

	frames := bus.drain(t)
	require.Len(t, frames, 4)
	for i, frame := range frames {
		assert.Equal(t, uint64(i), frame.Seq)
	}
	assert.Len(t, frames[0].Samples, 4)
	assert.Len(t, frames[1].Samples, 4)
	assert.Len(t, frames[2].Samples, 2)
	assert.True(t, frames[3].EOS())

	var got []complex64
	for _, frame := range frames {
		got = append(got, frame.Samples...)
	}
	if diff := cmp.Diff(ramp(10), got); diff != "" {
		t.Errorf("published samples mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 1, bus.flushed)
	assert.Equal(t, StatsSnapshot{Frames: 3, Samples: 10}, pub.Stats())
}

func TestPublisher_RetriesTransientErrors(t *testing.T) {
	p := newTestPort(t, 8)
	_, err := p.Produce(ramp(3))
	require.NoError(t, err)
	require.NoError(t, p.Close())

	bus := newMemBus(8)
	bus.failures = []error{
		errs.WrapTransient(errs.ErrNoConnection, "test", "Publish", "publish"),
		errs.WrapTransient(errs.ErrNoConnection, "test", "Publish", "publish"),
	}

	pub, err := NewPublisher(testConfig(8), p.Consumer(), bus)
	require.NoError(t, err)
	require.NoError(t, pub.Run(context.Background()))

	assert.Equal(t, int64(2), pub.Stats().Retries)
	assert.Len(t, bus.drain(t), 2)
}

func TestPublisher_StopsOnFatalError(t *testing.T) {
	p := newTestPort(t, 8)
	_, err := p.Produce(ramp(3))
	require.NoError(t, err)

	bus := newMemBus(8)
	bus.failures = []error{errs.WrapFatal(errs.ErrConnectionLost, "test", "Publish", "publish")}

	m := metric.NewMetrics()
	pub, err := NewPublisher(testConfig(8), p.Consumer(), bus, WithMetrics(m))
	require.NoError(t, err)

	err = pub.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	assert.Zero(t, pub.Stats().Retries)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(publishStage, "fatal")))
}

func TestPublisher_ContextCancelled(t *testing.T) {
	p := newTestPort(t, 8)
	pub, err := NewPublisher(testConfig(8), p.Consumer(), newMemBus(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pub.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop after cancellation")
	}
}

func TestSubscriber_GapsAndMalformedFrames(t *testing.T) {
	bus := newMemBus(16)
	publish := func(seq uint64, samples []complex64) {
		data, err := AppendFrame(nil, seq, samples)
		require.NoError(t, err)
		bus.frames <- data
	}
	publish(0, []complex64{1, 2})
	publish(1, []complex64{3})
	bus.frames <- []byte{0xde, 0xad}
	publish(3, []complex64{4, 5})
	publish(4, nil)

	sink := newTestPort(t, 32)
	m := metric.NewMetrics()
	sub, err := NewSubscriber(testConfig(4), bus, sink.Producer(), WithMetrics(m))
	require.NoError(t, err)

	require.NoError(t, sub.Run(context.Background()))

	assert.Equal(t, StatsSnapshot{Frames: 3, Samples: 5, Gaps: 1, DecodeErrors: 1}, sub.Stats())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FramesReceived.WithLabelValues(testSubject)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.SamplesProcessed.WithLabelValues(subscribeStage)))

	got := make([]complex64, 8)
	n, err := sink.ConsumeAvailable(got)
	require.NoError(t, err)
	assert.Equal(t, []complex64{1, 2, 3, 4, 5}, got[:n])

	_, err = sink.ConsumeAvailable(got)
	assert.ErrorIs(t, err, errs.ErrPortClosed)
}

func TestSubscriber_ClosesSinkOnCancel(t *testing.T) {
	sink := newTestPort(t, 8)
	sub, err := NewSubscriber(testConfig(4), newMemBus(1), sink.Producer())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = sub.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, sink.State().Closed)
}

func TestSubscriber_SinkClosed(t *testing.T) {
	bus := newMemBus(2)
	data, err := AppendFrame(nil, 0, []complex64{1})
	require.NoError(t, err)
	bus.frames <- data

	sink := newTestPort(t, 8)
	require.NoError(t, sink.Close())

	sub, err := NewSubscriber(testConfig(4), bus, sink.Producer())
	require.NoError(t, err)

	err = sub.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrPortClosed)
}

func TestNewPublisherSubscriber_MissingCollaborators(t *testing.T) {
	_, err := NewPublisher(testConfig(4), nil, newMemBus(1))
	assert.True(t, errs.IsInvalid(err))

	_, err = NewSubscriber(testConfig(4), newMemBus(1), nil)
	assert.True(t, errs.IsInvalid(err))

	_, err = NewPublisher(Config{}, newTestPort(t, 4).Consumer(), newMemBus(1))
	assert.True(t, errs.IsInvalid(err))
}

// TestRoundTrip runs producer, publisher, subscriber and consumer
// concurrently through small ports so every stage blocks repeatedly.
func TestRoundTrip(t *testing.T) {
	const total = 5000
	in := newTestPort(t, 64)
	out := newTestPort(t, 48)
	bus := newMemBus(4)

	pub, err := NewPublisher(testConfig(32), in.Consumer(), bus)
	require.NoError(t, err)
	sub, err := NewSubscriber(testConfig(32), bus, out.Producer())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	want := ramp(total)
	g.Go(func() error {
		producer := in.Producer()
		for off := 0; off < total; off += 100 {
			if _, err := producer.ProduceContext(ctx, want[off:off+100]); err != nil {
				return err
			}
		}
		return producer.Close()
	})
	g.Go(func() error { return pub.Run(ctx) })
	g.Go(func() error { return sub.Run(ctx) })

	got := make([]complex64, 0, total)
	g.Go(func() error {
		buf := make([]complex64, 37)
		consumer := out.Consumer()
		for {
			n, err := consumer.ConsumeAvailableContext(ctx, buf)
			got = append(got, buf[:n]...)
			if err != nil {
				if errs.IsInvalid(err) {
					return nil
				}
				return err
			}
		}
	})

	require.NoError(t, g.Wait())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, pub.Stats().Frames, sub.Stats().Frames)
	assert.Zero(t, sub.Stats().Gaps)
	assert.True(t, out.State().Drained())
}
