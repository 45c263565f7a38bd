package port

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/c360/sigport/errors"
)

func newTestPort[T any](t *testing.T, capacity int, opts ...Option) *Port[T] {
	t.Helper()
	p, err := New[T](capacity, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		p, err := New[int](capacity)
		require.Error(t, err)
		assert.Nil(t, p)
		assert.True(t, errs.IsFatal(err))
		assert.ErrorIs(t, err, errs.ErrInvalidConfig)
	}
}

func TestNew_Defaults(t *testing.T) {
	p := newTestPort[float32](t, 16)

	assert.Equal(t, 16, p.Capacity())
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, 16, p.Free())
	assert.NotEmpty(t, p.ID())
	assert.Equal(t, "port-"+p.ID()[:8], p.Name())
	assert.Equal(t, State{Capacity: 16, Writable: 16}, p.State())
}

func TestPort_CapacityInvariant(t *testing.T) {
	const capacity = 7
	p := newTestPort[int](t, capacity)
	rng := rand.New(rand.NewSource(1))

	next, want := 0, 0
	for i := 0; i < 2000; i++ {
		if rng.Intn(2) == 0 && p.Free() > 0 {
			src := make([]int, 1+rng.Intn(capacity+2))
			for j := range src {
				src[j] = next + j
			}
			n, err := p.ProduceAvailable(src)
			require.NoError(t, err)
			require.GreaterOrEqual(t, n, 1)
			next += n
		} else if p.Len() > 0 {
			dst := make([]int, 1+rng.Intn(capacity+2))
			n, err := p.ConsumeAvailable(dst)
			require.NoError(t, err)
			for _, v := range dst[:n] {
				require.Equal(t, want, v)
				want++
			}
		}

		s := p.State()
		require.Equal(t, capacity, s.Writable+s.Readable)
		require.GreaterOrEqual(t, s.Writable, 0)
		require.GreaterOrEqual(t, s.Readable, 0)
		require.Less(t, s.WriteIndex, capacity)
		require.Less(t, s.ReadIndex, capacity)
	}
}

func TestPort_FIFOConcurrent(t *testing.T) {
	const total = 50_000
	p := newTestPort[int](t, 64)

	src := make([]int, total)
	for i := range src {
		src[i] = i
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rng := rand.New(rand.NewSource(2))
		for off := 0; off < total; {
			end := min(total, off+1+rng.Intn(100))
			n, err := p.Produce(src[off:end])
			assert.NoError(t, err)
			off += n
		}
	}()

	got := make([]int, 0, total)
	buf := make([]int, 37)
	for len(got) < total {
		n, err := p.ConsumeAvailable(buf)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 1)
		got = append(got, buf[:n]...)
	}
	wg.Wait()

	if diff := cmp.Diff(src, got); diff != "" {
		t.Fatalf("consumed sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestPort_NoLossUnderPartialTransfers(t *testing.T) {
	const capacity = 8
	p := newTestPort[uint32](t, capacity)

	src := make([]uint32, 3*capacity)
	for i := range src {
		src[i] = uint32(i + 1)
	}

	got := make(chan []uint32, 1)
	go func() {
		dst := make([]uint32, len(src))
		n, err := p.Consume(dst)
		assert.NoError(t, err)
		got <- dst[:n]
	}()

	n, err := p.Produce(src)
	require.NoError(t, err)
	assert.Equal(t, len(src), n)

	select {
	case out := <-got:
		assert.Equal(t, src, out)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not finish")
	}

	assert.Equal(t, int64(len(src)), p.Stats().Produced())
	assert.Equal(t, p.Stats().Produced(), p.Stats().Consumed())
	assert.Greater(t, p.Stats().ProduceCalls(), int64(1))
}

func TestPort_ConsumeAvailableBlocksWhileEmpty(t *testing.T) {
	p := newTestPort[int](t, 4)

	type result struct {
		n   int
		err error
		dst []int
	}
	done := make(chan result, 1)
	go func() {
		dst := make([]int, 4)
		n, err := p.ConsumeAvailable(dst)
		done <- result{n, err, dst[:n]}
	}()

	select {
	case r := <-done:
		t.Fatalf("consume returned on empty port: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}

	n, err := p.ProduceAvailable([]int{7, 8, 9})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, 3, r.n)
		assert.Equal(t, []int{7, 8, 9}, r.dst)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer was not woken")
	}
	assert.Equal(t, int64(1), p.Stats().ConsumerWaits())
}

func TestPort_ProduceAvailableBlocksWhileFull(t *testing.T) {
	p := newTestPort[int](t, 2)
	_, err := p.Produce([]int{1, 2})
	require.NoError(t, err)

	done := make(chan int, 1)
	go func() {
		n, err := p.ProduceAvailable([]int{3, 4, 5})
		assert.NoError(t, err)
		done <- n
	}()

	select {
	case n := <-done:
		t.Fatalf("produce returned on full port with n=%d", n)
	case <-time.After(50 * time.Millisecond):
	}

	dst := make([]int, 1)
	_, err = p.Consume(dst)
	require.NoError(t, err)
	assert.Equal(t, 1, <-done)
	assert.Equal(t, int64(1), p.Stats().ProducerWaits())
}

func TestPort_Wraparound(t *testing.T) {
	p := newTestPort[uint32](t, 4)

	n, err := p.Produce([]uint32{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	two := make([]uint32, 2)
	n, err = p.Consume(two)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	assert.Equal(t, []uint32{1, 2}, two)

	n, err = p.Produce([]uint32{4, 5, 6})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.Equal(t, State{Capacity: 4, Writable: 0, Readable: 4, WriteIndex: 2, ReadIndex: 2}, p.State())

	four := make([]uint32, 4)
	n, err = p.Consume(four)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	assert.Equal(t, []uint32{3, 4, 5, 6}, four)

	// The second produce and the final consume both crossed the end of storage.
	assert.Equal(t, int64(2), p.Stats().Wraps())
}

func TestPort_Saturation(t *testing.T) {
	p := newTestPort[int](t, 4)

	src := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	n, err := p.ProduceAvailable(src)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 0, p.Free())

	dst := make([]int, 10)
	n, err = p.ConsumeAvailable(dst)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []int{0, 1, 2, 3}, dst[:n])
}

func TestPort_EmptyTransfersReturnImmediately(t *testing.T) {
	p := newTestPort[int](t, 1)

	n, err := p.ConsumeAvailable(nil)
	assert.NoError(t, err)
	assert.Zero(t, n)

	_, err = p.Produce([]int{1})
	require.NoError(t, err)

	n, err = p.ProduceAvailable([]int{})
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestPort_Symmetry(t *testing.T) {
	p := newTestPort[complex64](t, 32)
	rng := rand.New(rand.NewSource(3))

	var wg sync.WaitGroup
	var produced int
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			block := make([]complex64, rng.Intn(50))
			n, err := p.Produce(block)
			assert.NoError(t, err)
			produced += n
		}
		assert.NoError(t, p.Close())
	}()

	consumed := 0
	buf := make([]complex64, 13)
	for {
		n, err := p.ConsumeAvailable(buf)
		consumed += n
		if err != nil {
			require.ErrorIs(t, err, errs.ErrPortClosed)
			break
		}
	}
	wg.Wait()

	assert.Equal(t, produced, consumed)
	assert.Equal(t, p.Stats().Produced(), p.Stats().Consumed())
}

func TestPort_ContextCancellation(t *testing.T) {
	t.Run("produce on full port", func(t *testing.T) {
		p := newTestPort[int](t, 4)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		n, err := p.ProduceContext(ctx, []int{1, 2, 3, 4, 5, 6})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 4, n, "elements written before the deadline are kept")
		assert.Equal(t, 4, p.Len())
	})

	t.Run("consume on empty port", func(t *testing.T) {
		p := newTestPort[int](t, 4)
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		n, err := p.ConsumeAvailableContext(ctx, make([]int, 2))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, n)
	})

	t.Run("already cancelled", func(t *testing.T) {
		p := newTestPort[int](t, 4)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := p.ConsumeContext(ctx, make([]int, 1))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("waiting for role lock", func(t *testing.T) {
		p := newTestPort[int](t, 1)

		holder := make(chan error, 1)
		go func() {
			_, err := p.ConsumeAvailable(make([]int, 1))
			holder <- err
		}()
		require.Eventually(t, func() bool { return len(p.consume) == 1 }, time.Second, time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := p.ConsumeAvailableContext(ctx, make([]int, 1))
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		require.NoError(t, p.Close())
		assert.ErrorIs(t, <-holder, errs.ErrPortClosed)
	})
}

func TestPort_Close(t *testing.T) {
	t.Run("wakes blocked consumer", func(t *testing.T) {
		p := newTestPort[int](t, 4)
		done := make(chan error, 1)
		go func() {
			_, err := p.Consume(make([]int, 1))
			done <- err
		}()
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, p.Close())

		select {
		case err := <-done:
			assert.ErrorIs(t, err, errs.ErrPortClosed)
			assert.True(t, errs.IsInvalid(err))
		case <-time.After(5 * time.Second):
			t.Fatal("consumer was not woken by Close")
		}
	})

	t.Run("wakes blocked producer", func(t *testing.T) {
		p := newTestPort[int](t, 1)
		done := make(chan error, 1)
		go func() {
			_, err := p.Produce([]int{1, 2})
			done <- err
		}()
		require.Eventually(t, func() bool { return p.Free() == 0 }, time.Second, time.Millisecond)
		require.NoError(t, p.Close())
		assert.ErrorIs(t, <-done, errs.ErrPortClosed)
	})

	t.Run("produce after close", func(t *testing.T) {
		p := newTestPort[int](t, 4)
		require.NoError(t, p.Close())

		n, err := p.ProduceAvailable([]int{1})
		assert.Zero(t, n)
		assert.ErrorIs(t, err, errs.ErrPortClosed)
		assert.Equal(t, errs.ErrorInvalid, errs.Classify(err))
	})

	t.Run("drains before failing", func(t *testing.T) {
		p := newTestPort[int](t, 4)
		_, err := p.Produce([]int{1, 2, 3})
		require.NoError(t, err)
		require.NoError(t, p.Close())
		require.NoError(t, p.Close(), "close is idempotent")

		dst := make([]int, 5)
		n, err := p.Consume(dst)
		assert.Equal(t, 3, n)
		assert.Equal(t, []int{1, 2, 3}, dst[:n])
		assert.ErrorIs(t, err, errs.ErrPortClosed)

		s := p.State()
		assert.True(t, s.Drained())
		assert.Nil(t, p.items, "storage is released once drained")
	})
}

func TestPort_Handles(t *testing.T) {
	p := newTestPort[int](t, 8, WithName("handles"))
	prod, cons := p.Producer(), p.Consumer()
	assert.Equal(t, "handles", prod.Name())
	assert.Equal(t, "handles", cons.Name())

	ctx := context.Background()
	go func() {
		_, err := prod.ProduceContext(ctx, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
		assert.NoError(t, err)
		assert.NoError(t, prod.Close())
	}()

	var got []int
	buf := make([]int, 3)
	for {
		n, err := cons.ConsumeAvailableContext(ctx, buf)
		got = append(got, buf[:n]...)
		if errors.Is(err, errs.ErrPortClosed) {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got)
}

func TestPort_SharedProducerHandle(t *testing.T) {
	p := newTestPort[int](t, 3)
	prod := p.Producer()

	const writers, each = 4, 250
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				_, err := prod.Produce([]int{w})
				assert.NoError(t, err)
			}
		}(w)
	}
	go func() {
		wg.Wait()
		_ = prod.Close()
	}()

	counts := make(map[int]int)
	buf := make([]int, 2)
	for {
		n, err := p.ConsumeAvailable(buf)
		for _, v := range buf[:n] {
			counts[v]++
		}
		if err != nil {
			break
		}
	}
	assert.Equal(t, map[int]int{0: each, 1: each, 2: each, 3: each}, counts)
}

func TestPort_String(t *testing.T) {
	p := newTestPort[uint32](t, 4, WithName("s"))
	_, err := p.Produce([]uint32{1})
	require.NoError(t, err)
	assert.Equal(t, `port "s" [4 @ 4 bytes] readable=1 writable=3 closed=false`, p.String())
}
