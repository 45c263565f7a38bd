//go:build integration

package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	errs "github.com/c360/sigport/errors"
	"github.com/c360/sigport/natsclient"
)

func TestIntegration_BridgeOverNATS(t *testing.T) {
	tc := natsclient.NewTestClient(t)
	subClient := natsclient.NewTestConnection(t, tc.URL, 5*time.Second)

	const total = 20000
	in := newTestPort(t, 512)
	out := newTestPort(t, 512)
	cfg := testConfig(256)
	cfg.Retry.MaxAttempts = 10

	sub, err := subClient.SubscribeSync(cfg.Subject)
	require.NoError(t, err)
	require.NoError(t, subClient.Flush(context.Background()))

	publisher, err := NewPublisher(cfg, in.Consumer(), tc.Client)
	require.NoError(t, err)
	subscriber, err := NewSubscriber(cfg, sub, out.Producer())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	want := ramp(total)
	g.Go(func() error {
		producer := in.Producer()
		if _, err := producer.ProduceContext(ctx, want); err != nil {
			return err
		}
		return producer.Close()
	})
	g.Go(func() error { return publisher.Run(ctx) })
	g.Go(func() error { return subscriber.Run(ctx) })

	got := make([]complex64, 0, total)
	g.Go(func() error {
		buf := make([]complex64, 300)
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
		t.Errorf("samples mismatch over NATS (-want +got):\n%s", diff)
	}

	pubStats := publisher.Stats()
	subStats := subscriber.Stats()
	assert.Equal(t, pubStats.Frames, subStats.Frames)
	assert.Equal(t, int64(total), subStats.Samples)
	assert.Zero(t, subStats.Gaps)
	assert.Zero(t, subStats.DecodeErrors)
}
