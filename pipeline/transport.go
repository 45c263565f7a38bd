package pipeline

import (
	"context"

	"github.com/c360/sigport/bridge"
	"github.com/c360/sigport/health"
	"github.com/c360/sigport/natsclient"
)

// Transport carries frames for the NATS hop.
type Transport interface {
	bridge.FramePublisher
	Subscribe(subject string) (bridge.FrameSource, error)
	Close(ctx context.Context) error
}

// natsTransport adapts natsclient.Client to Transport.
type natsTransport struct {
	*natsclient.Client
}

func (t natsTransport) Subscribe(subject string) (bridge.FrameSource, error) {
	sub, err := t.SubscribeSync(subject)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// dialNATS connects a client for the configured servers.
func (p *Pipeline) dialNATS(ctx context.Context) (Transport, error) {
	opts := []natsclient.ClientOption{natsclient.WithLogger(p.logger)}
	if p.registry != nil {
		opts = append(opts, natsclient.WithMetrics(p.registry.CoreMetrics()))
	}
	if p.monitor != nil {
		opts = append(opts, natsclient.WithHealthChangeCallback(func(healthy bool) {
			if healthy {
				p.monitor.Update("nats", health.NewHealthy("nats", "connected"))
			} else {
				p.monitor.Update("nats", health.NewDegraded("nats", "reconnecting"))
			}
		}))
	}

	client, err := natsclient.NewClient(p.cfg.NATS, opts...)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return natsTransport{client}, nil
}
