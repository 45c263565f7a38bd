package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/sigport/bridge"
	"github.com/c360/sigport/config"
	"github.com/c360/sigport/dsp/freqmod"
	errs "github.com/c360/sigport/errors"
	"github.com/c360/sigport/health"
	"github.com/c360/sigport/metric"
	"github.com/c360/sigport/pkg/port"
)

// Stage names used in logs, metrics and health.
const (
	StageSource      = "source"
	StagePublisher   = "publisher"
	StageSubscriber  = "subscriber"
	StageDemodulator = "demodulator"
)

const healthRefreshRate = 250 * time.Millisecond

// Port names.
const (
	PortModulated = "modulated"
	PortReceived  = "received"
)

// Pipeline runs a test tone through a modulator, one or two ports and a
// demodulator, and verifies the recovered signal.
type Pipeline struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *metric.MetricsRegistry
	monitor   *health.Monitor
	transport Transport

	started atomic.Bool
	mu      sync.Mutex
	ports   []*port.Port[complex64]
}

// New validates cfg and creates a pipeline. Nothing runs until Run.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errs.WrapInvalid(errs.ErrMissingConfig, "Pipeline", "New", "config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:    cfg.Clone(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pipeline")
	return p, nil
}

// Run executes the pipeline once. It returns when the source has produced
// the configured number of samples and every stage has drained, when a
// stage fails, or shortly after ctx is cancelled. Cancelling ctx stops the
// source; the samples already produced still flow to the demodulator.
//
// The report is returned even when err is non-nil, unless setup failed.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if p.started.Swap(true) {
		return nil, errs.WrapInvalid(errs.ErrAlreadyStarted, "Pipeline", "Run", "start")
	}
	start := time.Now()

	modulated, err := p.newPort(PortModulated)
	if err != nil {
		return nil, err
	}
	downstream := modulated

	var (
		publisher  *bridge.Publisher
		subscriber *bridge.Subscriber
	)
	if p.cfg.NATS.Enabled {
		transport := p.transport
		if transport == nil {
			if transport, err = p.dialNATS(ctx); err != nil {
				return nil, err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := transport.Close(closeCtx); err != nil {
					p.logger.Warn("Failed to close NATS connection", "error", err)
				}
			}()
		}

		received, err := p.newPort(PortReceived)
		if err != nil {
			return nil, err
		}
		if publisher, subscriber, err = p.newBridge(transport, modulated, received); err != nil {
			return nil, err
		}
		downstream = received
	}

	demod, err := p.newDemodulator()
	if err != nil {
		return nil, err
	}
	v := newVerifier(p.cfg, demod.Delay())

	p.logger.Info("Pipeline starting",
		"samples", p.cfg.Source.Samples,
		"capacity", p.cfg.Port.Capacity,
		"block_size", p.cfg.Port.BlockSize,
		"demodulator", demod.String(),
		"nats", p.cfg.NATS.Enabled)

	// Stages outlive ctx so they can drain after the source stops; a failed
	// stage cancels the rest through the group context.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	stopWatch := p.watchPorts()

	var produced int64
	g.Go(p.stage(StageSource, func() error {
		var err error
		produced, err = p.runSource(ctx, gctx, modulated.Producer())
		return err
	}))
	if publisher != nil {
		g.Go(p.stage(StagePublisher, func() error { return publisher.Run(gctx) }))
		g.Go(p.stage(StageSubscriber, func() error { return subscriber.Run(gctx) }))
	}
	g.Go(p.stage(StageDemodulator, func() error {
		return p.runDemodulator(gctx, downstream.Consumer(), demod, v)
	}))

	runErr := g.Wait()
	stopWatch()

	report := p.report(produced, v, publisher, subscriber)
	report.Interrupted = ctx.Err() != nil
	report.Duration = time.Since(start)

	if runErr != nil {
		p.logger.Error("Pipeline failed", "error", runErr, "report", report)
		return report, runErr
	}
	if report.Violations > 0 {
		err := errs.WrapFatal(
			fmt.Errorf("%w: %d of %d samples exceed tolerance %g (max error %g)",
				errs.ErrDataCorrupted, report.Violations, report.Verified, p.cfg.Modem.Tolerance, report.MaxError),
			"Pipeline", "Run", "verify")
		p.logger.Error("Verification failed", "error", err, "report", report)
		return report, err
	}

	p.logger.Info("Pipeline finished", "report", report)
	return report, nil
}

// Describe writes the storage of every port created so far.
func (p *Pipeline) Describe(w io.Writer) error {
	for _, pt := range p.snapshotPorts() {
		if err := pt.Describe(w); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) newPort(name string) (*port.Port[complex64], error) {
	opts := []port.Option{port.WithName(name), port.WithLogger(p.logger)}
	if p.registry != nil {
		opts = append(opts, port.WithMetrics(p.registry, name))
	}
	pt, err := port.New[complex64](p.cfg.Port.Capacity, opts...)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.ports = append(p.ports, pt)
	p.mu.Unlock()
	return pt, nil
}

func (p *Pipeline) snapshotPorts() []*port.Port[complex64] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*port.Port[complex64](nil), p.ports...)
}

func (p *Pipeline) newBridge(t Transport, modulated, received *port.Port[complex64]) (*bridge.Publisher, *bridge.Subscriber, error) {
	cfg := bridge.FromNATSConfig(p.cfg.NATS)
	opts := []bridge.Option{bridge.WithLogger(p.logger)}
	if m := p.coreMetrics(); m != nil {
		opts = append(opts, bridge.WithMetrics(m))
	}

	// Subscribe before anything is published.
	frames, err := t.Subscribe(cfg.Subject)
	if err != nil {
		return nil, nil, err
	}
	subscriber, err := bridge.NewSubscriber(cfg, frames, received.Producer(), opts...)
	if err != nil {
		return nil, nil, err
	}
	publisher, err := bridge.NewPublisher(cfg, modulated.Consumer(), t, opts...)
	if err != nil {
		return nil, nil, err
	}
	return publisher, subscriber, nil
}

func (p *Pipeline) newDemodulator() (*freqmod.Demodulator, error) {
	m := p.cfg.Modem
	if m.Demod == config.DemodPLL {
		return freqmod.NewPLLDemodulator(m.ModIndex, m.CarrierFreq, m.PLLBandwidth)
	}
	return freqmod.NewDemodulator(m.ModIndex, m.CarrierFreq)
}

func (p *Pipeline) coreMetrics() *metric.Metrics {
	if p.registry == nil {
		return nil
	}
	return p.registry.CoreMetrics()
}

// stage wraps a stage body with status metrics, health and logging.
func (p *Pipeline) stage(name string, run func() error) func() error {
	return func() error {
		m := p.coreMetrics()
		if m != nil {
			m.RecordStageStatus(name, metric.StageRunning)
		}
		if p.monitor != nil {
			p.monitor.Update(name, health.NewHealthy(name, "running"))
		}

		err := run()

		status := metric.StageStopped
		switch {
		case err == nil:
			p.logger.Debug("Stage finished", "stage", name)
			if p.monitor != nil {
				p.monitor.Update(name, health.NewHealthy(name, "finished"))
			}
		case stderrors.Is(err, context.Canceled):
			// Cancelled because another stage failed.
			p.logger.Debug("Stage cancelled", "stage", name)
			if p.monitor != nil {
				p.monitor.Update(name, health.NewDegraded(name, "cancelled"))
			}
		default:
			status = metric.StageFailed
			p.logger.Error("Stage failed", "stage", name, "error", err)
			if m != nil {
				m.RecordError(name, errs.Classify(err).String())
			}
			if p.monitor != nil {
				p.monitor.Update(name, health.FromError(name, err))
			}
		}
		if m != nil {
			m.RecordStageStatus(name, status)
		}
		return err
	}
}

// watchPorts refreshes port health until the returned function is called,
// which also publishes the final state.
func (p *Pipeline) watchPorts() (stop func()) {
	if p.monitor == nil {
		return func() {}
	}

	update := func() {
		for _, pt := range p.snapshotPorts() {
			p.monitor.Update(pt.Name(), health.FromPortStats(pt.Name(), pt.State(), pt.Stats()))
		}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(healthRefreshRate)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				update()
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
		update()
	}
}

func (p *Pipeline) report(produced int64, v *verifier, publisher *bridge.Publisher, subscriber *bridge.Subscriber) *Report {
	r := &Report{
		Produced:   produced,
		Samples:    v.n,
		Verified:   v.verified,
		Violations: v.violations,
		MaxError:   v.maxErr,
	}
	for _, pt := range p.snapshotPorts() {
		state := pt.State()
		r.Ports = append(r.Ports, PortReport{
			Name:   pt.Name(),
			State:  state,
			Stats:  pt.Stats().Summary(),
			Health: health.FromPortStats(pt.Name(), state, pt.Stats()),
		})
	}
	if publisher != nil {
		r.Bridge = &BridgeReport{
			Published: publisher.Stats(),
			Received:  subscriber.Stats(),
		}
	}
	return r
}
