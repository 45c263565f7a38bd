package bridge

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	errs "github.com/c360/sigport/errors"
	"github.com/c360/sigport/pkg/retry"
)

const publishStage = "bridge.publish"

// Publisher drains a port into NATS frames.
type Publisher struct {
	cfg    Config
	id     string
	source SampleSource
	pub    FramePublisher
	opts   options
	stats  Stats
	seq    uint64
}

// NewPublisher creates a Publisher reading from source.
func NewPublisher(cfg Config, source SampleSource, pub FramePublisher, opts ...Option) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil || pub == nil {
		return nil, errs.WrapInvalid(errs.ErrMissingConfig, "Publisher", "NewPublisher", "source and publisher")
	}

	p := &Publisher{
		cfg:    cfg,
		id:     uuid.New().String(),
		source: source,
		pub:    pub,
		opts:   applyOptions(opts),
	}
	p.opts.logger = p.opts.logger.With("component", "publisher", "subject", cfg.Subject,
		"port", source.Name(), "stream_id", p.id)
	return p, nil
}

// ID identifies this publisher's stream in logs.
func (p *Publisher) ID() string { return p.id }

// Stats returns the publisher counters.
func (p *Publisher) Stats() StatsSnapshot { return p.stats.Snapshot() }

// Run publishes frames until the port is closed and drained, then sends
// the end-of-stream frame and flushes. It returns nil on a clean end of
// stream and the first unrecoverable error otherwise.
func (p *Publisher) Run(ctx context.Context) error {
	p.opts.logger.Info("Publisher started", "frame_size", p.cfg.FrameSize)

	samples := make([]complex64, p.cfg.FrameSize)
	frame := make([]byte, 0, FrameSize(p.cfg.FrameSize))

	for {
		n, err := p.source.ConsumeAvailableContext(ctx, samples)
		if n > 0 {
			start := time.Now()
			if perr := p.publish(ctx, &frame, samples[:n]); perr != nil {
				p.recordError(perr)
				return perr
			}
			if m := p.opts.metrics; m != nil {
				m.RecordSamples(publishStage, n)
				m.RecordBlockDuration(publishStage, time.Since(start))
			}
		}
		if err != nil {
			if stderrors.Is(err, errs.ErrPortClosed) {
				return p.finish(ctx)
			}
			return err
		}
	}
}

func (p *Publisher) publish(ctx context.Context, frame *[]byte, samples []complex64) error {
	data, err := AppendFrame((*frame)[:0], p.seq, samples)
	if err != nil {
		return err
	}
	*frame = data

	cfg := p.cfg.Retry
	cfg.Retryable = errs.IsTransient
	cfg.Notify = func(attempt int, err error, next time.Duration) {
		p.stats.retries.Add(1)
		p.opts.logger.Warn("Publish failed, retrying", "seq", p.seq, "attempt", attempt, "error", err, "backoff", next)
	}

	if err := retry.Do(ctx, cfg, func() error {
		return p.pub.Publish(ctx, p.cfg.Subject, data)
	}); err != nil {
		return errs.Wrap(err, "Publisher", "Run", "publish frame")
	}

	p.seq++
	p.stats.frames.Add(1)
	p.stats.samples.Add(int64(len(samples)))
	if m := p.opts.metrics; m != nil {
		m.RecordFramePublished(p.cfg.Subject)
	}
	return nil
}

// finish sends the end-of-stream frame and flushes.
func (p *Publisher) finish(ctx context.Context) error {
	eos, err := AppendFrame(nil, p.seq, nil)
	if err != nil {
		return err
	}

	cfg := p.cfg.Retry
	cfg.Retryable = errs.IsTransient
	if err := retry.Do(ctx, cfg, func() error {
		return p.pub.Publish(ctx, p.cfg.Subject, eos)
	}); err != nil {
		p.recordError(err)
		return errs.Wrap(err, "Publisher", "Run", "publish end of stream")
	}
	if err := p.pub.Flush(ctx); err != nil {
		p.recordError(err)
		return errs.Wrap(err, "Publisher", "Run", "flush")
	}

	stats := p.stats.Snapshot()
	p.opts.logger.Info("Publisher finished", "frames", stats.Frames, "samples", stats.Samples,
		"retries", stats.Retries)
	return nil
}

func (p *Publisher) recordError(err error) {
	if m := p.opts.metrics; m != nil {
		m.RecordError(publishStage, errs.Classify(err).String())
	}
}
