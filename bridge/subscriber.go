package bridge

import (
	"context"
	"time"

	errs "github.com/c360/sigport/errors"
)

const subscribeStage = "bridge.subscribe"

// Subscriber feeds NATS frames into a port.
type Subscriber struct {
	cfg    Config
	source FrameSource
	sink   SampleSink
	opts   options
	stats  Stats
}

// NewSubscriber creates a Subscriber writing into sink. The subscription
// behind source must exist before the matching Publisher starts.
func NewSubscriber(cfg Config, source FrameSource, sink SampleSink, opts ...Option) (*Subscriber, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil || sink == nil {
		return nil, errs.WrapInvalid(errs.ErrMissingConfig, "Subscriber", "NewSubscriber", "source and sink")
	}

	s := &Subscriber{
		cfg:    cfg,
		source: source,
		sink:   sink,
		opts:   applyOptions(opts),
	}
	s.opts.logger = s.opts.logger.With("component", "subscriber", "subject", cfg.Subject, "port", sink.Name())
	return s, nil
}

// Stats returns the subscriber counters.
func (s *Subscriber) Stats() StatsSnapshot { return s.stats.Snapshot() }

// Run writes received samples into the sink until the end-of-stream frame
// arrives or ctx is done. The sink is closed on return either way, so the
// consumer of the port always observes end of stream.
func (s *Subscriber) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := s.sink.Close(); cerr != nil && err == nil {
			err = errs.Wrap(cerr, "Subscriber", "Run", "close sink")
		}
	}()

	s.opts.logger.Info("Subscriber started")

	var (
		expected uint64
		buf      = make([]complex64, s.cfg.FrameSize)
	)
	for {
		data, err := s.source.NextMsg(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.recordError(err)
			}
			return err
		}

		frame, err := DecodeFrame(data, buf)
		if err != nil {
			s.stats.decodeErrors.Add(1)
			s.recordError(err)
			s.opts.logger.Warn("Dropping malformed frame", "size", len(data), "error", err)
			continue
		}

		if frame.Seq > expected {
			missed := frame.Seq - expected
			s.stats.gaps.Add(int64(missed))
			s.opts.logger.Warn("Frames missing", "expected_seq", expected, "seq", frame.Seq, "missed", missed)
		}
		expected = frame.Seq + 1

		if frame.EOS() {
			stats := s.stats.Snapshot()
			s.opts.logger.Info("Subscriber finished", "frames", stats.Frames, "samples", stats.Samples,
				"gaps", stats.Gaps, "decode_errors", stats.DecodeErrors)
			return nil
		}

		s.stats.frames.Add(1)
		if m := s.opts.metrics; m != nil {
			m.RecordFrameReceived(s.cfg.Subject)
		}

		start := time.Now()
		n, err := s.sink.ProduceContext(ctx, frame.Samples)
		s.stats.samples.Add(int64(n))
		if err != nil {
			s.recordError(err)
			return errs.Wrap(err, "Subscriber", "Run", "produce samples")
		}
		if m := s.opts.metrics; m != nil {
			m.RecordSamples(subscribeStage, n)
			m.RecordBlockDuration(subscribeStage, time.Since(start))
		}
	}
}

func (s *Subscriber) recordError(err error) {
	if m := s.opts.metrics; m != nil {
		m.RecordError(subscribeStage, errs.Classify(err).String())
	}
}
