package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/sigport/dsp/freqmod"
	errs "github.com/c360/sigport/errors"
	"github.com/c360/sigport/pkg/port"
)

// runSource modulates the test tone into out in blocks and closes out when
// done. It stops early without error when stop is cancelled. It returns the
// number of samples written.
func (p *Pipeline) runSource(stop, ctx context.Context, out port.Producer[complex64]) (produced int64, err error) {
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(stop, cancel)()

	src := p.cfg.Source
	block := p.cfg.Port.BlockSize
	tone := freqmod.NewTone(src.Amplitude, src.Frequency)
	mod, err := freqmod.NewModulator(p.cfg.Modem.ModIndex, p.cfg.Modem.CarrierFreq)
	if err != nil {
		return 0, err
	}

	var limiter *rate.Limiter
	if src.SampleRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(src.SampleRate), block)
	}

	x := make([]float32, block)
	y := make([]complex64, block)
	m := p.coreMetrics()

	for src.Samples == 0 || produced < src.Samples {
		if stop.Err() != nil {
			break
		}
		n := block
		if src.Samples > 0 {
			n = int(min(int64(block), src.Samples-produced))
		}

		if limiter != nil {
			if err := limiter.WaitN(ctx, n); err != nil {
				if stop.Err() != nil {
					break
				}
				return produced, err
			}
		}

		start := time.Now()
		tone.Fill(x[:n])
		mod.ModulateBlock(y[:n], x[:n])
		written, err := out.ProduceContext(ctx, y[:n])
		produced += int64(written)
		if m != nil {
			m.RecordSamples(StageSource, written)
			m.RecordBlockDuration(StageSource, time.Since(start))
		}
		if err != nil {
			if stop.Err() != nil {
				break
			}
			return produced, err
		}
	}

	if stop.Err() != nil {
		p.logger.Info("Source stopped", "produced", produced)
	}
	return produced, nil
}

// runDemodulator demodulates everything arriving on in and feeds the
// verifier. It returns nil once in is closed and drained.
func (p *Pipeline) runDemodulator(ctx context.Context, in port.Consumer[complex64], demod *freqmod.Demodulator, v *verifier) error {
	y := make([]complex64, p.cfg.Port.BlockSize)
	x := make([]float32, p.cfg.Port.BlockSize)
	m := p.coreMetrics()

	for {
		n, err := in.ConsumeAvailableContext(ctx, y)
		if n > 0 {
			start := time.Now()
			demod.DemodulateBlock(x[:n], y[:n])
			v.check(x[:n])
			if m != nil {
				m.RecordSamples(StageDemodulator, n)
				m.RecordBlockDuration(StageDemodulator, time.Since(start))
			}
		}
		if err != nil {
			if stderrors.Is(err, errs.ErrPortClosed) {
				return nil
			}
			return err
		}
	}
}
