package pipeline

import (
	"math"

	"github.com/c360/sigport/config"
	"github.com/c360/sigport/dsp/freqmod"
)

// pllSettleBandwidths is how many inverse loop bandwidths of PLL output
// are skipped before verification starts.
const pllSettleBandwidths = 20

// verifier compares demodulated samples with a second copy of the source
// tone, shifted by the demodulator delay.
type verifier struct {
	ref       *freqmod.Tone
	delay     int64
	skip      int64
	tolerance float64

	n          int64
	verified   int64
	violations int64
	maxErr     float64
}

func newVerifier(cfg *config.Config, delay int) *verifier {
	skip := int64(delay)
	if cfg.Modem.Demod == config.DemodPLL {
		bw := cfg.Modem.PLLBandwidth
		if bw == 0 {
			bw = freqmod.DefaultPLLBandwidth
		}
		skip = int64(math.Ceil(pllSettleBandwidths / bw))
	}
	return &verifier{
		ref:       freqmod.NewTone(cfg.Source.Amplitude, cfg.Source.Frequency),
		delay:     int64(delay),
		skip:      skip,
		tolerance: cfg.Modem.Tolerance,
	}
}

// check consumes the next demodulated samples.
func (v *verifier) check(samples []float32) {
	for _, s := range samples {
		k := v.n
		v.n++
		if k < v.skip {
			continue
		}
		diff := math.Abs(float64(s) - float64(v.ref.At(k-v.delay)))
		v.verified++
		if diff > v.maxErr {
			v.maxErr = diff
		}
		if v.tolerance > 0 && diff > v.tolerance {
			v.violations++
		}
	}
}
