package freqmod

import (
	"math"
	"math/cmplx"
)

// NCO is a numerically controlled oscillator: a phase accumulator stepped by
// a frequency in radians per sample. It also carries a second order
// phase-locked loop used by the PLL demodulator.
type NCO struct {
	phase float64 // kept in (-π, π]
	freq  float64

	// loop filter gains; zero disables the loop
	alpha float64
	beta  float64
}

// NewNCO returns an oscillator at zero phase and frequency.
func NewNCO() *NCO {
	return &NCO{}
}

// Reset zeroes phase and frequency. Loop bandwidth is kept.
func (n *NCO) Reset() {
	n.phase = 0
	n.freq = 0
}

// SetFrequency sets the phase increment per sample in radians.
func (n *NCO) SetFrequency(f float64) { n.freq = f }

// AdjustFrequency adds df to the current frequency.
func (n *NCO) AdjustFrequency(df float64) { n.freq += df }

// Frequency returns the phase increment per sample in radians.
func (n *NCO) Frequency() float64 { return n.freq }

// SetPhase sets the current phase.
func (n *NCO) SetPhase(phi float64) { n.phase = wrapPhase(phi) }

// AdjustPhase adds dphi to the current phase.
func (n *NCO) AdjustPhase(dphi float64) { n.phase = wrapPhase(n.phase + dphi) }

// Phase returns the current phase in (-π, π].
func (n *NCO) Phase() float64 { return n.phase }

// Step advances the phase by one sample.
func (n *NCO) Step() { n.phase = wrapPhase(n.phase + n.freq) }

// Cexp returns exp(j·phase).
func (n *NCO) Cexp() complex64 {
	return complex64(cmplx.Rect(1, n.phase))
}

// SetPLLBandwidth sets the loop bandwidth. The frequency gain is b and the
// phase gain is sqrt(b).
func (n *NCO) SetPLLBandwidth(b float64) {
	n.alpha = b
	n.beta = math.Sqrt(b)
}

// PLLStep feeds one phase error sample through the loop filter.
func (n *NCO) PLLStep(phaseError float64) {
	n.AdjustFrequency(phaseError * n.alpha)
	n.AdjustPhase(phaseError * n.beta)
}

func wrapPhase(phi float64) float64 {
	for phi > math.Pi {
		phi -= 2 * math.Pi
	}
	for phi <= -math.Pi {
		phi += 2 * math.Pi
	}
	return phi
}
