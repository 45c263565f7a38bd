package freqmod

import (
	"fmt"
	"math"
	"math/cmplx"

	errs "github.com/c360/sigport/errors"
)

// DefaultPLLBandwidth is the loop bandwidth used by NewPLLDemodulator when
// given zero.
const DefaultPLLBandwidth = 0.05

func validate(component string, m, fc float64) error {
	if m <= 0 || m > 2*math.Pi {
		return errs.WrapInvalid(errs.ErrInvalidConfig, component, "New",
			fmt.Sprintf("modulation index %g out of range (0, 2π]", m))
	}
	if fc <= -math.Pi || fc >= math.Pi {
		return errs.WrapInvalid(errs.ErrInvalidConfig, component, "New",
			fmt.Sprintf("carrier frequency %g out of range (-π, π)", fc))
	}
	return nil
}

// Modulator maps real samples to a unit-magnitude complex baseband signal
// whose instantaneous frequency is m·x + fc radians per sample.
type Modulator struct {
	m   float64
	fc  float64
	nco *NCO
}

// NewModulator creates a modulator with modulation index m in (0, 2π] and
// carrier frequency fc in (-π, π).
func NewModulator(m, fc float64) (*Modulator, error) {
	if err := validate("Modulator", m, fc); err != nil {
		return nil, err
	}
	return &Modulator{m: m, fc: fc, nco: NewNCO()}, nil
}

// Modulate returns the output sample for x and advances the oscillator.
func (mod *Modulator) Modulate(x float32) complex64 {
	mod.nco.SetFrequency(mod.m*float64(x) + mod.fc)
	y := mod.nco.Cexp()
	mod.nco.Step()
	return y
}

// ModulateBlock modulates src into dst and returns the number of samples
// written, min(len(dst), len(src)).
func (mod *Modulator) ModulateBlock(dst []complex64, src []float32) int {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = mod.Modulate(src[i])
	}
	return n
}

// Reset returns the oscillator to zero phase.
func (mod *Modulator) Reset() { mod.nco.Reset() }

func (mod *Modulator) String() string {
	return fmt.Sprintf("freqmod: index=%.4f fc=%.4f", mod.m, mod.fc)
}

// Demodulator recovers the real signal from a Modulator's output.
//
// The default discriminator compares each sample's phase with the previous
// one, so its output lags the modulator input by one sample. The PLL variant
// tracks the input with a phase-locked NCO and reports the loop frequency.
type Demodulator struct {
	m   float64
	fc  float64
	q   complex64 // previous input sample
	nco *NCO      // nil for the discriminator
}

// NewDemodulator creates a phase-difference discriminator.
func NewDemodulator(m, fc float64) (*Demodulator, error) {
	if err := validate("Demodulator", m, fc); err != nil {
		return nil, err
	}
	return &Demodulator{m: m, fc: fc}, nil
}

// NewPLLDemodulator creates a demodulator driven by a phase-locked loop with
// the given bandwidth. Zero selects DefaultPLLBandwidth.
func NewPLLDemodulator(m, fc, bandwidth float64) (*Demodulator, error) {
	if err := validate("Demodulator", m, fc); err != nil {
		return nil, err
	}
	if bandwidth < 0 || bandwidth >= 1 {
		return nil, errs.WrapInvalid(errs.ErrInvalidConfig, "Demodulator", "New",
			fmt.Sprintf("PLL bandwidth %g out of range [0, 1)", bandwidth))
	}
	if bandwidth == 0 {
		bandwidth = DefaultPLLBandwidth
	}
	nco := NewNCO()
	nco.SetPLLBandwidth(bandwidth)
	return &Demodulator{m: m, fc: fc, nco: nco}, nil
}

// Demodulate returns the recovered sample for y.
func (d *Demodulator) Demodulate(y complex64) float32 {
	if d.nco != nil {
		p := d.nco.Cexp()
		phaseError := cmplx.Phase(complex128(conj(p) * y))
		d.nco.PLLStep(phaseError)
		d.nco.Step()
		return float32((d.nco.Frequency() - d.fc) / d.m)
	}

	x := (cmplx.Phase(complex128(conj(d.q)*y)) - d.fc) / d.m
	d.q = y
	return float32(x)
}

// DemodulateBlock demodulates src into dst and returns the number of samples
// written, min(len(dst), len(src)).
func (d *Demodulator) DemodulateBlock(dst []float32, src []complex64) int {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = d.Demodulate(src[i])
	}
	return n
}

// Reset clears the stored phase reference and the loop state.
func (d *Demodulator) Reset() {
	d.q = 0
	if d.nco != nil {
		d.nco.Reset()
	}
}

// Delay returns how many samples the output lags the modulator input for the
// discriminator. The PLL has no fixed delay and reports zero.
func (d *Demodulator) Delay() int {
	if d.nco != nil {
		return 0
	}
	return 1
}

func (d *Demodulator) String() string {
	kind := "discriminator"
	if d.nco != nil {
		kind = "pll"
	}
	return fmt.Sprintf("freqdem(%s): index=%.4f fc=%.4f", kind, d.m, d.fc)
}

func conj(c complex64) complex64 {
	return complex(real(c), -imag(c))
}
