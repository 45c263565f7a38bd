// Package freqmod implements an analog frequency modulator and demodulator
// over complex baseband samples.
//
// The modulator drives an NCO at m·x + fc radians per sample for each input
// sample x and emits exp(jθ). The default demodulator measures the phase
// step between consecutive samples, x = (arg(conj(q)·y) − fc) / m, so its
// output lags the input by one sample. A PLL demodulator is also available.
//
// Tone provides a deterministic sine source for tests and the loopback
// pipeline.
package freqmod
