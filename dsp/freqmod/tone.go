package freqmod

import "math"

// Tone generates amplitude·sin(2π·frequency·n + phase) for n = 0, 1, 2, ...
// Frequency is in cycles per sample.
type Tone struct {
	Amplitude float64
	Frequency float64
	Phase     float64

	n int64
}

// NewTone returns a tone starting at sample zero.
func NewTone(amplitude, frequency float64) *Tone {
	return &Tone{Amplitude: amplitude, Frequency: frequency}
}

// Next returns the next sample.
func (t *Tone) Next() float32 {
	v := t.At(t.n)
	t.n++
	return v
}

// At returns sample n without advancing the tone.
func (t *Tone) At(n int64) float32 {
	return float32(t.Amplitude * math.Sin(2*math.Pi*t.Frequency*float64(n)+t.Phase))
}

// Fill writes the next len(dst) samples.
func (t *Tone) Fill(dst []float32) {
	for i := range dst {
		dst[i] = t.Next()
	}
}

// Position returns the index of the next sample.
func (t *Tone) Position() int64 { return t.n }

// Reset rewinds to sample zero.
func (t *Tone) Reset() { t.n = 0 }
