// Package pipeline wires the sample ports to the frequency modem.
//
// A run looks like this:
//
//	Tone → Modulator → [modulated] → Demodulator → verifier
//
// or, with NATS enabled:
//
//	Tone → Modulator → [modulated] → Publisher ⇢ NATS ⇢ Subscriber → [received] → Demodulator → verifier
//
// Each stage runs on its own goroutine under an errgroup and talks to its
// neighbours only through ports, so a slow stage back-pressures the ones
// before it. The source closes its port when done; closure then travels
// down the chain (across NATS as an end-of-stream frame) and every stage
// returns once its input is drained.
//
// The verifier compares the demodulated signal with a second copy of the
// tone, shifted by the demodulator delay, and records the largest error.
// Samples that differ by more than the configured tolerance fail the run.
//
// Cancelling the context passed to Run stops only the source. Samples
// already produced still reach the demodulator, so an interrupted run
// reports consistent counts.
package pipeline
