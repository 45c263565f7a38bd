// Package sigport provides blocking single-producer single-consumer sample
// ports and a frequency modem pipeline built on them.
//
// # Overview
//
// A port is a bounded FIFO shared by exactly one producer and one consumer.
// Transfers move whole slices, block until the requested count fits (or is
// available), and wake the other side as soon as progress is possible. The
// pipeline binary uses two such ports to carry complex baseband samples from
// a tone-driven FM modulator to a demodulator, optionally hopping through a
// NATS subject between them, and checks that the recovered tone matches the
// one that went in.
//
// # Architecture
//
//	source ──► modulator ──► [modulated port] ──► demodulator ──► verifier
//	                                │
//	                    (nats.enabled only)
//	                                ▼
//	                publisher ──► NATS subject ──► subscriber ──► [received port]
//
// Every stage runs in its own goroutine under an errgroup. Closing the source
// side of a port propagates end-of-stream downstream; across NATS this is an
// explicit end-of-stream frame.
//
// # Packages
//
// Core:
//   - pkg/port: generic blocking SPSC ports with statistics and Prometheus metrics
//   - dsp/freqmod: FM modulator, discriminator and PLL demodulators, test tone
//   - pipeline: stage wiring, verification and the run report
//
// Transport:
//   - bridge: frame codec plus publisher and subscriber stages between ports and NATS
//   - natsclient: NATS connection management with retry and health callbacks
//   - pkg/tlsutil: client TLS for the NATS connection
//
// Infrastructure:
//   - config: layered YAML/JSON configuration with SIGPORT_ environment overrides
//   - errors: classified errors (transient, invalid, fatal)
//   - pkg/retry: exponential backoff with jitter
//   - metric: Prometheus registry and HTTP server
//   - health: per-component health status and the /health handler
//
// # Usage
//
// Ports on their own:
//
//	p, err := port.New[float32](1024, port.WithName("audio"))
//	if err != nil {
//		return err
//	}
//
//	go func() {
//		defer p.Producer().Close()
//		_, _ = p.Producer().ProduceContext(ctx, block)
//	}()
//
//	buf := make([]float32, 256)
//	for {
//		n, err := p.Consumer().ConsumeAvailableContext(ctx, buf)
//		if errors.Is(err, errs.ErrPortClosed) {
//			break
//		}
//		process(buf[:n])
//	}
//
// The whole pipeline:
//
//	p, err := pipeline.New(config.Default(), pipeline.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	report, err := p.Run(ctx)
//
// # Binary
//
//	# One second of samples at 48 kHz
//	sigport -samples 48000 -rate 48000 -log-format text
//
//	# Through a local NATS server with metrics on :9090
//	sigport -nats nats://localhost:4222 -metrics-port 9090
//
// Cancelling the context (SIGINT or SIGTERM for the binary) stops only the
// source. The remaining stages drain what is already in flight and the run
// report marks the result as interrupted.
package sigport
