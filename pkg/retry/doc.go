// Package retry provides exponential backoff retry for transient failures in
// the NATS sample bridge.
//
// # Functions
//
//   - Do: run fn until it succeeds, a non-retryable error occurs, attempts
//     run out or the context is cancelled
//   - DoWithResult: Do for functions that return a value
//
// # Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s
//   - ForPublish(): 5 attempts, 20ms-500ms (per-frame publish)
//   - ForConnect(): 10 attempts, 200ms-5s (startup connect)
//
// # Usage
//
//	cfg := retry.ForConnect()
//	cfg.Retryable = errs.IsTransient
//	cfg.Notify = func(attempt int, err error, next time.Duration) {
//	    logger.Warn("connect failed, retrying", "attempt", attempt, "error", err, "backoff", next)
//	}
//	conn, err := retry.DoWithResult(ctx, cfg, func() (*nats.Conn, error) {
//	    return nats.Connect(url, opts...)
//	})
//
// Errors wrapped with NonRetryable stop the loop immediately regardless of
// Retryable. Cancellation is honoured both between attempts and during the
// backoff sleep.
package retry
