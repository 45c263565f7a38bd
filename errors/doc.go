// Package errors provides standardized error handling for sigport.
//
// # Overview
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid
// (bad input or use of a closed port, not retryable), and Fatal (bad
// configuration or unrecoverable state, stop processing).
//
// A port that cannot be constructed returns a Fatal error wrapping
// ErrInvalidConfig, so the caller decides whether to abort:
//
//	p, err := port.New[complex64](0)
//	if errors.IsFatal(err) {
//	    slog.Error("cannot build port", "error", err)
//	    os.Exit(1)
//	}
//
// Transfers on a closed port return an Invalid error wrapping ErrPortClosed:
//
//	if _, err := p.Produce(samples); stderrors.Is(err, errors.ErrPortClosed) {
//	    return nil
//	}
//
// # Error Wrapping Pattern
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions attach a class:
//
//	errors.WrapTransient(err, "Publisher", "Run", "publish frame")
//	errors.WrapInvalid(err, "Port", "Produce", "port closed")
//	errors.WrapFatal(err, "Port", "New", "validate capacity")
//
// Wrap() adds context without a class; classification then falls back to
// errors.Is checks against the standard variables and, for errors coming from
// third-party clients, to message patterns.
package errors
