// Package natsclient manages the NATS connection that carries sample frames
// between pipeline stages running in different processes.
//
// The client wraps the standard NATS Go client with backoff on connect,
// classified errors and connection state tracking. Connect retries
// transient dial failures using pkg/retry; authorization failures are fatal
// and stop the retry loop immediately.
//
// # Connection Lifecycle
//
// The client moves through Disconnected, Connecting, Connected and
// Reconnecting while the NATS library handles reconnects. Close drains
// subscriptions and ends in Closed; a closed client cannot be reconnected.
//
// # TLS
//
// When cfg.TLS.Enabled is set, NewClient loads the CA files and optional
// client key pair through pkg/tlsutil and every dial uses that tls.Config.
// Unreadable certificate files fail NewClient with a fatal error.
//
// # Basic Usage
//
//	client, err := natsclient.NewClient(cfg.NATS,
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMetrics(registry.CoreMetrics()),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	sub, err := client.SubscribeSync("sigport.samples")
//	if err != nil {
//	    return err
//	}
//	data, err := sub.NextMsg(ctx)
//
// # Error Handling
//
// Errors are classified with the errors package:
//
//   - Transient: no connection yet, dial failures, flush timeouts
//   - Invalid: payload too large, malformed subject, missing URLs
//   - Fatal: authorization failures, publishing on a closed connection
//
// Callers publishing in a loop can retry on errors.IsTransient.
package natsclient
