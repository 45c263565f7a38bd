// Package bridge carries complex samples between ports over NATS.
//
// A Publisher drains the consumer side of one port into frames on a
// subject. A Subscriber on the other end decodes the frames and produces
// the samples into a second port, so two stages can run in different
// processes while keeping the blocking port semantics at each end.
//
// # Frame Format
//
// Frames are little endian:
//
//	seq     uint64   frame sequence number, starting at 0
//	count   uint32   number of samples
//	samples count × (re float32, im float32)
//
// A frame with count 0 marks the end of the stream. When the producer
// closes the source port, the Publisher publishes the remaining samples,
// then the end-of-stream frame, then flushes. The Subscriber closes its
// sink when it sees that frame, so closure propagates across the bridge.
//
// # Ordering and Loss
//
// Core NATS delivers messages from one connection in order but does not
// redeliver. The Subscriber counts missing sequence numbers as gaps and
// skips malformed frames; neither stops the stream. One Publisher per
// subject is assumed.
//
// # Usage
//
//	sub, _ := client.SubscribeSync(cfg.NATS.Subject)
//	subscriber, _ := bridge.NewSubscriber(bridge.FromNATSConfig(cfg.NATS), sub, portB.Producer())
//	publisher, _ := bridge.NewPublisher(bridge.FromNATSConfig(cfg.NATS), portA.Consumer(), client)
//
//	g.Go(func() error { return subscriber.Run(ctx) })
//	g.Go(func() error { return publisher.Run(ctx) })
package bridge
