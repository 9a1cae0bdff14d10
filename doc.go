// Package mq provides an asynchronous MQTT 3.1.1 client built around an
// explicit Operation lifecycle: every Connect, Publish, Subscribe, or
// Unsubscribe call creates a reference-counted operation that is queued,
// sent on the connection's task pool, and completed from the read loop as
// the matching acknowledgement arrives (or the connection tears down).
//
// # Quick Start
//
//	client, err := mq.Connect(ctx, "localhost:1883",
//	    mq.WithClientID("my-client"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect(context.Background())
//
//	res, err := client.Publish("sensors/temperature", []byte("22.5"), mq.AtLeastOnce, false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := res.Wait(ctx); err != nil {
//	    log.Printf("publish failed: %v", err)
//	}
//
// Subscribe to a topic:
//
//	sub, err := client.Subscribe(
//	    func(c *mq.Client, msg mq.Message) {
//	        fmt.Printf("%s: %s\n", msg.Topic, string(msg.Payload))
//	    },
//	    mq.TopicSubscription{Filter: "sensors/+/temperature", QoS: mq.AtLeastOnce},
//	)
//	if err == nil {
//	    err = sub.Wait(ctx)
//	}
//
// # Quality of Service
//
// Only the two QoS levels that require no publish-side state machine beyond
// a single acknowledgement are supported:
//
//   - QoS 0 (mq.AtMostOnce): fire and forget, Publish's result completes
//     immediately.
//   - QoS 1 (mq.AtLeastOnce): acknowledged, with retry governed by
//     WithRetryLimit/WithRetryInterval.
//
// QoS 2 (exactly once) is out of scope; see the package's design notes.
//
// # Wildcard Subscriptions
//
// '+' matches exactly one topic level; '#' matches the remainder of the
// topic and must be the final level of the filter:
//
//	client.Subscribe(handler, mq.TopicSubscription{Filter: "sensors/#", QoS: mq.AtMostOnce})
//
// # Completion model
//
// Publish, Subscribe, and Unsubscribe return a Token: use Wait for a
// blocking call, or Done/Err for a select-based one. A Wait timeout rolls
// back any subscription-table changes a not-yet-acknowledged Subscribe
// installed and marks the operation StatusTimeout; it does not, by itself,
// tear down the connection.
//
// # Collaborators
//
// Four small interfaces -- Network, Serializer, TaskPool, and Allocator --
// are the seams an embedder can override (WithNetwork, WithSerializer,
// WithTaskPool, WithAllocator). Each has a default, real implementation, so
// a plain mq.Connect call needs none of them.
package mq
