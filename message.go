package mq

// Message represents an MQTT message delivered to a subscription callback.
type Message struct {
	Topic     string
	Payload   []byte
	QoS       QoS
	Retained  bool
	Duplicate bool
}

// MessageHandler is invoked once per matching inbound PUBLISH. Handlers run
// concurrently across subscriptions and must be reentrant: the same handler
// may be invoked again before a prior invocation returns.
type MessageHandler func(*Client, Message)
