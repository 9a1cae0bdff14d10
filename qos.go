package mq

// QoS represents the MQTT Quality of Service level.
type QoS uint8

// MQTT Quality of Service levels supported by this client. QoS 2 is not
// implemented on the publish side (see the package doc's Quality of Service
// section); SUBSCRIBE
// may still request it of the server in principle, but the default
// serializer rejects it at validation time since this client cannot
// complete the four-step handshake.
const (
	// AtMostOnce (QoS 0) - fire and forget. No PUBACK, no retry.
	AtMostOnce QoS = 0

	// AtLeastOnce (QoS 1) - acknowledged delivery with retry until PUBACK.
	// Duplicates are possible.
	AtLeastOnce QoS = 1
)
