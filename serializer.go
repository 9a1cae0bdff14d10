package mq

import (
	"bytes"
	"fmt"
	"io"

	"github.com/arlobridge/iotmqtt/internal/packets"
)

// ConnectRequest carries everything the CONNECT serializer needs; it is the
// typed input side of the serializer vtable's connect entry.
type ConnectRequest struct {
	ClientID     string
	CleanSession bool
	KeepAlive    uint16
	Username     string
	Password     string
	HasAuth      bool
	Will         *willMessage
}

// PublishRequest is the typed input to the publish serializer entry.
type PublishRequest struct {
	Topic    string
	Payload  []byte
	QoS      QoS
	Retain   bool
	Dup      bool
	PacketID uint16 // ignored for QoS 0
}

// Serializer is the optional per-connection override vtable (§6). The
// default implementation produces MQTT 3.1.1 wire format bit-for-bit via
// internal/packets and satisfies serialize(deserialize(bytes)) == bytes.
type Serializer interface {
	EncodeConnect(req ConnectRequest) ([]byte, error)
	EncodePublish(req PublishRequest) ([]byte, error)
	EncodePuback(packetID uint16) ([]byte, error)
	EncodeSubscribe(topics []string, qos []uint8, packetID uint16) ([]byte, error)
	EncodeUnsubscribe(topics []string, packetID uint16) ([]byte, error)
	EncodePingreq() ([]byte, error)
	EncodeDisconnect() ([]byte, error)

	// Decode reads one complete control packet from r, bounded by
	// maxIncomingPacket (0 falls back to the protocol maximum).
	Decode(r io.Reader, maxIncomingPacket int) (packets.Packet, error)
}

type defaultSerializer struct{}

func newDefaultSerializer() Serializer {
	return defaultSerializer{}
}

func writeToBytes(p packets.Packet) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (defaultSerializer) EncodeConnect(req ConnectRequest) ([]byte, error) {
	pkt := &packets.ConnectPacket{
		ProtocolName:  "MQTT",
		ProtocolLevel: packets.ProtocolLevel4,
		CleanSession:  req.CleanSession,
		KeepAlive:     req.KeepAlive,
		ClientID:      req.ClientID,
	}
	if req.HasAuth {
		pkt.UsernameFlag = req.Username != ""
		pkt.Username = req.Username
		pkt.PasswordFlag = req.Password != ""
		pkt.Password = req.Password
	}
	if req.Will != nil {
		pkt.WillFlag = true
		pkt.WillQoS = uint8(req.Will.qos)
		pkt.WillRetain = req.Will.retain
		pkt.WillTopic = req.Will.topic
		pkt.WillMessage = req.Will.payload
	}
	return writeToBytes(pkt)
}

func (defaultSerializer) EncodePublish(req PublishRequest) ([]byte, error) {
	pkt := &packets.PublishPacket{
		Dup:      req.Dup,
		QoS:      uint8(req.QoS),
		Retain:   req.Retain,
		Topic:    req.Topic,
		PacketID: req.PacketID,
		Payload:  req.Payload,
	}
	return writeToBytes(pkt)
}

func (defaultSerializer) EncodePuback(packetID uint16) ([]byte, error) {
	return writeToBytes(&packets.PubackPacket{PacketID: packetID})
}

func (defaultSerializer) EncodeSubscribe(topics []string, qos []uint8, packetID uint16) ([]byte, error) {
	for _, q := range qos {
		if q > uint8(AtLeastOnce) {
			return nil, fmt.Errorf("%w: QoS %d subscriptions are not supported", ErrBadParameter, q)
		}
	}
	return writeToBytes(&packets.SubscribePacket{PacketID: packetID, Topics: topics, QoS: qos})
}

func (defaultSerializer) EncodeUnsubscribe(topics []string, packetID uint16) ([]byte, error) {
	return writeToBytes(&packets.UnsubscribePacket{PacketID: packetID, Topics: topics})
}

func (defaultSerializer) EncodePingreq() ([]byte, error) {
	return writeToBytes(&packets.PingreqPacket{})
}

func (defaultSerializer) EncodeDisconnect() ([]byte, error) {
	return writeToBytes(&packets.DisconnectPacket{})
}

func (defaultSerializer) Decode(r io.Reader, maxIncomingPacket int) (packets.Packet, error) {
	return packets.ReadPacket(r, maxIncomingPacket)
}
