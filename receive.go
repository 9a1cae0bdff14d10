package mq

import (
	"context"

	"github.com/arlobridge/iotmqtt/internal/packets"
)

// handleIncoming dispatches one decoded packet to its handler (§4.3). An
// unrecognized or contextually invalid packet type completes every pending
// operation with StatusBadResponse and tears the connection down.
func (c *Client) handleIncoming(pkt packets.Packet) {
	switch p := pkt.(type) {
	case *packets.ConnackPacket:
		c.handleConnack(p)
	case *packets.PublishPacket:
		c.handlePublish(p)
	case *packets.PubackPacket:
		c.handlePuback(p)
	case *packets.SubackPacket:
		c.handleSuback(p)
	case *packets.UnsubackPacket:
		c.handleUnsuback(p)
	case *packets.PingrespPacket:
		c.handlePingresp()
	default:
		c.teardown(newStatusError(StatusBadResponse))
	}
}

func (c *Client) handleConnack(p *packets.ConnackPacket) {
	op := c.findResponse(opConnect, 0)
	if op == nil {
		c.teardown(newStatusError(StatusBadResponse))
		return
	}

	c.sessionPresent = p.SessionPresent
	if p.ReturnCode != packets.ConnAccepted {
		completeOperation(op, connackError(p.ReturnCode))
		c.teardown(connackError(p.ReturnCode))
		return
	}
	completeOperation(op, nil)
}

func (c *Client) handlePublish(p *packets.PublishPacket) {
	c.stats.publishesRecv.Add(1)
	if p.QoS == uint8(AtLeastOnce) {
		ack, err := c.serializer.EncodePuback(p.PacketID)
		if err == nil {
			_, _ = c.network.Send(ack)
		}
	}

	msg := Message{
		Topic:     p.Topic,
		Payload:   p.Payload,
		QoS:       QoS(p.QoS),
		Retained:  p.Retain,
		Duplicate: p.Dup,
	}

	subs := c.subs.match(p.Topic)
	if len(subs) == 0 {
		if h := c.opts.defaultHandler; h != nil {
			c.dispatch(h, msg)
		}
		return
	}
	for _, s := range subs {
		h := s.handler
		if h == nil {
			h = c.opts.defaultHandler
		}
		if h != nil {
			c.dispatchSub(h, msg, s)
		} else {
			c.subs.release([]*subscription{s})
		}
	}
}

// dispatch runs a MessageHandler on the task pool, never on the read loop's
// own goroutine, so a slow or panicking handler cannot stall decoding of the
// next incoming packet.
func (c *Client) dispatch(h MessageHandler, msg Message) {
	job := NewJob(func(context.Context) { h(c, msg) })
	_ = c.pool.Schedule(job)
}

// dispatchSub runs h on the task pool and releases s's match refcount only
// once h returns, so the refcount spans the handler's actual execution
// instead of just the moment it was scheduled (§4.3).
func (c *Client) dispatchSub(h MessageHandler, msg Message, s *subscription) {
	job := NewJob(func(context.Context) {
		h(c, msg)
		c.subs.release([]*subscription{s})
	})
	_ = c.pool.Schedule(job)
}

func (c *Client) handlePuback(p *packets.PubackPacket) {
	op := c.findResponse(opPublishToServer, p.PacketID)
	if op == nil {
		return // late or duplicate PUBACK; nothing to complete
	}
	completeOperation(op, nil)
}

func (c *Client) handleSuback(p *packets.SubackPacket) {
	op := c.findResponse(opSubscribe, p.PacketID)
	if op == nil {
		c.teardown(newStatusError(StatusBadResponse))
		return
	}

	rejected := map[int]bool{}
	allRejected := true
	for i, rc := range p.ReturnCodes {
		if rc == packets.SubackFailure {
			rejected[i] = true
		} else {
			allRejected = false
		}
	}
	if len(rejected) > 0 {
		c.subs.removeByPacketIndices(p.PacketID, rejected)
	}

	if allRejected && len(p.ReturnCodes) > 0 {
		completeOperation(op, connackError(packets.SubackFailure))
		return
	}
	completeOperation(op, nil)
}

func (c *Client) handleUnsuback(p *packets.UnsubackPacket) {
	op := c.findResponse(opUnsubscribe, p.PacketID)
	if op == nil {
		return
	}
	completeOperation(op, nil)
}

func (c *Client) handlePingresp() {
	if c.ka != nil {
		c.ka.onPingresp()
	}
}
