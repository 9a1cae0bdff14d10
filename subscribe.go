package mq

import "context"

// SubscribeResult is the WAITABLE Token returned by Subscribe/Unsubscribe.
type SubscribeResult struct {
	*waiter
}

// Wait blocks until SUBACK/UNSUBACK arrives, the connection is torn down, or
// ctx is done. A timeout rolls back the tentative subscription-table
// entries this call installed (§4.1 "Wait").
func (r *SubscribeResult) Wait(ctx context.Context) error {
	return r.waiter.Wait(ctx)
}

// Subscribe installs local dispatch for each (filter, qos) pair immediately
// -- before the SUBSCRIBE packet is even sent -- so a PUBLISH racing the
// SUBACK is never missed, then sends SUBSCRIBE (§4.1 "Subscribe", §4.4). A
// nil handler falls back to the connection's default handler at dispatch
// time. If the server rejects a filter (SUBACK return code 0x80), its table
// entry is rolled back when the SUBACK is processed.
func (c *Client) Subscribe(handler MessageHandler, subs ...TopicSubscription) (*SubscribeResult, error) {
	if len(subs) == 0 {
		return nil, &StatusError{Status: StatusBadParameter, Err: ErrBadParameter}
	}

	filters := make([]string, len(subs))
	qos := make([]uint8, len(subs))
	for i, s := range subs {
		if err := validateSubscribeTopic(s.Filter, c.opts); err != nil {
			return nil, &StatusError{Status: StatusBadParameter, Err: err}
		}
		filters[i] = s.Filter
		qos[i] = uint8(s.QoS)
	}

	c.refMu.Lock()
	disconnected := c.disconnected
	c.refMu.Unlock()
	if disconnected {
		return nil, &StatusError{Status: StatusNetworkError, Err: ErrClientDisconnected}
	}

	packetID := c.nextPacketID()
	packet, err := c.serializer.EncodeSubscribe(filters, qos, packetID)
	if err != nil {
		return nil, &StatusError{Status: StatusBadParameter, Err: err}
	}

	qosTyped := make([]QoS, len(subs))
	for i, s := range subs {
		qosTyped[i] = s.QoS
	}
	c.subs.add(packetID, filters, qosTyped, handler)

	op := newOperation(c, opSubscribe, FlagWaitable, packet)
	op.packetID = packetID
	if sErr := c.send(op); sErr != nil {
		c.subs.removeByPacket(packetID, -1)
		completeOperation(op, sErr)
		return nil, sErr
	}

	return &SubscribeResult{waiter: newWaiter(c, op)}, nil
}

// TopicSubscription is one (filter, qos) pair passed to Subscribe.
type TopicSubscription struct {
	Filter string
	QoS    QoS
}

// Unsubscribe removes local dispatch for each filter immediately, then sends
// UNSUBSCRIBE (§4.1 "Unsubscribe"). Local dispatch stops even if the server
// never acknowledges.
func (c *Client) Unsubscribe(filters ...string) (*SubscribeResult, error) {
	if len(filters) == 0 {
		return nil, &StatusError{Status: StatusBadParameter, Err: ErrBadParameter}
	}
	for _, f := range filters {
		if err := validateSubscribeTopic(f, c.opts); err != nil {
			return nil, &StatusError{Status: StatusBadParameter, Err: err}
		}
	}

	c.refMu.Lock()
	disconnected := c.disconnected
	c.refMu.Unlock()
	if disconnected {
		return nil, &StatusError{Status: StatusNetworkError, Err: ErrClientDisconnected}
	}

	c.subs.removeByTopicFilter(filters)

	packetID := c.nextPacketID()
	packet, err := c.serializer.EncodeUnsubscribe(filters, packetID)
	if err != nil {
		return nil, &StatusError{Status: StatusBadParameter, Err: err}
	}

	op := newOperation(c, opUnsubscribe, FlagWaitable, packet)
	op.packetID = packetID
	if sErr := c.send(op); sErr != nil {
		completeOperation(op, sErr)
		return nil, sErr
	}

	return &SubscribeResult{waiter: newWaiter(c, op)}, nil
}
