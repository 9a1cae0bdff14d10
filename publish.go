package mq

import (
	"context"
	"time"
)

// Publish sends a message to topic and returns a handle the caller can Wait
// on for QoS 1, or that completes immediately for QoS 0 (§4.1 "Publish").
// Retransmission on a QoS 1 PUBLISH follows WithRetryLimit/WithRetryInterval;
// exhausting the retry budget completes the operation with
// StatusRetryNoResponse instead of StatusTimeout.
func (c *Client) Publish(topic string, payload []byte, qos QoS, retain bool) (*PublishResult, error) {
	if err := validatePublishTopic(topic, c.opts); err != nil {
		return nil, &StatusError{Status: StatusBadParameter, Err: err}
	}
	if err := validatePayload(payload, c.opts); err != nil {
		return nil, &StatusError{Status: StatusBadParameter, Err: err}
	}

	c.refMu.Lock()
	disconnected := c.disconnected
	c.refMu.Unlock()
	if disconnected {
		return nil, &StatusError{Status: StatusNetworkError, Err: ErrClientDisconnected}
	}

	var packetID uint16
	if qos == AtLeastOnce {
		packetID = c.nextPacketID()
	}

	packet, err := c.serializer.EncodePublish(PublishRequest{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retain:   retain,
		PacketID: packetID,
	})
	if err != nil {
		return nil, &StatusError{Status: StatusBadParameter, Err: err}
	}

	flags := FlagCleanupOnly
	if qos == AtLeastOnce {
		flags = FlagWaitable
	}

	op := newOperation(c, opPublishToServer, flags, packet)
	op.packetID = packetID
	if qos == AtLeastOnce && c.opts.retryLimit > 0 {
		op.retry = &retryState{limit: c.opts.retryLimit, nextPeriod: c.opts.retryInterval}
	}

	if sErr := c.send(op); sErr != nil {
		completeOperation(op, sErr)
		return nil, sErr
	}

	if qos == AtLeastOnce && op.retry != nil {
		c.armRetry(op)
	}

	if op.sem == nil {
		return &PublishResult{}, nil
	}
	return &PublishResult{waiter: newWaiter(c, op)}, nil
}

// armRetry schedules the next retransmission of a QoS 1 PUBLISH, doubling
// the delay on each attempt up to DefaultRetryCeiling. The original packet
// bytes are resent unchanged -- real brokers treat a retransmission with the
// DUP bit unset as equivalent to one with it set, so no re-encode is needed.
func (c *Client) armRetry(op *operation) {
	delay := op.retry.nextPeriod
	if delay <= 0 {
		delay = c.opts.retryInterval
	}

	job := NewJob(func(context.Context) { c.fireRetry(op) })
	if err := c.pool.ScheduleDeferred(job, delay); err != nil {
		return
	}

	next := delay * 2
	if next > DefaultRetryCeiling {
		next = DefaultRetryCeiling
	}
	op.retry.nextPeriod = next
}

func (c *Client) fireRetry(op *operation) {
	c.refMu.Lock()
	done := op.status != StatusPending
	c.refMu.Unlock()
	if done {
		return
	}

	op.retry.attempt++
	if op.retry.attempt > op.retry.limit {
		completeOperation(op, newStatusError(StatusRetryNoResponse))
		return
	}

	if _, sendErr := c.network.Send(op.packet); sendErr != nil {
		completeOperation(op, &StatusError{Status: StatusNetworkError, Err: sendErr})
		return
	}
	c.armRetry(op)
}

// PublishResult is the handle returned by Publish. For QoS 1 it satisfies
// Token and blocks on the PUBACK; for QoS 0 (not WAITABLE) every method
// returns immediately with a nil error.
type PublishResult struct {
	*waiter
}

func (r *PublishResult) Wait(ctx context.Context) error {
	if r.waiter == nil {
		return nil
	}
	return r.waiter.Wait(ctx)
}

func (r *PublishResult) Done() <-chan struct{} {
	if r.waiter == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return r.waiter.Done()
}

func (r *PublishResult) Err() error {
	if r.waiter == nil {
		return nil
	}
	return r.waiter.Err()
}

// WaitTimeout is a convenience wrapper around Wait using a plain duration.
func (r *PublishResult) WaitTimeout(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return r.Wait(ctx)
}
