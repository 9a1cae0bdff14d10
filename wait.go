package mq

import "context"

// wait blocks on a WAITABLE operation's completion semaphore until it is
// released (operation completed) or ctx is done (caller-specified timeout).
// On timeout it attempts to cancel the operation's not-yet-run job, completes
// the operation with StatusTimeout (a no-op if it already completed) and, for
// a SUBSCRIBE operation, rolls back the tentative subscription-table entries
// the Subscribe call installed before sending (§4.1 "Wait").
//
// wait always releases the WAITABLE reference it holds, whether the
// operation completed on its own or was timed out here.
func (c *Client) wait(ctx context.Context, op *operation) *StatusError {
	if op.sem == nil {
		return newStatusError(StatusBadParameter)
	}

	err := op.sem.Acquire(ctx, 1)
	if err == nil {
		result := op.result
		if decrementOperationReferences(op, false) {
			destroyOperation(op)
		}
		return result
	}

	// ctx expired before completion; try to stop the send job before it runs.
	// completeOperation is a no-op if something else (the ack, or a network
	// failure) completed op in the meantime, so this is race-safe either way.
	if op.job != nil {
		c.pool.TryCancel(op.job)
	}
	if op.kind == opSubscribe {
		c.subs.removeByPacket(op.packetID, -1)
	}
	timeoutErr := newStatusError(StatusTimeout)
	completeOperation(op, timeoutErr)

	if decrementOperationReferences(op, false) {
		destroyOperation(op)
	}
	return op.result
}
