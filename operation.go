package mq

import (
	"container/list"
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// operationKind identifies the protocol request an operation represents.
type operationKind int

const (
	opConnect operationKind = iota
	opPublishToServer
	opSubscribe
	opUnsubscribe
	opDisconnect
)

// Operation flags, matching IOT_MQTT_FLAG_WAITABLE / IOT_MQTT_FLAG_CLEANUP_ONLY.
const (
	FlagWaitable    uint8 = 1 << 0
	FlagCleanupOnly uint8 = 1 << 1
)

// opAwaitsAck reports whether op completes from an incoming acknowledgement
// packet handled in receive.go (CONNACK/PUBACK/SUBACK/UNSUBACK). Everything
// else -- DISCONNECT and a QoS 0 PUBLISH -- has nothing more to wait for once
// the bytes reach the transport, so send's job completes it there instead.
func opAwaitsAck(op *operation) bool {
	switch op.kind {
	case opConnect, opSubscribe, opUnsubscribe:
		return true
	case opPublishToServer:
		return op.flags&FlagWaitable != 0
	default:
		return false
	}
}

// retryState tracks QoS 1 PUBLISH retransmission. nextPeriod doubles on each
// fired retry, clamped at DefaultRetryCeiling.
type retryState struct {
	limit      int
	attempt    int
	nextPeriod time.Duration
}

// operation is a single in-flight protocol request: its packet bytes,
// reference count, optional retry schedule, and completion notifier. See
// SPEC_FULL.md §4 / spec.md §3 "Operation".
type operation struct {
	kind   operationKind
	status Status
	flags  uint8

	packet         []byte
	packetID       uint16
	secondaryID    *uint16 // AWS-mode secondary identifier slot
	hasPacketID    bool
	retry          *retryState

	conn *Client

	// refcount is guarded by conn.refMu.
	refcount int

	// elem/inQueue track which of conn.queue's two lists this operation sits
	// in, if any; also guarded by conn.refMu.
	elem    *list.Element
	inQueue queueKind

	// sem is non-nil iff FlagWaitable is set. It is acquired (to capacity)
	// at creation so it starts "empty"; completion releases it, letting a
	// blocked Wait's Acquire proceed.
	sem *semaphore.Weighted

	callback func(*StatusError)

	job *Job

	result *StatusError
}

// newOperation creates an operation with refcount 1, plus 1 more if
// WAITABLE, installs it into pendingProcessing, and takes a reference on
// conn (the operation references its connection).
func newOperation(conn *Client, kind operationKind, flags uint8, packet []byte) *operation {
	op := &operation{
		kind:   kind,
		status: StatusPending,
		flags:  flags,
		packet: packet,
		conn:   conn,
	}

	conn.refMu.Lock()
	op.refcount = 1
	if flags&FlagWaitable != 0 {
		op.sem = semaphore.NewWeighted(1)
		_ = op.sem.Acquire(context.Background(), 1)
		op.refcount++
	}
	conn.queue.enqueueProcessing(op)
	conn.refcountLocked++
	conn.refMu.Unlock()

	return op
}

// decrementOperationReferences optionally asks the task pool to cancel op's pending
// job (success counts as one reference released), then decrements
// op.refcount under the connection's reference mutex. It returns true iff
// the refcount reached zero.
func decrementOperationReferences(op *operation, cancelJob bool) bool {
	if cancelJob && op.job != nil && op.conn.pool != nil {
		op.conn.pool.TryCancel(op.job)
	}

	op.conn.refMu.Lock()
	op.refcount--
	zero := op.refcount == 0
	op.conn.refMu.Unlock()
	return zero
}

// destroyOperation removes op from its queue, releases its packet buffer, and
// decrements the connection's reference count.
// Called once refcount has reached zero.
func destroyOperation(op *operation) {
	op.conn.refMu.Lock()
	op.conn.queue.remove(op)
	op.conn.refMu.Unlock()

	if op.conn.allocator != nil && op.packet != nil {
		op.conn.allocator.Release(op.packet)
	}
	op.packet = nil

	releaseConnectionReference(op.conn)
}

// completeOperation sets op's terminal status/result, notifies the waiter or
// callback, and releases the task pool's hold on op (one reference).
func completeOperation(op *operation, result *StatusError) {
	op.conn.refMu.Lock()
	if op.status != StatusPending {
		op.conn.refMu.Unlock()
		return
	}
	if result == nil {
		op.status = StatusSuccess
	} else {
		op.status = result.Status
	}
	op.result = result
	op.conn.refMu.Unlock()

	if op.sem != nil {
		op.sem.Release(1)
	}
	if op.callback != nil {
		job := NewJob(func(context.Context) {
			op.callback(result)
		})
		if op.conn.pool != nil {
			_ = op.conn.pool.Schedule(job)
		}
	}

	if decrementOperationReferences(op, false) {
		destroyOperation(op)
	}
}
