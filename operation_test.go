package mq

import (
	"context"
	"testing"
)

// newTestClient builds a minimal Client sufficient to exercise
// operation.go/queue.go directly, without a real handshake.
func newTestClient() *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		queue:          newOpQueue(),
		subs:           newSubscriptionTable(),
		allocator:      newPoolAllocator(),
		pool:           newErrgroupPool(ctx),
		lifetimeCtx:    ctx,
		lifetimeCancel: cancel,
		refcountLocked: 1,
	}
}

func TestNewOperationRefcountWaitable(t *testing.T) {
	c := newTestClient()
	op := newOperation(c, opPublishToServer, FlagWaitable, []byte{1, 2, 3})

	if op.refcount != 2 {
		t.Errorf("expected WAITABLE operation to start with refcount 2, got %d", op.refcount)
	}
	if op.sem == nil {
		t.Error("expected WAITABLE operation to have a semaphore")
	}
	if op.inQueue != queueProcessing {
		t.Errorf("expected operation enqueued in pendingProcessing, got %v", op.inQueue)
	}
}

func TestNewOperationRefcountCleanupOnly(t *testing.T) {
	c := newTestClient()
	op := newOperation(c, opPublishToServer, FlagCleanupOnly, []byte{1})

	if op.refcount != 1 {
		t.Errorf("expected non-WAITABLE operation to start with refcount 1, got %d", op.refcount)
	}
	if op.sem != nil {
		t.Error("expected non-WAITABLE operation to have no semaphore")
	}
}

func TestCompleteOperationDestroysAtZeroRefcount(t *testing.T) {
	c := newTestClient()
	op := newOperation(c, opPublishToServer, FlagCleanupOnly, []byte{1, 2})
	c.queue.moveToResponse(op)

	completeOperation(op, nil)

	if op.status != StatusSuccess {
		t.Errorf("expected StatusSuccess, got %v", op.status)
	}
	if op.inQueue != queueNone {
		t.Errorf("expected operation removed from its queue after destroy, got %v", op.inQueue)
	}
}

func TestWaitableOperationSurvivesUntilWaiterReleases(t *testing.T) {
	c := newTestClient()
	op := newOperation(c, opPublishToServer, FlagWaitable, []byte{1})
	c.queue.moveToResponse(op)

	completeOperation(op, nil)
	if op.inQueue == queueNone {
		t.Fatal("expected WAITABLE operation to survive completion until the waiter releases its reference")
	}

	if decrementOperationReferences(op, false) {
		destroyOperation(op)
	}
	if op.inQueue != queueNone {
		t.Errorf("expected operation destroyed after waiter released its reference, got %v", op.inQueue)
	}
}
