package mq

import "testing"

func TestOpQueueEnqueueAndMove(t *testing.T) {
	q := newOpQueue()
	op := &operation{kind: opPublishToServer, packetID: 5}

	q.enqueueProcessing(op)
	if op.inQueue != queueProcessing {
		t.Fatalf("expected op in processing queue, got %v", op.inQueue)
	}
	if len(q.allProcessing()) != 1 {
		t.Fatalf("expected 1 processing entry")
	}

	q.moveToResponse(op)
	if op.inQueue != queueResponse {
		t.Fatalf("expected op in response queue, got %v", op.inQueue)
	}
	if len(q.allProcessing()) != 0 {
		t.Errorf("expected processing queue to be empty after move")
	}
	if got := q.findResponseByPacketID(opPublishToServer, 5); got != op {
		t.Errorf("findResponseByPacketID did not find the moved operation")
	}
}

func TestOpQueueRemove(t *testing.T) {
	q := newOpQueue()
	op := &operation{kind: opSubscribe, packetID: 1}
	q.enqueueProcessing(op)
	q.remove(op)

	if op.inQueue != queueNone {
		t.Errorf("expected queueNone after remove, got %v", op.inQueue)
	}
	if len(q.allProcessing()) != 0 {
		t.Errorf("expected queue to be empty after remove")
	}
}

func TestOpQueueDisjointMembership(t *testing.T) {
	q := newOpQueue()
	a := &operation{kind: opPublishToServer, packetID: 1}
	b := &operation{kind: opPublishToServer, packetID: 2}
	q.enqueueProcessing(a)
	q.enqueueProcessing(b)
	q.moveToResponse(a)

	if len(q.allProcessing()) != 1 || q.allProcessing()[0] != b {
		t.Errorf("expected only b left in processing")
	}
	if len(q.allResponse()) != 1 || q.allResponse()[0] != a {
		t.Errorf("expected only a in response")
	}
}
