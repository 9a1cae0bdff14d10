package mq

import "container/list"

// queueKind identifies which of a connection's two ordered operation lists
// an operation currently sits in, or neither. pendingProcessing holds
// operations not yet sent; pendingResponse holds sent operations awaiting an
// acknowledgement. An operation is in at most one of the two (§3 invariant).
type queueKind int

const (
	queueNone queueKind = iota
	queueProcessing
	queueResponse
)

// opQueue is a connection's pair of ordered operation lists. All methods
// assume the caller holds the connection's reference mutex.
type opQueue struct {
	processing *list.List
	response   *list.List
}

func newOpQueue() *opQueue {
	return &opQueue{processing: list.New(), response: list.New()}
}

// enqueueProcessing appends op to pendingProcessing. op must not already be
// queued.
func (q *opQueue) enqueueProcessing(op *operation) {
	op.elem = q.processing.PushBack(op)
	op.inQueue = queueProcessing
}

// moveToResponse transfers op from pendingProcessing to pendingResponse.
func (q *opQueue) moveToResponse(op *operation) {
	if op.inQueue == queueProcessing {
		q.processing.Remove(op.elem)
	}
	op.elem = q.response.PushBack(op)
	op.inQueue = queueResponse
}

// remove takes op out of whichever list it's in, if any.
func (q *opQueue) remove(op *operation) {
	switch op.inQueue {
	case queueProcessing:
		q.processing.Remove(op.elem)
	case queueResponse:
		q.response.Remove(op.elem)
	}
	op.elem = nil
	op.inQueue = queueNone
}

// findResponseByPacketID returns the first pendingResponse operation of the
// given kind carrying packetID, or nil.
func (q *opQueue) findResponseByPacketID(kind operationKind, packetID uint16) *operation {
	for e := q.response.Front(); e != nil; e = e.Next() {
		op := e.Value.(*operation)
		if op.kind == kind && op.packetID == packetID {
			return op
		}
	}
	return nil
}

// allResponse returns a snapshot of every operation in pendingResponse, used
// by disconnect teardown and BAD_RESPONSE handling.
func (q *opQueue) allResponse() []*operation {
	return snapshotList(q.response)
}

// allProcessing returns a snapshot of every operation in pendingProcessing.
func (q *opQueue) allProcessing() []*operation {
	return snapshotList(q.processing)
}

func snapshotList(l *list.List) []*operation {
	out := make([]*operation, 0, l.Len())
	for e := l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*operation))
	}
	return out
}
