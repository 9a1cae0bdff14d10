package mq

import (
	"context"
	"sync"
	"time"
)

// keepAliveEngine arms a single deferred PINGREQ job per interval and expects
// a PINGRESP before the next one fires. A PINGREQ found still outstanding
// when the timer re-fires means the server went silent, and the connection
// is torn down (§4.5). The engine holds exactly one reference on its
// connection for as long as it is running.
type keepAliveEngine struct {
	conn     *Client
	interval time.Duration
	packet   []byte // pre-serialized PINGREQ, built once

	mu          sync.Mutex
	outstanding bool
	started     bool
	stopped     bool
	job         *Job
}

func newKeepAliveEngine(c *Client, interval time.Duration) *keepAliveEngine {
	return &keepAliveEngine{conn: c, interval: interval}
}

// start arms the first PINGREQ, unless keep-alive is disabled (interval<=0).
func (k *keepAliveEngine) start() {
	if k.interval <= 0 {
		return
	}
	packet, err := k.conn.serializer.EncodePingreq()
	if err != nil {
		return
	}
	k.packet = packet
	k.started = true

	k.conn.refMu.Lock()
	k.conn.refcountLocked++
	k.conn.refMu.Unlock()

	k.arm()
}

func (k *keepAliveEngine) arm() {
	k.mu.Lock()
	if k.stopped {
		k.mu.Unlock()
		return
	}
	job := NewJob(func(context.Context) { k.fire() })
	k.job = job
	k.mu.Unlock()

	_ = k.conn.pool.ScheduleDeferred(job, k.interval)
}

// fire sends a PINGREQ if the previous one was acknowledged, or tears the
// connection down if one is still outstanding.
func (k *keepAliveEngine) fire() {
	k.mu.Lock()
	if k.stopped {
		k.mu.Unlock()
		return
	}
	if k.outstanding {
		k.mu.Unlock()
		k.conn.teardown(newStatusError(StatusTimeout))
		return
	}
	k.outstanding = true
	k.mu.Unlock()

	if _, err := k.conn.network.Send(k.packet); err != nil {
		k.conn.teardown(&StatusError{Status: StatusNetworkError, Err: err})
		return
	}
	k.conn.stats.pingsSent.Add(1)
	k.arm()
}

// onPingresp clears the outstanding flag, acknowledging the in-flight PINGREQ.
func (k *keepAliveEngine) onPingresp() {
	k.mu.Lock()
	k.outstanding = false
	k.mu.Unlock()
}

// stop cancels any armed job and releases the engine's connection reference.
// Safe to call more than once; only the first call releases the reference.
func (k *keepAliveEngine) stop() {
	k.mu.Lock()
	if k.stopped {
		k.mu.Unlock()
		return
	}
	k.stopped = true
	started := k.started
	job := k.job
	k.mu.Unlock()

	if job != nil {
		k.conn.pool.TryCancel(job)
	}

	if started {
		releaseConnectionReference(k.conn)
	}
}
