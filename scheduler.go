package mq

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// jobState is the atomic slot state backing cancellation-on-timeout races
// (design note: "Task-pool callbacks holding a reference"). Only the
// goroutine that wins the Scheduled->Cancelled compare-and-swap may treat
// the job as not having run.
type jobState int32

const (
	jobScheduled jobState = iota
	jobRunning
	jobDone
	jobCancelled
)

// Job is a unit of work submitted to a TaskPool. Fn receives the pool's
// lifetime context, cancelled when the owning connection tears down.
type Job struct {
	Fn    func(ctx context.Context)
	state atomic.Int32
	timer *time.Timer
}

// NewJob wraps fn as a cancellable Job (the task pool's "CreateJob").
func NewJob(fn func(ctx context.Context)) *Job {
	j := &Job{Fn: fn}
	j.state.Store(int32(jobScheduled))
	return j
}

func (j *Job) run(ctx context.Context) {
	if !j.state.CompareAndSwap(int32(jobScheduled), int32(jobRunning)) {
		return
	}
	j.Fn(ctx)
	j.state.Store(int32(jobDone))
}

// tryCancel cancels the job iff it has not yet started running, matching
// TaskPool.TryCancel's "succeeds iff the job had not begun execution".
func (j *Job) tryCancel() bool {
	if j.timer != nil {
		j.timer.Stop()
	}
	return j.state.CompareAndSwap(int32(jobScheduled), int32(jobCancelled))
}

// TaskPool is the scheduler adaptor's external collaborator: submit work
// immediately or after a delay, and attempt to cancel work not yet started.
type TaskPool interface {
	// Schedule runs job.Fn as soon as a worker is free.
	Schedule(job *Job) error
	// ScheduleDeferred runs job.Fn after delay elapses, unless cancelled
	// first.
	ScheduleDeferred(job *Job, delay time.Duration) error
	// TryCancel cancels job iff it has not started; returns whether it
	// succeeded.
	TryCancel(job *Job) bool
	// Wait blocks until every job this pool has accepted has returned, and
	// is called once during connection teardown.
	Wait() error
}

// errgroupPool is the default TaskPool: an errgroup.Group bound to the
// connection's lifetime context owns every goroutine this pool spawns, so
// teardown needs one Wait() call instead of a hand-rolled WaitGroup plus
// channel-close dance (see SPEC_FULL.md's domain-stack notes).
type errgroupPool struct {
	group *errgroup.Group
	ctx   context.Context
}

func newErrgroupPool(ctx context.Context) *errgroupPool {
	g, gctx := errgroup.WithContext(ctx)
	return &errgroupPool{group: g, ctx: gctx}
}

func (p *errgroupPool) Schedule(job *Job) error {
	p.group.Go(func() error {
		job.run(p.ctx)
		return nil
	})
	return nil
}

func (p *errgroupPool) ScheduleDeferred(job *Job, delay time.Duration) error {
	job.timer = time.AfterFunc(delay, func() {
		p.group.Go(func() error {
			job.run(p.ctx)
			return nil
		})
	})
	return nil
}

func (p *errgroupPool) TryCancel(job *Job) bool {
	return job.tryCancel()
}

func (p *errgroupPool) Wait() error {
	return p.group.Wait()
}
