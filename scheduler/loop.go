package scheduler

import "sync"

// Loop is a Scheduler backed by a single dedicated goroutine that runs
// every deferred call, strictly in the order it was handed in, for as
// long as the Loop is open. Its run goroutine and its once-only shutdown
// sequence are the same shape as the teacher's sequential FIFO executor:
// one goroutine draining a buffered channel, and a Close that is safe to
// call more than once and that only returns once the goroutine has
// actually exited.
//
// Loop is the Scheduler to reach for when callbacks must never run on
// the caller's own goroutine (so that Succeed/Fail/Abort can be called
// from inside a callback without reentering it) and there is no existing
// host loop to hand the work to instead.
type Loop struct {
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
	startOnce sync.Once
}

// NewLoop starts a Loop with the given task queue capacity. A capacity of
// 0 makes every Defer call block until the loop goroutine is ready to
// accept it; a positive capacity lets callers queue ahead of the loop.
func NewLoop(capacity int) *Loop {
	l := &Loop{
		tasks: make(chan func(), capacity),
		done:  make(chan struct{}),
	}
	l.startOnce.Do(func() { go l.run() })
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for fn := range l.tasks {
		fn()
	}
}

// Defer implements Scheduler. It panics if called after Close, the same
// misuse the teacher's executor guards against by closing its task
// channel: sending on a closed channel is a programmer error, not a
// condition to swallow.
func (l *Loop) Defer(fn func()) {
	l.tasks <- fn
}

// Close stops accepting new work and blocks until every already-queued
// call has run and the loop goroutine has exited. It is safe to call
// more than once; only the first call does anything.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.tasks)
		<-l.done
	})
}
