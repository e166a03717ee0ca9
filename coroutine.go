package coopsched

import "runtime"

// Body is a task's entry point. It runs on its own goroutine, but by
// construction (see Control.Yield) at most one Body is ever executing at a
// time across an entire Sched — only one task's code runs at once,
// cooperative multitasking's defining property, achieved here with
// goroutines and unbuffered channels standing in for the stackful
// coroutines a generator-based scheduler gets natively.
type Body func(c *Control)

// control is the unexported rendezvous core a Control wraps. Two unbuffered
// channels carry the suspend/resume handshake: toSched carries the
// WaitDescriptor a task surrenders at a suspension point, toTask carries
// the SchedulingTuple the dispatcher computed for the descriptor that won
// the cycle.
type control struct {
	pid     PID
	sched   *Sched
	toSched chan WaitDescriptor
	toTask  chan SchedulingTuple
	cancel  chan struct{}
}

func newControl(pid PID, sched *Sched) *control {
	return &control{
		pid:     pid,
		sched:   sched,
		toSched: make(chan WaitDescriptor),
		toTask:  make(chan SchedulingTuple),
		cancel:  make(chan struct{}),
	}
}

// Control is the handle a task Body uses to suspend itself and to reach
// back into the scheduler that owns it (for its own pid, the shared Clock,
// or to add further tasks — AddThread may be called from a running task's
// own execution).
type Control struct {
	c *control
}

// PID returns the calling task's own identity.
func (c *Control) PID() PID { return c.c.pid }

// Sched returns the scheduler this task runs under.
func (c *Control) Sched() *Sched { return c.c.sched }

// Clock returns the scheduler's time source, for tasks that need to read
// "now" directly (e.g. to compute a Poller's deadline themselves).
func (c *Control) Clock() Clock { return c.c.sched.clock }

// Yield surrenders wd to the dispatcher and blocks until this task is
// resumed, returning the SchedulingTuple the dispatcher computed for it.
//
// If the task has been stopped (Stop(pid)) while it was suspended, Yield
// never returns: it calls runtime.Goexit on the blocked goroutine instead,
// unwinding it (running deferred calls) without giving the task's own code
// a chance to observe the cancellation, and without leaking the goroutine
// that represents it.
func (c *Control) Yield(wd WaitDescriptor) SchedulingTuple {
	select {
	case c.c.toSched <- wd:
	case <-c.c.cancel:
		runtime.Goexit()
	}
	select {
	case rv := <-c.c.toTask:
		return rv
	case <-c.c.cancel:
		runtime.Goexit()
	}
	panic("unreachable")
}
