// Package coopsched implements a cooperative, single-threaded, priority
// dispatch microthread scheduler: tasks suspend themselves by surrendering
// a WaitDescriptor, and each dispatch cycle resumes whichever eligible
// task's SchedulingTuple sorts highest, falling back to a fair
// round-robin tier when nothing else is eligible.
//
// It is structured after github.com/joeycumines/go-utilpkg's eventloop
// package: an options-configured long-lived struct with a single-owner
// Run loop, atomic per-item state, and a registry for external handles —
// generalized from an I/O-readiness event loop to a wait-descriptor
// priority dispatcher.
package coopsched

import (
	"context"
	"sync/atomic"

	"github.com/coopsched/coopsched/pin"
)

// Sched is a single scheduler instance. The zero value is not usable;
// construct one with New.
type Sched struct {
	cfg *config

	clock  Clock
	gcHook pin.GCHook
	logger Logger

	reg *registry

	running       atomic.Bool
	stopRequested atomic.Bool
	rrGen         atomic.Uint64
	lastGCUS      atomic.Uint32
	gcCount       atomic.Uint64
}

// New constructs a Sched. It does not start dispatching: call Run.
func New(opts ...Option) *Sched {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	s := &Sched{
		cfg:    cfg,
		clock:  newMonotonicGuard(cfg.clock),
		gcHook: cfg.gcHook,
		logger: cfg.logger,
		reg:    newRegistry(),
	}
	s.lastGCUS.Store(s.clock.NowUS())
	return s
}

// AddThread installs body as a new task, running it synchronously (on a
// freshly spawned goroutine, but the caller blocks until this returns) up
// to its first suspension point, so that initializing statements before
// the first Yield run in AddThread call order. It may be called before
// Run, or from within a currently-running task's own body.
//
// If body returns before ever calling Control.Yield, AddThread reports
// *BadThread and the task is never installed.
func (s *Sched) AddThread(body Body) (PID, error) {
	pid := s.reg.alloc()
	ctl := newControl(pid, s)
	done := make(chan struct{})
	task := &Task{
		pid:        pid,
		state:      newTaskStateBox(TaskRunning),
		descriptor: newlyAddedDescriptor(),
		kind:       kindNewlyAdded,
		ctrl:       ctl,
		done:       done,
	}

	go func() {
		defer close(done)
		body(&Control{c: ctl})
	}()

	select {
	case wd := <-ctl.toSched:
		task.descriptor = wd
		task.kind = wd.kind
	case <-done:
		return 0, &BadThread{PID: pid}
	}

	s.reg.insert(task)
	return pid, nil
}

// Clock returns the scheduler's time source.
func (s *Sched) Clock() Clock { return s.clock }

// Status reports a task's lifecycle state.
func (s *Sched) Status(pid PID) (TaskState, error) {
	t, ok := s.reg.get(pid)
	if !ok {
		return TaskTerminated, &TaskGone{PID: pid}
	}
	return t.state.Load(), nil
}

// TaskInfo is one row of the diagnostic snapshot returned by Sched.Tasks.
type TaskInfo struct {
	PID   PID
	State TaskState
	Wait  string
}

// Tasks returns a read-only snapshot of every installed task, in add
// order, for diagnostics. Unlike Status it does not error on an unknown
// pid since it never takes one: the pid is whatever was in the registry
// at the moment of the snapshot.
func (s *Sched) Tasks() []TaskInfo {
	tasks := s.reg.snapshot()
	out := make([]TaskInfo, len(tasks))
	for i, t := range tasks {
		out[i] = TaskInfo{PID: t.pid, State: t.state.Load(), Wait: t.kind.String()}
	}
	return out
}

// GCStats reports the idle-compaction task's last run and how many times
// it has run. LastRunUS is only meaningful once Count is nonzero.
type GCStats struct {
	LastRunUS uint32
	Count     uint64
}

// GCStats returns the current idle-compaction counters. The compaction
// itself happens in maybeIdleGC; this only exposes what already
// happened.
func (s *Sched) GCStats() GCStats {
	return GCStats{LastRunUS: s.lastGCUS.Load(), Count: s.gcCount.Load()}
}

// Pause suspends dispatch of pid. It is idempotent: pausing an
// already-paused task succeeds silently. The effect takes hold before the
// task's next consideration for dispatch; a task currently running (i.e.
// the one a reentrant Pause call is invoked from) finishes its current
// quantum regardless: a task may pause itself, but the effect only takes
// hold at its next suspension.
func (s *Sched) Pause(pid PID) error {
	t, ok := s.reg.get(pid)
	if !ok {
		return &TaskGone{PID: pid}
	}
	for {
		switch t.state.Load() {
		case TaskTerminated:
			return &TaskGone{PID: pid}
		case TaskPaused:
			return nil
		case TaskRunning:
			if t.state.TryTransition(TaskRunning, TaskPaused) {
				return nil
			}
		}
	}
}

// Resume re-enables dispatch of a paused task. Idempotent on an
// already-running task.
func (s *Sched) Resume(pid PID) error {
	t, ok := s.reg.get(pid)
	if !ok {
		return &TaskGone{PID: pid}
	}
	for {
		switch t.state.Load() {
		case TaskTerminated:
			return &TaskGone{PID: pid}
		case TaskRunning:
			return nil
		case TaskPaused:
			if t.state.TryTransition(TaskPaused, TaskRunning) {
				return nil
			}
		}
	}
}

// Stop terminates pid. Its resumable state is dropped immediately: the
// task will never again be handed a SchedulingTuple. If it is blocked in
// Control.Yield right now, that call unwinds via runtime.Goexit without
// returning to the task's own code. If it is the task currently executing
// (a reentrant Stop, including self-stop), it keeps
// running until its next Yield call, which is where the Goexit happens.
//
// pid == 0 addresses the scheduler itself rather than any task: no
// further dispatch cycles run, every still-live task is stopped the same
// way an individual Stop would, and the call currently blocked in Run
// returns nil once the cycle it is in finishes. Calling Stop(0) more than
// once is harmless.
func (s *Sched) Stop(pid PID) error {
	if pid == 0 {
		s.stopRequested.Store(true)
		return nil
	}
	t, ok := s.reg.get(pid)
	if !ok {
		return &TaskGone{PID: pid}
	}
	if t.state.Load() == TaskTerminated {
		return &TaskGone{PID: pid}
	}
	t.state.Store(TaskTerminated)
	t.stopOnce.Do(func() { close(t.ctrl.cancel) })
	return nil
}

// Run drives the dispatch loop until ctx is cancelled, every task has
// Terminated, or a task (or the caller, reentrantly) calls Stop(0). Only
// one Run may be active at a time; a concurrent call returns
// ErrReentrant immediately.
func (s *Sched) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrReentrant
	}
	defer func() {
		s.stopRequested.Store(false)
		s.running.Store(false)
	}()

	if s.cfg.heartbeat {
		if _, err := s.AddThread(heartbeatBody(s.cfg.heartbeatPin, s.cfg.heartbeatInterval)); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return ctx.Err()
		default:
		}

		if s.stopRequested.Load() {
			s.stopAll()
			return nil
		}

		if s.reg.allTerminated() {
			return nil
		}

		if err := s.cycle(); err != nil {
			s.logger.Log(LogError, "dispatch cycle error", "error", err)
		}
	}
}

// cycle runs exactly one dispatch pass.
func (s *Sched) cycle() error {
	tasks := s.reg.snapshot()
	now := s.clock.NowUS()

	// Step 1: snapshot-and-clear every Pinblock counter up front, so hits
	// that arrive mid-cycle are attributed to next cycle rather than lost
	// or double counted, regardless of which task ultimately wins.
	hits := make(map[PID]uint32, len(tasks))
	for _, t := range tasks {
		if t.state.Load() != TaskRunning {
			continue
		}
		if t.kind == kindPinblock {
			hits[t.pid] = t.descriptor.pinblock.snapshotAndClear()
		}
	}

	var (
		best      *Task
		bestTuple SchedulingTuple
		rrCand    []*Task
	)

	for _, t := range tasks {
		if t.state.Load() != TaskRunning {
			continue
		}
		switch t.kind {
		case kindRoundRobin, kindNewlyAdded:
			rrCand = append(rrCand, t)
			continue
		case kindTimeout:
			tup, ok := t.descriptor.timeout.tuple(now)
			if !ok {
				continue
			}
			if best == nil || bestTuple.less(tup) {
				best, bestTuple = t, tup
			}
		case kindPoller:
			tup, ok := t.descriptor.poller.tuple(now)
			if !ok {
				continue
			}
			if best == nil || bestTuple.less(tup) {
				best, bestTuple = t, tup
			}
		case kindPinblock:
			tup, ok := t.descriptor.pinblock.tuple(now, hits[t.pid])
			if !ok {
				continue
			}
			if best == nil || bestTuple.less(tup) {
				best, bestTuple = t, tup
			}
		}
	}

	var winner *Task
	var tuple SchedulingTuple
	if best != nil {
		winner, tuple = best, bestTuple
	} else if rr := pickRoundRobin(rrCand); rr != nil {
		rr.lastServedGen = s.rrGen.Add(1)
		winner = rr
	}

	if winner == nil {
		s.maybeIdleGC(now)
		return nil
	}

	select {
	case winner.ctrl.toTask <- tuple:
	case <-winner.ctrl.cancel:
		// The task was stopped between selection and dispatch; nothing to
		// deliver, and it will Goexit on its own the next time it tries
		// to receive. Treat this cycle as idle for GC purposes.
		s.maybeIdleGC(now)
		return nil
	}

	select {
	case wd := <-winner.ctrl.toSched:
		winner.descriptor = wd
		winner.kind = wd.kind
	case <-winner.done:
		winner.state.Store(TaskTerminated)
	}
	return nil
}

// maybeIdleGC runs the idle heap-compaction step when the configured
// interval has elapsed since the last pass and nothing was eligible to
// dispatch this cycle.
func (s *Sched) maybeIdleGC(now uint32) {
	if !s.cfg.gcEnabled {
		return
	}
	last := s.lastGCUS.Load()
	gateUS := uint32(s.cfg.gcInterval * 1_000_000)
	if ElapsedUS(last, now) < int64(gateUS) {
		return
	}
	s.gcHook.Collect()
	s.lastGCUS.Store(now)
	s.gcCount.Add(1)
}

func (s *Sched) stopAll() {
	for _, t := range s.reg.snapshot() {
		if t.state.Load() == TaskTerminated {
			continue
		}
		t.state.Store(TaskTerminated)
		t.stopOnce.Do(func() { close(t.ctrl.cancel) })
	}
}
