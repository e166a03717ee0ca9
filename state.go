package coopsched

import "sync/atomic"

// TaskState is the lifecycle state of a Task: a Status(pid) result of
// Terminated=0, Running=1, or Paused=2.
//
// State machine:
//
//	TaskRunning <-> TaskPaused   [Pause()/Resume()]
//	TaskRunning  -> TaskTerminated   [task body returns, or Stop(pid)]
//	TaskPaused   -> TaskTerminated   [Stop(pid)]
//	TaskTerminated is absorbing: no further transition is permitted.
//
// NOTE: values are part of the documented Status() encoding; do not
// renumber.
type TaskState uint32

const (
	TaskTerminated TaskState = 0
	TaskRunning    TaskState = 1
	TaskPaused     TaskState = 2
)

func (s TaskState) String() string {
	switch s {
	case TaskTerminated:
		return "Terminated"
	case TaskRunning:
		return "Running"
	case TaskPaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// taskStateBox is a small atomic state cell. Unlike a multi-core event loop
// fielding state reads from many contending goroutines, a task's state is
// read and written almost exclusively from the single dispatcher goroutine
// (Pause/Resume/Stop called from another task, or externally before Run,
// are the only cross-goroutine writers), so no cache-line padding is
// warranted here.
type taskStateBox struct {
	v atomic.Uint32
}

func newTaskStateBox(initial TaskState) *taskStateBox {
	b := &taskStateBox{}
	b.v.Store(uint32(initial))
	return b
}

func (b *taskStateBox) Load() TaskState { return TaskState(b.v.Load()) }

func (b *taskStateBox) Store(s TaskState) { b.v.Store(uint32(s)) }

func (b *taskStateBox) TryTransition(from, to TaskState) bool {
	return b.v.CompareAndSwap(uint32(from), uint32(to))
}
