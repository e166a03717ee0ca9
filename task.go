package coopsched

import "sync"

// PID uniquely identifies a task for the lifetime of a Sched process:
// unique for as long as the scheduler that allocated it is running.
type PID uint64

// Task is the scheduler's exclusive-ownership record for one microthread.
// External code only ever holds a PID; the fields
// here are unexported and touched only by the dispatcher goroutine (plus,
// narrowly, by the task's own goroutine while it is the one currently
// resumed — see coroutine.go).
type Task struct {
	pid   PID
	state *taskStateBox

	descriptor WaitDescriptor
	kind       waitKind

	// lastServedGen is the round-robin generation counter used to break
	// rotation ties; see roundrobin.go.
	lastServedGen uint64

	ctrl     *control
	done     chan struct{}
	stopOnce sync.Once
}

// PID returns the task's stable identity.
func (t *Task) PID() PID { return t.pid }

// State returns the task's current lifecycle state.
func (t *Task) State() TaskState { return t.state.Load() }

// registry is the scheduler's pid -> *Task table: a monotonic counter
// under a mutex, map keyed by the allocated ID. Entries are never
// scavenged: a Task's lifecycle is always explicit (it terminates by
// returning or via Stop), so there is nothing to garbage-collect.
type registry struct {
	mu     sync.Mutex
	nextID PID
	tasks  map[PID]*Task
	order  []*Task // insertion order, for add-order initialization
}

func newRegistry() *registry {
	return &registry{
		nextID: 1,
		tasks:  make(map[PID]*Task),
	}
}

func (r *registry) alloc() PID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	return id
}

func (r *registry) insert(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.pid] = t
	r.order = append(r.order, t)
}

func (r *registry) get(pid PID) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[pid]
	return t, ok
}

// snapshot returns the tasks in add order. The slice is a copy; callers
// may range over it even while the dispatcher mutates the registry.
func (r *registry) snapshot() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Task, len(r.order))
	copy(out, r.order)
	return out
}

// allTerminated reports whether every installed task (if any) has
// reached TaskTerminated, the condition Run's "all tasks Terminated"
// exit checks each cycle.
func (r *registry) allTerminated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.order {
		if t.state.Load() != TaskTerminated {
			return false
		}
	}
	return true
}
