package coopsched

import "container/heap"

// roundRobinHeap orders the round-robin tier by "least recently served,
// pid as tiebreak": every round-robin task gets a turn before any of them
// gets a second one. It is rebuilt fresh from the current round-robin-kind
// tasks each cycle the dispatcher needs it — the task population on an
// embedded target is small enough that an O(n) Init per cycle is simpler
// and cheap enough to prefer over incrementally maintaining heap
// membership across kind changes.
type roundRobinHeap []*Task

func (h roundRobinHeap) Len() int { return len(h) }

func (h roundRobinHeap) Less(i, j int) bool {
	if h[i].lastServedGen != h[j].lastServedGen {
		return h[i].lastServedGen < h[j].lastServedGen
	}
	return h[i].pid < h[j].pid
}

func (h roundRobinHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *roundRobinHeap) Push(x any) { *h = append(*h, x.(*Task)) }

func (h *roundRobinHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// pickRoundRobin returns the least-recently-served task among candidates,
// or nil if candidates is empty.
func pickRoundRobin(candidates []*Task) *Task {
	if len(candidates) == 0 {
		return nil
	}
	h := roundRobinHeap(append([]*Task(nil), candidates...))
	heap.Init(&h)
	return heap.Pop(&h).(*Task)
}
