package coopsched

// waitKind tags the five shapes a WaitDescriptor can take.
type waitKind uint8

const (
	kindNewlyAdded waitKind = iota
	kindRoundRobin
	kindTimeout
	kindPoller
	kindPinblock
)

// String names a wait kind for diagnostics (Sched.Tasks).
func (k waitKind) String() string {
	switch k {
	case kindNewlyAdded:
		return "newly-added"
	case kindRoundRobin:
		return "round-robin"
	case kindTimeout:
		return "timeout"
	case kindPoller:
		return "poller"
	case kindPinblock:
		return "pinblock"
	default:
		return "unknown"
	}
}

// WaitDescriptor is the tagged union a task surrenders at a suspension
// point. Construct one with RoundRobin(), NewTimeout(ctrl, secs),
// NewPoller(ctrl, fn, timeoutSecs...), or NewPinblock(ctrl, pin, edge,
// timeoutSecs...) — never by hand, since the unexported fields carry per-kind
// bookkeeping the dispatcher depends on (armed deadlines, the ISR counter
// handle, etc).
type WaitDescriptor struct {
	kind waitKind

	// Timeout fields.
	timeout *timeoutState

	// Poller fields.
	poller *pollerState

	// Pinblock fields.
	pinblock *pinblockState
}

// SchedulingTuple is the resume payload delivered to a task at the
// suspension point that won dispatch. Its three fields are also, in the
// same order, the lexicographic priority key dispatch selects the maximum
// of.
type SchedulingTuple struct {
	PinHits    uint32
	PollValue  int
	LatenessUS int64
}

// isZero reports whether every element of the tuple is zero. Dispatch does
// not use it for eligibility: each wait kind's own tuple method decides
// that, so a Timeout that is due with zero lateness is eligible even though
// its tuple is all zero.
func (t SchedulingTuple) isZero() bool {
	return t.PinHits == 0 && t.PollValue == 0 && t.LatenessUS == 0
}

// less is the lexicographic comparison dispatch selection uses:
// (pin_hits, poll_value, lateness_us), each compared in turn.
func (t SchedulingTuple) less(o SchedulingTuple) bool {
	if t.PinHits != o.PinHits {
		return t.PinHits < o.PinHits
	}
	if t.PollValue != o.PollValue {
		return t.PollValue < o.PollValue
	}
	return t.LatenessUS < o.LatenessUS
}

// RoundRobin returns the wait descriptor for "run me again after every
// other pending round-robin task has had a turn". A yield of the zero
// WaitDescriptor is dispatched the same way.
func RoundRobin() WaitDescriptor {
	return WaitDescriptor{kind: kindRoundRobin}
}

func newlyAddedDescriptor() WaitDescriptor {
	return WaitDescriptor{kind: kindNewlyAdded}
}
