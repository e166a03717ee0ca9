package coopsched

import (
	"sync/atomic"

	"github.com/coopsched/coopsched/pin"
)

// pinblockState is the per-descriptor bookkeeping for a Pinblock wait: an
// ISR-incremented counter that the dispatcher atomically snapshots and
// zeroes once per cycle, plus an optional deadline mirroring Poller's
// timeout fallback.
type pinblockState struct {
	counter  atomic.Uint32
	detach   func()
	deadline *uint32
}

// NewPinblock attaches an ISR to p for edge e and builds a WaitDescriptor
// that becomes eligible once at least one interrupt has fired since the
// last cycle, resuming the task with (pin_hits, 0, 0) — pin_hits being how
// many edges were coalesced into this one dispatch, the dispatcher's
// highest-priority tier. If timeoutSecs is supplied the wait also times
// out like NewTimeout when no interrupt arrives in time.
//
// The installed ISR only increments the counter. NewPinblock takes no pull
// setting and no user callback; the pin's pull configuration is left as
// the PinIO has it.
func NewPinblock(c *Control, p pin.PinIO, e pin.Edge, timeoutSecs ...float64) (WaitDescriptor, error) {
	st := &pinblockState{}
	st.detach = p.AttachISR(e, func() { st.counter.Add(1) })

	switch len(timeoutSecs) {
	case 0:
	case 1:
		secs := timeoutSecs[0]
		if secs < 0 || secs > MAXSECS {
			st.detach()
			return WaitDescriptor{}, &TimeRange{RequestedSecs: secs}
		}
		now := c.Clock().NowUS()
		deadline := now + uint32(secs*1_000_000)
		st.deadline = &deadline
	default:
		st.detach()
		return WaitDescriptor{}, &BadYield{PID: c.PID(), Value: timeoutSecs}
	}

	return WaitDescriptor{kind: kindPinblock, pinblock: st}, nil
}

// snapshotAndClear atomically reads and zeroes the ISR counter, the
// read-clear-once-per-cycle discipline dispatch requires so that
// interrupts arriving mid-cycle aren't double-counted or lost.
func (s *pinblockState) snapshotAndClear() uint32 {
	return s.counter.Swap(0)
}

// tuple reports whether the pinblock is eligible at now given hits already
// snapshotted for this cycle, and if not, whether its timeout fallback has
// expired.
func (s *pinblockState) tuple(now uint32, hits uint32) (SchedulingTuple, bool) {
	if hits > 0 {
		return SchedulingTuple{PinHits: hits}, true
	}
	if s.deadline != nil {
		if lateness := ElapsedUS(*s.deadline, now); lateness >= 0 {
			return SchedulingTuple{LatenessUS: lateness}, true
		}
	}
	return SchedulingTuple{}, false
}
