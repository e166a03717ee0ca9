package coopsched

// PollFunc is evaluated once per dispatch cycle for a Poller-waiting task.
// A non-zero return is a "hit": it becomes the PollValue component of the
// resume tuple, and larger hits outrank smaller ones within the same
// cycle. A zero return means "nothing yet".
type PollFunc func() int

// pollerState is the per-descriptor bookkeeping for a Poller wait.
// deadline is optional: nil means "poll forever", set means "poll, but if
// nothing hits by this deadline, resume anyway with the elapsed lateness".
type pollerState struct {
	fn       PollFunc
	deadline *uint32
}

// NewPoller builds a WaitDescriptor that evaluates fn once per cycle. If
// timeoutSecs is supplied (at most one value; more is an error), the wait
// also resumes once that many seconds have elapsed even if fn never
// returns non-zero, the same way NewTimeout would.
func NewPoller(c *Control, fn PollFunc, timeoutSecs ...float64) (WaitDescriptor, error) {
	if fn == nil {
		return WaitDescriptor{}, &BadYield{PID: c.PID(), Value: fn}
	}
	st := &pollerState{fn: fn}
	switch len(timeoutSecs) {
	case 0:
	case 1:
		secs := timeoutSecs[0]
		if secs < 0 || secs > MAXSECS {
			return WaitDescriptor{}, &TimeRange{RequestedSecs: secs}
		}
		now := c.Clock().NowUS()
		deadline := now + uint32(secs*1_000_000)
		st.deadline = &deadline
	default:
		return WaitDescriptor{}, &BadYield{PID: c.PID(), Value: timeoutSecs}
	}
	return WaitDescriptor{kind: kindPoller, poller: st}, nil
}

// tuple reports whether the poller is eligible at now and, if so, the
// resume tuple: a non-zero fn() hit takes precedence over an expired
// deadline — Poller is primarily a value-driven wait with a timeout as a
// fallback, not a replacement.
func (s *pollerState) tuple(now uint32) (SchedulingTuple, bool) {
	if v := s.fn(); v != 0 {
		return SchedulingTuple{PollValue: v}, true
	}
	if s.deadline != nil {
		if lateness := ElapsedUS(*s.deadline, now); lateness >= 0 {
			return SchedulingTuple{LatenessUS: lateness}, true
		}
	}
	return SchedulingTuple{}, false
}
