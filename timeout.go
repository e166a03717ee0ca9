package coopsched

// timeoutState is the per-descriptor bookkeeping for a Timeout wait: a
// single absolute deadline, expressed on the scheduler's microsecond Clock.
type timeoutState struct {
	deadline uint32
}

// NewTimeout builds a WaitDescriptor that becomes eligible once secs have
// elapsed on the scheduler's Clock, resuming the task with a tuple of
// (0, 0, lateness_us) — lateness_us being how far past the deadline
// dispatch actually happened. secs beyond MAXSECS is rejected with
// *TimeRange, since a single-shot deadline can't be represented without
// risking wraparound ambiguity on the 32-bit counter.
//
// The deadline is armed here, at construction: yielding the same
// descriptor again does not re-arm it, so a task that wants a fresh delay
// builds a new one with NewTimeout before each Yield.
func NewTimeout(c *Control, secs float64) (WaitDescriptor, error) {
	if secs < 0 || secs > MAXSECS {
		return WaitDescriptor{}, &TimeRange{RequestedSecs: secs}
	}
	now := c.Clock().NowUS()
	deltaUS := uint32(secs * 1_000_000)
	return WaitDescriptor{
		kind:    kindTimeout,
		timeout: &timeoutState{deadline: now + deltaUS},
	}, nil
}

// Sleep is a convenience wrapping NewTimeout+Yield for the common case of a
// task that just wants to pause for secs and doesn't care about the
// resulting tuple.
func Sleep(c *Control, secs float64) error {
	wd, err := NewTimeout(c, secs)
	if err != nil {
		return err
	}
	c.Yield(wd)
	return nil
}

// Wait composes repeated bounded NewTimeout/Yield sub-sleeps to cover an
// interval longer than MAXSECS, which NewTimeout alone rejects with
// *TimeRange. It returns *TimeRange only for secs < 0, never for a long
// duration. After Wait returns, the elapsed time since it was called is
// at least secs, the same contract a single Sleep gives for secs <=
// MAXSECS, just chunked into maxDelayUS-sized pieces underneath. A task
// stopped mid-wait never observes the return: the Yield inside the
// current chunk unwinds via runtime.Goexit like any other suspension
// point.
func Wait(c *Control, secs float64) error {
	if secs < 0 {
		return &TimeRange{RequestedSecs: secs}
	}
	remainingUS := uint64(secs * 1_000_000)
	for remainingUS > 0 {
		chunkUS := remainingUS
		if chunkUS > uint64(maxDelayUS) {
			chunkUS = uint64(maxDelayUS)
		}
		if err := Sleep(c, float64(chunkUS)/1_000_000); err != nil {
			return err
		}
		remainingUS -= chunkUS
	}
	return nil
}

// tuple reports whether the timeout is due at now and, if so, the
// SchedulingTuple the dispatcher should resume the task with.
func (s *timeoutState) tuple(now uint32) (SchedulingTuple, bool) {
	lateness := ElapsedUS(s.deadline, now)
	if lateness < 0 {
		return SchedulingTuple{}, false
	}
	return SchedulingTuple{LatenessUS: lateness}, true
}
