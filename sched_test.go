package coopsched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coopsched/coopsched/pin"
)

func newTestSched(clock *pin.FakeClock) *Sched {
	return New(WithClock(clock), WithGCEnable(false))
}

// TestDispatchPriority verifies the quantified dispatch invariant: for any
// pair of eligible tasks, the one with the higher SchedulingTuple runs.
func TestDispatchPriority(t *testing.T) {
	clock := pin.NewFakeClock(0)
	s := newTestSched(clock)

	var order []int

	_, err := s.AddThread(func(c *Control) {
		wd, err := NewTimeout(c, 0.0)
		require.NoError(t, err)
		c.Yield(wd)
		order = append(order, 1)
	})
	require.NoError(t, err)

	hit := false
	_, err = s.AddThread(func(c *Control) {
		wd, err := NewPoller(c, func() int {
			if hit {
				return 9
			}
			return 0
		})
		require.NoError(t, err)
		c.Yield(wd)
		order = append(order, 2)
	})
	require.NoError(t, err)

	hit = true
	require.NoError(t, s.cycle())
	require.Equal(t, []int{2}, order, "higher PollValue must win over a due Timeout with zero lateness")
}

// TestTimeoutReArmIdempotence verifies re-arm idempotence: yielding a
// second Timeout(d) right after the first one resumes, without intervening
// work, delays by d from the second yield, not the first.
func TestTimeoutReArmIdempotence(t *testing.T) {
	clock := pin.NewFakeClock(0)
	s := newTestSched(clock)

	secondArmed := false
	resumed := false
	_, err := s.AddThread(func(c *Control) {
		wd, err := NewTimeout(c, 1.0)
		require.NoError(t, err)
		c.Yield(wd)

		wd2, err := NewTimeout(c, 1.0)
		require.NoError(t, err)
		secondArmed = true
		c.Yield(wd2)
		resumed = true
	})
	require.NoError(t, err)

	clock.Advance(1_000_000)
	require.NoError(t, s.cycle())
	require.True(t, secondArmed, "first timeout must resume once due")
	require.False(t, resumed, "second timeout must not resolve in the same cycle it was armed")

	clock.Advance(900_000)
	require.NoError(t, s.cycle())
	require.False(t, resumed, "second timeout re-armed from the second yield's time, not the first, must not be due yet")

	clock.Advance(200_000)
	require.NoError(t, s.cycle())
	require.True(t, resumed)
}

// TestPinblockCounterAccuracy verifies delivered pin_hits equals ISR
// increments since the last wakeup. That the counter reads zero right
// after a snapshot is checked by TestPinblockStateSnapshotAndClear.
func TestPinblockCounterAccuracy(t *testing.T) {
	clock := pin.NewFakeClock(0)
	s := newTestSched(clock)
	p := pin.NewMemPin()

	var gotHits uint32
	_, err := s.AddThread(func(c *Control) {
		wd, err := NewPinblock(c, p, pin.RisingEdge)
		require.NoError(t, err)
		tup := c.Yield(wd)
		gotHits = tup.PinHits
	})
	require.NoError(t, err)

	p.Fire(pin.RisingEdge)
	p.Fire(pin.RisingEdge)
	p.Fire(pin.RisingEdge)

	require.NoError(t, s.cycle())
	require.Equal(t, uint32(3), gotHits)
}

// TestRoundRobinFairness verifies the round-robin fairness invariant:
// between two successive runs of R1 there is at least one run of R2.
func TestRoundRobinFairness(t *testing.T) {
	clock := pin.NewFakeClock(0)
	s := newTestSched(clock)

	var seq []int
	mk := func(id int) Body {
		return func(c *Control) {
			for i := 0; i < 6; i++ {
				seq = append(seq, id)
				c.Yield(RoundRobin())
			}
		}
	}
	_, err := s.AddThread(mk(1))
	require.NoError(t, err)
	_, err = s.AddThread(mk(2))
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		require.NoError(t, s.cycle())
	}

	for i := 2; i < len(seq); i++ {
		require.Contains(t, seq[i-2:i+1], 2, "run %d: R2 must appear between successive R1s", i)
	}
}

// TestAddOrderInitialization verifies code up to each task's first
// suspension point runs in add order.
func TestAddOrderInitialization(t *testing.T) {
	clock := pin.NewFakeClock(0)
	s := newTestSched(clock)

	var initOrder []int
	for i := 0; i < 5; i++ {
		i := i
		_, err := s.AddThread(func(c *Control) {
			initOrder = append(initOrder, i)
			c.Yield(RoundRobin())
		})
		require.NoError(t, err)
	}

	require.Equal(t, []int{0, 1, 2, 3, 4}, initOrder)
}

// TestStopClosesPromptly verifies Stop(pid) followed by a dispatch cycle
// reduces the running task count by exactly one.
func TestStopClosesPromptly(t *testing.T) {
	clock := pin.NewFakeClock(0)
	s := newTestSched(clock)

	var alive int
	mk := func() Body {
		return func(c *Control) {
			alive++
			for {
				c.Yield(RoundRobin())
			}
		}
	}
	pid, err := s.AddThread(mk())
	require.NoError(t, err)
	_, err = s.AddThread(mk())
	require.NoError(t, err)
	require.Equal(t, 2, alive)

	require.NoError(t, s.Stop(pid))
	require.NoError(t, s.cycle())

	running := 0
	for p := PID(1); p <= 2; p++ {
		st, err := s.Status(p)
		require.NoError(t, err)
		if st == TaskRunning {
			running++
		}
	}
	require.Equal(t, 1, running)
}

// TestBadThread verifies AddThread reports *BadThread for a body that
// never suspends.
func TestBadThread(t *testing.T) {
	clock := pin.NewFakeClock(0)
	s := newTestSched(clock)

	_, err := s.AddThread(func(c *Control) {})
	require.Error(t, err)
	var bt *BadThread
	require.ErrorAs(t, err, &bt)
}

// TestReentrantRun verifies a concurrent Run call is rejected.
func TestReentrantRun(t *testing.T) {
	clock := pin.NewFakeClock(0)
	s := newTestSched(clock)
	_, err := s.AddThread(func(c *Control) {
		for {
			c.Yield(RoundRobin())
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	require.ErrorIs(t, s.Run(context.Background()), ErrReentrant)
	<-done
}

// TestRunReturnsWhenAllTasksTerminate verifies Run's other exit
// condition: once every installed task has reached TaskTerminated, Run
// returns nil on its own, without needing ctx to be cancelled.
func TestRunReturnsWhenAllTasksTerminate(t *testing.T) {
	clock := pin.NewFakeClock(0)
	s := newTestSched(clock)

	_, err := s.AddThread(func(c *Control) {
		c.Yield(RoundRobin())
	})
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background()))
	require.Equal(t, TaskTerminated, s.Tasks()[0].State)
}

// TestSchedulerStopReturnsFromRun verifies Stop(0): a task calling it
// makes the blocked Run call return nil, and every other still-live
// task is stopped the same way ctx cancellation would stop it.
func TestSchedulerStopReturnsFromRun(t *testing.T) {
	clock := pin.NewFakeClock(0)
	s := newTestSched(clock)

	_, err := s.AddThread(func(c *Control) {
		for {
			c.Yield(RoundRobin())
		}
	})
	require.NoError(t, err)

	_, err = s.AddThread(func(c *Control) {
		c.Yield(RoundRobin())
		_ = s.Stop(0)
	})
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background()), "Stop(0) must return control to Run's caller without an error")

	for _, info := range s.Tasks() {
		require.Equal(t, TaskTerminated, info.State)
	}
}

// TestTasksSnapshot verifies Tasks reports every installed task in add
// order with its current state and wait kind.
func TestTasksSnapshot(t *testing.T) {
	clock := pin.NewFakeClock(0)
	s := newTestSched(clock)

	pid1, err := s.AddThread(func(c *Control) {
		c.Yield(RoundRobin())
	})
	require.NoError(t, err)

	pid2, err := s.AddThread(func(c *Control) {
		wd, err := NewTimeout(c, 1.0)
		require.NoError(t, err)
		c.Yield(wd)
	})
	require.NoError(t, err)

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	require.Equal(t, pid1, tasks[0].PID)
	require.Equal(t, TaskRunning, tasks[0].State)
	require.Equal(t, "round-robin", tasks[0].Wait)
	require.Equal(t, pid2, tasks[1].PID)
	require.Equal(t, "timeout", tasks[1].Wait)

	require.NoError(t, s.Stop(pid2))
	tasks = s.Tasks()
	require.Equal(t, TaskTerminated, tasks[1].State)
}

// TestGCStatsTracksCompactions verifies GCStats reflects maybeIdleGC's
// own bookkeeping: zero before any idle cycle, incrementing by exactly
// one per idle cycle once the interval has elapsed.
func TestGCStatsTracksCompactions(t *testing.T) {
	clock := pin.NewFakeClock(0)
	s := New(WithClock(clock), WithGCEnable(true), WithGCInterval(1))

	require.Equal(t, GCStats{Count: 0}, s.GCStats())

	require.NoError(t, s.cycle())
	require.Equal(t, uint64(0), s.GCStats().Count, "gate not yet elapsed")

	clock.Advance(2_000_000)
	require.NoError(t, s.cycle())
	stats := s.GCStats()
	require.Equal(t, uint64(1), stats.Count)
	require.Equal(t, clock.NowUS(), stats.LastRunUS)
}
