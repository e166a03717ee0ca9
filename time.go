package coopsched

import (
	"sync/atomic"
	"time"

	"github.com/coopsched/coopsched/pin"
)

// MAXSECS is the documented cap on any single-shot sleep, derived from the
// signed half-range of a 32-bit microsecond counter: 2^31 µs ≈ 2147.48s;
// the scheduler takes a quarter of that for headroom, giving 536s
// (2^31 / 4 µs ≈ 536.87s, rounded down).
const MAXSECS = 536

// maxDelayUS is MAXSECS expressed in microseconds, the unit every deadline
// computation in this package actually works in.
const maxDelayUS uint32 = MAXSECS * 1_000_000

// Clock is the monotonic microsecond time source the scheduler and wait
// primitives read through exclusively; no other component reads hardware
// time directly. A production firmware target backs this
// with a free-running hardware timer register that wraps at 2^32 µs
// (~71.6 minutes); defaultClock below backs it with the Go runtime's
// monotonic clock for hosted use (tests, examples, linuxpin).
type Clock = pin.Clock

// ElapsedUS performs the wrap-aware modular subtraction "now - start"
// needs, taking the wraparound of a uint32 counter into account. The
// result is a signed number of microseconds; a negative result means
// start is still in the future relative to now.
func ElapsedUS(start, now uint32) int64 {
	return int64(int32(now - start))
}

// defaultClock adapts the Go runtime's monotonic clock (time.Since against
// a fixed epoch) to the Clock interface, truncated to a uint32 so it wraps
// the same way a hardware register would, exercising the same modular
// arithmetic a real MCU target relies on instead of hiding behind
// unbounded 64-bit ticks.
type defaultClock struct {
	epoch time.Time
}

func newDefaultClock() *defaultClock {
	return &defaultClock{epoch: time.Now()}
}

func (c *defaultClock) NowUS() uint32 {
	return uint32(uint64(time.Since(c.epoch).Microseconds()))
}

// monotonicGuard wraps a Clock to guarantee the time source never produces
// an apparent backwards jump within one dispatch cycle, when the
// underlying Clock is an externally supplied, possibly non-monotonic
// implementation (e.g. a fake clock driven by a test). It remembers the
// highest value observed and clamps below it, modulo wraparound tolerance.
type monotonicGuard struct {
	inner Clock
	last  atomic.Uint32
	init  atomic.Bool
}

func newMonotonicGuard(inner Clock) *monotonicGuard {
	return &monotonicGuard{inner: inner}
}

func (g *monotonicGuard) NowUS() uint32 {
	now := g.inner.NowUS()
	if !g.init.Load() {
		g.last.Store(now)
		g.init.Store(true)
		return now
	}
	last := g.last.Load()
	// Forward progress (including legitimate wraparound, which looks like
	// a large positive ElapsedUS from last to now) is accepted as-is.
	if ElapsedUS(last, now) >= 0 {
		g.last.Store(now)
		return now
	}
	// An apparent backwards jump: hold at the last observed value rather
	// than exposing it to scheduling math.
	return last
}
