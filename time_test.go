package coopsched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestElapsedUSWraparound(t *testing.T) {
	// now has wrapped past start: start near the top of the range, now just
	// past zero. The signed modular subtraction should still report a
	// small positive elapsed time rather than a huge one.
	start := uint32(0xFFFFFFF0)
	now := uint32(10)
	require.Equal(t, int64(26), ElapsedUS(start, now))
}

func TestElapsedUSNegative(t *testing.T) {
	require.Less(t, ElapsedUS(100, 50), int64(0))
}

func TestMonotonicGuardClampsBackwardsJump(t *testing.T) {
	inner := &scriptedClock{values: []uint32{100, 200, 150}}
	g := newMonotonicGuard(inner)

	require.Equal(t, uint32(100), g.NowUS())
	require.Equal(t, uint32(200), g.NowUS())
	require.Equal(t, uint32(200), g.NowUS(), "an apparent backwards jump must clamp to the last observed value")
}

type scriptedClock struct {
	values []uint32
	idx    int
}

func (c *scriptedClock) NowUS() uint32 {
	v := c.values[c.idx]
	if c.idx < len(c.values)-1 {
		c.idx++
	}
	return v
}
