package syncom

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coopsched/coopsched"
	"github.com/coopsched/coopsched/pin"
)

// TestLinkRoundTrip is the echo scenario: an initiator sends a value over
// a wired-loopback pair and receives it back byte-identical after a full
// Sync → encode → physical exchange → decode round trip.
func TestLinkRoundTrip(t *testing.T) {
	sched := coopsched.New()

	aToB_clk := pin.NewMemPin()
	bToA_clk := pin.NewMemPin()
	aToB_data := pin.NewMemPin()
	bToA_data := pin.NewMemPin()

	linkA := New(sched, false, bToA_clk, aToB_clk, bToA_data, aToB_data)
	linkB := New(sched, true, aToB_clk, bToA_clk, aToB_data, bToA_data)

	sent := map[string]any{"x": int64(1), "y": []any{int64(2), int64(3)}}
	result := make(chan any, 1)

	_, err := sched.AddThread(func(c *coopsched.Control) {
		require.NoError(t, linkA.Start(c, nil, false))
		for !linkA.Running() {
			c.Yield(coopsched.RoundRobin())
		}
		require.NoError(t, linkA.Send(sent))
		for {
			wd, err := linkA.AwaitObj(c)
			require.NoError(t, err)
			c.Yield(wd)
			if v, ok := linkA.Get(); ok {
				result <- v
				return
			}
		}
	})
	require.NoError(t, err)

	_, err = sched.AddThread(func(c *coopsched.Control) {
		require.NoError(t, linkB.Start(c, nil, false))
		for {
			wd, err := linkB.AwaitObj(c)
			require.NoError(t, err)
			c.Yield(wd)
			if v, ok := linkB.Get(); ok {
				_ = linkB.Send(v)
			}
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = sched.Run(ctx)
		close(done)
	}()

	select {
	case v := <-result:
		require.Equal(t, sent, v)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
	cancel()
	<-done

	statsA := linkA.Stats()
	require.Equal(t, Synced, statsA.Phase)
	require.GreaterOrEqual(t, statsA.Resyncs, uint64(1))
	require.Greater(t, statsA.CharsSent, uint64(0))
	require.Greater(t, statsA.CharsReceived, uint64(0))
}

// TestWithEightBit verifies the option is sugar for an 8-bit character
// width rather than a separate code path.
func TestWithEightBit(t *testing.T) {
	cfg := defaultLinkConfig()
	WithEightBit()(cfg)
	require.Equal(t, 8, cfg.bits)
}

// TestLinkAwaitObjReportsTimeout is the liveness scenario: AwaitObj must
// resolve with PollValue 2, and Running must report false, the moment the
// phase flips to TimedOut, regardless of how the exchange loop got there.
// checkTimeout itself is exercised by TestLinkCheckTimeoutExpiry below.
func TestLinkAwaitObjReportsTimeout(t *testing.T) {
	sched := coopsched.New()
	ck1, ck2, d1, d2 := pin.NewMemPin(), pin.NewMemPin(), pin.NewMemPin(), pin.NewMemPin()
	link := New(sched, false, ck1, ck2, d1, d2)

	require.True(t, link.Running() == false)
	link.phase.Store(Synced)
	require.True(t, link.Running())

	link.phase.Store(TimedOut)
	require.False(t, link.Running())

	_, err := sched.AddThread(func(c *coopsched.Control) {
		wd, err := link.AwaitObj(c)
		require.NoError(t, err)
		tup := c.Yield(wd)
		require.Equal(t, 2, tup.PollValue)
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = sched.Run(ctx)
}

// TestLinkCheckTimeoutExpiry exercises checkTimeout directly: once a
// liveness timeout is armed, a gap since lastRxUS within it leaves the
// phase Synced, and a gap exceeding it flips the phase to TimedOut and
// reports true. Recovery through a fresh Start is not exercised here.
func TestLinkCheckTimeoutExpiry(t *testing.T) {
	sched := coopsched.New()
	ck1, ck2, d1, d2 := pin.NewMemPin(), pin.NewMemPin(), pin.NewMemPin(), pin.NewMemPin()
	link := New(sched, false, ck1, ck2, d1, d2)

	link.phase.Store(Synced)
	link.lastRxUS.store(1000)
	link.SetTimeout(500)

	require.False(t, link.checkTimeout(1400), "gap under the armed timeout must not expire")
	require.Equal(t, Synced, link.phase.Load())

	require.True(t, link.checkTimeout(1600), "gap past the armed timeout must expire")
	require.Equal(t, TimedOut, link.phase.Load())
}
