package coopsched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPinblockStateSnapshotAndClear(t *testing.T) {
	s := &pinblockState{}
	s.counter.Add(1)
	s.counter.Add(1)
	s.counter.Add(1)

	require.Equal(t, uint32(3), s.snapshotAndClear())
	require.Equal(t, uint32(0), s.snapshotAndClear(), "a second snapshot without intervening fires must read zero")
}

func TestPinblockStateTupleHitsOutrankDeadline(t *testing.T) {
	deadline := uint32(100)
	s := &pinblockState{deadline: &deadline}

	tup, ok := s.tuple(200, 4)
	require.True(t, ok)
	require.Equal(t, uint32(4), tup.PinHits, "nonzero hits must be reported even past an expired deadline")
}

func TestPinblockStateTupleDeadlineFallback(t *testing.T) {
	deadline := uint32(100)
	s := &pinblockState{deadline: &deadline}

	_, ok := s.tuple(50, 0)
	require.False(t, ok)

	tup, ok := s.tuple(150, 0)
	require.True(t, ok)
	require.Equal(t, int64(50), tup.LatenessUS)
}
