package coopsched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchedulingTupleLess(t *testing.T) {
	cases := []struct {
		name string
		a, b SchedulingTuple
		want bool
	}{
		{"pin hits dominate", SchedulingTuple{PinHits: 1}, SchedulingTuple{PinHits: 2}, true},
		{"poll value breaks pin tie", SchedulingTuple{PollValue: 1}, SchedulingTuple{PollValue: 2}, true},
		{"lateness breaks remaining tie", SchedulingTuple{LatenessUS: 1}, SchedulingTuple{LatenessUS: 2}, true},
		{"equal is not less", SchedulingTuple{1, 2, 3}, SchedulingTuple{1, 2, 3}, false},
		{"higher pin hits beats higher lateness", SchedulingTuple{LatenessUS: 1_000_000}, SchedulingTuple{PinHits: 1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.a.less(tc.b))
		})
	}
}

func TestSchedulingTupleIsZero(t *testing.T) {
	require.True(t, SchedulingTuple{}.isZero())
	require.False(t, SchedulingTuple{PinHits: 1}.isZero())
}
