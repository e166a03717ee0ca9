package syncom

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCobs127RoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0},
		{1, 2, 3},
		{0, 0, 0},
		{1, 0, 2, 0, 3},
		bytes.Repeat([]byte{5}, 300),
		bytes.Repeat([]byte{0}, 10),
	}
	for _, in := range cases {
		enc := cobs127Encode(in)
		for _, b := range enc {
			require.NotZero(t, b, "cobs127 output must be zero-free")
			require.LessOrEqual(t, b, byte(127), "cobs127 output must stay 7-bit clean")
		}
		dec, ok := cobs127Decode(enc)
		require.True(t, ok)
		require.Equal(t, in, dec)
	}
}

func TestCobs127DecodeRejectsMalformed(t *testing.T) {
	_, ok := cobs127Decode([]byte{0})
	require.False(t, ok, "a zero code byte is never valid")

	_, ok = cobs127Decode([]byte{200})
	require.False(t, ok, "a code byte above cobs127MaxRun+1 is never valid")

	_, ok = cobs127Decode([]byte{5, 1, 2})
	require.False(t, ok, "a run claiming more bytes than remain must fail")
}
