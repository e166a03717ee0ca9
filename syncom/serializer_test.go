package syncom

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPack7RoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0xFF},
		{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07},
		bytes.Repeat([]byte{0xAA}, 37),
	}
	for _, in := range cases {
		packed := pack7(in)
		for _, b := range packed {
			require.LessOrEqual(t, b, byte(0x7F), "pack7 output must be 7-bit clean")
		}
		out, ok := unpack7(packed)
		require.True(t, ok)
		require.Equal(t, in, out)
	}
}

func TestUnpack7RejectsBadPadding(t *testing.T) {
	_, ok := unpack7([]byte{7})
	require.False(t, ok)
	_, ok = unpack7(nil)
	require.False(t, ok)
}

func TestGobSerializerRoundTrip(t *testing.T) {
	s := GobSerializer{}

	values := []any{
		int64(42),
		"hello",
		map[string]any{"a": int64(1), "b": []any{int64(2), int64(3)}},
	}
	for _, v := range values {
		wire, err := s.Encode(v)
		require.NoError(t, err)
		for _, b := range wire {
			require.NotZero(t, b, "wire bytes must be zero-free")
			require.LessOrEqual(t, b, byte(127), "wire bytes must be 7-bit clean")
		}

		var got any
		require.NoError(t, s.Decode(wire, &got))
		require.Equal(t, v, got)
	}
}

func TestGobSerializerDecodeRequiresAnyPointer(t *testing.T) {
	s := GobSerializer{}
	wire, err := s.Encode(int64(7))
	require.NoError(t, err)

	var dst int64
	err = s.Decode(wire, &dst)
	require.Error(t, err)
}
