package syncom

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/coopsched/coopsched/pin"
)

// GobSerializer is the default pin.Serializer: encoding/gob for the value
// codec (no pack dependency in reach offers anything gob doesn't already
// do well for a dynamically-typed payload), wrapped in a 7-bit packing
// pass and cobs127 byte-stuffing pass so the wire bytes stay 7-bit clean
// and zero-free, as any serializer feeding SynCom must.
type GobSerializer struct{}

// gob only encodes an interface value whose concrete type is registered;
// register the generic map and slice shapes dynamically-typed payloads use.
func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

func (GobSerializer) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, fmt.Errorf("syncom: gob encode: %w", err)
	}
	return cobs127Encode(pack7(buf.Bytes())), nil
}

func (GobSerializer) Decode(data []byte, out any) error {
	packed, ok := cobs127Decode(data)
	if !ok {
		return fmt.Errorf("syncom: malformed cobs frame")
	}
	raw, ok := unpack7(packed)
	if !ok {
		return fmt.Errorf("syncom: malformed 7-bit packing")
	}
	var v any
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&v); err != nil {
		return fmt.Errorf("syncom: gob decode: %w", err)
	}
	return assign(out, v)
}

// assign copies v's concrete value into *out via a type switch on common
// shapes, falling back to requiring an exact *any destination. gob decodes
// into an `any` here because SynCom's wire values are dynamically typed
// (the whole point of a generic transport); callers that know their shape
// should type-assert the returned value themselves via Link.Get rather
// than pre-declaring a destination type.
func assign(out any, v any) error {
	switch p := out.(type) {
	case *any:
		*p = v
		return nil
	default:
		return fmt.Errorf("syncom: Decode requires a *any destination, got %T", out)
	}
}

// pack7 regroups data's bits into 7-bit chunks, each stored right-aligned
// in its own byte (so every output byte is in [0,127], before cobs127Encode
// removes any remaining zeros). The first output byte records how many
// zero bits were padded onto the final chunk; unpack7 only checks that it
// is in range, since the original length already follows from the chunk
// count (the padding is always under 8 bits).
func pack7(data []byte) []byte {
	out := make([]byte, 1, len(data)+len(data)/7+2)
	var bitBuf uint32
	var bitCount uint
	for _, b := range data {
		bitBuf = bitBuf<<8 | uint32(b)
		bitCount += 8
		for bitCount >= 7 {
			bitCount -= 7
			out = append(out, byte(bitBuf>>bitCount)&0x7F)
		}
	}
	var padding byte
	if bitCount > 0 {
		padding = byte(7 - bitCount)
		out = append(out, byte(bitBuf<<padding)&0x7F)
	}
	out[0] = padding
	return out
}

func unpack7(data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}
	padding := data[0]
	if padding > 6 {
		return nil, false
	}
	body := data[1:]
	out := make([]byte, 0, len(body)*7/8)
	var bitBuf uint32
	var bitCount uint
	for _, b := range body {
		bitBuf = bitBuf<<7 | uint32(b&0x7F)
		bitCount += 7
		for bitCount >= 8 {
			bitCount -= 8
			out = append(out, byte(bitBuf>>bitCount))
		}
	}
	return out, true
}

var _ pin.Serializer = GobSerializer{}
