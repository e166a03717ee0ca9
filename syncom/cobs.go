package syncom

// cobs127Encode and cobs127Decode implement a Consistent Overhead Byte
// Stuffing variant capped at a 126-byte run (rather than COBS's usual 254),
// so every output byte — overhead bytes included — stays in [1,127] and the
// result is 7-bit clean as well as zero-free. The packed7 pass that feeds
// this already restricts its input alphabet to [0,127]; this pass then
// removes the zeros.

const cobs127MaxRun = 126

func cobs127Encode(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/cobs127MaxRun+1)
	codeIdx := 0
	out = append(out, 0) // placeholder for first code byte
	code := byte(1)

	emitNewCode := func() {
		out[codeIdx] = code
		codeIdx = len(out)
		out = append(out, 0)
		code = 1
	}

	for _, b := range data {
		if b == 0 {
			emitNewCode()
			continue
		}
		out = append(out, b)
		code++
		if code == cobs127MaxRun+1 {
			emitNewCode()
		}
	}
	out[codeIdx] = code
	return out
}

func cobs127Decode(data []byte) ([]byte, bool) {
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		code := data[i]
		if code == 0 || int(code) > cobs127MaxRun+1 {
			return nil, false
		}
		i++
		n := int(code) - 1
		if i+n > len(data) {
			return nil, false
		}
		out = append(out, data[i:i+n]...)
		i += n
		if int(code) < cobs127MaxRun+1 && i < len(data) {
			// a non-maximal run that isn't the trailing block means a zero
			// byte stood here in the original stream.
			out = append(out, 0)
		}
	}
	return out, true
}
