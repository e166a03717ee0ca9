// Package pin collects the interfaces coopsched's core depends on but
// never implements itself: a GPIO line, a monotonic microsecond clock, a
// heap-compaction hook, and an opaque byte-stream codec. These are all
// external collaborators; this package exists so linuxpin, syncom, and the
// examples have a shared vocabulary to implement and consume them against,
// without the core importing any GPIO or transport concern directly.
package pin

// Edge selects which transition of a GPIO line an ISR should fire on.
type Edge int

const (
	RisingEdge Edge = iota
	FallingEdge
	BothEdges
)

// PinIO is a single GPIO line: level read/write plus edge-triggered
// interrupt registration (what coopsched's Pinblock wait consumes).
// Implementations must make AttachISR callbacks safe to invoke from any
// goroutine (an interrupt context on bare metal, an epoll reader goroutine
// in linuxpin) since coopsched.Pinblock only ever touches the counter it
// increments, never the PinIO directly, from the dispatcher.
type PinIO interface {
	// Read returns the current logic level.
	Read() bool

	// Write sets the logic level. Implementations for input-only lines may
	// no-op or panic; coopsched never calls Write on a pin it only reads.
	Write(level bool)

	// AttachISR registers cb to run on every edge transition matching e.
	// The returned detach func removes the registration; it is safe to
	// call more than once.
	AttachISR(e Edge, cb func()) (detach func())
}

// Clock is the monotonic microsecond time source coopsched's scheduler and
// wait primitives read through exclusively. It wraps silently at 2^32 µs,
// the same way a free-running hardware timer register would.
type Clock interface {
	NowUS() uint32
}

// GCHook is the heap-compaction hook coopsched's idle GC task invokes. On
// firmware targets this drives an explicit gc.collect()-style call; on a
// hosted Go build
// the default implementation in this package just calls runtime.GC() at a
// throttled rate.
type GCHook interface {
	// Collect performs one compaction pass. Implementations should be fast
	// to call and safe to call often; the caller is responsible for rate
	// limiting (coopsched's gc task gates calls on a configured interval).
	Collect()
}

// Serializer turns application values into opaque wire frames and back for
// syncom. Encoded output must be 7-bit clean and zero-free: syncom's
// framing uses byte 0x00 as the sync marker, so an encoding that can
// itself produce a zero byte would be ambiguous on the wire.
type Serializer interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}
