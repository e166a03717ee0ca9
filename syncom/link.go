// Package syncom implements SynCom: a synchronous, bit-banged, full-duplex
// transport layered on a single coopsched background task per link. It
// follows the same task-per-component shape and options pattern as the
// core scheduler, and wires in github.com/joeycumines/go-catrate to
// rate-limit reset-pin pulses during liveness recovery.
package syncom

import (
	"fmt"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/coopsched/coopsched"
	"github.com/coopsched/coopsched/pin"
)

// SyncByte is the reserved frame marker: 0x00 during the Unsynced
// handshake, reused as the per-message terminator once Synced.
const SyncByte byte = 0x00

// DefaultBits is the default character width: 7 data bits per character,
// keeping the physical frame clean for links that can't tolerate the 8th
// bit (parity-sensitive UARTs, some opto-isolators).
const DefaultBits = 7

// DefaultLatency is the default character-batch size the background task
// exchanges before yielding RoundRobin.
const DefaultLatency = 5

const (
	frameKindValue  byte = 1
	frameKindString byte = 2
)

// LinkOption configures a Link at construction time, mirroring coopsched's
// own functional-options convention.
type LinkOption func(*linkConfig)

type linkConfig struct {
	bits       int
	latency    int
	serializer pin.Serializer
	logger     coopsched.Logger
	verbose    bool
}

func defaultLinkConfig() *linkConfig {
	return &linkConfig{
		bits:       DefaultBits,
		latency:    DefaultLatency,
		serializer: GobSerializer{},
		logger:     noopLoggerInstance,
		verbose:    true,
	}
}

// WithBits overrides DefaultBits (7), e.g. to 8 for a link that doesn't
// need to stay parity-channel safe.
func WithBits(bits int) LinkOption {
	return func(c *linkConfig) { c.bits = bits }
}

// WithEightBit is WithBits(8): a deployment-time switch to the wider
// payload mode for a link whose physical channel can carry the 8th bit
// safely. It is never negotiated at runtime — both ends of a wired pair
// must be constructed with the same choice.
func WithEightBit() LinkOption {
	return WithBits(8)
}

// WithLatency overrides DefaultLatency, the number of characters the
// background task exchanges between RoundRobin yields.
func WithLatency(n int) LinkOption {
	return func(c *linkConfig) { c.latency = n }
}

// WithSerializer overrides the default GobSerializer.
func WithSerializer(s pin.Serializer) LinkOption {
	return func(c *linkConfig) { c.serializer = s }
}

// WithLogger installs a coopsched.Logger for link diagnostics (sync
// acquired/lost, decode errors, reset pulses).
func WithLogger(l coopsched.Logger) LinkOption {
	return func(c *linkConfig) { c.logger = l }
}

type noopLogger struct{}

func (noopLogger) Log(coopsched.LogLevel, string, ...any) {}

var noopLoggerInstance coopsched.Logger = noopLogger{}

// Link is one end of a SynCom connection. Construct with New, wire its
// four pins to the peer's, then Start it from
// within a task (Start itself calls sched.AddThread).
type Link struct {
	sched   *coopsched.Sched
	passive bool
	cfg     *linkConfig

	phys *physLink
	asm  frameAssembler

	phase     phaseBox
	lastRxUS  atomicU32
	timeoutUS atomicI64

	rxQ    anyQueue
	rxStrQ valueQueue
	txQ    valueQueue

	txMu  sync.Mutex
	txCur []byte
	txIdx int

	resetLimiter *catrate.Limiter

	pid coopsched.PID

	charsSent atomicU64
	charsRecv atomicU64
	resyncs   atomicU64
}

// Stats is a point-in-time read of a Link's diagnostic counters.
type Stats struct {
	CharsSent     uint64
	CharsReceived uint64
	Resyncs       uint64
	Phase         Phase
}

// Stats reports characters sent/received since New, how many times the
// link has re-synchronised (including the first Sync), and the current
// phase.
func (l *Link) Stats() Stats {
	return Stats{
		CharsSent:     l.charsSent.load(),
		CharsReceived: l.charsRecv.load(),
		Resyncs:       l.resyncs.load(),
		Phase:         l.phase.Load(),
	}
}

// New builds a Link. passive selects which side mirrors rather than
// drives the clock: the initiator drives the first transition, the
// passive mirrors it; exactly one of a wired pair should pass false.
func New(sched *coopsched.Sched, passive bool, ckin, ckout, din, dout pin.PinIO, opts ...LinkOption) *Link {
	cfg := defaultLinkConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	l := &Link{
		sched:   sched,
		passive: passive,
		cfg:     cfg,
		resetLimiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second:     1,
			10 * time.Second: 3,
		}),
	}
	l.phys = newPhysLink(passive, ckin, ckout, din, dout, cfg.bits, l.nextTxByte, l.onRxByte)
	return l
}

// Start spawns the link's background task from within c's task, optionally
// pulsing resetPin to resetLevel for 100ms first to reboot the peer. It
// may be called again after a timeout (TimedOut) to re-synchronise: the
// previous background task is stopped and a fresh one spawned.
func (l *Link) Start(c *coopsched.Control, resetPin pin.PinIO, resetLevel bool) error {
	if l.pid != 0 {
		_ = l.sched.Stop(l.pid)
	}
	l.phase.Store(Unsynced)
	l.asm = frameAssembler{}

	if resetPin != nil {
		if _, ok := l.resetLimiter.Allow("reset"); !ok {
			return fmt.Errorf("syncom: reset-pin rate limit exceeded")
		}
	}

	pid, err := l.sched.AddThread(l.backgroundBody(resetPin, resetLevel))
	if err != nil {
		return err
	}
	l.pid = pid
	return nil
}

func (l *Link) backgroundBody(resetPin pin.PinIO, resetLevel bool) coopsched.Body {
	return func(c *coopsched.Control) {
		if resetPin != nil {
			resetPin.Write(resetLevel)
			_ = coopsched.Sleep(c, 0.1)
			resetPin.Write(!resetLevel)
		}

		l.lastRxUS.store(c.Clock().NowUS())
		l.phys.start()
		defer l.phys.stop()

		sent := 0
		for {
			if l.passive {
				c.Yield(coopsched.RoundRobin())
			} else {
				out := l.nextTxByte()
				in := l.phys.transactChar(out)
				l.onRxByte(in)
				sent++
				if sent >= l.cfg.latency {
					sent = 0
					c.Yield(coopsched.RoundRobin())
				}
			}

			if l.checkTimeout(c.Clock().NowUS()) {
				l.cfg.logger.Log(coopsched.LogWarn, "syncom link lost")
				return
			}
		}
	}
}

func (l *Link) checkTimeout(now uint32) bool {
	to := l.timeoutUS.load()
	if to <= 0 || l.phase.Load() != Synced {
		return false
	}
	if coopsched.ElapsedUS(l.lastRxUS.load(), now) > to {
		l.phase.Store(TimedOut)
		return true
	}
	return false
}

// nextTxByte supplies the physical layer's next outgoing character: bytes
// of the frame currently streaming out, then a single SyncByte terminator,
// then idle SyncByte filler until another frame is queued.
func (l *Link) nextTxByte() byte {
	l.charsSent.add(1)

	l.txMu.Lock()
	defer l.txMu.Unlock()

	if l.phase.Load() == Unsynced {
		return SyncByte
	}

	if l.txIdx < len(l.txCur) {
		b := l.txCur[l.txIdx]
		l.txIdx++
		return b
	}
	if l.txCur != nil {
		l.txCur, l.txIdx = nil, 0
		return SyncByte
	}
	if frame, ok := l.txQ.pop(); ok && len(frame) > 0 {
		l.txCur, l.txIdx = frame, 1
		return frame[0]
	}
	return SyncByte
}

// onRxByte processes one fully-exchanged character from the physical
// layer, whichever role produced it (the initiator's own transactChar
// loop, or the passive's reactive ISR).
func (l *Link) onRxByte(b byte) {
	l.charsRecv.add(1)

	if l.phase.Load() == Unsynced {
		if b == SyncByte {
			l.phase.Store(Synced)
			l.resyncs.add(1)
		}
		return
	}

	l.lastRxUS.store(l.sched.Clock().NowUS())

	frame, complete := l.asm.push(b)
	if !complete {
		return
	}
	if len(frame) == 0 {
		return
	}

	kind, payload := frame[0], frame[1:]
	switch kind {
	case frameKindValue:
		var v any
		if err := l.cfg.serializer.Decode(payload, &v); err != nil {
			l.cfg.logger.Log(coopsched.LogWarn, "syncom decode error", "error", err)
			return
		}
		l.rxQ.push(v)
	case frameKindString:
		l.rxStrQ.push(payload)
	default:
		l.cfg.logger.Log(coopsched.LogWarn, "syncom unknown frame kind")
	}
}

// Send encodes v and enqueues it for transmission. If the serializer
// rejects v it returns an error whose message starts "syncom: EncodeError:"
// and which wraps the serializer's error; there is no exported EncodeError
// type.
func (l *Link) Send(v any) error {
	payload, err := l.cfg.serializer.Encode(v)
	if err != nil {
		return fmt.Errorf("syncom: EncodeError: %w", err)
	}
	frame := append([]byte{frameKindValue}, payload...)
	l.txQ.push(frame)
	return nil
}

// Get returns the oldest fully-received decoded value, or ok==false if
// none is available yet. A frame that fails to decode is logged and
// dropped on receipt, so Get never reports a decode error.
func (l *Link) Get() (any, bool) {
	return l.rxQ.pop()
}

// SendStr enqueues a raw 7-bit-clean string, bypassing the serializer.
func (l *Link) SendStr(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 || s[i]&0x80 != 0 {
			return fmt.Errorf("syncom: EncodeError: string is not 7-bit clean")
		}
	}
	frame := append([]byte{frameKindString}, s...)
	l.txQ.push(frame)
	return nil
}

// GetStr returns the oldest fully-received raw string, or ok==false if
// none is available yet.
func (l *Link) GetStr() (string, bool) {
	b, ok := l.rxStrQ.pop()
	if !ok {
		return "", false
	}
	return string(b), true
}

// Any returns the number of values Get will successfully return before it
// next returns none.
func (l *Link) Any() int {
	return l.rxQ.len()
}

// SetTimeout sets the liveness timeout in microseconds (0 disables it) and
// returns the previous value.
func (l *Link) SetTimeout(us int64) int64 {
	return l.timeoutUS.swap(us)
}

// Running reports whether the link is Synced (not TimedOut, not still
// Unsynced).
func (l *Link) Running() bool {
	return l.phase.Load() == Synced
}

// AwaitObj returns a Poller descriptor a consumer can Yield on instead of
// busy-polling Any()/Running(): it resolves with PollValue 1 when the
// receive queue is non-empty, 2 when the link has gone TimedOut.
func (l *Link) AwaitObj(c *coopsched.Control) (coopsched.WaitDescriptor, error) {
	return coopsched.NewPoller(c, func() int {
		if l.phase.Load() == TimedOut {
			return 2
		}
		if l.rxQ.len() > 0 || l.rxStrQ.len() > 0 {
			return 1
		}
		return 0
	})
}
