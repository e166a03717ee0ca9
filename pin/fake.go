package pin

import (
	"runtime"
	"sync"
)

// FakeClock is a manually-advanced Clock for deterministic tests: nothing
// reads wall-clock time, so a dispatch cycle's behaviour at a given
// microsecond value is fully reproducible.
type FakeClock struct {
	mu  sync.Mutex
	now uint32
}

// NewFakeClock returns a FakeClock starting at the given microsecond value.
func NewFakeClock(startUS uint32) *FakeClock {
	return &FakeClock{now: startUS}
}

func (c *FakeClock) NowUS() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by deltaUS, wrapping at 2^32 the same
// way a real hardware counter would.
func (c *FakeClock) Advance(deltaUS uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += deltaUS
}

// Set pins the clock to an exact value, for exercising wraparound edges.
func (c *FakeClock) Set(us uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = us
}

// MemPin is an in-memory PinIO: Write flips a level that Read observes
// back, and Fire synchronously invokes every ISR attached for a matching
// edge, standing in for an interrupt without any real hardware or syscall.
// It is its own loopback: two MemPins can be wired together by a test to
// model a physical line shared between two sides (see syncom's tests).
type MemPin struct {
	mu       sync.Mutex
	level    bool
	handlers []memHandler
}

type memHandler struct {
	edge Edge
	cb   func()
}

func NewMemPin() *MemPin { return &MemPin{} }

func (p *MemPin) Read() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *MemPin) Write(level bool) {
	p.mu.Lock()
	prev := p.level
	p.level = level
	handlers := append([]memHandler(nil), p.handlers...)
	p.mu.Unlock()

	if prev == level {
		return
	}
	edge := FallingEdge
	if level {
		edge = RisingEdge
	}
	for _, h := range handlers {
		if h.edge == edge || h.edge == BothEdges {
			h.cb()
		}
	}
}

func (p *MemPin) AttachISR(e Edge, cb func()) (detach func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := len(p.handlers)
	p.handlers = append(p.handlers, memHandler{edge: e, cb: cb})
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if idx < len(p.handlers) {
			p.handlers[idx].cb = func() {}
		}
	}
}

// Fire invokes attached handlers for e without changing the pin's level,
// for tests that want to simulate an interrupt burst directly.
func (p *MemPin) Fire(e Edge) {
	p.mu.Lock()
	handlers := append([]memHandler(nil), p.handlers...)
	p.mu.Unlock()
	for _, h := range handlers {
		if h.edge == e || h.edge == BothEdges {
			h.cb()
		}
	}
}

// RuntimeGCHook is the default GCHook for hosted builds: it invokes the Go
// runtime's own collector. Firmware targets supply a MicroPython-style
// explicit collector instead; this exists so examples and tests have a
// real, working GCHook without inventing one per call site.
type RuntimeGCHook struct{}

func (RuntimeGCHook) Collect() { runtime.GC() }
