package syncom

import "github.com/coopsched/coopsched/pin"

// physLink is the bit-banged physical layer: 7 (or 8) data bits per
// character, clocked on every edge, initiator-driven with the passive side
// mirroring. Because this reference implementation's PinIO (pin.MemPin)
// delivers AttachISR callbacks synchronously within the Write call that
// triggers them, a passive side's entire per-bit reaction — latch the
// incoming bit, drive its own outgoing bit, mirror the clock edge —
// completes inside the initiator's own call stack before its Write
// returns. That is what lets a single goroutine (the initiator's) drive
// the whole exchange without the two sides' task goroutines ever racing:
// the handler stays bounded, non-blocking, and read/write-only, the same
// contract an interrupt counter keeps, just generalized to a full-duplex
// bit handler. A true hardware PinIO (linuxpin) still meets this contract,
// it just incurs real propagation delay the in-memory one doesn't model.
type physLink struct {
	passive bool
	bits    int

	ckin, ckout, din, dout pin.PinIO
	ckoutLevel             bool
	detach                 func()

	// passive-side reactive state. Touched only from onEdge, which only
	// ever runs synchronously inside the initiator's transactChar call
	// stack (there is exactly one initiator per link), so it needs no
	// lock of its own.
	bitIdx int
	rxAcc  byte
	txByte byte

	nextTxByte func() byte
	onRxByte   func(byte)
}

func newPhysLink(passive bool, ckin, ckout, din, dout pin.PinIO, bits int, nextTxByte func() byte, onRxByte func(byte)) *physLink {
	return &physLink{
		passive:    passive,
		bits:       bits,
		ckin:       ckin,
		ckout:      ckout,
		din:        din,
		dout:       dout,
		nextTxByte: nextTxByte,
		onRxByte:   onRxByte,
	}
}

// start arms the passive side's ISR. The initiator side needs no setup
// beyond what transactChar does per call.
func (p *physLink) start() {
	if p.passive {
		p.txByte = p.nextTxByte()
		p.detach = p.ckin.AttachISR(pin.BothEdges, p.onEdge)
	}
}

func (p *physLink) stop() {
	if p.detach != nil {
		p.detach()
	}
}

func (p *physLink) onEdge() {
	bit := bitOf(p.din.Read())
	p.rxAcc = p.rxAcc<<1 | bit

	outBit := (p.txByte >> uint(p.bits-1-p.bitIdx)) & 1
	p.dout.Write(outBit != 0)

	p.bitIdx++
	if p.bitIdx == p.bits {
		full := p.rxAcc
		p.rxAcc = 0
		p.bitIdx = 0
		p.txByte = p.nextTxByte()
		p.onRxByte(full)
	}

	p.ckoutLevel = !p.ckoutLevel
	p.ckout.Write(p.ckoutLevel)
}

// transactChar drives one full character exchange: for each bit, write
// dout, toggle ckout (which, over a wired MemPin pair, synchronously runs
// the passive's onEdge before this call returns), then read din for the
// passive's reply bit. Initiator-only.
func (p *physLink) transactChar(out byte) byte {
	var acc byte
	for i := 0; i < p.bits; i++ {
		bit := (out >> uint(p.bits-1-i)) & 1
		p.dout.Write(bit != 0)

		p.ckoutLevel = !p.ckoutLevel
		p.ckout.Write(p.ckoutLevel)

		acc = acc<<1 | bitOf(p.din.Read())
	}
	return acc
}

func bitOf(level bool) byte {
	if level {
		return 1
	}
	return 0
}
