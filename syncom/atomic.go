package syncom

import "sync/atomic"

// atomicU32, atomicI64, and atomicU64 are thin wrappers giving the
// lowercase store/load/swap/add spelling used throughout this package,
// matching the terse style of coopsched's own taskStateBox.
type atomicU32 struct{ v atomic.Uint32 }

func (a *atomicU32) load() uint32          { return a.v.Load() }
func (a *atomicU32) store(x uint32)        { a.v.Store(x) }
func (a *atomicU32) swap(x uint32) uint32  { return a.v.Swap(x) }

type atomicI64 struct{ v atomic.Int64 }

func (a *atomicI64) load() int64        { return a.v.Load() }
func (a *atomicI64) store(x int64)      { a.v.Store(x) }
func (a *atomicI64) swap(x int64) int64 { return a.v.Swap(x) }

type atomicU64 struct{ v atomic.Uint64 }

func (a *atomicU64) load() uint64   { return a.v.Load() }
func (a *atomicU64) add(x uint64)   { a.v.Add(x) }
