package cell

import "sync/atomic"

// Word is an atomic uint64.
type Word struct {
	v atomic.Uint64
}

func (w *Word) Load() uint64 { return w.v.Load() }

func (w *Word) Store(v uint64) { w.v.Store(v) }

func (w *Word) CompareAndSwap(old, new uint64) bool {
	return w.v.CompareAndSwap(old, new)
}

// Add is used for counters that never need a conditional update.
func (w *Word) Add(delta uint64) uint64 { return w.v.Add(delta) }
