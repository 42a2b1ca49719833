package cell

import (
	"sync/atomic"
	"unsafe"
)

// Pointer is an atomic *T. The zero value holds nil.
type Pointer[T any] struct {
	p atomic.Pointer[T]
}

func (c *Pointer[T]) Load() *T { return c.p.Load() }

func (c *Pointer[T]) Store(v *T) { c.p.Store(v) }

// CompareAndSwap writes new iff the cell still holds old.
func (c *Pointer[T]) CompareAndSwap(old, new *T) bool {
	return c.p.CompareAndSwap(old, new)
}

// Raw is an atomic unsafe.Pointer. Hazard slots use it because they hold
// addresses of nodes of any element type.
type Raw struct {
	p unsafe.Pointer
}

func (c *Raw) Load() unsafe.Pointer { return atomic.LoadPointer(&c.p) }

func (c *Raw) Store(v unsafe.Pointer) { atomic.StorePointer(&c.p, v) }

func (c *Raw) CompareAndSwap(old, new unsafe.Pointer) bool {
	return atomic.CompareAndSwapPointer(&c.p, old, new)
}
