package memory

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"lfcore/infra/cell"
)

// Arena is a fixed-capacity allocator over one slab. Free slots form a
// lock-free stack linked by index; its head is a version-tagged word, so a
// slot that is taken, freed and pushed back between another goroutine's
// load and CAS cannot be mistaken for the head it loaded.
type Arena[T any] struct {
	slab  []T
	links []atomic.Uint32
	free  cell.Tagged
	size  uintptr
	inUse atomic.Int64
}

// NewArena allocates capacity slots up front.
func NewArena[T any](capacity int) *Arena[T] {
	if capacity <= 0 || uint64(capacity) >= math.MaxUint32 {
		panic(fmt.Sprintf("memory: invalid arena capacity %d", capacity))
	}
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 {
		panic("memory: arena of zero-sized type")
	}
	a := &Arena[T]{
		slab:  make([]T, capacity),
		links: make([]atomic.Uint32, capacity),
		size:  size,
	}
	for i := 0; i < capacity-1; i++ {
		a.links[i].Store(uint32(i + 1))
	}
	a.links[capacity-1].Store(cell.NilIndex)
	a.free.Store(cell.Pack(0, 0))
	return a
}

// Get pops a free slot, or fails with ErrExhausted.
func (a *Arena[T]) Get() (*T, error) {
	for {
		old := a.free.Load()
		i := old.Index()
		if i == cell.NilIndex {
			return nil, ErrExhausted
		}
		next := a.links[i].Load()
		if a.free.CompareAndSwap(old, next) {
			a.inUse.Add(1)
			return &a.slab[i], nil
		}
	}
}

// Put pushes v's slot back. It panics on a pointer the arena did not hand
// out.
func (a *Arena[T]) Put(v *T) {
	i := a.index(v)
	for {
		old := a.free.Load()
		a.links[i].Store(old.Index())
		if a.free.CompareAndSwap(old, i) {
			a.inUse.Add(-1)
			return
		}
	}
}

func (a *Arena[T]) index(v *T) uint32 {
	base := uintptr(unsafe.Pointer(unsafe.SliceData(a.slab)))
	p := uintptr(unsafe.Pointer(v))
	if p < base || p >= base+uintptr(len(a.slab))*a.size || (p-base)%a.size != 0 {
		panic("memory: pointer does not belong to arena")
	}
	return uint32((p - base) / a.size)
}

func (a *Arena[T]) Cap() int { return len(a.slab) }

// InUse is the number of slots handed out and not yet put back.
func (a *Arena[T]) InUse() int { return int(a.inUse.Load()) }
