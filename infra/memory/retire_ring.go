package memory

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// Retired is one node waiting for reclamation.
type Retired struct {
	Ptr  unsafe.Pointer
	Pool ReclaimablePool
	// Epoch is the global epoch at retirement (EpochDomain only).
	Epoch uint64
}

// RetireRing is the FIFO retired set of one guard. Only the guard holder
// enqueues and dequeues; head and tail are atomic so Len can be read by
// Stats from any goroutine. The ring doubles when full instead of
// dropping, since a retired node must never be lost.
type RetireRing struct {
	head  uint64 // next write
	_pad1 cpu.CacheLinePad
	tail  uint64 // next read
	_pad2 cpu.CacheLinePad
	buf   []Retired
	mask  uint64
}

// NewRetireRing allocates a ring with power-of-two size.
func NewRetireRing(size uint64) *RetireRing {
	if size == 0 || size&(size-1) != 0 {
		panic("memory: RetireRing size must be a power of two")
	}
	return &RetireRing{buf: make([]Retired, size), mask: size - 1}
}

// Enqueue appends v, growing the ring if it is full.
func (r *RetireRing) Enqueue(v Retired) {
	h := r.head
	t := r.tail
	if h-t == uint64(len(r.buf)) {
		r.grow()
	}
	r.buf[h&r.mask] = v
	atomic.StoreUint64(&r.head, h+1)
}

// Dequeue removes the oldest entry.
func (r *RetireRing) Dequeue() (Retired, bool) {
	t := r.tail
	if t == r.head {
		return Retired{}, false
	}
	v := r.buf[t&r.mask]
	r.buf[t&r.mask] = Retired{}
	atomic.StoreUint64(&r.tail, t+1)
	return v, true
}

// Peek returns the oldest entry without removing it.
func (r *RetireRing) Peek() (Retired, bool) {
	t := r.tail
	if t == r.head {
		return Retired{}, false
	}
	return r.buf[t&r.mask], true
}

// grow doubles the buffer, keeping entries in FIFO order. head and tail
// keep their absolute values; only the masking changes.
func (r *RetireRing) grow() {
	n := uint64(len(r.buf)) * 2
	buf := make([]Retired, n)
	for i := r.tail; i != r.head; i++ {
		buf[i&(n-1)] = r.buf[i&r.mask]
	}
	r.buf = buf
	r.mask = n - 1
}

func (r *RetireRing) Len() int {
	return int(atomic.LoadUint64(&r.head) - atomic.LoadUint64(&r.tail))
}

// Cap is only meaningful to the holder; it changes on growth.
func (r *RetireRing) Cap() int { return len(r.buf) }

func (r *RetireRing) IsEmpty() bool { return r.Len() == 0 }

func (r *RetireRing) String() string {
	return fmt.Sprintf("RetireRing{len=%d, cap=%d, head=%d, tail=%d}",
		r.Len(), r.Cap(), atomic.LoadUint64(&r.head), atomic.LoadUint64(&r.tail))
}
