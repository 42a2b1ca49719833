package queue

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/cpu"

	"lfcore/infra/backoff"
	"lfcore/infra/cell"
	"lfcore/infra/memory"
)

// ErrExhausted is returned when a bounded queue has no free node.
var ErrExhausted = memory.ErrExhausted

const (
	slotHead = 0
	slotNext = 1
	slotTail = 0
)

// Config configures a Queue. The zero value is an unbounded queue on the
// process-wide hazard domain.
type Config struct {
	Reclaimer memory.Reclaimer
	// Capacity bounds the number of elements that can be held, counting
	// dequeued nodes not yet reclaimed. Zero means unbounded.
	Capacity int
	Backoff  backoff.Config
}

type node[T any] struct {
	value T
	next  cell.Pointer[node[T]]
}

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Queue is a lock-free FIFO. It must not be copied after first use.
type Queue[T any] struct {
	noCopy noCopy

	head cell.Pointer[node[T]]
	_    cpu.CacheLinePad
	tail cell.Pointer[node[T]]
	_    cpu.CacheLinePad

	alloc   memory.Allocator[node[T]]
	rec     memory.Reclaimer
	backoff backoff.Config
	recycle *recycler[T]
}

type recycler[T any] struct {
	alloc memory.Allocator[node[T]]
}

func (r *recycler[T]) Reclaim(p unsafe.Pointer) {
	n := (*node[T])(p)
	var zero T
	n.value = zero
	n.next.Store(nil)
	r.alloc.Put(n)
}

// New returns an empty queue. The dummy node is allocated here, so New
// only fails if the allocator cannot supply it.
func New[T any](cfg Config) (*Queue[T], error) {
	var alloc memory.Allocator[node[T]]
	if cfg.Capacity > 0 {
		alloc = memory.NewArena[node[T]](cfg.Capacity + 1)
	} else {
		alloc = memory.NewPool(func() *node[T] { return &node[T]{} })
	}
	return newQueue(cfg, alloc)
}

func newQueue[T any](cfg Config, alloc memory.Allocator[node[T]]) (*Queue[T], error) {
	rec := cfg.Reclaimer
	if rec == nil {
		rec = memory.Default()
	}
	dummy, err := alloc.Get()
	if err != nil {
		return nil, errors.Wrap(err, "queue: allocate dummy")
	}
	q := &Queue[T]{
		alloc:   alloc,
		rec:     rec,
		backoff: cfg.Backoff,
		recycle: &recycler[T]{alloc: alloc},
	}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q, nil
}

// Enqueue appends v. It fails only when a bounded queue is out of nodes,
// in which case the queue is unchanged.
func (q *Queue[T]) Enqueue(v T) error {
	n, err := q.node()
	if err != nil {
		return err
	}
	n.value = v

	g := q.rec.Acquire()
	defer g.Release()

	b := backoff.New(q.backoff)
	for {
		t := memory.Protect(g, slotTail, &q.tail)
		next := t.next.Load()
		if t != q.tail.Load() {
			continue
		}
		if next != nil {
			// tail is lagging: finish the other enqueue's swing
			q.tail.CompareAndSwap(t, next)
			continue
		}
		if t.next.CompareAndSwap(nil, n) {
			// best effort; a lagging tail is repaired by whoever sees it
			q.tail.CompareAndSwap(t, n)
			return nil
		}
		b.Wait()
	}
}

func (q *Queue[T]) node() (*node[T], error) {
	n, err := q.alloc.Get()
	if errors.Is(err, memory.ErrExhausted) {
		q.rec.Flush()
		n, err = q.alloc.Get()
	}
	if err != nil {
		return nil, errors.Wrap(err, "queue: enqueue")
	}
	return n, nil
}

// Dequeue removes the oldest value. ok is false if the queue was empty at
// the linearization point; Dequeue never blocks.
func (q *Queue[T]) Dequeue() (v T, ok bool) {
	g := q.rec.Acquire()
	defer g.Release()

	b := backoff.New(q.backoff)
	for {
		h := memory.Protect(g, slotHead, &q.head)
		t := q.tail.Load()
		next := h.next.Load()
		g.Publish(slotNext, unsafe.Pointer(next))
		if h != q.head.Load() {
			continue
		}
		if next == nil {
			return v, false
		}
		if h == t {
			q.tail.CompareAndSwap(t, next)
			continue
		}
		// copy out before the CAS: once head moves, h may be reclaimed
		// and next becomes the new dummy
		v = next.value
		if q.head.CompareAndSwap(h, next) {
			g.Clear(slotHead)
			g.Clear(slotNext)
			g.Retire(unsafe.Pointer(h), q.recycle)
			return v, true
		}
		b.Wait()
	}
}

// IsEmpty reports whether the queue was empty at some instant during the
// call. The answer may be stale by the time it is used.
func (q *Queue[T]) IsEmpty() bool {
	g := q.rec.Acquire()
	defer g.Release()
	h := memory.Protect(g, slotHead, &q.head)
	return h.next.Load() == nil
}
