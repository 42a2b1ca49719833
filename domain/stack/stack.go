package stack

import (
	"unsafe"

	"github.com/cockroachdb/errors"

	"lfcore/infra/backoff"
	"lfcore/infra/cell"
	"lfcore/infra/memory"
)

// ErrExhausted is returned by Push when a bounded stack has no free node.
var ErrExhausted = memory.ErrExhausted

// Config configures a Stack. The zero value is an unbounded stack on the
// process-wide hazard domain.
type Config struct {
	Reclaimer memory.Reclaimer
	// Capacity bounds the number of nodes (pushed plus awaiting
	// reclamation). Zero means unbounded.
	Capacity int
	Backoff  backoff.Config
}

type node[T any] struct {
	value T
	next  cell.Pointer[node[T]]
}

// noCopy makes go vet flag copies of a Stack.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Stack is a lock-free LIFO. It must not be copied after first use.
type Stack[T any] struct {
	noCopy noCopy
	head   cell.Pointer[node[T]]

	alloc   memory.Allocator[node[T]]
	rec     memory.Reclaimer
	backoff backoff.Config
	recycle *recycler[T]
}

// recycler resets a reclaimed node and hands it back to the allocator.
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

// New returns an empty stack.
func New[T any](cfg Config) *Stack[T] {
	var alloc memory.Allocator[node[T]]
	if cfg.Capacity > 0 {
		alloc = memory.NewArena[node[T]](cfg.Capacity)
	} else {
		alloc = memory.NewPool(func() *node[T] { return &node[T]{} })
	}
	return newStack(cfg, alloc)
}

func newStack[T any](cfg Config, alloc memory.Allocator[node[T]]) *Stack[T] {
	rec := cfg.Reclaimer
	if rec == nil {
		rec = memory.Default()
	}
	return &Stack[T]{
		alloc:   alloc,
		rec:     rec,
		backoff: cfg.Backoff,
		recycle: &recycler[T]{alloc: alloc},
	}
}

// Push adds v on top. It fails only when a bounded stack is out of nodes,
// in which case the stack is unchanged.
func (s *Stack[T]) Push(v T) error {
	n, err := s.node()
	if err != nil {
		return err
	}
	n.value = v

	b := backoff.New(s.backoff)
	for {
		h := s.head.Load()
		n.next.Store(h)
		if s.head.CompareAndSwap(h, n) {
			return nil
		}
		b.Wait()
	}
}

// node allocates, flushing the reclaimer once if the allocator is dry:
// retired nodes may be sitting in idle retired sets.
func (s *Stack[T]) node() (*node[T], error) {
	n, err := s.alloc.Get()
	if errors.Is(err, memory.ErrExhausted) {
		s.rec.Flush()
		n, err = s.alloc.Get()
	}
	if err != nil {
		return nil, errors.Wrap(err, "stack: push")
	}
	return n, nil
}

// Pop removes the top value. ok is false if the stack was empty at the
// linearization point; Pop never blocks.
func (s *Stack[T]) Pop() (v T, ok bool) {
	g := s.rec.Acquire()
	defer g.Release()

	b := backoff.New(s.backoff)
	for {
		h := memory.Protect(g, 0, &s.head)
		if h == nil {
			return v, false
		}
		next := h.next.Load()
		if s.head.CompareAndSwap(h, next) {
			v = h.value
			g.Clear(0)
			g.Retire(unsafe.Pointer(h), s.recycle)
			return v, true
		}
		b.Wait()
	}
}

// IsEmpty reports whether the stack was empty at some instant during the
// call. The answer may be stale by the time it is used.
func (s *Stack[T]) IsEmpty() bool {
	return s.head.Load() == nil
}
