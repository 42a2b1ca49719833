package memory

import "sync"

// Allocator hands out nodes. Put is called by a reclaimer once the node is
// unreachable; structures never call it directly.
type Allocator[T any] interface {
	Get() (*T, error)
	Put(*T)
}

// Pool is an unbounded allocator over sync.Pool. Get never fails.
type Pool[T any] struct {
	p *sync.Pool
}

func NewPool[T any](ctor func() *T) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
	}
}

func (p *Pool[T]) Get() (*T, error) {
	return p.p.Get().(*T), nil
}

func (p *Pool[T]) Put(v *T) {
	p.p.Put(v)
}
