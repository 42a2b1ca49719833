package service

import (
	"github.com/cockroachdb/errors"

	"lfcore/domain/queue"
	"lfcore/domain/stack"
	"lfcore/infra/backoff"
	"lfcore/infra/memory"
	"lfcore/infra/sequence"
)

// Ordering is the removal order a structure promises.
type Ordering int

const (
	LIFO Ordering = iota
	FIFO
)

func (o Ordering) String() string {
	if o == FIFO {
		return "FIFO"
	}
	return "LIFO"
}

// Collection is what a workload drives: a stack or a queue of tags.
type Collection interface {
	Put(sequence.Tag) error
	Take() (sequence.Tag, bool)
	IsEmpty() bool
	Ordering() Ordering
}

// CoreOptions builds structures and their reclaimer.
type CoreOptions struct {
	Reclaimer       string
	RetireThreshold int
	Capacity        int
	Backoff         backoff.Config
}

// NewReclaimer builds the reclaimer named by o.
func (o CoreOptions) NewReclaimer() (memory.Reclaimer, error) {
	return memory.New(o.Reclaimer, memory.Config{RetireThreshold: o.RetireThreshold})
}

type stackCollection struct {
	s *stack.Stack[sequence.Tag]
}

func (c stackCollection) Put(t sequence.Tag) error   { return c.s.Push(t) }
func (c stackCollection) Take() (sequence.Tag, bool) { return c.s.Pop() }
func (c stackCollection) IsEmpty() bool              { return c.s.IsEmpty() }
func (c stackCollection) Ordering() Ordering         { return LIFO }

type queueCollection struct {
	q *queue.Queue[sequence.Tag]
}

func (c queueCollection) Put(t sequence.Tag) error   { return c.q.Enqueue(t) }
func (c queueCollection) Take() (sequence.Tag, bool) { return c.q.Dequeue() }
func (c queueCollection) IsEmpty() bool              { return c.q.IsEmpty() }
func (c queueCollection) Ordering() Ordering         { return FIFO }

// NewCollection builds a "stack" or "queue" of tags on rec.
func NewCollection(structure string, o CoreOptions, rec memory.Reclaimer) (Collection, error) {
	switch structure {
	case "stack":
		return stackCollection{s: stack.New[sequence.Tag](stack.Config{
			Reclaimer: rec,
			Capacity:  o.Capacity,
			Backoff:   o.Backoff,
		})}, nil
	case "queue":
		q, err := queue.New[sequence.Tag](queue.Config{
			Reclaimer: rec,
			Capacity:  o.Capacity,
			Backoff:   o.Backoff,
		})
		if err != nil {
			return nil, err
		}
		return queueCollection{q: q}, nil
	default:
		return nil, errors.Newf("service: unknown structure %q", structure)
	}
}
