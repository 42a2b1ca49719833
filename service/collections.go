package service

import (
	"github.com/cockroachdb/errors"

	"lfcore/domain/queue"
	"lfcore/domain/stack"
	"lfcore/infra/memory"
)

// Collections is the shared stack and queue of opaque payloads served
// over the network. Both structures share one reclaimer.
type Collections struct {
	stack   *stack.Stack[[]byte]
	queue   *queue.Queue[[]byte]
	rec     memory.Reclaimer
	metrics *Metrics
}

// NewCollections builds the shared structures from o. m may be nil.
func NewCollections(o CoreOptions, m *Metrics) (*Collections, error) {
	rec, err := o.NewReclaimer()
	if err != nil {
		return nil, err
	}
	q, err := queue.New[[]byte](queue.Config{Reclaimer: rec, Capacity: o.Capacity, Backoff: o.Backoff})
	if err != nil {
		return nil, errors.Wrap(err, "service: build queue")
	}
	return &Collections{
		stack:   stack.New[[]byte](stack.Config{Reclaimer: rec, Capacity: o.Capacity, Backoff: o.Backoff}),
		queue:   q,
		rec:     rec,
		metrics: m,
	}, nil
}

func (c *Collections) count(structure, op string) {
	if c.metrics != nil {
		c.metrics.Ops.WithLabelValues(structure, op).Inc()
	}
}

func (c *Collections) empty(structure string) {
	if c.metrics != nil {
		c.metrics.EmptyPolls.WithLabelValues(structure).Inc()
	}
}

func (c *Collections) Push(b []byte) error {
	if err := c.stack.Push(b); err != nil {
		return err
	}
	c.count("stack", "push")
	return nil
}

func (c *Collections) Pop() ([]byte, bool) {
	b, ok := c.stack.Pop()
	if !ok {
		c.empty("stack")
		return nil, false
	}
	c.count("stack", "pop")
	return b, true
}

func (c *Collections) Enqueue(b []byte) error {
	if err := c.queue.Enqueue(b); err != nil {
		return err
	}
	c.count("queue", "enqueue")
	return nil
}

func (c *Collections) Dequeue() ([]byte, bool) {
	b, ok := c.queue.Dequeue()
	if !ok {
		c.empty("queue")
		return nil, false
	}
	c.count("queue", "dequeue")
	return b, true
}

// Stats reports the shared reclaimer's counters.
func (c *Collections) Stats() memory.Stats {
	s := c.rec.Stats()
	if c.metrics != nil {
		c.metrics.Pending.WithLabelValues("shared").Set(float64(s.Pending))
	}
	return s
}
