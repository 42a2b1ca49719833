// Package sequence issues the unique tags stamped on workload values, so
// a run can prove every value came out exactly once.
package sequence

import "sync/atomic"

// Tag identifies one produced value: [producer:16][seq:48].
type Tag uint64

const seqBits = 48

// MaxPerProducer is the largest sequence a producer can issue.
const MaxPerProducer = 1<<seqBits - 1

func NewTag(producer uint16, seq uint64) Tag {
	return Tag(uint64(producer)<<seqBits | seq&MaxPerProducer)
}

func (t Tag) Producer() uint16 { return uint16(t >> seqBits) }
func (t Tag) Seq() uint64      { return uint64(t) & MaxPerProducer }

// Sequencer issues strictly increasing tags for one producer. Next may be
// called from several goroutines; tags stay unique.
type Sequencer struct {
	producer uint16
	next     atomic.Uint64
}

// New creates a sequencer whose first tag has sequence start+1.
func New(producer uint16, start uint64) *Sequencer {
	s := &Sequencer{producer: producer}
	s.next.Store(start)
	return s
}

// Next returns the next tag.
func (s *Sequencer) Next() Tag {
	return NewTag(s.producer, s.next.Add(1))
}

// Current returns the sequence of the last issued tag.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Global hands out run ids.
type Global struct {
	next atomic.Uint64
}

func NewGlobal(start uint64) *Global {
	g := &Global{}
	g.next.Store(start)
	return g
}

func (g *Global) Next() uint64 { return g.next.Add(1) }

// Reset is used after loading the last persisted id.
func (g *Global) Reset(v uint64) { g.next.Store(v) }
