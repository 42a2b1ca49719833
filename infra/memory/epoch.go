package memory

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

const inactive = ^uint64(0)

// EpochDomain is an epoch-based reclaimer. A participant announces the
// global epoch on Acquire and goes inactive on Release. A node retired at
// epoch e is reclaimed once every active participant announced an epoch
// newer than e. Publish and Clear are no-ops: the whole critical section
// is protected. A participant that never releases stalls all reclamation.
type EpochDomain struct {
	global  atomic.Uint64
	_       cpu.CacheLinePad
	members atomic.Pointer[participant]
	count   atomic.Int64

	threshold int

	retired   atomic.Uint64
	reclaimed atomic.Uint64
	scans     atomic.Uint64
}

type participant struct {
	epoch atomic.Uint64
	_     cpu.CacheLinePad

	active atomic.Bool
	next   *participant
	domain *EpochDomain

	retired *RetireRing // FIFO by retire epoch, owned by the holder
}

// NewEpochDomain returns a domain at epoch zero.
func NewEpochDomain(cfg Config) *EpochDomain {
	return &EpochDomain{threshold: cfg.threshold()}
}

// Epoch returns the current global epoch.
func (d *EpochDomain) Epoch() uint64 { return d.global.Load() }

// Acquire enters a critical section at the current epoch.
func (d *EpochDomain) Acquire() Guard {
	p := d.acquire()
	p.epoch.Store(d.global.Load())
	return p
}

func (d *EpochDomain) acquire() *participant {
	for p := d.members.Load(); p != nil; p = p.next {
		if !p.active.Load() && p.active.CompareAndSwap(false, true) {
			return p
		}
	}

	p := &participant{
		domain:  d,
		retired: NewRetireRing(uint64(ceilPow2(d.threshold))),
	}
	p.epoch.Store(inactive)
	p.active.Store(true)
	for {
		head := d.members.Load()
		p.next = head
		if d.members.CompareAndSwap(head, p) {
			d.count.Add(1)
			return p
		}
	}
}

// Flush advances the epoch and reclaims what is safe from every idle
// participant.
func (d *EpochDomain) Flush() {
	for p := d.members.Load(); p != nil; p = p.next {
		if p.active.Load() || !p.active.CompareAndSwap(false, true) {
			continue
		}
		if !p.retired.IsEmpty() {
			p.Scan()
		}
		p.active.Store(false)
	}
}

func (d *EpochDomain) Stats() Stats {
	s := Stats{
		Records:   int(d.count.Load()),
		Retired:   d.retired.Load(),
		Reclaimed: d.reclaimed.Load(),
		Scans:     d.scans.Load(),
	}
	for p := d.members.Load(); p != nil; p = p.next {
		s.Pending += p.retired.Len()
	}
	return s
}

// minEpoch is the oldest epoch any active participant announced, or
// inactive if none is active.
func (d *EpochDomain) minEpoch() uint64 {
	min := inactive
	for p := d.members.Load(); p != nil; p = p.next {
		if v := p.epoch.Load(); v < min {
			min = v
		}
	}
	return min
}

func (p *participant) Publish(int, unsafe.Pointer) {}

func (p *participant) Clear(int) {}

func (p *participant) Retire(ptr unsafe.Pointer, pool ReclaimablePool) {
	p.retired.Enqueue(Retired{Ptr: ptr, Pool: pool, Epoch: p.domain.global.Load()})
	p.domain.retired.Add(1)
}

// Scan advances the global epoch and drains the ring from the oldest end
// while entries are older than every active participant. The ring is
// ordered by retire epoch, so the first unsafe entry ends the drain.
func (p *participant) Scan() {
	d := p.domain
	d.scans.Add(1)
	d.global.Add(1)
	min := d.minEpoch()

	for {
		e, ok := p.retired.Peek()
		if !ok || e.Epoch >= min {
			return
		}
		p.retired.Dequeue()
		e.Pool.Reclaim(e.Ptr)
		d.reclaimed.Add(1)
	}
}

// Release leaves the critical section and scans if the retired set
// crossed the threshold. Scanning after going inactive keeps the holder's
// own announcement from pinning its retired nodes.
func (p *participant) Release() {
	p.epoch.Store(inactive)
	if p.retired.Len() >= p.domain.threshold {
		p.Scan()
	}
	p.active.Store(false)
}
