package memory

import (
	"slices"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"

	"lfcore/infra/cell"
)

// HazardDomain is a hazard-pointer reclaimer. Each guard is a record with
// HazardSlots published pointers and a private retired set. Records are
// created on demand, linked into a push-only list and reused; the list
// length tracks the peak number of concurrent operations.
type HazardDomain struct {
	records atomic.Pointer[hazardRecord]
	count   atomic.Int64

	threshold int

	retired   atomic.Uint64
	reclaimed atomic.Uint64
	scans     atomic.Uint64
}

type hazardRecord struct {
	slots [HazardSlots]cell.Raw
	_     cpu.CacheLinePad

	active atomic.Bool
	next   *hazardRecord // immutable once linked
	domain *HazardDomain

	// owned by the holder
	retired *RetireRing
	scratch []uintptr
}

// NewHazardDomain returns an empty domain.
func NewHazardDomain(cfg Config) *HazardDomain {
	return &HazardDomain{threshold: cfg.threshold()}
}

// Acquire returns a guard owned by the caller until Release.
func (d *HazardDomain) Acquire() Guard {
	return d.acquire()
}

func (d *HazardDomain) acquire() *hazardRecord {
	for r := d.records.Load(); r != nil; r = r.next {
		if !r.active.Load() && r.active.CompareAndSwap(false, true) {
			return r
		}
	}

	r := &hazardRecord{
		domain:  d,
		retired: NewRetireRing(uint64(ceilPow2(d.threshold))),
	}
	r.active.Store(true)
	for {
		head := d.records.Load()
		r.next = head
		if d.records.CompareAndSwap(head, r) {
			d.count.Add(1)
			return r
		}
	}
}

// Flush scans every record nobody holds. Held records are skipped; their
// holders scan on their own schedule.
func (d *HazardDomain) Flush() {
	for r := d.records.Load(); r != nil; r = r.next {
		if r.active.Load() || !r.active.CompareAndSwap(false, true) {
			continue
		}
		if !r.retired.IsEmpty() {
			r.Scan()
		}
		r.active.Store(false)
	}
}

func (d *HazardDomain) Stats() Stats {
	s := Stats{
		Records:   int(d.count.Load()),
		Retired:   d.retired.Load(),
		Reclaimed: d.reclaimed.Load(),
		Scans:     d.scans.Load(),
	}
	for r := d.records.Load(); r != nil; r = r.next {
		s.Pending += r.retired.Len()
	}
	return s
}

// hazards appends every published hazard to buf, sorted.
func (d *HazardDomain) hazards(buf []uintptr) []uintptr {
	for r := d.records.Load(); r != nil; r = r.next {
		for i := range r.slots {
			if p := r.slots[i].Load(); p != nil {
				buf = append(buf, uintptr(p))
			}
		}
	}
	slices.Sort(buf)
	return buf
}

func (r *hazardRecord) Publish(slot int, p unsafe.Pointer) {
	r.slots[slot].Store(p)
}

func (r *hazardRecord) Clear(slot int) {
	r.slots[slot].Store(nil)
}

func (r *hazardRecord) Retire(p unsafe.Pointer, pool ReclaimablePool) {
	r.retired.Enqueue(Retired{Ptr: p, Pool: pool})
	r.domain.retired.Add(1)
	if r.retired.Len() >= r.domain.threshold {
		r.Scan()
	}
}

// Scan reclaims every retired node whose address is absent from all
// published hazard slots. Nodes still protected go back on the ring for a
// later scan.
func (r *hazardRecord) Scan() {
	d := r.domain
	d.scans.Add(1)
	r.scratch = d.hazards(r.scratch[:0])

	n := r.retired.Len()
	for i := 0; i < n; i++ {
		e, _ := r.retired.Dequeue()
		if _, held := slices.BinarySearch(r.scratch, uintptr(e.Ptr)); held {
			r.retired.Enqueue(e)
			continue
		}
		e.Pool.Reclaim(e.Ptr)
		d.reclaimed.Add(1)
	}
}

func (r *hazardRecord) Release() {
	for i := range r.slots {
		r.slots[i].Store(nil)
	}
	r.active.Store(false)
}

func ceilPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
