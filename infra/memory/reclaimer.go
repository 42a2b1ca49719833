package memory

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"

	"lfcore/infra/cell"
)

// HazardSlots is the number of nodes one guard can protect at once. The
// queue's dequeue needs two (head and head.next).
const HazardSlots = 2

// DefaultRetireThreshold is the retired-set size that triggers a scan.
const DefaultRetireThreshold = 64

// ErrExhausted is returned by bounded allocators that have no free node.
var ErrExhausted = errors.New("memory: allocator exhausted")

// ReclaimablePool takes back a retired object once no reader can reach
// it. It is type-erased so one retired set can hold nodes of any type.
type ReclaimablePool interface {
	Reclaim(p unsafe.Pointer)
}

// Reclaimer hands out guards and owns the retired sets behind them.
type Reclaimer interface {
	Acquire() Guard
	// Flush scans the retired sets of every idle guard.
	Flush()
	Stats() Stats
}

// Guard is held by exactly one goroutine between Acquire and Release.
// Release must be called exactly once per Acquire.
type Guard interface {
	// Publish announces that the holder may dereference p.
	Publish(slot int, p unsafe.Pointer)
	Clear(slot int)
	// Retire hands an unlinked node to the holder's retired set. The node
	// is given back to pool once no guard can still reference it.
	Retire(p unsafe.Pointer, pool ReclaimablePool)
	// Scan reclaims every retired node that is provably unreferenced.
	Scan()
	Release()
}

// Stats is a point-in-time view of a reclaimer.
type Stats struct {
	Records   int    `json:"records"`
	Pending   int    `json:"pending"`
	Retired   uint64 `json:"retired"`
	Reclaimed uint64 `json:"reclaimed"`
	Scans     uint64 `json:"scans"`
}

// Config tunes a reclaimer.
type Config struct {
	RetireThreshold int
}

func (c Config) threshold() int {
	if c.RetireThreshold <= 0 {
		return DefaultRetireThreshold
	}
	return c.RetireThreshold
}

// Protect loads src, publishes it in slot and re-reads src until both
// reads agree. The returned node cannot be reclaimed until the slot is
// cleared, because it was still reachable after the hazard was visible.
func Protect[T any](g Guard, slot int, src *cell.Pointer[T]) *T {
	p := src.Load()
	for {
		g.Publish(slot, unsafe.Pointer(p))
		q := src.Load()
		if q == p {
			return p
		}
		p = q
	}
}

var (
	defaultOnce   sync.Once
	defaultDomain *HazardDomain
)

// Default returns the process-wide hazard domain used by structures
// built without an explicit reclaimer. It is created on first use and
// lives until the process exits.
func Default() *HazardDomain {
	defaultOnce.Do(func() {
		defaultDomain = NewHazardDomain(Config{})
	})
	return defaultDomain
}

// New builds a reclaimer by kind: "hazard" (or empty) or "epoch".
func New(kind string, cfg Config) (Reclaimer, error) {
	switch kind {
	case "", "hazard":
		return NewHazardDomain(cfg), nil
	case "epoch":
		return NewEpochDomain(cfg), nil
	default:
		return nil, errors.Newf("memory: unknown reclaimer %q", kind)
	}
}
