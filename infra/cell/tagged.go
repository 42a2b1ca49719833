package cell

import "sync/atomic"

// NilIndex marks an empty Tagged slot.
const NilIndex = ^uint32(0)

// Tag packs a 32-bit index and a 32-bit version into one word:
// [version:32][index:32].
type Tag uint64

// Pack builds a tag from its parts.
func Pack(index, version uint32) Tag {
	return Tag(uint64(version)<<32 | uint64(index))
}

func (t Tag) Index() uint32   { return uint32(t) }
func (t Tag) Version() uint32 { return uint32(t >> 32) }

// Tagged is an index slot whose version grows on every successful CAS, so
// an index that left and came back never matches a stale expected value.
// The version wraps after 2^32 updates of the same slot.
type Tagged struct {
	v atomic.Uint64
}

// NewTagged returns a slot holding index at version zero.
func NewTagged(index uint32) *Tagged {
	t := &Tagged{}
	t.v.Store(uint64(Pack(index, 0)))
	return t
}

func (t *Tagged) Load() Tag { return Tag(t.v.Load()) }

// Store overwrites index and version. Only safe before the slot is shared.
func (t *Tagged) Store(tag Tag) { t.v.Store(uint64(tag)) }

// CompareAndSwap installs index with old's version plus one, iff the slot
// still holds old bit for bit.
func (t *Tagged) CompareAndSwap(old Tag, index uint32) bool {
	return t.v.CompareAndSwap(uint64(old), uint64(Pack(index, old.Version()+1)))
}
