package cell

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointerCompareAndSwap(t *testing.T) {
	var c Pointer[int]
	a, b := new(int), new(int)

	require.Nil(t, c.Load())
	assert.False(t, c.CompareAndSwap(a, b), "CAS against wrong expected value must fail")
	assert.Nil(t, c.Load(), "failed CAS must not write")

	require.True(t, c.CompareAndSwap(nil, a))
	assert.Same(t, a, c.Load())

	c.Store(b)
	assert.Same(t, b, c.Load())
}

func TestRawCompareAndSwap(t *testing.T) {
	var c Raw
	x := new(int)
	p := unsafe.Pointer(x)

	assert.False(t, c.CompareAndSwap(p, nil))
	require.True(t, c.CompareAndSwap(nil, p))
	assert.Equal(t, p, c.Load())
	c.Store(nil)
	assert.Nil(t, c.Load())
}

func TestWordCounts(t *testing.T) {
	var w Word
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				for {
					old := w.Load()
					if w.CompareAndSwap(old, old+1) {
						break
					}
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(8000), w.Load())
}

func TestTagPackUnpack(t *testing.T) {
	tag := Pack(7, 42)
	assert.Equal(t, uint32(7), tag.Index())
	assert.Equal(t, uint32(42), tag.Version())

	top := Pack(NilIndex, ^uint32(0))
	assert.Equal(t, NilIndex, top.Index())
	assert.Equal(t, ^uint32(0), top.Version())
}

// A slot that goes 3 -> 5 -> 3 must not accept a CAS expecting the first 3.
func TestTaggedRejectsABA(t *testing.T) {
	s := NewTagged(3)
	stale := s.Load()

	require.True(t, s.CompareAndSwap(stale, 5))
	mid := s.Load()
	require.True(t, s.CompareAndSwap(mid, 3))

	now := s.Load()
	assert.Equal(t, stale.Index(), now.Index(), "index came back")
	assert.NotEqual(t, stale, now, "but the version moved")
	assert.False(t, s.CompareAndSwap(stale, 9), "stale tag must lose")
	assert.Equal(t, uint32(3), s.Load().Index())
	assert.Equal(t, uint32(2), s.Load().Version())
}

func TestTaggedVersionWraps(t *testing.T) {
	s := &Tagged{}
	s.Store(Pack(1, ^uint32(0)))
	old := s.Load()
	require.True(t, s.CompareAndSwap(old, 2))
	assert.Equal(t, uint32(0), s.Load().Version())
	assert.Equal(t, uint32(2), s.Load().Index())
}
