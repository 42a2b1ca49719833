package sequence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagParts(t *testing.T) {
	tag := NewTag(3, 12345)
	assert.Equal(t, uint16(3), tag.Producer())
	assert.Equal(t, uint64(12345), tag.Seq())
}

func TestSequencerIsMonotonic(t *testing.T) {
	s := New(1, 0)
	prev := s.Next()
	for i := 0; i < 100; i++ {
		next := s.Next()
		require.Greater(t, next.Seq(), prev.Seq())
		prev = next
	}
	assert.Equal(t, uint64(101), s.Current())
}

func TestSequencerConcurrentUnique(t *testing.T) {
	s := New(7, 0)
	var mu sync.Mutex
	seen := make(map[Tag]bool)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				tag := s.Next()
				mu.Lock()
				seen[tag] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 2000)
}

func TestGlobalReset(t *testing.T) {
	g := NewGlobal(0)
	assert.Equal(t, uint64(1), g.Next())
	g.Reset(41)
	assert.Equal(t, uint64(42), g.Next())
}
