package queue

import (
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lfcore/infra/memory"
)

const poison = -0x5EAD

type poisonAlloc struct {
	mu         sync.Mutex
	free       []*node[int]
	freed      map[*node[int]]bool
	doubleFree int
}

func newPoisonAlloc() *poisonAlloc {
	return &poisonAlloc{freed: make(map[*node[int]]bool)}
}

func (a *poisonAlloc) Get() (*node[int], error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.free); n > 0 {
		nd := a.free[n-1]
		a.free = a.free[:n-1]
		delete(a.freed, nd)
		return nd, nil
	}
	return &node[int]{}, nil
}

func (a *poisonAlloc) Put(n *node[int]) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.freed[n] {
		a.doubleFree++
	}
	a.freed[n] = true
	n.value = poison
	a.free = append(a.free, n)
}

func (a *poisonAlloc) isFreed(n *node[int]) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.freed[n]
}

func mustQueue(t *testing.T, cfg Config) *Queue[int] {
	t.Helper()
	q, err := New[int](cfg)
	require.NoError(t, err)
	return q
}

func TestFIFOOrder(t *testing.T) {
	q, err := New[string](Config{})
	require.NoError(t, err)
	assert.True(t, q.IsEmpty())

	for _, v := range []string{"A", "B", "C"} {
		require.NoError(t, q.Enqueue(v))
	}
	assert.False(t, q.IsEmpty())
	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.True(t, q.IsEmpty())
}

func TestDequeueEmpty(t *testing.T) {
	q := mustQueue(t, Config{})
	v, ok := q.Dequeue()
	assert.False(t, ok)
	assert.Zero(t, v)

	require.NoError(t, q.Enqueue(5))
	_, ok = q.Dequeue()
	require.True(t, ok)
	for i := 0; i < 3; i++ {
		_, ok = q.Dequeue()
		assert.False(t, ok, "queue with zero net elements must report empty")
	}
	assert.Same(t, q.head.Load(), q.tail.Load(), "empty queue: head and tail on the dummy")
	assert.NotNil(t, q.head.Load(), "head is never nil")
}

// An enqueue that linked its node but never swung tail must be finished
// by whoever comes next.
func TestHelpsLaggingTail(t *testing.T) {
	q := mustQueue(t, Config{})
	stalled := &node[int]{value: 9}
	q.tail.Load().next.Store(stalled)

	require.NoError(t, q.Enqueue(10))
	assert.Same(t, stalled, q.head.Load().next.Load())

	v, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 9, v)
	v, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestDequeueHelpsLaggingTailOnSingleElement(t *testing.T) {
	q := mustQueue(t, Config{})
	stalled := &node[int]{value: 3}
	dummy := q.tail.Load()
	dummy.next.Store(stalled)

	v, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Same(t, stalled, q.tail.Load(), "tail swung past the old dummy")
	assert.Same(t, stalled, q.head.Load())
}

func TestBoundedEnqueueExhaustion(t *testing.T) {
	d := memory.NewHazardDomain(memory.Config{RetireThreshold: 1024})
	q := mustQueue(t, Config{Reclaimer: d, Capacity: 2})

	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	require.ErrorIs(t, q.Enqueue(3), ErrExhausted)

	v, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	require.NoError(t, q.Enqueue(4), "retired dummy is flushed back")
	for _, want := range []int{2, 4} {
		v, ok = q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
}

func TestNoPrematureReclamation(t *testing.T) {
	alloc := newPoisonAlloc()
	d := memory.NewHazardDomain(memory.Config{RetireThreshold: 1})
	q, err := newQueue[int](Config{Reclaimer: d}, alloc)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))

	// park on the first element, as a slow dequeuer would
	g := d.Acquire()
	h := memory.Protect(g, 0, &q.head)
	first := h.next.Load()
	g.Publish(1, unsafe.Pointer(first))

	for i := 0; i < 2; i++ {
		_, ok := q.Dequeue()
		require.True(t, ok)
	}
	d.Flush()
	assert.False(t, alloc.isFreed(h), "old dummy recycled under a hazard")
	assert.False(t, alloc.isFreed(first))
	assert.Equal(t, 1, first.value)

	g.Release()
	d.Flush()
	assert.True(t, alloc.isFreed(h))
	assert.True(t, alloc.isFreed(first))
}

func TestProducersConsumers(t *testing.T) {
	for _, kind := range []string{"hazard", "epoch"} {
		t.Run(kind, func(t *testing.T) {
			rec, err := memory.New(kind, memory.Config{RetireThreshold: 8})
			require.NoError(t, err)
			alloc := newPoisonAlloc()
			q, err := newQueue[int](Config{Reclaimer: rec}, alloc)
			require.NoError(t, err)

			runScenario(t, q, 4, 4, 2000)

			rec.Flush()
			assert.Zero(t, alloc.doubleFree)
			st := rec.Stats()
			assert.Equal(t, uint64(4*2000), st.Retired)
			assert.Equal(t, st.Retired, st.Reclaimed)
		})
	}
}

// runScenario checks conservation, uniqueness, and that every consumer
// saw each producer's values in the order they were enqueued.
func runScenario(t *testing.T, q *Queue[int], producers, consumers, per int) {
	t.Helper()

	var active atomic.Int32
	active.Store(int32(producers))

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			defer active.Add(-1)
			for i := 0; i < per; i++ {
				if err := q.Enqueue(p*per + i + 1); err != nil {
					t.Errorf("enqueue: %v", err)
					return
				}
			}
		}(p)
	}

	results := make([][]int, consumers)
	for c := 0; c < consumers; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			for {
				v, ok := q.Dequeue()
				if ok {
					results[c] = append(results[c], v)
					continue
				}
				if active.Load() == 0 && q.IsEmpty() {
					return
				}
			}
		}(c)
	}
	wg.Wait()

	seen := make(map[int]int, producers*per)
	for _, r := range results {
		last := make([]int, producers)
		for _, v := range r {
			require.NotEqual(t, poison, v, "dequeued a reclaimed node")
			seen[v]++
			p := (v - 1) / per
			require.Greater(t, v, last[p], "producer %d values out of order", p)
			last[p] = v
		}
	}
	require.Len(t, seen, producers*per, "lost values")
	for v, n := range seen {
		require.Equal(t, 1, n, "value %d dequeued %d times", v, n)
	}
	assert.True(t, q.IsEmpty())
}
