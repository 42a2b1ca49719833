package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lfcore/infra/memory"
	"lfcore/infra/sequence"
)

type memStore struct {
	mu   sync.Mutex
	last uint64
	runs map[uint64][]byte
}

func (s *memStore) PutNew(id uint64, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs == nil {
		s.runs = map[uint64][]byte{}
	}
	s.runs[id] = payload
	return nil
}

func (s *memStore) LastID() (uint64, error) { return s.last, nil }

func runScenario(t *testing.T, opts CoreOptions, sc Scenario) *Report {
	t.Helper()
	w, err := NewWorkload(opts, nil, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rep, err := w.Run(ctx, sc)
	require.NoError(t, err)
	return rep
}

func TestWorkloadThreeProducersTwoConsumers(t *testing.T) {
	for _, structure := range []string{"stack", "queue"} {
		for _, rec := range []string{"hazard", "epoch"} {
			t.Run(structure+"/"+rec, func(t *testing.T) {
				rep := runScenario(t, CoreOptions{Reclaimer: rec}, Scenario{
					Structure: structure, Producers: 3, Consumers: 2, PerProducer: 1000,
				})
				assert.True(t, rep.Passed, "report: %+v", rep)
				assert.Equal(t, uint64(3000), rep.Pushed)
				assert.Equal(t, uint64(3000), rep.Popped)
				assert.Zero(t, rep.Duplicates)
				assert.Zero(t, rep.Missing)
				assert.Zero(t, rep.OrderViolations)
				assert.True(t, rep.FingerprintMatch)
				assert.Equal(t, rec, rep.Reclaimer)
				assert.Equal(t, uint64(3000), rep.Reclaim.Retired)
			})
		}
	}
}

func TestWorkloadSequentialStackIsLIFO(t *testing.T) {
	rep := runScenario(t, CoreOptions{}, Scenario{
		Structure: "stack", Producers: 1, Consumers: 1, PerProducer: 500, Sequential: true,
	})
	assert.True(t, rep.Passed)
	assert.Zero(t, rep.OrderViolations)
	assert.Equal(t, "hazard", rep.Reclaimer)
}

func TestWorkloadBoundedQueue(t *testing.T) {
	rep := runScenario(t, CoreOptions{Capacity: 4096}, Scenario{
		Structure: "queue", Producers: 2, Consumers: 2, PerProducer: 1000,
	})
	assert.True(t, rep.Passed)
}

func TestWorkloadRejectsBadScenario(t *testing.T) {
	w, err := NewWorkload(CoreOptions{}, nil, nil)
	require.NoError(t, err)
	_, err = w.Run(context.Background(), Scenario{Structure: "stack", Producers: 0, Consumers: 1, PerProducer: 1})
	assert.Error(t, err)
	_, err = w.Run(context.Background(), Scenario{Structure: "heap", Producers: 1, Consumers: 1, PerProducer: 1})
	assert.Error(t, err)
}

func TestWorkloadPersistsAndContinuesRunIDs(t *testing.T) {
	st := &memStore{last: 41}
	w, err := NewWorkload(CoreOptions{}, nil, st)
	require.NoError(t, err)

	rep, err := w.Run(context.Background(), Scenario{Structure: "queue", Producers: 1, Consumers: 1, PerProducer: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), rep.RunID)

	payload, ok := st.runs[42]
	require.True(t, ok)
	back, err := DecodeReport(payload)
	require.NoError(t, err)
	assert.Equal(t, rep.Popped, back.Popped)
	assert.True(t, back.Passed)
}

func TestWorkloadRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	w, err := NewWorkload(CoreOptions{}, m, nil)
	require.NoError(t, err)

	_, err = w.Run(context.Background(), Scenario{Structure: "stack", Producers: 2, Consumers: 1, PerProducer: 50})
	require.NoError(t, err)

	assert.Equal(t, 100.0, testutil.ToFloat64(m.Ops.WithLabelValues("stack", "put")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.Ops.WithLabelValues("stack", "take")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("stack", "pass")))
}

func TestWorkloadContextCancelled(t *testing.T) {
	w, err := NewWorkload(CoreOptions{}, nil, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.Run(ctx, Scenario{Structure: "stack", Producers: 1, Consumers: 1, PerProducer: 10})
	assert.ErrorIs(t, err, context.Canceled)
}

// lossyCollection drops every tenth value and duplicates every
// seventeenth, so verify has something to find.
type lossyCollection struct {
	mu    sync.Mutex
	items []sequence.Tag
	n     int
}

func (c *lossyCollection) Put(t sequence.Tag) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	switch {
	case c.n%10 == 0:
	case c.n%17 == 0:
		c.items = append(c.items, t, t)
	default:
		c.items = append(c.items, t)
	}
	return nil
}

func (c *lossyCollection) Take() (sequence.Tag, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return 0, false
	}
	t := c.items[0]
	c.items = c.items[1:]
	return t, true
}

func (c *lossyCollection) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

func (c *lossyCollection) Ordering() Ordering { return FIFO }

func TestDriveDetectsLossAndDuplicates(t *testing.T) {
	rep, err := Drive(context.Background(),
		Scenario{Structure: "queue", Producers: 1, Consumers: 1, PerProducer: 100},
		&lossyCollection{}, memory.NewHazardDomain(memory.Config{}))
	require.NoError(t, err)
	assert.False(t, rep.Passed)
	assert.Equal(t, 10, rep.Missing)
	assert.Equal(t, 5, rep.Duplicates)
	assert.Equal(t, 5, rep.OrderViolations, "a duplicate repeats the previous sequence")
	assert.False(t, rep.FingerprintMatch)
}

type failingCollection struct{ lossyCollection }

func (c *failingCollection) Put(sequence.Tag) error { return errors.New("full") }

func TestDrivePropagatesPutError(t *testing.T) {
	_, err := Drive(context.Background(),
		Scenario{Structure: "queue", Producers: 1, Consumers: 1, PerProducer: 10},
		&failingCollection{}, memory.NewHazardDomain(memory.Config{}))
	assert.ErrorContains(t, err, "full")
}
