package service

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionsCountsOps(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	c, err := NewCollections(CoreOptions{Reclaimer: "epoch"}, m)
	require.NoError(t, err)

	require.NoError(t, c.Push([]byte("s")))
	require.NoError(t, c.Enqueue([]byte("q")))

	b, ok := c.Pop()
	require.True(t, ok)
	assert.Equal(t, []byte("s"), b)
	_, ok = c.Pop()
	assert.False(t, ok)

	b, ok = c.Dequeue()
	require.True(t, ok)
	assert.Equal(t, []byte("q"), b)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ops.WithLabelValues("stack", "push")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ops.WithLabelValues("queue", "dequeue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmptyPolls.WithLabelValues("stack")))
	assert.Equal(t, uint64(2), c.Stats().Retired)
}

func TestNewCollectionsRejectsUnknownReclaimer(t *testing.T) {
	_, err := NewCollections(CoreOptions{Reclaimer: "refcount"}, nil)
	assert.Error(t, err)
}
