package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lfcore/infra/store"
)

type fakeSink struct {
	mu     sync.Mutex
	fail   int
	sent   map[string][]byte
	closed bool
}

func (s *fakeSink) Send(_ context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("broker unavailable")
	}
	if s.sent == nil {
		s.sent = map[string][]byte{}
	}
	s.sent[string(key)] = value
	return nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

func openOutbox(t *testing.T) *store.Outbox {
	t.Helper()
	o, err := store.Open("outbox", vfs.NewMem())
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func state(t *testing.T, o *store.Outbox, id uint64) store.Record {
	t.Helper()
	rec, err := o.Get(id)
	require.NoError(t, err)
	return rec
}

func TestOnceAcksNewReports(t *testing.T) {
	o := openOutbox(t)
	require.NoError(t, o.PutNew(1, []byte("a")))
	require.NoError(t, o.PutNew(2, []byte("b")))
	sink := &fakeSink{}
	p := New(o, sink, time.Second, 3)

	n, err := p.Once(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("a"), sink.sent["1"])
	assert.Equal(t, []byte("b"), sink.sent["2"])
	assert.Equal(t, store.StateAcked, state(t, o, 1).State)

	n, err = p.Once(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "acked reports are not resent")
}

func TestOnceResendsInterruptedReports(t *testing.T) {
	o := openOutbox(t)
	require.NoError(t, o.PutNew(5, []byte("x")))
	require.NoError(t, o.UpdateState(5, store.StateSent, 0))
	sink := &fakeSink{}

	n, err := New(o, sink, time.Second, 3).Once(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, store.StateAcked, state(t, o, 5).State)
}

func TestFailuresRetryThenGiveUp(t *testing.T) {
	o := openOutbox(t)
	require.NoError(t, o.PutNew(1, []byte("a")))
	sink := &fakeSink{fail: 10}
	p := New(o, sink, time.Second, 3)

	for i := 1; i <= 2; i++ {
		_, err := p.Once(context.Background())
		require.NoError(t, err)
		rec := state(t, o, 1)
		assert.Equal(t, store.StateNew, rec.State)
		assert.Equal(t, uint32(i), rec.Retries)
	}
	_, err := p.Once(context.Background())
	require.NoError(t, err)
	rec := state(t, o, 1)
	assert.Equal(t, store.StateFailed, rec.State)
	assert.Equal(t, uint32(3), rec.Retries)
	assert.Equal(t, []byte("a"), rec.Payload)
}

func TestRunStopsOnCancel(t *testing.T) {
	o := openOutbox(t)
	require.NoError(t, o.PutNew(1, []byte("a")))
	sink := &fakeSink{}
	p := New(o, sink, 5*time.Millisecond, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		rec, err := o.Get(1)
		return err == nil && rec.State == store.StateAcked
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	require.NoError(t, p.Close())
	assert.True(t, sink.closed)
}
