package kafka

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaramaSinkSends(t *testing.T) {
	p := mocks.NewSyncProducer(t, SaramaConfig(3))
	p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(v []byte) error {
		assert.Equal(t, []byte(`{"run_id":1}`), v)
		return nil
	})
	s := WrapSyncProducer(p, "lfcore.reports")

	require.NoError(t, s.Send(context.Background(), []byte("1"), []byte(`{"run_id":1}`)))
	require.NoError(t, s.Close())
}

func TestSaramaSinkPropagatesFailure(t *testing.T) {
	p := mocks.NewSyncProducer(t, SaramaConfig(3))
	p.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	s := WrapSyncProducer(p, "lfcore.reports")

	err := s.Send(context.Background(), nil, []byte("x"))
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, s.Close())
}

func TestSaramaSinkHonoursCancelledContext(t *testing.T) {
	p := mocks.NewSyncProducer(t, SaramaConfig(3))
	s := WrapSyncProducer(p, "lfcore.reports")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Send(ctx, nil, []byte("x")), context.Canceled)
	require.NoError(t, s.Close())
}

func TestNewSinkValidates(t *testing.T) {
	_, err := NewSink(Config{Kind: "kafka-go"})
	assert.Error(t, err)

	_, err = NewSink(Config{Kind: "carrier-pigeon", Brokers: []string{"b:9092"}, Topic: "t"})
	assert.Error(t, err)

	s, err := NewSink(Config{Kind: "kafka-go", Brokers: []string{"b:9092"}, Topic: "t"})
	require.NoError(t, err)
	w, ok := s.(*WriterSink)
	require.True(t, ok)
	assert.Equal(t, "t", w.writer.Topic)
	assert.Equal(t, "b:9092", w.writer.Addr.String())
	require.NoError(t, s.Close())
}
