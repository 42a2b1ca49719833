package kafka

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
)

// WriterSink publishes through a synchronous kafka-go Writer.
type WriterSink struct {
	writer *kafka.Writer
}

func NewWriterSink(brokers []string, topic string) *WriterSink {
	return &WriterSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (s *WriterSink) Send(ctx context.Context, key, value []byte) error {
	err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
	return errors.Wrap(err, "kafka-go: write")
}

func (s *WriterSink) Close() error {
	return s.writer.Close()
}
