package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"
)

// SaramaSink publishes through a sarama SyncProducer.
type SaramaSink struct {
	producer sarama.SyncProducer
	topic    string
}

// SaramaConfig is the producer config used by NewSaramaSink.
func SaramaConfig(maxRetry int) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = maxRetry
	return cfg
}

func NewSaramaSink(brokers []string, topic string, maxRetry int) (*SaramaSink, error) {
	producer, err := sarama.NewSyncProducer(brokers, SaramaConfig(maxRetry))
	if err != nil {
		return nil, errors.Wrap(err, "sarama: new producer")
	}
	return WrapSyncProducer(producer, topic), nil
}

// WrapSyncProducer adapts an existing producer.
func WrapSyncProducer(p sarama.SyncProducer, topic string) *SaramaSink {
	return &SaramaSink{producer: p, topic: topic}
}

// Send blocks until the broker acknowledges. ctx is checked before the
// send only; SyncProducer has no cancellation.
func (s *SaramaSink) Send(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return errors.Wrap(err, "sarama: send")
	}
	return nil
}

func (s *SaramaSink) Close() error {
	return s.producer.Close()
}
