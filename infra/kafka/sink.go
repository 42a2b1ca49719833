// Package kafka delivers encoded reports to a Kafka topic. Two clients are
// supported: segmentio/kafka-go and IBM/sarama.
package kafka

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Sink receives one message per report.
type Sink interface {
	Send(ctx context.Context, key, value []byte) error
	Close() error
}

// Config selects and configures a sink.
type Config struct {
	// Kind is "kafka-go" or "sarama".
	Kind     string
	Brokers  []string
	Topic    string
	MaxRetry int
}

// NewSink builds the sink named by cfg.Kind.
func NewSink(cfg Config) (Sink, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka: brokers and topic are required")
	}
	switch cfg.Kind {
	case "kafka-go":
		return NewWriterSink(cfg.Brokers, cfg.Topic), nil
	case "sarama":
		return NewSaramaSink(cfg.Brokers, cfg.Topic, cfg.MaxRetry)
	default:
		return nil, errors.Newf("kafka: unknown sink %q", cfg.Kind)
	}
}
