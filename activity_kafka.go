package auth

import (
	"context"
	"encoding/json"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/segmentio/kafka-go"
)

// KafkaActivitySink publishes activity events to a Kafka topic, keyed by
// account ID so per-account event order survives partitioning.
type KafkaActivitySink struct {
	writer *kafka.Writer
}

type KafkaActivitySinkOption func(*KafkaActivitySink)

func WithKafkaWriter(w *kafka.Writer) KafkaActivitySinkOption {
	return func(s *KafkaActivitySink) {
		if w != nil {
			s.writer = w
		}
	}
}

func NewKafkaActivitySink(brokers []string, topic string, opts ...KafkaActivitySinkOption) *KafkaActivitySink {
	sink := &KafkaActivitySink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sink)
		}
	}
	return sink
}

// Record implements ActivitySink.
func (s *KafkaActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode activity event")
	}

	msg := kafka.Message{
		Key:   []byte(event.AccountID),
		Value: payload,
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to publish activity event")
	}

	return nil
}

func (s *KafkaActivitySink) Close() error {
	return s.writer.Close()
}
