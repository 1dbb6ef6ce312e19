package notify

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

type Kafka struct {
	writer *kafka.Writer
}

// NewKafka writes every event to one topic, partitioned by key so events of the
// same order stay ordered.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	return &Kafka{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}, nil
}

func (k *Kafka) Publish(ctx context.Context, eventType, key string, payload []byte) error {
	return k.writer.WriteMessages(ctx, message(eventType, key, payload, time.Now().UTC()))
}

func message(eventType, key string, payload []byte, now time.Time) kafka.Message {
	return kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Time:    now,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(eventType)}},
	}
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
