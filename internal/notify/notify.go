// Package notify hands buyer notifications to a message broker. Delivery of
// the actual e-mail is the consumer's job.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/safar/marketplace-orders/internal/config"
)

var ErrDisabled = errors.New("notifications disabled")

// Publisher sends one already-encoded event. eventType doubles as the routing
// key on brokers that route by it.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload []byte) error
	Close() error
}

// New builds the publisher selected by cfg.Driver. An empty driver returns
// ErrDisabled and events stay in the outbox.
func New(cfg config.NotifyConfig) (Publisher, error) {
	switch cfg.Driver {
	case "":
		return nil, ErrDisabled
	case "rabbitmq":
		return NewRabbitMQ(cfg.AMQPURL, cfg.AMQPExchange)
	case "kafka":
		return NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}
