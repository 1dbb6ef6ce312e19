package notify

import (
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/safar/marketplace-orders/internal/config"
)

func TestNewDisabledWithoutDriver(t *testing.T) {
	_, err := New(config.NotifyConfig{})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Expected ErrDisabled, got %v", err)
	}

	if _, err := New(config.NotifyConfig{Driver: "pigeon"}); err == nil {
		t.Error("Expected error for unknown driver")
	}
	if _, err := New(config.NotifyConfig{Driver: "kafka"}); err == nil {
		t.Error("Expected error for kafka without brokers")
	}
}

func TestKafkaMessage(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	msg := message("order.paid", "order-1", []byte(`{"a":1}`), now)

	if string(msg.Key) != "order-1" || string(msg.Value) != `{"a":1}` || !msg.Time.Equal(now) {
		t.Errorf("Unexpected message: %+v", msg)
	}
	if len(msg.Headers) != 1 || msg.Headers[0].Key != "event-type" || string(msg.Headers[0].Value) != "order.paid" {
		t.Errorf("Unexpected headers: %+v", msg.Headers)
	}
}

func TestAMQPPublishing(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	p := publishing("order.paid", "evt-1", []byte(`{}`), now)

	if p.DeliveryMode != amqp.Persistent {
		t.Error("Notifications must be persistent")
	}
	if p.Type != "order.paid" || p.MessageId != "evt-1" || p.ContentType != "application/json" {
		t.Errorf("Unexpected publishing: %+v", p)
	}
}
