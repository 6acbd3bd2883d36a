package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

const DefaultStatusTopic = "payments.status_changed"

type PaymentStatusChanged struct {
	PaymentID        uint64    `json:"payment_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	UserID           uint64    `json:"user_id"`
	Status           string    `json:"status"`
	Tier             string    `json:"tier"`
	Amount           string    `json:"amount"`
	Source           string    `json:"source"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// KafkaPublisher emits payment status changes keyed by gateway payment id so
// that all events of one payment land on the same partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultStatusTopic
	}
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishStatusChanged(_ context.Context, event *PaymentStatusChanged) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.GatewayPaymentID),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send status event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishStatusChanged(context.Context, *PaymentStatusChanged) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}
