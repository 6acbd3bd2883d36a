package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
)

func TestPublishStatusChangedSendsJSON(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var evt PaymentStatusChanged
		if err := json.Unmarshal(val, &evt); err != nil {
			return err
		}
		if evt.GatewayPaymentID != "mp-1" || evt.Status != "approved" || evt.Tier != "premium_plus" {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	publisher := NewKafkaPublisherWithProducer(producer, "")
	err := publisher.PublishStatusChanged(context.Background(), &PaymentStatusChanged{
		PaymentID:        7,
		GatewayPaymentID: "mp-1",
		UserID:           3,
		Status:           "approved",
		Tier:             "premium_plus",
		Amount:           "49.90",
		Source:           "webhook",
		OccurredAt:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if publisher.topic != DefaultStatusTopic {
		t.Fatalf("expected default topic, got %s", publisher.topic)
	}
	if err := publisher.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPublishStatusChangedWrapsSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(errors.New("broker down"))

	publisher := NewKafkaPublisherWithProducer(producer, "custom.topic")
	err := publisher.PublishStatusChanged(context.Background(), &PaymentStatusChanged{GatewayPaymentID: "mp-2"})
	if err == nil {
		t.Fatal("expected error")
	}
	_ = publisher.Close()
}

func TestNoopPublisher(t *testing.T) {
	var p NoopPublisher
	if err := p.PublishStatusChanged(context.Background(), &PaymentStatusChanged{}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
