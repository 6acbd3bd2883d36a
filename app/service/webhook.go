package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/entity"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/factory"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/provider"
)

const notificationTypePayment = "payment"

type handleWebhookRequest interface {
	GetNotificationID() string
	GetType() string
	GetAction() string
	GetDataID() string
	GetSignature() string
	GetRequestID() string
	GetPayload() string
}

type paymentNotificationRepository interface {
	Create(ctx context.Context, notification *entity.PaymentNotification) error
}

type notificationDeduper interface {
	MarkSeen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// WebhookService turns gateway notifications into reconcile calls. It never
// fails the delivery: every receipt is recorded with its outcome instead.
type WebhookService struct {
	reconciler       *PaymentReconciler
	gateway          provider.Gateway
	notificationRepo paymentNotificationRepository
	deduper          notificationDeduper
	logger           logrus.FieldLogger
}

// NewWebhookService builds the service. deduper may be nil, in which case
// duplicates are absorbed by the reconciler alone.
func NewWebhookService(
	reconciler *PaymentReconciler,
	gateway provider.Gateway,
	notificationRepo paymentNotificationRepository,
	deduper notificationDeduper,
) *WebhookService {
	return &WebhookService{
		reconciler:       reconciler,
		gateway:          gateway,
		notificationRepo: notificationRepo,
		deduper:          deduper,
		logger:           factory.NewModuleLogger("payment-webhook"),
	}
}

func (s *WebhookService) Handle(ctx context.Context, req handleWebhookRequest) *entity.PaymentNotification {
	now := time.Now().UTC()
	dataID := strings.TrimSpace(req.GetDataID())
	notificationType := strings.ToLower(strings.TrimSpace(req.GetType()))

	record := &entity.PaymentNotification{
		NotificationID: strings.TrimSpace(req.GetNotificationID()),
		Type:           notificationType,
		Action:         strings.TrimSpace(req.GetAction()),
		DataID:         dataID,
		Signature:      truncate(strings.TrimSpace(req.GetSignature()), 255),
		PayloadJSON:    req.GetPayload(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	defer s.persist(ctx, record)

	logger := s.logger.WithFields(logrus.Fields{
		"notification_id": record.NotificationID,
		"type":            notificationType,
		"data_id":         dataID,
	})

	if notificationType == "" && dataID == "" {
		markNotification(record, entity.NotificationStatusIgnored, "malformed notification")
		logger.Warn("Malformed webhook ignored")
		return record
	}
	if !s.gateway.VerifyNotificationSignature(req.GetSignature(), req.GetRequestID(), dataID) {
		markNotification(record, entity.NotificationStatusRejected, "invalid signature")
		logger.Warn("Webhook signature rejected")
		return record
	}
	if notificationType != notificationTypePayment || dataID == "" {
		markNotification(record, entity.NotificationStatusIgnored, "unsupported notification")
		logger.Debug("Non-payment webhook ignored")
		return record
	}

	key := dedupeKey(record)
	if s.deduper != nil {
		first, err := s.deduper.MarkSeen(ctx, key)
		if err != nil {
			logger.WithError(err).Warn("Webhook dedupe unavailable, processing anyway")
		} else if !first {
			markNotification(record, entity.NotificationStatusIgnored, "duplicate notification")
			logger.Info("Duplicate webhook ignored")
			return record
		}
	}

	observed, err := s.gateway.GetPayment(ctx, dataID)
	if err != nil {
		markNotification(record, entity.NotificationStatusFailed, err.Error())
		s.forget(ctx, key, logger)
		logger.WithError(err).Error("Webhook payment fetch failed")
		return record
	}

	result, err := s.reconciler.Reconcile(ctx, dataID, observed, SourceWebhook)
	if err != nil {
		markNotification(record, entity.NotificationStatusFailed, err.Error())
		s.forget(ctx, key, logger)
		logger.WithError(err).Error("Webhook reconcile failed")
		return record
	}
	if result.Payment != nil {
		paymentID := result.Payment.ID
		record.PaymentID = &paymentID
	}

	switch result.Outcome {
	case OutcomeNotFound:
		markNotification(record, entity.NotificationStatusIgnored, "payment not found")
		s.forget(ctx, key, logger)
	case OutcomeIgnored:
		markNotification(record, entity.NotificationStatusIgnored, "unknown gateway status "+observed.RawStatus)
	default:
		record.Status = entity.NotificationStatusProcessed
	}

	logger.WithField("outcome", string(result.Outcome)).Info("Webhook processed")
	return record
}

func (s *WebhookService) forget(ctx context.Context, key string, logger logrus.FieldLogger) {
	if s.deduper == nil {
		return
	}
	if err := s.deduper.Forget(ctx, key); err != nil {
		logger.WithError(err).Warn("Webhook dedupe key not released")
	}
}

func (s *WebhookService) persist(ctx context.Context, record *entity.PaymentNotification) {
	if err := s.notificationRepo.Create(ctx, record); err != nil {
		s.logger.WithError(err).WithField("data_id", record.DataID).Error("Webhook receipt not recorded")
	}
}

func markNotification(record *entity.PaymentNotification, status, reason string) {
	record.Status = status
	trimmed := truncate(strings.TrimSpace(reason), 1024)
	record.Error = &trimmed
}

// dedupeKey prefers the gateway's notification id; deliveries without one
// fall back to what they describe.
func dedupeKey(record *entity.PaymentNotification) string {
	if record.NotificationID != "" {
		return record.NotificationID
	}
	return record.Type + ":" + record.DataID + ":" + record.Action
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
