package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/entity"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/factory"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/provider"
	"github.com/vibast-solutions/ms-go-wellness-payments/config"
)

const (
	defaultListLimit = int32(100)
	defaultBatchSize = int32(100)
)

// SubscriptionDetails is the user's entitlement together with the approved
// payment that granted it, if any.
type SubscriptionDetails struct {
	User          *entity.User
	LatestPayment *entity.Payment
}

type PaymentService struct {
	paymentRepo paymentRepository
	userRepo    userRepository
	reconciler  *PaymentReconciler
	gateway     provider.Gateway
	paymentsCfg config.PaymentsConfig
	logger      logrus.FieldLogger
}

func NewPaymentService(
	paymentRepo paymentRepository,
	userRepo userRepository,
	reconciler *PaymentReconciler,
	gateway provider.Gateway,
	paymentsCfg config.PaymentsConfig,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		reconciler:  reconciler,
		gateway:     gateway,
		paymentsCfg: paymentsCfg,
		logger:      factory.NewModuleLogger("payment-service"),
	}
}

// GetPaymentStatus returns the caller's payment by gateway id or reference.
// Open payments are refreshed from the gateway on a best effort basis.
func (s *PaymentService) GetPaymentStatus(ctx context.Context, userID uint64, paymentID string) (*entity.Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, ErrInvalidRequest
	}

	payment, err := s.paymentRepo.FindByGatewayPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		payment, err = s.paymentRepo.FindByReference(ctx, paymentID)
		if err != nil {
			return nil, err
		}
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if payment.UserID != userID {
		return nil, ErrForbidden
	}

	gatewayID := payment.GatewayID()
	if payment.Status.Terminal() || gatewayID == "" {
		return payment, nil
	}

	logger := s.logger.WithFields(logrus.Fields{
		"payment_id":         payment.ID,
		"gateway_payment_id": gatewayID,
	})
	observed, err := s.gateway.GetPayment(ctx, gatewayID)
	if err != nil {
		logger.WithError(err).Warn("Status check against gateway failed")
		return payment, nil
	}
	result, err := s.reconciler.Reconcile(ctx, gatewayID, observed, SourceStatusCheck)
	if err != nil {
		logger.WithError(err).Warn("Status check reconcile failed")
		return payment, nil
	}
	if result.Payment != nil {
		payment = result.Payment
	}

	return payment, nil
}

func (s *PaymentService) ListUserPayments(ctx context.Context, userID uint64) ([]*entity.Payment, error) {
	if userID == 0 {
		return nil, ErrInvalidRequest
	}
	return s.paymentRepo.ListByUser(ctx, userID, defaultListLimit)
}

func (s *PaymentService) GetSubscriptionDetails(ctx context.Context, userID uint64) (*SubscriptionDetails, error) {
	if userID == 0 {
		return nil, ErrInvalidRequest
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	details := &SubscriptionDetails{User: user}
	if !user.SubscriptionStatus.Paid() {
		return details, nil
	}

	latest, err := s.paymentRepo.FindLatestApprovedByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	details.LatestPayment = latest

	return details, nil
}

func (s *PaymentService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}
