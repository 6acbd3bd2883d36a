package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusInReview  PaymentStatus = "in_review"
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusRejected  PaymentStatus = "rejected"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Terminal statuses are never overwritten once stored.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusApproved, PaymentStatusRejected, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusInReview:
		return true
	default:
		return s.Terminal()
	}
}

type SubscriptionTier string

const (
	SubscriptionFree        SubscriptionTier = "free"
	SubscriptionPremium     SubscriptionTier = "premium"
	SubscriptionPremiumPlus SubscriptionTier = "premium_plus"
)

func (t SubscriptionTier) Paid() bool {
	return t == SubscriptionPremium || t == SubscriptionPremiumPlus
}

type Payment struct {
	ID uint64

	Reference string
	UserID    uint64

	GatewayPaymentID    *string
	GatewayPreferenceID *string

	Amount           decimal.Decimal
	Status           PaymentStatus
	SubscriptionTier SubscriptionTier

	PaymentMethod       string
	PaymentType         string
	Installments        int32
	GatewayStatus       string
	GatewayStatusDetail string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Payment) GatewayID() string {
	if p == nil || p.GatewayPaymentID == nil {
		return ""
	}
	return *p.GatewayPaymentID
}
