package entity

import "time"

const (
	PaymentEventCreated            = "payment_created"
	PaymentEventReconciled         = "payment_reconciled"
	PaymentEventForced             = "payment_forced"
	PaymentEventEntitlementApplied = "entitlement_applied"
	PaymentEventEntitlementFailed  = "entitlement_failed"
)

type PaymentEvent struct {
	ID uint64

	PaymentID uint64

	EventType string

	OldStatus *PaymentStatus
	NewStatus PaymentStatus

	Source      string
	PayloadJSON *string

	CreatedAt time.Time
}
