package entity

import "time"

const (
	NotificationStatusProcessed = "processed"
	NotificationStatusIgnored   = "ignored"
	NotificationStatusRejected  = "rejected"
	NotificationStatusFailed    = "failed"
)

type PaymentNotification struct {
	ID uint64

	PaymentID *uint64

	NotificationID string
	Type           string
	Action         string
	DataID         string
	Signature      string
	PayloadJSON    string
	Status         string
	Error          *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
