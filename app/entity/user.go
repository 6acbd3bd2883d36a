package entity

import "time"

// User mirrors the columns of the shared users table this service reads and
// mutates. Identity fields belong to the auth service.
type User struct {
	ID uint64

	Email string
	Name  string

	SubscriptionStatus SubscriptionTier
	Points             int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
