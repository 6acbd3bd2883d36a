package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidStatus        = errors.New("invalid status")
)

// ConsistencyError marks an approved payment whose entitlement could not be
// applied. The status transition is kept; the gap is left for operators.
type ConsistencyError struct {
	PaymentID uint64
	UserID    uint64
	Err       error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("entitlement not applied for payment %d user %d: %v", e.PaymentID, e.UserID, e.Err)
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}
