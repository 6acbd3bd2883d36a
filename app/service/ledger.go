package service

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-wellness-payments/app/entity"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/repository"
)

const defaultBonusPoints = int64(500)

type userRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.User, error)
	ApplyEntitlement(ctx context.Context, userID uint64, tier entity.SubscriptionTier, points int64) error
}

// SubscriptionLedger grants the tier and the bonus points. Callers guarantee
// it runs once per approved payment.
type SubscriptionLedger struct {
	users       userRepository
	bonusPoints int64
}

func NewSubscriptionLedger(users userRepository, bonusPoints int64) *SubscriptionLedger {
	if bonusPoints <= 0 {
		bonusPoints = defaultBonusPoints
	}
	return &SubscriptionLedger{users: users, bonusPoints: bonusPoints}
}

func (l *SubscriptionLedger) Apply(ctx context.Context, userID uint64, tier entity.SubscriptionTier) error {
	if !tier.Paid() {
		return ErrInvalidRequest
	}
	if err := l.users.ApplyEntitlement(ctx, userID, tier, l.bonusPoints); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}
