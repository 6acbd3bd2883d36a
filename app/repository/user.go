package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-wellness-payments/app/entity"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*entity.User, error) {
	query := `
		SELECT id, email, name, subscription_status, points, created_at, updated_at
		FROM users
		WHERE id = ?
	`

	user := &entity.User{}
	var status string
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&status,
		&user.Points,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.SubscriptionStatus = entity.SubscriptionTier(status)

	return user, nil
}

// ApplyEntitlement sets the tier and adds points relative to the stored
// balance, so concurrent increments are never lost.
func (r *UserRepository) ApplyEntitlement(ctx context.Context, userID uint64, tier entity.SubscriptionTier, points int64) error {
	query := `
		UPDATE users SET subscription_status = ?, points = points + ?, updated_at = ?
		WHERE id = ?
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, string(tier), points, time.Now().UTC(), userID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}
