package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-wellness-payments/app/entity"
)

type PaymentNotificationRepository struct {
	db DBTX
}

func NewPaymentNotificationRepository(db DBTX) *PaymentNotificationRepository {
	return &PaymentNotificationRepository{db: db}
}

func (r *PaymentNotificationRepository) Create(ctx context.Context, n *entity.PaymentNotification) error {
	query := `
		INSERT INTO payment_notifications (
			payment_id, notification_id, type, action, data_id, signature, payload_json,
			status, error, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var paymentID interface{}
	if n.PaymentID != nil {
		paymentID = *n.PaymentID
	}

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		paymentID,
		n.NotificationID,
		n.Type,
		n.Action,
		n.DataID,
		n.Signature,
		n.PayloadJSON,
		n.Status,
		nullableStringValue(n.Error),
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)

	return nil
}
