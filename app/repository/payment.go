package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-wellness-payments/app/entity"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")
)

const paymentColumns = `
	id, reference, user_id, gateway_payment_id, gateway_preference_id,
	amount, status, subscription_tier,
	payment_method, payment_type, installments, gateway_status, gateway_status_detail,
	created_at, updated_at
`

// StatusTransition is applied only while the stored status is still open.
type StatusTransition struct {
	PaymentID uint64

	Status           entity.PaymentStatus
	SubscriptionTier entity.SubscriptionTier

	PaymentMethod       string
	PaymentType         string
	Installments        int32
	GatewayStatus       string
	GatewayStatusDetail string

	UpdatedAt time.Time
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (
			reference, user_id, gateway_payment_id, gateway_preference_id,
			amount, status, subscription_tier,
			payment_method, payment_type, installments, gateway_status, gateway_status_detail,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		payment.Reference,
		payment.UserID,
		nullableStringValue(payment.GatewayPaymentID),
		nullableStringValue(payment.GatewayPreferenceID),
		payment.Amount,
		string(payment.Status),
		string(payment.SubscriptionTier),
		payment.PaymentMethod,
		payment.PaymentType,
		payment.Installments,
		payment.GatewayStatus,
		payment.GatewayStatusDetail,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	payment.ID = uint64(id)
	return nil
}

// TransitionStatus is a compare-and-swap on the open statuses. It reports
// false when another writer already moved the record to a terminal status.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, t *StatusTransition) (bool, error) {
	query := `
		UPDATE payments SET
			status = ?,
			subscription_tier = ?,
			payment_method = COALESCE(NULLIF(?, ''), payment_method),
			payment_type = COALESCE(NULLIF(?, ''), payment_type),
			installments = IF(? > 0, ?, installments),
			gateway_status = COALESCE(NULLIF(?, ''), gateway_status),
			gateway_status_detail = COALESCE(NULLIF(?, ''), gateway_status_detail),
			updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		string(t.Status),
		string(t.SubscriptionTier),
		t.PaymentMethod,
		t.PaymentType,
		t.Installments, t.Installments,
		t.GatewayStatus,
		t.GatewayStatusDetail,
		t.UpdatedAt,
		t.PaymentID,
		string(entity.PaymentStatusPending),
		string(entity.PaymentStatusInReview),
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// BindGatewayPayment attaches the gateway payment id to a preference attempt
// that has none yet.
func (r *PaymentRepository) BindGatewayPayment(ctx context.Context, id uint64, gatewayPaymentID string, now time.Time) (bool, error) {
	query := `
		UPDATE payments SET gateway_payment_id = ?, updated_at = ?
		WHERE id = ? AND gateway_payment_id IS NULL
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, gatewayPaymentID, now, id)
	if err != nil {
		if isDuplicateEntryError(err) {
			return false, ErrPaymentAlreadyExists
		}
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uint64) (*entity.Payment, error) {
	return r.findOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
}

func (r *PaymentRepository) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*entity.Payment, error) {
	return r.findOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE gateway_payment_id = ? LIMIT 1`, gatewayPaymentID)
}

func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (*entity.Payment, error) {
	return r.findOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE reference = ? LIMIT 1`, reference)
}

func (r *PaymentRepository) FindLatestApprovedByUser(ctx context.Context, userID uint64) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = ? AND status = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return r.findOne(ctx, query, userID, string(entity.PaymentStatusApproved))
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID uint64, limit int32) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	return r.list(ctx, query, userID, limit)
}

// ListForReconcile returns open attempts with a gateway id that have not been
// touched since before.
func (r *PaymentRepository) ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status IN (?, ?)
		  AND gateway_payment_id IS NOT NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`
	return r.list(ctx, query,
		string(entity.PaymentStatusPending),
		string(entity.PaymentStatusInReview),
		before,
		limit,
	)
}

// ListMonitorable returns open attempts with a gateway id created since the
// given time. Used to resume polling after a restart.
func (r *PaymentRepository) ListMonitorable(ctx context.Context, since time.Time, limit int32) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status IN (?, ?)
		  AND gateway_payment_id IS NOT NULL
		  AND created_at >= ?
		ORDER BY created_at ASC
		LIMIT ?
	`
	return r.list(ctx, query,
		string(entity.PaymentStatusPending),
		string(entity.PaymentStatusInReview),
		since,
		limit,
	)
}

func (r *PaymentRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Payment, error) {
	payment := &entity.Payment{}
	if err := scanPayment(conn(ctx, r.db).QueryRowContext(ctx, query, args...), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *PaymentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Payment, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var gatewayPaymentID sql.NullString
	var gatewayPreferenceID sql.NullString
	var status string
	var tier string

	err := scan.Scan(
		&payment.ID,
		&payment.Reference,
		&payment.UserID,
		&gatewayPaymentID,
		&gatewayPreferenceID,
		&payment.Amount,
		&status,
		&tier,
		&payment.PaymentMethod,
		&payment.PaymentType,
		&payment.Installments,
		&payment.GatewayStatus,
		&payment.GatewayStatusDetail,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	payment.GatewayPaymentID = stringPtrFromNull(gatewayPaymentID)
	payment.GatewayPreferenceID = stringPtrFromNull(gatewayPreferenceID)
	payment.Status = entity.PaymentStatus(status)
	payment.SubscriptionTier = entity.SubscriptionTier(tier)

	return nil
}
