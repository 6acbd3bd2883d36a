package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/entity"
)

type Payer struct {
	Email                string
	FirstName            string
	LastName             string
	IdentificationType   string
	IdentificationNumber string
}

type CreatePaymentInput struct {
	IdempotencyKey    string
	ExternalReference string
	NotificationURL   string

	Token           string
	PaymentMethodID string
	IssuerID        string
	Installments    int32
	Amount          decimal.Decimal
	Description     string

	Payer Payer
}

type CreatePreferenceInput struct {
	ExternalReference string
	NotificationURL   string

	Title    string
	Amount   decimal.Decimal
	Currency string

	PayerEmail string

	SuccessURL string
	FailureURL string
	PendingURL string
}

type Preference struct {
	ID               string
	InitPoint        string
	SandboxInitPoint string
}

// GatewayPayment is the gateway's view of a payment. Status is empty when
// the raw gateway status has no local mapping.
type GatewayPayment struct {
	ID                string
	RawStatus         string
	Status            entity.PaymentStatus
	StatusDetail      string
	Amount            decimal.Decimal
	PaymentMethodID   string
	PaymentTypeID     string
	Installments      int32
	ExternalReference string
}

// GatewayError is a non-2xx answer from the gateway. Payload is the
// processor's body, surfaced to API clients as-is.
type GatewayError struct {
	StatusCode int
	Payload    json.RawMessage
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway request failed: status=%d body=%s", e.StatusCode, string(e.Payload))
}

type Gateway interface {
	CreatePayment(ctx context.Context, input *CreatePaymentInput) (*GatewayPayment, error)
	CreatePreference(ctx context.Context, input *CreatePreferenceInput) (*Preference, error)
	GetPayment(ctx context.Context, gatewayPaymentID string) (*GatewayPayment, error)
	VerifyNotificationSignature(signatureHeader, requestID, dataID string) bool
}
