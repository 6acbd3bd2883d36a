package types

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// FlexibleString accepts a JSON string or number. The gateway sends ids in
// both forms depending on the notification version.
type FlexibleString string

func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexibleString(n.String())
	return nil
}

type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type PayerData struct {
	Email          string          `json:"email"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	Identification *Identification `json:"identification"`
}

// PaymentData is the card payment produced by the gateway's client-side
// card form.
type PaymentData struct {
	Token             string          `json:"token"`
	PaymentMethodID   string          `json:"payment_method_id"`
	IssuerID          FlexibleString  `json:"issuer_id"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	Installments      int32           `json:"installments"`
	Description       string          `json:"description"`
	Payer             *PayerData      `json:"payer"`
}

// UserData accepts both "name" and the legacy "nome" key.
type UserData struct {
	Name  string `json:"name"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
}

func (u *UserData) DisplayName() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	return strings.TrimSpace(u.Nome)
}

type CreatePaymentRequest struct {
	PlanType    string       `json:"planType"`
	PaymentData *PaymentData `json:"paymentData"`
	UserData    *UserData    `json:"userData"`
}

func NewCreatePaymentRequestFromContext(ctx echo.Context) (*CreatePaymentRequest, error) {
	var body CreatePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.PlanType = strings.ToLower(strings.TrimSpace(body.PlanType))
	if body.PaymentData != nil {
		body.PaymentData.Token = strings.TrimSpace(body.PaymentData.Token)
		body.PaymentData.PaymentMethodID = strings.TrimSpace(body.PaymentData.PaymentMethodID)
		body.PaymentData.Description = strings.TrimSpace(body.PaymentData.Description)
	}
	if body.UserData != nil {
		body.UserData.Email = strings.TrimSpace(body.UserData.Email)
	}

	return &body, nil
}

func (r *CreatePaymentRequest) Validate() error {
	if r.PaymentData == nil {
		if r.PlanType == "" {
			return errors.New("planType or paymentData is required")
		}
		if r.PlanType != "premium" && r.PlanType != "premium_plus" {
			return errors.New("planType must be premium or premium_plus")
		}
		return nil
	}

	return r.PaymentData.validate(r.UserData)
}

// ValidateDirect is used by the direct endpoint, which has no plan form.
func (r *CreatePaymentRequest) ValidateDirect() error {
	if r.PaymentData == nil {
		return errors.New("paymentData is required")
	}
	return r.PaymentData.validate(r.UserData)
}

func (p *PaymentData) validate(user *UserData) error {
	if p.Token == "" {
		return errors.New("paymentData.token is required")
	}
	if p.PaymentMethodID == "" {
		return errors.New("paymentData.payment_method_id is required")
	}
	if !p.TransactionAmount.IsPositive() {
		return errors.New("paymentData.transaction_amount must be > 0")
	}
	if p.Installments < 0 {
		return errors.New("paymentData.installments must be >= 0")
	}
	email := ""
	if p.Payer != nil {
		email = strings.TrimSpace(p.Payer.Email)
	}
	if email == "" && user != nil {
		email = user.Email
	}
	if email == "" {
		return errors.New("payer email is required")
	}
	return nil
}

type GetPaymentStatusRequest struct {
	PaymentID string
}

func NewGetPaymentStatusRequestFromContext(ctx echo.Context) (*GetPaymentStatusRequest, error) {
	return &GetPaymentStatusRequest{PaymentID: strings.TrimSpace(ctx.Param("paymentId"))}, nil
}

func (r *GetPaymentStatusRequest) Validate() error {
	if r.PaymentID == "" {
		return errors.New("paymentId is required")
	}
	return nil
}

type UpdatePaymentStatusRequest struct {
	PaymentID string `json:"-"`
	Status    string `json:"status"`
}

func NewUpdatePaymentStatusRequestFromContext(ctx echo.Context) (*UpdatePaymentStatusRequest, error) {
	var body UpdatePaymentStatusRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	body.PaymentID = strings.TrimSpace(ctx.Param("paymentId"))
	body.Status = strings.ToLower(strings.TrimSpace(body.Status))
	return &body, nil
}

func (r *UpdatePaymentStatusRequest) Validate() error {
	if r.PaymentID == "" {
		return errors.New("paymentId is required")
	}
	switch r.Status {
	case "pending", "in_review", "approved", "rejected", "cancelled", "refunded":
		return nil
	case "":
		return errors.New("status is required")
	default:
		return errors.New("status is invalid")
	}
}

// WebhookRequest is a MercadoPago notification. Query parameters (IPN style
// deliveries) fill whatever the JSON body leaves empty.
type WebhookRequest struct {
	NotificationID string
	Type           string
	Action         string
	DataID         string
	Signature      string
	RequestID      string
	Payload        string
}

func (r *WebhookRequest) GetNotificationID() string { return r.NotificationID }
func (r *WebhookRequest) GetType() string           { return r.Type }
func (r *WebhookRequest) GetAction() string         { return r.Action }
func (r *WebhookRequest) GetDataID() string         { return r.DataID }
func (r *WebhookRequest) GetSignature() string      { return r.Signature }
func (r *WebhookRequest) GetRequestID() string      { return r.RequestID }
func (r *WebhookRequest) GetPayload() string        { return r.Payload }

// NewWebhookRequestFromContext never fails on a malformed body; the
// notification is then returned with empty type and data id.
func NewWebhookRequestFromContext(ctx echo.Context) (*WebhookRequest, error) {
	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}

	req := &WebhookRequest{
		Signature: strings.TrimSpace(ctx.Request().Header.Get("X-Signature")),
		RequestID: strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID)),
		Payload:   string(rawBody),
	}
	if strings.TrimSpace(req.Payload) == "" {
		req.Payload = "{}"
	}

	var body struct {
		ID     FlexibleString `json:"id"`
		Type   string         `json:"type"`
		Topic  string         `json:"topic"`
		Action string         `json:"action"`
		Data   struct {
			ID FlexibleString `json:"id"`
		} `json:"data"`
	}
	if len(rawBody) > 0 && json.Unmarshal(rawBody, &body) == nil {
		req.NotificationID = strings.TrimSpace(string(body.ID))
		req.Type = strings.TrimSpace(body.Type)
		if req.Type == "" {
			req.Type = strings.TrimSpace(body.Topic)
		}
		req.Action = strings.TrimSpace(body.Action)
		req.DataID = strings.TrimSpace(string(body.Data.ID))
	}

	if req.Type == "" {
		req.Type = strings.TrimSpace(ctx.QueryParam("type"))
	}
	if req.Type == "" {
		req.Type = strings.TrimSpace(ctx.QueryParam("topic"))
	}
	if req.DataID == "" {
		req.DataID = strings.TrimSpace(ctx.QueryParam("data.id"))
	}
	if req.DataID == "" && req.Type != "" {
		req.DataID = strings.TrimSpace(ctx.QueryParam("id"))
	}

	return req, nil
}
