package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/entity"
)

const defaultMercadoPagoBaseURL = "https://api.mercadopago.com"

type MercadoPagoConfig struct {
	AccessToken   string
	WebhookSecret string
	BaseURL       string
	HTTPTimeout   time.Duration
}

type MercadoPagoGateway struct {
	cfg    MercadoPagoConfig
	client *http.Client
}

func NewMercadoPagoGateway(cfg MercadoPagoConfig) *MercadoPagoGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultMercadoPagoBaseURL
	}

	return &MercadoPagoGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// MapStatus translates a MercadoPago payment status. The second result is
// false for statuses with no local meaning.
func MapStatus(raw string) (entity.PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved":
		return entity.PaymentStatusApproved, true
	case "pending", "in_process", "authorized":
		return entity.PaymentStatusPending, true
	case "in_mediation":
		return entity.PaymentStatusInReview, true
	case "rejected":
		return entity.PaymentStatusRejected, true
	case "cancelled":
		return entity.PaymentStatusCancelled, true
	case "refunded", "charged_back":
		return entity.PaymentStatusRefunded, true
	default:
		return "", false
	}
}

type mpIdentification struct {
	Type   string `json:"type,omitempty"`
	Number string `json:"number,omitempty"`
}

type mpPayer struct {
	Email          string            `json:"email,omitempty"`
	FirstName      string            `json:"first_name,omitempty"`
	LastName       string            `json:"last_name,omitempty"`
	Identification *mpIdentification `json:"identification,omitempty"`
}

type mpPaymentRequest struct {
	TransactionAmount json.Number `json:"transaction_amount"`
	Token             string      `json:"token"`
	Description       string      `json:"description,omitempty"`
	Installments      int32       `json:"installments"`
	PaymentMethodID   string      `json:"payment_method_id"`
	IssuerID          string      `json:"issuer_id,omitempty"`
	ExternalReference string      `json:"external_reference,omitempty"`
	NotificationURL   string      `json:"notification_url,omitempty"`
	Payer             mpPayer     `json:"payer"`
}

type mpPayment struct {
	ID                json.Number     `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	PaymentMethodID   string          `json:"payment_method_id"`
	PaymentTypeID     string          `json:"payment_type_id"`
	Installments      int32           `json:"installments"`
	ExternalReference string          `json:"external_reference"`
}

type mpPreferenceItem struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Quantity   int         `json:"quantity"`
	UnitPrice  json.Number `json:"unit_price"`
	CurrencyID string      `json:"currency_id,omitempty"`
}

type mpBackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type mpPreferenceRequest struct {
	Items             []mpPreferenceItem `json:"items"`
	Payer             *mpPayer           `json:"payer,omitempty"`
	BackURLs          mpBackURLs         `json:"back_urls"`
	AutoReturn        string             `json:"auto_return,omitempty"`
	ExternalReference string             `json:"external_reference"`
	NotificationURL   string             `json:"notification_url,omitempty"`
}

type mpPreference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

func (g *MercadoPagoGateway) CreatePayment(ctx context.Context, input *CreatePaymentInput) (*GatewayPayment, error) {
	if strings.TrimSpace(g.cfg.AccessToken) == "" {
		return nil, errors.New("mercadopago access token is not configured")
	}

	installments := input.Installments
	if installments <= 0 {
		installments = 1
	}

	body := &mpPaymentRequest{
		TransactionAmount: json.Number(input.Amount.StringFixed(2)),
		Token:             input.Token,
		Description:       input.Description,
		Installments:      installments,
		PaymentMethodID:   input.PaymentMethodID,
		IssuerID:          input.IssuerID,
		ExternalReference: input.ExternalReference,
		NotificationURL:   input.NotificationURL,
		Payer: mpPayer{
			Email:     input.Payer.Email,
			FirstName: input.Payer.FirstName,
			LastName:  input.Payer.LastName,
		},
	}
	if input.Payer.IdentificationNumber != "" {
		body.Payer.Identification = &mpIdentification{
			Type:   input.Payer.IdentificationType,
			Number: input.Payer.IdentificationNumber,
		}
	}

	headers := map[string]string{}
	if input.IdempotencyKey != "" {
		headers["X-Idempotency-Key"] = input.IdempotencyKey
	}

	var payload mpPayment
	if err := g.do(ctx, http.MethodPost, "/v1/payments", body, headers, &payload); err != nil {
		return nil, err
	}

	return toGatewayPayment(&payload), nil
}

func (g *MercadoPagoGateway) CreatePreference(ctx context.Context, input *CreatePreferenceInput) (*Preference, error) {
	if strings.TrimSpace(g.cfg.AccessToken) == "" {
		return nil, errors.New("mercadopago access token is not configured")
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "BRL"
	}

	body := &mpPreferenceRequest{
		Items: []mpPreferenceItem{{
			ID:         input.ExternalReference,
			Title:      input.Title,
			Quantity:   1,
			UnitPrice:  json.Number(input.Amount.StringFixed(2)),
			CurrencyID: currency,
		}},
		BackURLs: mpBackURLs{
			Success: input.SuccessURL,
			Failure: input.FailureURL,
			Pending: input.PendingURL,
		},
		ExternalReference: input.ExternalReference,
		NotificationURL:   input.NotificationURL,
	}
	if input.SuccessURL != "" {
		body.AutoReturn = "approved"
	}
	if input.PayerEmail != "" {
		body.Payer = &mpPayer{Email: input.PayerEmail}
	}

	var payload mpPreference
	if err := g.do(ctx, http.MethodPost, "/checkout/preferences", body, nil, &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.ID) == "" {
		return nil, errors.New("mercadopago preference id missing")
	}

	return &Preference{
		ID:               payload.ID,
		InitPoint:        payload.InitPoint,
		SandboxInitPoint: payload.SandboxInitPoint,
	}, nil
}

func (g *MercadoPagoGateway) GetPayment(ctx context.Context, gatewayPaymentID string) (*GatewayPayment, error) {
	gatewayPaymentID = strings.TrimSpace(gatewayPaymentID)
	if gatewayPaymentID == "" {
		return nil, errors.New("gateway payment id is required")
	}

	var payload mpPayment
	if err := g.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(gatewayPaymentID), nil, nil, &payload); err != nil {
		return nil, err
	}

	return toGatewayPayment(&payload), nil
}

// VerifyNotificationSignature checks the x-signature header of a webhook
// delivery. Without a configured secret every delivery is accepted.
func (g *MercadoPagoGateway) VerifyNotificationSignature(signatureHeader, requestID, dataID string) bool {
	if strings.TrimSpace(g.cfg.WebhookSecret) == "" {
		return true
	}
	return verifyMercadoPagoSignature(signatureHeader, requestID, dataID, g.cfg.WebhookSecret)
}

func (g *MercadoPagoGateway) do(ctx context.Context, method, path string, body interface{}, headers map[string]string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("mercadopago %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mercadopago %s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode >= 400 {
		payload := json.RawMessage(respBody)
		if !json.Valid(respBody) {
			quoted, _ := json.Marshal(string(respBody))
			payload = quoted
		}
		return &GatewayError{StatusCode: resp.StatusCode, Payload: payload}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("mercadopago %s %s: decode: %w", method, path, err)
	}
	return nil
}

func toGatewayPayment(payload *mpPayment) *GatewayPayment {
	status, _ := MapStatus(payload.Status)
	return &GatewayPayment{
		ID:                payload.ID.String(),
		RawStatus:         payload.Status,
		Status:            status,
		StatusDetail:      payload.StatusDetail,
		Amount:            payload.TransactionAmount,
		PaymentMethodID:   payload.PaymentMethodID,
		PaymentTypeID:     payload.PaymentTypeID,
		Installments:      payload.Installments,
		ExternalReference: payload.ExternalReference,
	}
}

// verifyMercadoPagoSignature validates "ts=<unix>,v1=<hex hmac>" against the
// manifest "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
func verifyMercadoPagoSignature(signatureHeader, requestID, dataID, secret string) bool {
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" || strings.TrimSpace(secret) == "" {
		return false
	}

	var ts, v1 string
	for _, part := range strings.Split(signatureHeader, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	if ts == "" || v1 == "" {
		return false
	}

	manifest := signatureManifest(dataID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(manifest))
	expected := mac.Sum(nil)

	candidate, err := hex.DecodeString(v1)
	if err != nil {
		return false
	}
	return hmac.Equal(candidate, expected)
}

func signatureManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID = strings.ToLower(strings.TrimSpace(dataID)); dataID != "" {
		b.WriteString("id:" + dataID + ";")
	}
	if requestID = strings.TrimSpace(requestID); requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")
	return b.String()
}
