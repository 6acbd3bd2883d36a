package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/entity"
)

func sign(t *testing.T, secret, manifest string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyMercadoPagoSignature(t *testing.T) {
	secret := "mp-secret"
	sig := sign(t, secret, "id:123456;request-id:req-1;ts:1704908010;")
	header := "ts=1704908010,v1=" + sig

	if !verifyMercadoPagoSignature(header, "req-1", "123456", secret) {
		t.Fatal("expected signature to validate")
	}
	if verifyMercadoPagoSignature(header, "req-2", "123456", secret) {
		t.Fatal("expected signature with another request id to fail")
	}
	if verifyMercadoPagoSignature(header, "req-1", "123456", "wrong-secret") {
		t.Fatal("expected signature with wrong secret to fail")
	}
	if verifyMercadoPagoSignature("v1="+sig, "req-1", "123456", secret) {
		t.Fatal("expected signature without ts to fail")
	}
}

func TestVerifyNotificationSignatureWithoutSecretAcceptsAll(t *testing.T) {
	gw := NewMercadoPagoGateway(MercadoPagoConfig{AccessToken: "TEST"})
	if !gw.VerifyNotificationSignature("", "", "1") {
		t.Fatal("expected delivery to be accepted when no secret is configured")
	}
}

func TestMapStatus(t *testing.T) {
	cases := map[string]entity.PaymentStatus{
		"approved":     entity.PaymentStatusApproved,
		"in_process":   entity.PaymentStatusPending,
		"pending":      entity.PaymentStatusPending,
		"authorized":   entity.PaymentStatusPending,
		"in_mediation": entity.PaymentStatusInReview,
		"rejected":     entity.PaymentStatusRejected,
		"cancelled":    entity.PaymentStatusCancelled,
		"refunded":     entity.PaymentStatusRefunded,
		"charged_back": entity.PaymentStatusRefunded,
	}
	for raw, want := range cases {
		got, ok := MapStatus(raw)
		if !ok || got != want {
			t.Fatalf("MapStatus(%q) = %q, %v; want %q", raw, got, ok, want)
		}
	}

	if _, ok := MapStatus("something_new"); ok {
		t.Fatal("expected unknown status to be unmapped")
	}
}

func TestCreatePaymentSendsIdempotencyKeyAndParsesResponse(t *testing.T) {
	var gotKey, gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payments" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("X-Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1319238429,"status":"in_process","status_detail":"pending_contingency","transaction_amount":49.9,"payment_method_id":"visa","payment_type_id":"credit_card","installments":1,"external_reference":"ref-1"}`))
	}))
	defer srv.Close()

	gw := NewMercadoPagoGateway(MercadoPagoConfig{AccessToken: "TEST-token", BaseURL: srv.URL})
	out, err := gw.CreatePayment(context.Background(), &CreatePaymentInput{
		IdempotencyKey:    "idem-1",
		ExternalReference: "ref-1",
		Token:             "card-token",
		PaymentMethodID:   "visa",
		Amount:            decimal.RequireFromString("49.90"),
		Payer:             Payer{Email: "ana@example.com", IdentificationType: "CPF", IdentificationNumber: "12345678909"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if gotKey != "idem-1" {
		t.Fatalf("expected idempotency key header, got %q", gotKey)
	}
	if gotAuth != "Bearer TEST-token" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotBody["transaction_amount"] != 49.9 {
		t.Fatalf("expected numeric transaction_amount, got %#v", gotBody["transaction_amount"])
	}
	if gotBody["installments"] != float64(1) {
		t.Fatalf("expected installments defaulted to 1, got %#v", gotBody["installments"])
	}

	if out.ID != "1319238429" {
		t.Fatalf("unexpected payment id %q", out.ID)
	}
	if out.Status != entity.PaymentStatusPending || out.RawStatus != "in_process" {
		t.Fatalf("unexpected status %q/%q", out.Status, out.RawStatus)
	}
	if !out.Amount.Equal(decimal.RequireFromString("49.90")) {
		t.Fatalf("unexpected amount %s", out.Amount)
	}
}

func TestCreatePaymentReturnsGatewayErrorWithPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid card token","status":400}`))
	}))
	defer srv.Close()

	gw := NewMercadoPagoGateway(MercadoPagoConfig{AccessToken: "TEST-token", BaseURL: srv.URL})
	_, err := gw.CreatePayment(context.Background(), &CreatePaymentInput{
		Token:           "bad",
		PaymentMethodID: "visa",
		Amount:          decimal.RequireFromString("29.90"),
	})

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status code %d", gwErr.StatusCode)
	}
	if string(gwErr.Payload) != `{"message":"invalid card token","status":400}` {
		t.Fatalf("unexpected payload %s", string(gwErr.Payload))
	}
}

func TestCreatePreference(t *testing.T) {
	var gotBody mpPreferenceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout/preferences" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"id":"pref-1","init_point":"https://mp/init","sandbox_init_point":"https://mp/sandbox"}`))
	}))
	defer srv.Close()

	gw := NewMercadoPagoGateway(MercadoPagoConfig{AccessToken: "TEST-token", BaseURL: srv.URL})
	pref, err := gw.CreatePreference(context.Background(), &CreatePreferenceInput{
		ExternalReference: "ref-9",
		NotificationURL:   "https://api.example.com/payments/webhook",
		Title:             "Premium",
		Amount:            decimal.RequireFromString("29.90"),
		SuccessURL:        "https://app.example.com/success",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pref.ID != "pref-1" || pref.InitPoint != "https://mp/init" || pref.SandboxInitPoint != "https://mp/sandbox" {
		t.Fatalf("unexpected preference %+v", pref)
	}
	if gotBody.ExternalReference != "ref-9" || gotBody.AutoReturn != "approved" {
		t.Fatalf("unexpected preference request %+v", gotBody)
	}
	if len(gotBody.Items) != 1 || gotBody.Items[0].UnitPrice.String() != "29.90" || gotBody.Items[0].CurrencyID != "BRL" {
		t.Fatalf("unexpected items %+v", gotBody.Items)
	}
}

func TestGetPaymentUnknownStatusIsUnmapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":42,"status":"mystery","transaction_amount":10}`))
	}))
	defer srv.Close()

	gw := NewMercadoPagoGateway(MercadoPagoConfig{AccessToken: "TEST-token", BaseURL: srv.URL})
	out, err := gw.GetPayment(context.Background(), "42")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Status != "" || out.RawStatus != "mystery" {
		t.Fatalf("expected unmapped status, got %q/%q", out.Status, out.RawStatus)
	}
}
