package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/auth"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/entity"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/events"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/provider"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/repository"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/service"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/types"
	"github.com/vibast-solutions/ms-go-wellness-payments/config"
)

type controllerPaymentRepo struct {
	mu       sync.Mutex
	payments map[uint64]*entity.Payment
	nextID   uint64
}

func newControllerPaymentRepo() *controllerPaymentRepo {
	return &controllerPaymentRepo{payments: map[uint64]*entity.Payment{}, nextID: 1}
}

func (r *controllerPaymentRepo) Create(_ context.Context, payment *entity.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment.ID = r.nextID
	r.nextID++
	copyItem := *payment
	r.payments[payment.ID] = &copyItem
	return nil
}

func (r *controllerPaymentRepo) TransitionStatus(_ context.Context, t *repository.StatusTransition) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.payments[t.PaymentID]
	if !ok || item.Status.Terminal() {
		return false, nil
	}
	item.Status = t.Status
	item.SubscriptionTier = t.SubscriptionTier
	item.UpdatedAt = t.UpdatedAt
	return true, nil
}

func (r *controllerPaymentRepo) BindGatewayPayment(context.Context, uint64, string, time.Time) (bool, error) {
	return false, nil
}

func (r *controllerPaymentRepo) FindByID(_ context.Context, id uint64) (*entity.Payment, error) {
	return r.find(func(p *entity.Payment) bool { return p.ID == id }), nil
}

func (r *controllerPaymentRepo) FindByGatewayPaymentID(_ context.Context, gatewayPaymentID string) (*entity.Payment, error) {
	return r.find(func(p *entity.Payment) bool { return p.GatewayID() == gatewayPaymentID }), nil
}

func (r *controllerPaymentRepo) FindByReference(_ context.Context, reference string) (*entity.Payment, error) {
	return r.find(func(p *entity.Payment) bool { return p.Reference == reference }), nil
}

func (r *controllerPaymentRepo) FindLatestApprovedByUser(_ context.Context, userID uint64) (*entity.Payment, error) {
	return r.find(func(p *entity.Payment) bool {
		return p.UserID == userID && p.Status == entity.PaymentStatusApproved
	}), nil
}

func (r *controllerPaymentRepo) ListByUser(_ context.Context, userID uint64, _ int32) ([]*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Payment, 0)
	for id := uint64(1); id < r.nextID; id++ {
		if item, ok := r.payments[id]; ok && item.UserID == userID {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	return items, nil
}

func (r *controllerPaymentRepo) ListForReconcile(context.Context, time.Time, int32) ([]*entity.Payment, error) {
	return []*entity.Payment{}, nil
}

func (r *controllerPaymentRepo) ListMonitorable(context.Context, time.Time, int32) ([]*entity.Payment, error) {
	return []*entity.Payment{}, nil
}

func (r *controllerPaymentRepo) find(match func(p *entity.Payment) bool) *entity.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.payments {
		if match(item) {
			copyItem := *item
			return &copyItem
		}
	}
	return nil
}

type controllerUserRepo struct {
	mu    sync.Mutex
	users map[uint64]*entity.User
}

func (r *controllerUserRepo) FindByID(_ context.Context, id uint64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *controllerUserRepo) ApplyEntitlement(_ context.Context, userID uint64, tier entity.SubscriptionTier, points int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	item.SubscriptionStatus = tier
	item.Points += points
	return nil
}

type controllerEventRepo struct{}

func (r *controllerEventRepo) Create(context.Context, *entity.PaymentEvent) error {
	return nil
}

type controllerNotificationRepo struct {
	mu    sync.Mutex
	items []*entity.PaymentNotification
}

func (r *controllerNotificationRepo) Create(_ context.Context, n *entity.PaymentNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return nil
}

type controllerTx struct{}

func (controllerTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type controllerGateway struct {
	createOut *provider.GatewayPayment
	createErr error
	payments  map[string]*provider.GatewayPayment
}

func (g *controllerGateway) CreatePayment(_ context.Context, input *provider.CreatePaymentInput) (*provider.GatewayPayment, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	out := *g.createOut
	out.ExternalReference = input.ExternalReference
	return &out, nil
}

func (g *controllerGateway) CreatePreference(_ context.Context, input *provider.CreatePreferenceInput) (*provider.Preference, error) {
	return &provider.Preference{ID: "pref-1", InitPoint: "https://mp/init", SandboxInitPoint: "https://mp/sandbox"}, nil
}

func (g *controllerGateway) GetPayment(_ context.Context, id string) (*provider.GatewayPayment, error) {
	if item, ok := g.payments[id]; ok {
		out := *item
		return &out, nil
	}
	return nil, &provider.GatewayError{StatusCode: http.StatusNotFound, Payload: []byte(`{"message":"not found"}`)}
}

func (g *controllerGateway) VerifyNotificationSignature(string, string, string) bool {
	return true
}

type controllerFixture struct {
	controller *PaymentController
	payments   *controllerPaymentRepo
	users      *controllerUserRepo
	gateway    *controllerGateway
	receipts   *controllerNotificationRepo
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()

	f := &controllerFixture{
		payments: newControllerPaymentRepo(),
		users: &controllerUserRepo{users: map[uint64]*entity.User{
			7: {ID: 7, Email: "ana@example.com", SubscriptionStatus: entity.SubscriptionFree},
		}},
		gateway:  &controllerGateway{payments: map[string]*provider.GatewayPayment{}},
		receipts: &controllerNotificationRepo{},
	}
	cfg := config.PaymentsConfig{MonitorMaxAttempts: 2, MonitorInterval: time.Hour, BonusPoints: 500}

	reconciler := service.NewPaymentReconciler(
		f.payments,
		&controllerEventRepo{},
		controllerTx{},
		service.NewSubscriptionLedger(f.users, cfg.BonusPoints),
		f.gateway,
		events.NoopPublisher{},
		cfg,
	)
	t.Cleanup(func() { _ = reconciler.Shutdown(context.Background()) })

	paymentService := service.NewPaymentService(f.payments, f.users, reconciler, f.gateway, cfg)
	webhookService := service.NewWebhookService(reconciler, f.gateway, f.receipts, nil)
	f.controller = NewPaymentController(paymentService, reconciler, webhookService)
	return f
}

func (f *controllerFixture) seed(gatewayID string, userID uint64, status entity.PaymentStatus) *entity.Payment {
	gid := gatewayID
	now := time.Now().UTC()
	p := &entity.Payment{
		Reference:        "ref-" + gatewayID,
		UserID:           userID,
		GatewayPaymentID: &gid,
		Amount:           decimal.RequireFromString("29.90"),
		Status:           status,
		SubscriptionTier: entity.SubscriptionPremium,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	_ = f.payments.Create(context.Background(), p)
	return p
}

func newJSONContext(method, target, body string, userID uint64) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	if userID > 0 {
		auth.WithUserID(ctx, userID)
	}
	return ctx, rec
}

func TestHealth(t *testing.T) {
	f := newControllerFixture(t)
	ctx, rec := newJSONContext(http.MethodGet, "/health", "", 0)

	if err := f.controller.Health(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreatePaymentDirectApproved(t *testing.T) {
	f := newControllerFixture(t)
	f.gateway.createOut = &provider.GatewayPayment{
		ID:           "mp-1",
		RawStatus:    "approved",
		Status:       entity.PaymentStatusApproved,
		StatusDetail: "accredited",
		Amount:       decimal.RequireFromString("49.90"),
	}

	body := `{"paymentData":{"token":"tok","payment_method_id":"visa","transaction_amount":49.90,"installments":1,"payer":{"email":"ana@example.com"}},"userData":{"name":"Ana"}}`
	ctx, rec := newJSONContext(http.MethodPost, "/payments/create", body, 7)

	if err := f.controller.CreatePayment(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp types.CreatePaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.PaymentID != "mp-1" || resp.Status != "approved" || resp.StatusDetail != "accredited" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if user := f.users.users[7]; user.SubscriptionStatus != entity.SubscriptionPremiumPlus || user.Points != 500 {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestCreatePaymentPlanReturnsPreference(t *testing.T) {
	f := newControllerFixture(t)
	ctx, rec := newJSONContext(http.MethodPost, "/payments/create", `{"planType":"premium"}`, 7)

	if err := f.controller.CreatePayment(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp types.PreferenceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PreferenceID != "pref-1" || resp.InitPoint != "https://mp/init" || resp.ID == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCreatePaymentValidationErrorSkipsGateway(t *testing.T) {
	f := newControllerFixture(t)
	ctx, rec := newJSONContext(http.MethodPost, "/payments/direct", `{"paymentData":{"payment_method_id":"visa"}}`, 7)

	if err := f.controller.CreateDirectPayment(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(f.payments.payments) != 0 {
		t.Fatal("expected no record")
	}
}

func TestCreatePaymentGatewayErrorReturnsPayload(t *testing.T) {
	f := newControllerFixture(t)
	f.gateway.createErr = &provider.GatewayError{StatusCode: http.StatusBadRequest, Payload: []byte(`{"message":"invalid card token"}`)}

	body := `{"paymentData":{"token":"bad","payment_method_id":"visa","transaction_amount":29.90,"payer":{"email":"ana@example.com"}}}`
	ctx, rec := newJSONContext(http.MethodPost, "/payments/direct", body, 7)

	if err := f.controller.CreateDirectPayment(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	var resp types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if string(resp.Details) != `{"message":"invalid card token"}` {
		t.Fatalf("expected gateway payload, got %s", string(resp.Details))
	}
}

func TestCreatePaymentRequiresUser(t *testing.T) {
	f := newControllerFixture(t)
	ctx, rec := newJSONContext(http.MethodPost, "/payments/create", `{"planType":"premium"}`, 0)

	if err := f.controller.CreatePayment(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGetPaymentStatusCodes(t *testing.T) {
	f := newControllerFixture(t)
	f.seed("mp-own", 7, entity.PaymentStatusApproved)
	f.seed("mp-other", 8, entity.PaymentStatusApproved)

	cases := []struct {
		id   string
		want int
	}{
		{id: "mp-own", want: http.StatusOK},
		{id: "mp-other", want: http.StatusForbidden},
		{id: "missing", want: http.StatusNotFound},
	}
	for _, tc := range cases {
		ctx, rec := newJSONContext(http.MethodGet, "/payments/status/"+tc.id, "", 7)
		ctx.SetParamNames("paymentId")
		ctx.SetParamValues(tc.id)

		if err := f.controller.GetPaymentStatus(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.id, tc.want, rec.Code)
		}
		if tc.want == http.StatusForbidden && bytes.Contains(rec.Body.Bytes(), []byte("approved")) {
			t.Fatal("expected forbidden response to carry no payment data")
		}
	}
}

func TestUpdatePaymentStatus(t *testing.T) {
	f := newControllerFixture(t)
	f.seed("mp-open", 7, entity.PaymentStatusPending)
	f.seed("mp-done", 7, entity.PaymentStatusRejected)

	ctx, rec := newJSONContext(http.MethodPut, "/payments/status/mp-open", `{"status":"approved"}`, 0)
	ctx.SetParamNames("paymentId")
	ctx.SetParamValues("mp-open")
	if err := f.controller.UpdatePaymentStatus(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.users.users[7].Points != 500 {
		t.Fatalf("expected entitlement applied, got %d points", f.users.users[7].Points)
	}

	ctx, rec = newJSONContext(http.MethodPut, "/payments/status/mp-done", `{"status":"approved"}`, 0)
	ctx.SetParamNames("paymentId")
	ctx.SetParamValues("mp-done")
	if err := f.controller.UpdatePaymentStatus(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleWebhookAlwaysAcknowledges(t *testing.T) {
	f := newControllerFixture(t)
	f.seed("mp-1", 7, entity.PaymentStatusPending)
	f.gateway.payments["mp-1"] = &provider.GatewayPayment{
		ID:        "mp-1",
		RawStatus: "approved",
		Status:    entity.PaymentStatusApproved,
		Amount:    decimal.RequireFromString("29.90"),
	}

	bodies := []string{
		`{"id":1,"type":"payment","action":"payment.updated","data":{"id":"mp-1"}}`,
		`{"id":2,"type":"payment","data":{"id":"unknown"}}`,
		`garbage`,
	}
	for _, body := range bodies {
		ctx, rec := newJSONContext(http.MethodPost, "/payments/webhook", body, 0)
		if err := f.controller.HandleWebhook(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"received":true`)) {
			t.Fatalf("expected ack, got %d %s", rec.Code, rec.Body.String())
		}
	}

	if len(f.receipts.items) != 3 {
		t.Fatalf("expected 3 receipts, got %d", len(f.receipts.items))
	}
	if f.users.users[7].SubscriptionStatus != entity.SubscriptionPremium {
		t.Fatal("expected webhook to activate subscription")
	}
}

func TestSubscriptionDetailsAndHistory(t *testing.T) {
	f := newControllerFixture(t)
	f.users.users[7].SubscriptionStatus = entity.SubscriptionPremium
	f.users.users[7].Points = 500
	f.seed("mp-1", 7, entity.PaymentStatusApproved)

	ctx, rec := newJSONContext(http.MethodGet, "/subscriptions/details", "", 7)
	if err := f.controller.GetSubscriptionDetails(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	var details types.SubscriptionDetailsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &details); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !details.IsPremium || details.Points != 500 || details.SubscriptionDetails == nil || details.SubscriptionDetails.PaymentID != "mp-1" {
		t.Fatalf("unexpected details %+v", details)
	}

	ctx, rec = newJSONContext(http.MethodGet, "/subscriptions/history", "", 7)
	if err := f.controller.GetSubscriptionHistory(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	var history []types.PaymentHistoryItem
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(history) != 1 || history[0].Amount != "29.90" || history[0].SubscriptionType != "premium" {
		t.Fatalf("unexpected history %+v", history)
	}
}
