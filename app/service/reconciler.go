package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/entity"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/events"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/factory"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/provider"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/repository"
	"github.com/vibast-solutions/ms-go-wellness-payments/config"
)

const (
	SourceCreate      = "create"
	SourceWebhook     = "webhook"
	SourcePoll        = "poll"
	SourceManual      = "manual"
	SourceSweep       = "sweep"
	SourceStatusCheck = "status_check"
)

const (
	defaultMonitorAttempts = 20
	defaultMonitorInterval = 30 * time.Second
	defaultPollTimeout     = 20 * time.Second
	resumeBatchSize        = int32(500)
)

type Outcome string

const (
	OutcomeTransitioned    Outcome = "transitioned"
	OutcomeStillPending    Outcome = "still_pending"
	OutcomeAlreadyTerminal Outcome = "already_terminal"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeIgnored         Outcome = "ignored"
)

type ReconcileResult struct {
	Outcome Outcome
	Payment *entity.Payment
}

type paymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	TransitionStatus(ctx context.Context, t *repository.StatusTransition) (bool, error)
	BindGatewayPayment(ctx context.Context, id uint64, gatewayPaymentID string, now time.Time) (bool, error)
	FindByID(ctx context.Context, id uint64) (*entity.Payment, error)
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*entity.Payment, error)
	FindByReference(ctx context.Context, reference string) (*entity.Payment, error)
	FindLatestApprovedByUser(ctx context.Context, userID uint64) (*entity.Payment, error)
	ListByUser(ctx context.Context, userID uint64, limit int32) ([]*entity.Payment, error)
	ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error)
	ListMonitorable(ctx context.Context, since time.Time, limit int32) ([]*entity.Payment, error)
}

type paymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
}

type transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type statusPublisher interface {
	PublishStatusChanged(ctx context.Context, event *events.PaymentStatusChanged) error
}

type DirectPaymentInput struct {
	Token           string
	PaymentMethodID string
	IssuerID        string
	Installments    int32
	Amount          decimal.Decimal
	Description     string
	Payer           provider.Payer
}

// CreateAttemptInput carries either a card payment or a plan for a hosted
// checkout preference.
type CreateAttemptInput struct {
	PlanType string
	Payment  *DirectPaymentInput

	PayerEmail string
	PayerName  string
}

type CreateAttemptResult struct {
	Payment    *entity.Payment
	Preference *provider.Preference
}

// PaymentReconciler is the only writer of payment statuses. Webhooks, polls,
// the sweep job and operators all funnel through the same conditional
// transition, so the entitlement is granted at most once per payment.
type PaymentReconciler struct {
	paymentRepo paymentRepository
	eventRepo   paymentEventRepository
	tx          transactor
	ledger      *SubscriptionLedger
	gateway     provider.Gateway
	publisher   statusPublisher
	monitors    *MonitorRegistry
	paymentsCfg config.PaymentsConfig
	logger      logrus.FieldLogger

	baseCtx     context.Context
	stop        context.CancelFunc
	pollTimeout time.Duration
	now         func() time.Time
	newID       func() string
}

func NewPaymentReconciler(
	paymentRepo paymentRepository,
	eventRepo paymentEventRepository,
	tx transactor,
	ledger *SubscriptionLedger,
	gateway provider.Gateway,
	publisher statusPublisher,
	paymentsCfg config.PaymentsConfig,
) *PaymentReconciler {
	if paymentsCfg.MonitorMaxAttempts <= 0 {
		paymentsCfg.MonitorMaxAttempts = defaultMonitorAttempts
	}
	if paymentsCfg.MonitorInterval <= 0 {
		paymentsCfg.MonitorInterval = defaultMonitorInterval
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	baseCtx, stop := context.WithCancel(context.Background())

	return &PaymentReconciler{
		paymentRepo: paymentRepo,
		eventRepo:   eventRepo,
		tx:          tx,
		ledger:      ledger,
		gateway:     gateway,
		publisher:   publisher,
		monitors:    NewMonitorRegistry(),
		paymentsCfg: paymentsCfg,
		logger:      factory.NewModuleLogger("payment-reconciler"),
		baseCtx:     baseCtx,
		stop:        stop,
		pollTimeout: defaultPollTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

func (r *PaymentReconciler) Monitors() *MonitorRegistry {
	return r.monitors
}

func (r *PaymentReconciler) CreateAttempt(ctx context.Context, userID uint64, input *CreateAttemptInput) (*CreateAttemptResult, error) {
	if userID == 0 || input == nil {
		return nil, ErrInvalidRequest
	}

	if input.Payment != nil {
		payment, err := r.createDirect(ctx, userID, input)
		if err != nil {
			return nil, err
		}
		return &CreateAttemptResult{Payment: payment}, nil
	}
	if strings.TrimSpace(input.PlanType) != "" {
		return r.createPreference(ctx, userID, input)
	}

	return nil, ErrInvalidRequest
}

func (r *PaymentReconciler) createDirect(ctx context.Context, userID uint64, input *CreateAttemptInput) (*entity.Payment, error) {
	in := input.Payment
	if strings.TrimSpace(in.Token) == "" || strings.TrimSpace(in.PaymentMethodID) == "" || !in.Amount.IsPositive() {
		return nil, ErrInvalidRequest
	}

	payer := in.Payer
	if strings.TrimSpace(payer.Email) == "" {
		payer.Email = strings.TrimSpace(input.PayerEmail)
	}
	if payer.Email == "" {
		return nil, ErrInvalidRequest
	}
	if payer.FirstName == "" && input.PayerName != "" {
		payer.FirstName, payer.LastName, _ = strings.Cut(strings.TrimSpace(input.PayerName), " ")
	}

	tier := TierForAmount(in.Amount)
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = planTitle(tier)
	}

	reference := r.newID()
	gp, err := r.gateway.CreatePayment(ctx, &provider.CreatePaymentInput{
		IdempotencyKey:    r.newID(),
		ExternalReference: reference,
		NotificationURL:   r.notificationURL(),
		Token:             strings.TrimSpace(in.Token),
		PaymentMethodID:   strings.TrimSpace(in.PaymentMethodID),
		IssuerID:          strings.TrimSpace(in.IssuerID),
		Installments:      in.Installments,
		Amount:            in.Amount,
		Description:       description,
		Payer:             payer,
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway payment: %w", err)
	}
	gatewayID := strings.TrimSpace(gp.ID)
	if gatewayID == "" {
		return nil, errors.New("gateway returned a payment without id")
	}

	amount := in.Amount
	if gp.Amount.IsPositive() {
		amount = gp.Amount
	}
	initial := entity.PaymentStatusPending
	if gp.Status == entity.PaymentStatusInReview {
		initial = entity.PaymentStatusInReview
	}
	paymentMethod := gp.PaymentMethodID
	if paymentMethod == "" {
		paymentMethod = strings.TrimSpace(in.PaymentMethodID)
	}

	now := r.now()
	payment := &entity.Payment{
		Reference:           reference,
		UserID:              userID,
		GatewayPaymentID:    &gatewayID,
		Amount:              amount,
		Status:              initial,
		SubscriptionTier:    TierForAmount(amount),
		PaymentMethod:       paymentMethod,
		PaymentType:         gp.PaymentTypeID,
		Installments:        gp.Installments,
		GatewayStatus:       gp.RawStatus,
		GatewayStatusDetail: gp.StatusDetail,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := r.paymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrPaymentAlreadyExists) {
			return nil, ErrPaymentAlreadyExists
		}
		return nil, fmt.Errorf("persist payment %s: %w", gatewayID, err)
	}
	r.recordEvent(ctx, payment.ID, entity.PaymentEventCreated, nil, payment.Status, SourceCreate, gatewaySnapshot(gp))

	logger := r.logger.WithFields(logrus.Fields{
		"payment_id":         payment.ID,
		"gateway_payment_id": gatewayID,
		"user_id":            userID,
		"gateway_status":     gp.RawStatus,
	})

	switch {
	case gp.Status == "":
		logger.Warn("Gateway returned unknown status, payment kept pending without monitor")
	case gp.Status.Terminal():
		result, err := r.transition(ctx, payment, gp, gp.Status, SourceCreate, entity.PaymentEventReconciled)
		if err != nil {
			logger.WithError(err).Error("Immediate reconcile failed, falling back to monitor")
			r.Monitor(gatewayID, userID, 0, 0)
			break
		}
		if result.Payment != nil {
			payment = result.Payment
		}
	default:
		r.Monitor(gatewayID, userID, 0, 0)
	}

	return payment, nil
}

func (r *PaymentReconciler) createPreference(ctx context.Context, userID uint64, input *CreateAttemptInput) (*CreateAttemptResult, error) {
	tier, price, ok := PlanPrice(input.PlanType)
	if !ok {
		return nil, ErrInvalidRequest
	}

	reference := r.newID()
	pref, err := r.gateway.CreatePreference(ctx, &provider.CreatePreferenceInput{
		ExternalReference: reference,
		NotificationURL:   r.notificationURL(),
		Title:             planTitle(tier),
		Amount:            price,
		PayerEmail:        strings.TrimSpace(input.PayerEmail),
		SuccessURL:        r.paymentsCfg.SuccessURL,
		FailureURL:        r.paymentsCfg.FailureURL,
		PendingURL:        r.paymentsCfg.PendingURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway preference: %w", err)
	}

	now := r.now()
	preferenceID := pref.ID
	payment := &entity.Payment{
		Reference:           reference,
		UserID:              userID,
		GatewayPreferenceID: &preferenceID,
		Amount:              price,
		Status:              entity.PaymentStatusPending,
		SubscriptionTier:    tier,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := r.paymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrPaymentAlreadyExists) {
			return nil, ErrPaymentAlreadyExists
		}
		return nil, fmt.Errorf("persist preference attempt %s: %w", preferenceID, err)
	}
	r.recordEvent(ctx, payment.ID, entity.PaymentEventCreated, nil, payment.Status, SourceCreate, map[string]string{
		"preference_id": preferenceID,
	})

	return &CreateAttemptResult{Payment: payment, Preference: pref}, nil
}

// Reconcile folds a gateway observation into the stored record. It is safe
// to call any number of times from any producer.
func (r *PaymentReconciler) Reconcile(ctx context.Context, gatewayPaymentID string, observed *provider.GatewayPayment, source string) (*ReconcileResult, error) {
	gatewayPaymentID = strings.TrimSpace(gatewayPaymentID)
	if gatewayPaymentID == "" || observed == nil {
		return nil, ErrInvalidRequest
	}

	logger := r.logger.WithFields(logrus.Fields{
		"gateway_payment_id": gatewayPaymentID,
		"gateway_status":     observed.RawStatus,
		"source":             source,
	})

	payment, err := r.paymentRepo.FindByGatewayPaymentID(ctx, gatewayPaymentID)
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", gatewayPaymentID, err)
	}
	if payment == nil {
		payment, err = r.bindByReference(ctx, gatewayPaymentID, observed.ExternalReference)
		if err != nil {
			return nil, err
		}
		if payment == nil {
			logger.Warn("Reconcile for unknown payment ignored")
			return &ReconcileResult{Outcome: OutcomeNotFound}, nil
		}
	}

	if observed.Status == "" {
		logger.Warn("Unknown gateway status ignored")
		return &ReconcileResult{Outcome: OutcomeIgnored, Payment: payment}, nil
	}
	if payment.Status.Terminal() {
		r.monitors.Cancel(gatewayPaymentID)
		return &ReconcileResult{Outcome: OutcomeAlreadyTerminal, Payment: payment}, nil
	}

	return r.transition(ctx, payment, observed, observed.Status, source, entity.PaymentEventReconciled)
}

// ForceStatus lets an operator settle a payment the gateway cannot resolve.
// Terminal records are refused.
func (r *PaymentReconciler) ForceStatus(ctx context.Context, gatewayPaymentID string, status string) (*entity.Payment, error) {
	target := entity.PaymentStatus(strings.ToLower(strings.TrimSpace(status)))
	gatewayPaymentID = strings.TrimSpace(gatewayPaymentID)
	if gatewayPaymentID == "" || !target.Valid() {
		return nil, ErrInvalidRequest
	}

	payment, err := r.paymentRepo.FindByGatewayPaymentID(ctx, gatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if payment.Status.Terminal() {
		return nil, ErrInvalidStatus
	}

	result, err := r.transition(ctx, payment, nil, target, SourceManual, entity.PaymentEventForced)
	if err != nil {
		return nil, err
	}
	if result.Outcome == OutcomeAlreadyTerminal {
		return nil, ErrInvalidStatus
	}

	return result.Payment, nil
}

// Monitor polls the gateway for one payment until it settles or attempts run
// out. Zero arguments take the configured defaults. It never blocks.
func (r *PaymentReconciler) Monitor(gatewayPaymentID string, userID uint64, maxAttempts int, interval time.Duration) bool {
	if maxAttempts <= 0 {
		maxAttempts = r.paymentsCfg.MonitorMaxAttempts
	}
	if interval <= 0 {
		interval = r.paymentsCfg.MonitorInterval
	}

	job := &pollJob{
		gatewayPaymentID: gatewayPaymentID,
		userID:           userID,
		maxAttempts:      maxAttempts,
		interval:         interval,
	}
	started := r.monitors.Start(gatewayPaymentID, interval, func(token uint64) {
		r.poll(job, 1, token)
	})
	if started {
		r.logger.WithFields(logrus.Fields{
			"gateway_payment_id": gatewayPaymentID,
			"user_id":            userID,
			"max_attempts":       maxAttempts,
			"interval":           interval.String(),
		}).Info("Payment monitor started")
	}
	return started
}

// ResumeMonitoring re-arms monitors for open payments still inside the
// polling window, with the attempts they have left.
func (r *PaymentReconciler) ResumeMonitoring(ctx context.Context) (int, error) {
	now := r.now()
	interval := r.paymentsCfg.MonitorInterval
	window := time.Duration(r.paymentsCfg.MonitorMaxAttempts) * interval

	items, err := r.paymentRepo.ListMonitorable(ctx, now.Add(-window), resumeBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list monitorable payments: %w", err)
	}

	resumed := 0
	for _, payment := range items {
		gatewayID := payment.GatewayID()
		if gatewayID == "" {
			continue
		}
		remaining := r.paymentsCfg.MonitorMaxAttempts - int(now.Sub(payment.CreatedAt)/interval)
		if remaining < 1 {
			remaining = 1
		}
		if r.Monitor(gatewayID, payment.UserID, remaining, interval) {
			resumed++
		}
	}

	return resumed, nil
}

// Shutdown stops all timers, aborts in-flight gateway calls and waits for
// polls to return or ctx to expire.
func (r *PaymentReconciler) Shutdown(ctx context.Context) error {
	stopped := r.monitors.CancelAll()
	r.stop()
	r.logger.WithField("stopped_monitors", stopped).Info("Payment monitors stopped")
	return r.monitors.Wait(ctx)
}

type pollJob struct {
	gatewayPaymentID string
	userID           uint64
	maxAttempts      int
	interval         time.Duration
}

func (r *PaymentReconciler) poll(job *pollJob, attempt int, token uint64) {
	logger := r.logger.WithFields(logrus.Fields{
		"gateway_payment_id": job.gatewayPaymentID,
		"user_id":            job.userID,
		"attempt":            attempt,
		"max_attempts":       job.maxAttempts,
	})

	ctx, cancel := context.WithTimeout(r.baseCtx, r.pollTimeout)
	defer cancel()

	observed, err := r.gateway.GetPayment(ctx, job.gatewayPaymentID)
	if err != nil {
		logger.WithError(err).Warn("Payment status poll failed")
		r.retry(job, attempt, token, logger)
		return
	}

	result, err := r.Reconcile(ctx, job.gatewayPaymentID, observed, SourcePoll)
	if err != nil {
		logger.WithError(err).Error("Reconcile from poll failed")
		r.retry(job, attempt, token, logger)
		return
	}
	if result.Outcome == OutcomeStillPending {
		r.retry(job, attempt, token, logger)
		return
	}

	logger.WithField("outcome", string(result.Outcome)).Debug("Payment monitor finished")
	r.monitors.Finish(job.gatewayPaymentID, token)
}

func (r *PaymentReconciler) retry(job *pollJob, attempt int, token uint64, logger logrus.FieldLogger) {
	if attempt >= job.maxAttempts {
		logger.Warn("Payment monitor exhausted, record left as is")
		r.monitors.Finish(job.gatewayPaymentID, token)
		return
	}

	next := attempt + 1
	r.monitors.Reschedule(job.gatewayPaymentID, token, job.interval, func(token uint64) {
		r.poll(job, next, token)
	})
}

// transition runs the conditional status update and, for approvals, the
// entitlement in one transaction. observed is nil for operator overrides.
func (r *PaymentReconciler) transition(
	ctx context.Context,
	payment *entity.Payment,
	observed *provider.GatewayPayment,
	target entity.PaymentStatus,
	source string,
	eventType string,
) (*ReconcileResult, error) {
	now := r.now()
	oldStatus := payment.Status

	tier := payment.SubscriptionTier
	if target == entity.PaymentStatusApproved && observed != nil && observed.Amount.IsPositive() {
		tier = TierForAmount(observed.Amount)
	}
	if !tier.Paid() {
		tier = TierForAmount(payment.Amount)
	}

	update := &repository.StatusTransition{
		PaymentID:        payment.ID,
		Status:           target,
		SubscriptionTier: tier,
		UpdatedAt:        now,
	}
	var snapshot interface{}
	if observed != nil {
		update.PaymentMethod = observed.PaymentMethodID
		update.PaymentType = observed.PaymentTypeID
		update.Installments = observed.Installments
		update.GatewayStatus = observed.RawStatus
		update.GatewayStatusDetail = observed.StatusDetail
		snapshot = gatewaySnapshot(observed)
	}

	var changed bool
	var consistencyErr *ConsistencyError
	err := r.tx.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		changed, err = r.paymentRepo.TransitionStatus(txCtx, update)
		if err != nil {
			return fmt.Errorf("transition payment %d: %w", payment.ID, err)
		}
		if !changed {
			return nil
		}

		r.recordEvent(txCtx, payment.ID, eventType, &oldStatus, target, source, snapshot)
		if target != entity.PaymentStatusApproved {
			return nil
		}

		if err := r.ledger.Apply(txCtx, payment.UserID, tier); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				consistencyErr = &ConsistencyError{PaymentID: payment.ID, UserID: payment.UserID, Err: err}
				r.recordEvent(txCtx, payment.ID, entity.PaymentEventEntitlementFailed, nil, target, source, map[string]string{
					"error": err.Error(),
				})
				return nil
			}
			return fmt.Errorf("apply entitlement for payment %d: %w", payment.ID, err)
		}
		r.recordEvent(txCtx, payment.ID, entity.PaymentEventEntitlementApplied, nil, target, source, map[string]string{
			"tier": string(tier),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	gatewayID := payment.GatewayID()
	if !changed {
		current, err := r.paymentRepo.FindByID(ctx, payment.ID)
		if err != nil {
			return nil, fmt.Errorf("reload payment %d: %w", payment.ID, err)
		}
		if current == nil {
			current = payment
		}
		if current.Status.Terminal() {
			r.monitors.Cancel(gatewayID)
			return &ReconcileResult{Outcome: OutcomeAlreadyTerminal, Payment: current}, nil
		}
		return &ReconcileResult{Outcome: OutcomeStillPending, Payment: current}, nil
	}

	updated := *payment
	updated.Status = target
	updated.SubscriptionTier = tier
	updated.UpdatedAt = now
	if observed != nil {
		if observed.PaymentMethodID != "" {
			updated.PaymentMethod = observed.PaymentMethodID
		}
		if observed.PaymentTypeID != "" {
			updated.PaymentType = observed.PaymentTypeID
		}
		if observed.Installments > 0 {
			updated.Installments = observed.Installments
		}
		if observed.RawStatus != "" {
			updated.GatewayStatus = observed.RawStatus
		}
		if observed.StatusDetail != "" {
			updated.GatewayStatusDetail = observed.StatusDetail
		}
	}

	logger := r.logger.WithFields(logrus.Fields{
		"payment_id":         updated.ID,
		"gateway_payment_id": gatewayID,
		"user_id":            updated.UserID,
		"old_status":         string(oldStatus),
		"new_status":         string(target),
		"source":             source,
	})
	if consistencyErr != nil {
		logger.WithError(consistencyErr).Error("Payment approved but entitlement not applied")
	}

	if !target.Terminal() {
		logger.Debug("Payment still open")
		return &ReconcileResult{Outcome: OutcomeStillPending, Payment: &updated}, nil
	}

	r.monitors.Cancel(gatewayID)
	r.publish(ctx, &updated, source)
	logger.WithField("tier", string(tier)).Info("Payment reconciled")

	return &ReconcileResult{Outcome: OutcomeTransitioned, Payment: &updated}, nil
}

// bindByReference attaches a gateway payment to the preference attempt that
// produced it, matched on external_reference.
func (r *PaymentReconciler) bindByReference(ctx context.Context, gatewayPaymentID, reference string) (*entity.Payment, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}

	payment, err := r.paymentRepo.FindByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("find payment by reference %s: %w", reference, err)
	}
	if payment == nil || payment.GatewayPaymentID != nil {
		return nil, nil
	}

	bound, err := r.paymentRepo.BindGatewayPayment(ctx, payment.ID, gatewayPaymentID, r.now())
	if err != nil && !errors.Is(err, repository.ErrPaymentAlreadyExists) {
		return nil, fmt.Errorf("bind gateway payment %s: %w", gatewayPaymentID, err)
	}
	if !bound {
		return r.paymentRepo.FindByGatewayPaymentID(ctx, gatewayPaymentID)
	}

	r.logger.WithFields(logrus.Fields{
		"payment_id":         payment.ID,
		"gateway_payment_id": gatewayPaymentID,
		"reference":          reference,
	}).Info("Gateway payment bound to preference attempt")

	payment.GatewayPaymentID = &gatewayPaymentID
	return payment, nil
}

func (r *PaymentReconciler) publish(ctx context.Context, payment *entity.Payment, source string) {
	err := r.publisher.PublishStatusChanged(ctx, &events.PaymentStatusChanged{
		PaymentID:        payment.ID,
		GatewayPaymentID: payment.GatewayID(),
		UserID:           payment.UserID,
		Status:           string(payment.Status),
		Tier:             string(payment.SubscriptionTier),
		Amount:           payment.Amount.StringFixed(2),
		Source:           source,
		OccurredAt:       payment.UpdatedAt,
	})
	if err != nil {
		r.logger.WithError(err).WithField("payment_id", payment.ID).Warn("Status event not published")
	}
}

func (r *PaymentReconciler) recordEvent(
	ctx context.Context,
	paymentID uint64,
	eventType string,
	oldStatus *entity.PaymentStatus,
	newStatus entity.PaymentStatus,
	source string,
	payload interface{},
) {
	var payloadJSON *string
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			s := string(raw)
			payloadJSON = &s
		}
	}

	err := r.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID:   paymentID,
		EventType:   eventType,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		Source:      source,
		PayloadJSON: payloadJSON,
		CreatedAt:   r.now(),
	})
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"payment_id": paymentID,
			"event_type": eventType,
		}).Warn("Payment event not recorded")
	}
}

func (r *PaymentReconciler) notificationURL() string {
	base := strings.TrimRight(strings.TrimSpace(r.paymentsCfg.WebhookBaseURL), "/")
	if base == "" {
		return ""
	}
	return base + "/payments/webhook"
}

func gatewaySnapshot(gp *provider.GatewayPayment) map[string]interface{} {
	return map[string]interface{}{
		"id":                 gp.ID,
		"status":             gp.RawStatus,
		"status_detail":      gp.StatusDetail,
		"transaction_amount": gp.Amount.StringFixed(2),
		"payment_method_id":  gp.PaymentMethodID,
		"payment_type_id":    gp.PaymentTypeID,
		"installments":       gp.Installments,
	}
}
