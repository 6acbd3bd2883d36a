package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/auth"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/factory"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/provider"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/service"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/types"
)

type PaymentController struct {
	paymentService *service.PaymentService
	reconciler     *service.PaymentReconciler
	webhookService *service.WebhookService
	logger         logrus.FieldLogger
}

func NewPaymentController(
	paymentService *service.PaymentService,
	reconciler *service.PaymentReconciler,
	webhookService *service.WebhookService,
) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		reconciler:     reconciler,
		webhookService: webhookService,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

// CreatePayment accepts either a plan (hosted checkout) or card data.
func (c *PaymentController) CreatePayment(ctx echo.Context) error {
	req, err := types.NewCreatePaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	return c.createAttempt(ctx, req)
}

func (c *PaymentController) CreateDirectPayment(ctx echo.Context) error {
	req, err := types.NewCreatePaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.ValidateDirect(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}
	req.PlanType = ""

	return c.createAttempt(ctx, req)
}

func (c *PaymentController) createAttempt(ctx echo.Context, req *types.CreatePaymentRequest) error {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return c.writeError(ctx, http.StatusUnauthorized, "unauthorized")
	}

	result, err := c.reconciler.CreateAttempt(ctx.Request().Context(), userID, mapper.CreateRequestToInput(req))
	if err != nil {
		return c.writeServiceError(ctx, err, "Create payment failed")
	}

	if result.Preference != nil {
		return ctx.JSON(http.StatusCreated, mapper.PreferenceToResponse(result.Payment, result.Preference))
	}
	return ctx.JSON(http.StatusCreated, mapper.PaymentToCreateResponse(result.Payment))
}

// HandleWebhook always acknowledges: the gateway retries anything else, and
// every outcome is already recorded by the webhook service.
func (c *PaymentController) HandleWebhook(ctx echo.Context) error {
	req, err := types.NewWebhookRequestFromContext(ctx)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn("Webhook body unreadable")
		req = &types.WebhookRequest{Payload: "{}"}
	}

	record := c.webhookService.Handle(ctx.Request().Context(), req)
	factory.LoggerWithContext(c.logger, ctx).WithFields(logrus.Fields{
		"data_id": record.DataID,
		"status":  record.Status,
	}).Debug("Webhook acknowledged")

	return ctx.JSON(http.StatusOK, &types.WebhookAckResponse{Received: true})
}

func (c *PaymentController) GetPaymentStatus(ctx echo.Context) error {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return c.writeError(ctx, http.StatusUnauthorized, "unauthorized")
	}

	req, err := types.NewGetPaymentStatusRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.GetPaymentStatus(ctx.Request().Context(), userID, req.PaymentID)
	if err != nil {
		return c.writeServiceError(ctx, err, "Get payment status failed")
	}

	return ctx.JSON(http.StatusOK, mapper.PaymentToStatusResponse(item))
}

// UpdatePaymentStatus is the operator override, guarded by internal access.
func (c *PaymentController) UpdatePaymentStatus(ctx echo.Context) error {
	req, err := types.NewUpdatePaymentStatusRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.reconciler.ForceStatus(ctx.Request().Context(), req.PaymentID, req.Status)
	if err != nil {
		return c.writeServiceError(ctx, err, "Update payment status failed")
	}

	return ctx.JSON(http.StatusOK, mapper.PaymentToUpdateResponse(item))
}

func (c *PaymentController) GetSubscriptionDetails(ctx echo.Context) error {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return c.writeError(ctx, http.StatusUnauthorized, "unauthorized")
	}

	details, err := c.paymentService.GetSubscriptionDetails(ctx.Request().Context(), userID)
	if err != nil {
		return c.writeServiceError(ctx, err, "Get subscription details failed")
	}

	return ctx.JSON(http.StatusOK, mapper.SubscriptionDetailsToResponse(details))
}

func (c *PaymentController) GetSubscriptionHistory(ctx echo.Context) error {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return c.writeError(ctx, http.StatusUnauthorized, "unauthorized")
	}

	items, err := c.paymentService.ListUserPayments(ctx.Request().Context(), userID)
	if err != nil {
		return c.writeServiceError(ctx, err, "List payment history failed")
	}

	return ctx.JSON(http.StatusOK, mapper.PaymentsToHistory(items))
}

func (c *PaymentController) writeServiceError(ctx echo.Context, err error, message string) error {
	var gatewayErr *provider.GatewayError
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.As(err, &gatewayErr):
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn(message)
		return ctx.JSON(http.StatusBadGateway, &types.ErrorResponse{
			Error:   "payment gateway error",
			Details: gatewayErr.Payload,
		})
	case errors.Is(err, service.ErrPaymentNotFound):
		return c.writeError(ctx, http.StatusNotFound, "payment not found")
	case errors.Is(err, service.ErrUserNotFound):
		return c.writeError(ctx, http.StatusNotFound, "user not found")
	case errors.Is(err, service.ErrForbidden):
		return c.writeError(ctx, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrInvalidStatus):
		return c.writeError(ctx, http.StatusConflict, "payment already in a final status")
	case errors.Is(err, service.ErrPaymentAlreadyExists):
		return c.writeError(ctx, http.StatusConflict, err.Error())
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(message)
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
