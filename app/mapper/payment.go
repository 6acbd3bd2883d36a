package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-wellness-payments/app/entity"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/provider"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/service"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/types"
)

// PublicPaymentID is the id clients use to look a payment up: the gateway
// id once known, the local reference before that.
func PublicPaymentID(item *entity.Payment) string {
	if id := item.GatewayID(); id != "" {
		return id
	}
	return item.Reference
}

func PaymentToCreateResponse(item *entity.Payment) *types.CreatePaymentResponse {
	if item == nil {
		return nil
	}

	return &types.CreatePaymentResponse{
		Success:      item.Status != entity.PaymentStatusRejected && item.Status != entity.PaymentStatusCancelled,
		PaymentID:    PublicPaymentID(item),
		Status:       string(item.Status),
		StatusDetail: item.GatewayStatusDetail,
		Message:      statusMessage(item.Status),
	}
}

func PreferenceToResponse(item *entity.Payment, pref *provider.Preference) *types.PreferenceResponse {
	if item == nil || pref == nil {
		return nil
	}

	return &types.PreferenceResponse{
		ID:               item.Reference,
		InitPoint:        pref.InitPoint,
		SandboxInitPoint: pref.SandboxInitPoint,
		PreferenceID:     pref.ID,
	}
}

func PaymentToStatusResponse(item *entity.Payment) *types.PaymentStatusResponse {
	if item == nil {
		return nil
	}

	return &types.PaymentStatusResponse{
		PaymentID:        PublicPaymentID(item),
		Status:           string(item.Status),
		StatusDetail:     item.GatewayStatusDetail,
		SubscriptionType: string(item.SubscriptionTier),
		CreatedAt:        formatTime(item.CreatedAt),
		UpdatedAt:        formatTime(item.UpdatedAt),
	}
}

func PaymentToUpdateResponse(item *entity.Payment) *types.UpdatePaymentStatusResponse {
	if item == nil {
		return nil
	}

	return &types.UpdatePaymentStatusResponse{
		Success:   true,
		PaymentID: PublicPaymentID(item),
		Status:    string(item.Status),
	}
}

func SubscriptionDetailsToResponse(details *service.SubscriptionDetails) *types.SubscriptionDetailsResponse {
	if details == nil || details.User == nil {
		return nil
	}

	resp := &types.SubscriptionDetailsResponse{
		SubscriptionStatus: string(details.User.SubscriptionStatus),
		IsPremium:          details.User.SubscriptionStatus.Paid(),
		Points:             details.User.Points,
	}
	if latest := details.LatestPayment; latest != nil {
		resp.SubscriptionDetails = &types.SubscriptionDetails{
			Type:        string(latest.SubscriptionTier),
			ActivatedAt: formatTime(latest.UpdatedAt),
			PaymentID:   PublicPaymentID(latest),
		}
	}

	return resp
}

func PaymentsToHistory(items []*entity.Payment) []*types.PaymentHistoryItem {
	result := make([]*types.PaymentHistoryItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		result = append(result, &types.PaymentHistoryItem{
			PaymentID:        PublicPaymentID(item),
			Status:           string(item.Status),
			Amount:           item.Amount.StringFixed(2),
			SubscriptionType: string(item.SubscriptionTier),
			PaymentMethod:    item.PaymentMethod,
			CreatedAt:        formatTime(item.CreatedAt),
			UpdatedAt:        formatTime(item.UpdatedAt),
		})
	}
	return result
}

func statusMessage(status entity.PaymentStatus) string {
	switch status {
	case entity.PaymentStatusApproved:
		return "Payment approved, subscription activated"
	case entity.PaymentStatusRejected:
		return "Payment rejected"
	case entity.PaymentStatusCancelled:
		return "Payment cancelled"
	case entity.PaymentStatusRefunded:
		return "Payment refunded"
	default:
		return "Payment is being processed"
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func CreateRequestToInput(req *types.CreatePaymentRequest) *service.CreateAttemptInput {
	if req == nil {
		return nil
	}

	input := &service.CreateAttemptInput{PlanType: req.PlanType}
	if req.UserData != nil {
		input.PayerEmail = req.UserData.Email
		input.PayerName = req.UserData.DisplayName()
	}

	data := req.PaymentData
	if data == nil {
		return input
	}
	input.Payment = &service.DirectPaymentInput{
		Token:           data.Token,
		PaymentMethodID: data.PaymentMethodID,
		IssuerID:        string(data.IssuerID),
		Installments:    data.Installments,
		Amount:          data.TransactionAmount,
		Description:     data.Description,
	}
	if payer := data.Payer; payer != nil {
		input.Payment.Payer = provider.Payer{
			Email:     payer.Email,
			FirstName: payer.FirstName,
			LastName:  payer.LastName,
		}
		if payer.Identification != nil {
			input.Payment.Payer.IdentificationType = payer.Identification.Type
			input.Payment.Payer.IdentificationNumber = payer.Identification.Number
		}
	}

	return input
}
