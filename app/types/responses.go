package types

import "encoding/json"

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

type WebhookAckResponse struct {
	Received bool `json:"received"`
}

type CreatePaymentResponse struct {
	Success      bool   `json:"success"`
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail"`
	Message      string `json:"message"`
}

type PreferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
	PreferenceID     string `json:"preferenceId"`
}

type PaymentStatusResponse struct {
	PaymentID        string `json:"paymentId"`
	Status           string `json:"status"`
	StatusDetail     string `json:"statusDetail,omitempty"`
	SubscriptionType string `json:"subscriptionType"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

type UpdatePaymentStatusResponse struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

type SubscriptionDetails struct {
	Type        string `json:"type"`
	ActivatedAt string `json:"activatedAt"`
	PaymentID   string `json:"paymentId"`
}

type SubscriptionDetailsResponse struct {
	SubscriptionStatus  string               `json:"subscriptionStatus"`
	IsPremium           bool                 `json:"isPremium"`
	Points              int64                `json:"points"`
	SubscriptionDetails *SubscriptionDetails `json:"subscriptionDetails"`
}

type PaymentHistoryItem struct {
	PaymentID        string `json:"paymentId"`
	Status           string `json:"status"`
	Amount           string `json:"amount"`
	SubscriptionType string `json:"subscriptionType"`
	PaymentMethod    string `json:"paymentMethod"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}
