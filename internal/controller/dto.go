package controller

import (
	"time"

	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NotificationResponse is the only body the processor sees from the webhook.
type NotificationResponse struct {
	Success bool `json:"success"`
}

type PaymentResponse struct {
	ID                string     `json:"id"`
	ExternalPaymentID *string    `json:"external_payment_id,omitempty"`
	Method            string     `json:"method"`
	Type              string     `json:"type"`
	Status            string     `json:"status"`
	Credits           int64      `json:"credits"`
	Price             string     `json:"price"`
	TaxValue          string     `json:"tax_value"`
	TaxPercent        string     `json:"tax_percent"`
	TotalPrice        string     `json:"total_price"`
	Currency          string     `json:"currency"`
	ProductID         string     `json:"product_id"`
	CreditsGrantedAt  *time.Time `json:"credits_granted_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func FromPayment(p *payment.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:                p.ID.String(),
		ExternalPaymentID: p.ExternalPaymentID,
		Method:            p.Method,
		Type:              p.Type,
		Status:            string(p.Status),
		Credits:           p.Amount,
		Price:             centsString(p.Charge.Price),
		TaxValue:          centsString(p.Charge.TaxValue),
		TaxPercent:        p.Charge.TaxPercent.String(),
		TotalPrice:        centsString(p.Charge.Total),
		Currency:          p.Charge.Currency,
		ProductID:         p.ProductID.String(),
		CreditsGrantedAt:  p.CreditsGrantedAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func centsString(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

type PaymentEventResponse struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	EventData map[string]any `json:"event_data"`
	CreatedAt time.Time      `json:"created_at"`
}

func FromPaymentEvent(e *payment.PaymentEvent) *PaymentEventResponse {
	return &PaymentEventResponse{
		ID:        e.ID.String(),
		EventType: e.EventType,
		EventData: e.EventData,
		CreatedAt: e.CreatedAt,
	}
}

// listPaymentsQuery is bound from the query string of GET /api/v1/payments.
type listPaymentsQuery struct {
	Status string `validate:"omitempty,oneof=open created processing paid cancelled"`
	Limit  int    `validate:"gte=0,lte=100"`
	Offset int    `validate:"gte=0"`
}
