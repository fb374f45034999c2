package payment

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Metadata keys attached to the checkout session and echoed back by the
// processor on every payment fetch.
const (
	MetaCreditAmount = "credit_amount"
	MetaUserID       = "user_id"
	MetaUserEmail    = "user_email"
	MetaPaymentID    = "crtl_panel_payment_id"
)

// CheckoutRequest describes the hosted checkout session for one record.
type CheckoutRequest struct {
	PaymentID       uuid.UUID
	Title           string
	UnitPrice       decimal.Decimal
	Currency        string
	PayerEmail      string
	SuccessURL      string
	PendingURL      string
	FailureURL      string
	NotificationURL string
	Metadata        map[string]any
}

// CheckoutSession is the processor-side session the payer is redirected to.
type CheckoutSession struct {
	PreferenceID string
	RedirectURL  string
}

// ProcessorPayment is the processor's view of a payment.
type ProcessorPayment struct {
	ID           string
	Status       string
	StatusDetail string
	Metadata     map[string]any
}

// CheckoutMetadata builds the cross-reference metadata for p.
func CheckoutMetadata(p *Payment, userEmail string) map[string]any {
	return map[string]any{
		MetaCreditAmount: p.Amount,
		MetaUserID:       p.OwnerUserID.String(),
		MetaUserEmail:    userEmail,
		MetaPaymentID:    p.ID.String(),
	}
}

// RecordID extracts the local payment id from processor metadata.
func (pp *ProcessorPayment) RecordID() (uuid.UUID, bool) {
	return metaUUID(pp.Metadata, MetaPaymentID)
}

// OwnerID extracts the user id the checkout was created for.
func (pp *ProcessorPayment) OwnerID() (uuid.UUID, bool) {
	return metaUUID(pp.Metadata, MetaUserID)
}

func metaUUID(m map[string]any, key string) (uuid.UUID, bool) {
	raw, ok := m[key].(string)
	if !ok || raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
