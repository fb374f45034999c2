package payment

import (
	"fmt"
	"time"

	"github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MethodMercadoPago is the only payment method this service creates records for.
const MethodMercadoPago = "mercadopago"

// Status represents the payment record status in the reconciliation state machine
type Status string

const (
	StatusOpen       Status = "open"
	StatusCreated    Status = "created"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the known record statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusCreated, StatusProcessing, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// Payment is the local record of one checkout attempt.
type Payment struct {
	ID                uuid.UUID
	ExternalPaymentID *string
	Method            string
	Type              string
	Status            Status
	Amount            int64 // credits granted on approval
	Charge            Charge
	ProductID         uuid.UUID
	OwnerUserID       uuid.UUID
	CreditsGrantedAt  *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Charge holds what the payer is billed, in the smallest currency unit.
type Charge struct {
	Price      int64
	TaxValue   int64
	Total      int64
	TaxPercent decimal.Decimal
	Currency   string
}

// String returns a human-readable representation of the total.
func (c Charge) String() string {
	whole := c.Total / 100
	frac := c.Total % 100
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%02d %s", whole, frac, c.Currency)
}

// TotalDecimal returns the total in major currency units.
func (c Charge) TotalDecimal() decimal.Decimal {
	return decimal.New(c.Total, -2)
}

// NewPayment creates an open payment record for ownerID buying productID.
func NewPayment(ownerID, productID uuid.UUID, productType string, credits int64, charge Charge) (*Payment, error) {
	if ownerID == uuid.Nil {
		return nil, errors.NewValidationError("owner_user_id", "cannot be empty")
	}
	if productID == uuid.Nil {
		return nil, errors.NewValidationError("product_id", "cannot be empty")
	}
	if credits <= 0 {
		return nil, errors.NewValidationError("amount", "must be greater than 0")
	}
	if err := validateCharge(charge); err != nil {
		return nil, err
	}

	now := time.Now()
	return &Payment{
		ID:          uuid.New(),
		Method:      MethodMercadoPago,
		Type:        productType,
		Status:      StatusOpen,
		Amount:      credits,
		Charge:      charge,
		ProductID:   productID,
		OwnerUserID: ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

var transitions = map[Status][]Status{
	StatusOpen:       {StatusCreated, StatusProcessing, StatusPaid, StatusCancelled},
	StatusCreated:    {StatusProcessing, StatusPaid, StatusCancelled},
	StatusProcessing: {StatusProcessing, StatusPaid, StatusCancelled},
	StatusPaid:       {StatusProcessing, StatusCancelled},
	// paid after cancelled is only reachable when the reconcile policy approves late payments
	StatusCancelled: {StatusProcessing, StatusCancelled, StatusPaid},
}

// CanTransitionTo checks if the payment can transition to the given status
func (p *Payment) CanTransitionTo(newStatus Status) bool {
	for _, allowed := range transitions[p.Status] {
		if allowed == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo transitions the payment to a new status
func (p *Payment) TransitionTo(newStatus Status) error {
	if !p.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(p.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}

	p.Status = newStatus
	p.UpdatedAt = time.Now()
	return nil
}

// SetExternalID records the processor's payment id. Empty values are ignored
// so a stored id is never cleared.
func (p *Payment) SetExternalID(id string) {
	if id == "" {
		return
	}
	p.ExternalPaymentID = &id
}

// ExternalID returns the processor id or "" when none is known yet.
func (p *Payment) ExternalID() string {
	if p.ExternalPaymentID == nil {
		return ""
	}
	return *p.ExternalPaymentID
}

// CreditsGranted reports whether the credit amount was already applied to the owner.
func (p *Payment) CreditsGranted() bool {
	return p.CreditsGrantedAt != nil
}

// MarkCreditsGranted stamps the record so credits are never applied twice.
func (p *Payment) MarkCreditsGranted(at time.Time) error {
	if p.CreditsGrantedAt != nil {
		return errors.NewDomainError("credits_already_granted", "credits already granted for payment "+p.ID.String(), errors.ErrInvalidStateTransition)
	}
	p.CreditsGrantedAt = &at
	return nil
}

// IsTerminal checks if the payment is in a terminal state
func (p *Payment) IsTerminal() bool {
	return p.Status == StatusPaid || p.Status == StatusCancelled
}

// Clone returns a copy that can be mutated without touching p.
func (p *Payment) Clone() *Payment {
	c := *p
	if p.ExternalPaymentID != nil {
		id := *p.ExternalPaymentID
		c.ExternalPaymentID = &id
	}
	if p.CreditsGrantedAt != nil {
		at := *p.CreditsGrantedAt
		c.CreditsGrantedAt = &at
	}
	return &c
}

func validateCharge(c Charge) error {
	if c.Total <= 0 {
		return errors.NewValidationError("total_price", "must be greater than 0")
	}
	if c.Price < 0 || c.TaxValue < 0 {
		return errors.NewValidationError("price", "cannot be negative")
	}
	if c.Price+c.TaxValue != c.Total {
		return errors.NewValidationError("total_price", "must equal price plus tax")
	}
	if len(c.Currency) != 3 {
		return errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	return nil
}
