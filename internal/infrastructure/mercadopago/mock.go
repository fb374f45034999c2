package mercadopago

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/rs/zerolog"
)

// MockProcessor stands in for Mercado Pago in local runs. Each checkout is
// immediately paid and the payer is sent straight to the success back URL.
type MockProcessor struct {
	mu       sync.Mutex
	next     atomic.Int64
	status   string
	payments map[string]*payment.ProcessorPayment
	logger   zerolog.Logger
}

// NewMockProcessor reports every payment with status; "approved" when empty.
func NewMockProcessor(status string, logger zerolog.Logger) *MockProcessor {
	if status == "" {
		status = payment.ExternalApproved
	}
	m := &MockProcessor{
		status:   status,
		payments: make(map[string]*payment.ProcessorPayment),
		logger:   logger.With().Str("component", "mercadopago-mock").Logger(),
	}
	m.next.Store(1000000)
	return m
}

func (m *MockProcessor) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	id := strconv.FormatInt(m.next.Add(1), 10)

	m.mu.Lock()
	m.payments[id] = &payment.ProcessorPayment{
		ID:           id,
		Status:       m.status,
		StatusDetail: "mock",
		Metadata:     req.Metadata,
	}
	m.mu.Unlock()

	redirect, err := url.Parse(req.SuccessURL)
	if err != nil {
		return nil, domainErrors.NewDomainError("processor_error", "invalid success url", domainErrors.ErrProviderRejected)
	}
	q := redirect.Query()
	q.Set("payment_id", id)
	redirect.RawQuery = q.Encode()

	m.logger.Info().Str("payment_id", req.PaymentID.String()).Str("processor_payment_id", id).Msg("Mock checkout created")
	return &payment.CheckoutSession{PreferenceID: "mock-" + id, RedirectURL: redirect.String()}, nil
}

func (m *MockProcessor) GetPayment(_ context.Context, externalID string) (*payment.ProcessorPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[externalID]
	if !ok {
		return nil, domainErrors.NewDomainError("processor_unavailable", "mock payment "+externalID+" not found", domainErrors.ErrProviderUnavailable)
	}
	cp := *p
	return &cp, nil
}

// SetStatus changes the status reported for an existing mock payment.
func (m *MockProcessor) SetStatus(externalID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[externalID]; ok {
		p.Status = status
	}
}
