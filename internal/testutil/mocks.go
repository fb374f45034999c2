package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/cassiomorais/creditshop/internal/domain/outbox"
	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/cassiomorais/creditshop/internal/domain/product"
	"github.com/cassiomorais/creditshop/internal/domain/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Payment Repository Mock ---

// MockPaymentRepository is an in-memory payment.Repository. Records are
// stored as copies and UpdateStatus is a compare-and-swap like the real one.
type MockPaymentRepository struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*payment.Payment
	events   map[uuid.UUID][]*payment.PaymentEvent

	CreateFunc       func(ctx context.Context, p *payment.Payment) error
	GetByIDFunc      func(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	DeleteFunc       func(ctx context.Context, id uuid.UUID) error
	UpdateStatusFunc func(ctx context.Context, p *payment.Payment, expected payment.Status) error
	ListFunc         func(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error)
	AddEventFunc     func(ctx context.Context, event *payment.PaymentEvent) error

	UpdateCalls int
	DeleteCalls int
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[uuid.UUID]*payment.Payment),
		events:   make(map[uuid.UUID][]*payment.PaymentEvent),
	}
}

// AddPayment pre-populates the mock with a record.
func (m *MockPaymentRepository) AddPayment(p *payment.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p.Clone()
}

// Stored returns the stored copy of a record, nil when absent.
func (m *MockPaymentRepository) Stored(id uuid.UUID) *payment.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok {
		return p.Clone()
	}
	return nil
}

// Count returns the number of stored records.
func (m *MockPaymentRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

// SetStatus changes a stored record behind the service's back.
func (m *MockPaymentRepository) SetStatus(id uuid.UUID, s payment.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok {
		p.Status = s
	}
}

// SetCreditsGranted marks a stored record as granted behind the service's back.
func (m *MockPaymentRepository) SetCreditsGranted(id uuid.UUID, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok {
		p.CreditsGrantedAt = &at
	}
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p)
	}
	m.AddPayment(p)
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	if p := m.Stored(id); p != nil {
		return p, nil
	}
	return nil, domainErrors.ErrPaymentNotFound
}

func (m *MockPaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	m.DeleteCalls++
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[id]; !ok {
		return domainErrors.ErrPaymentNotFound
	}
	delete(m.payments, id)
	delete(m.events, id)
	return nil
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, p *payment.Payment, expected payment.Status) error {
	m.mu.Lock()
	m.UpdateCalls++
	m.mu.Unlock()
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, p, expected)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.payments[p.ID]
	if !ok {
		return domainErrors.ErrPaymentNotFound
	}
	if stored.Status != expected {
		return domainErrors.ErrOptimisticLockFailed
	}
	if stored.CreditsGrantedAt != nil && p.CreditsGrantedAt != nil && !stored.CreditsGrantedAt.Equal(*p.CreditsGrantedAt) {
		return domainErrors.ErrOptimisticLockFailed
	}
	stored.Status = p.Status
	if p.ExternalPaymentID != nil {
		stored.SetExternalID(*p.ExternalPaymentID)
	}
	if stored.CreditsGrantedAt == nil && p.CreditsGrantedAt != nil {
		at := *p.CreditsGrantedAt
		stored.CreditsGrantedAt = &at
	}
	stored.UpdatedAt = p.UpdatedAt
	return nil
}

func (m *MockPaymentRepository) List(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*payment.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		if filter.OwnerUserID != nil && p.OwnerUserID != *filter.OwnerUserID {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		result = append(result, p.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if filter.Offset >= len(result) {
		return nil, nil
	}
	result = result[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *MockPaymentRepository) AddEvent(ctx context.Context, event *payment.PaymentEvent) error {
	if m.AddEventFunc != nil {
		return m.AddEventFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.PaymentID] = append(m.events[event.PaymentID], event)
	return nil
}

func (m *MockPaymentRepository) GetEvents(_ context.Context, paymentID uuid.UUID) ([]*payment.PaymentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[paymentID], nil
}

// --- User Repository Mock ---

// MockUserRepository is an in-memory user.Repository.
type MockUserRepository struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*user.User
	transactions map[uuid.UUID][]*user.CreditTransaction

	GetByIDFunc       func(ctx context.Context, id uuid.UUID) (*user.User, error)
	LockFunc          func(ctx context.Context, id uuid.UUID) (*user.User, error)
	UpdateCreditsFunc func(ctx context.Context, u *user.User) error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:        make(map[uuid.UUID]*user.User),
		transactions: make(map[uuid.UUID][]*user.CreditTransaction),
	}
}

// AddUser pre-populates the mock with a user.
func (m *MockUserRepository) AddUser(u *user.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *u
	m.users[u.ID] = &c
}

// Credits returns the stored balance of a user.
func (m *MockUserRepository) Credits(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u.Credits
	}
	return 0
}

// Transactions returns the ledger lines recorded for a user.
func (m *MockUserRepository) Transactions(id uuid.UUID) []*user.CreditTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transactions[id]
}

func (m *MockUserRepository) get(id uuid.UUID) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domainErrors.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *MockUserRepository) Create(_ context.Context, u *user.User) error {
	m.AddUser(u)
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return m.get(id)
}

func (m *MockUserRepository) Lock(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if m.LockFunc != nil {
		return m.LockFunc(ctx, id)
	}
	return m.get(id)
}

func (m *MockUserRepository) UpdateCredits(ctx context.Context, u *user.User) error {
	if m.UpdateCreditsFunc != nil {
		return m.UpdateCreditsFunc(ctx, u)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.users[u.ID]
	if !ok {
		return domainErrors.ErrUserNotFound
	}
	if stored.Version != u.Version-1 {
		return domainErrors.ErrOptimisticLockFailed
	}
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *MockUserRepository) AddCreditTransaction(_ context.Context, tx *user.CreditTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.UserID] = append(m.transactions[tx.UserID], tx)
	return nil
}

func (m *MockUserRepository) GetCreditTransactions(_ context.Context, userID uuid.UUID, limit, offset int) ([]*user.CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txns := m.transactions[userID]
	if offset >= len(txns) {
		return nil, nil
	}
	end := offset + limit
	if end > len(txns) {
		end = len(txns)
	}
	return txns[offset:end], nil
}

// --- Product Repository Mock ---

type MockProductRepository struct {
	mu       sync.Mutex
	products map[uuid.UUID]*product.Product
}

func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{products: make(map[uuid.UUID]*product.Product)}
}

func (m *MockProductRepository) AddProduct(p *product.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *MockProductRepository) GetByID(_ context.Context, id uuid.UUID) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domainErrors.ErrProductNotFound
	}
	c := *p
	return &c, nil
}

// --- Discount Provider Mock ---

type MockDiscountProvider struct {
	Percent decimal.Decimal
	Err     error
}

func (m *MockDiscountProvider) PartnerDiscount(context.Context, uuid.UUID) (decimal.Decimal, error) {
	return m.Percent, m.Err
}

// --- Processor Mock ---

// MockProcessor records checkout requests and serves canned processor payments.
type MockProcessor struct {
	mu       sync.Mutex
	payments map[string]*payment.ProcessorPayment

	CreateCheckoutFunc func(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error)
	GetPaymentFunc     func(ctx context.Context, externalID string) (*payment.ProcessorPayment, error)

	CheckoutRequests []payment.CheckoutRequest
	GetCalls         int
}

func NewMockProcessor() *MockProcessor {
	return &MockProcessor{payments: make(map[string]*payment.ProcessorPayment)}
}

// AddPayment makes pp available to GetPayment.
func (m *MockProcessor) AddPayment(pp *payment.ProcessorPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[pp.ID] = pp
}

func (m *MockProcessor) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	m.mu.Lock()
	m.CheckoutRequests = append(m.CheckoutRequests, req)
	m.mu.Unlock()
	if m.CreateCheckoutFunc != nil {
		return m.CreateCheckoutFunc(ctx, req)
	}
	return &payment.CheckoutSession{
		PreferenceID: "pref-" + req.PaymentID.String(),
		RedirectURL:  "https://www.mercadopago.com/checkout?pref_id=" + req.PaymentID.String(),
	}, nil
}

func (m *MockProcessor) GetPayment(ctx context.Context, externalID string) (*payment.ProcessorPayment, error) {
	m.mu.Lock()
	m.GetCalls++
	m.mu.Unlock()
	if m.GetPaymentFunc != nil {
		return m.GetPaymentFunc(ctx, externalID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pp, ok := m.payments[externalID]
	if !ok {
		return nil, domainErrors.NewDomainError("processor_unavailable", "no processor payment "+externalID, domainErrors.ErrProviderUnavailable)
	}
	c := *pp
	return &c, nil
}

// --- Locker Mock ---

type MockLocker struct {
	mu       sync.Mutex
	Err      error
	Locked   []string
	Released int
}

func (m *MockLocker) Lock(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	m.Locked = append(m.Locked, key)
	m.mu.Unlock()
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.Released++
		return nil
	}, nil
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
	Calls               int
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Calls++
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is a mock implementation of outbox.Repository that
// keeps every inserted entry.
type MockOutboxRepository struct {
	mu      sync.Mutex
	Entries []*outbox.Entry

	InsertFunc         func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc     func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc  func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc     func(ctx context.Context, id uuid.UUID, lastError string) error
	PurgePublishedFunc func(ctx context.Context, olderThan time.Time) (int64, error)
}

// EventTypes returns the event type of every inserted entry, in order.
func (m *MockOutboxRepository) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, e.EventType)
	}
	return out
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id, lastError)
	}
	return nil
}

func (m *MockOutboxRepository) PurgePublished(ctx context.Context, olderThan time.Time) (int64, error) {
	if m.PurgePublishedFunc != nil {
		return m.PurgePublishedFunc(ctx, olderThan)
	}
	return 0, nil
}
