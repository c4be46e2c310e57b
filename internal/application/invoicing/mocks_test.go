package invoicing

import (
	"context"
	"sync"
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]shared.DomainEvent, 0)}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// MockInvoiceRepository is a mock implementation of invoicing.InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, number string) (*invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]invoicing.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) FindIssuedBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID, from, to)
	return args.Get(0).([]invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *invoicing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, invoice *invoicing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) NextInvoiceNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Error(1)
}

// MockPaymentRepository is a mock implementation of invoicing.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *invoicing.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Payment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*invoicing.Payment, error) {
	args := m.Called(ctx, tenantID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]invoicing.Payment, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).([]invoicing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindReversal(ctx context.Context, tenantID, paymentID uuid.UUID) (*invoicing.Payment, error) {
	args := m.Called(ctx, tenantID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Payment), args.Error(1)
}

// MockQuotationRepository is a mock implementation of invoicing.QuotationRepository
type MockQuotationRepository struct {
	mock.Mock
}

func (m *MockQuotationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Quotation, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Quotation), args.Error(1)
}

func (m *MockQuotationRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]invoicing.Quotation, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]invoicing.Quotation), args.Get(1).(int64), args.Error(2)
}

func (m *MockQuotationRepository) Save(ctx context.Context, quotation *invoicing.Quotation) error {
	return m.Called(ctx, quotation).Error(0)
}

func (m *MockQuotationRepository) SaveWithLock(ctx context.Context, quotation *invoicing.Quotation) error {
	return m.Called(ctx, quotation).Error(0)
}

func (m *MockQuotationRepository) NextQuotationNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Error(1)
}

// MockSupplierBillRepository is a mock implementation of invoicing.SupplierBillRepository
type MockSupplierBillRepository struct {
	mock.Mock
}

func (m *MockSupplierBillRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.SupplierBill, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.SupplierBill), args.Error(1)
}

func (m *MockSupplierBillRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]invoicing.SupplierBill, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]invoicing.SupplierBill), args.Get(1).(int64), args.Error(2)
}

func (m *MockSupplierBillRepository) FindIssuedBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]invoicing.SupplierBill, error) {
	args := m.Called(ctx, tenantID, from, to)
	return args.Get(0).([]invoicing.SupplierBill), args.Error(1)
}

func (m *MockSupplierBillRepository) ExistsByFiscalNumber(ctx context.Context, tenantID uuid.UUID, supplierTaxID, fiscalNumber string) (bool, error) {
	args := m.Called(ctx, tenantID, supplierTaxID, fiscalNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockSupplierBillRepository) Save(ctx context.Context, bill *invoicing.SupplierBill) error {
	return m.Called(ctx, bill).Error(0)
}

// MockPeriodReportRepository is a mock implementation of invoicing.PeriodReportRepository
type MockPeriodReportRepository struct {
	mock.Mock
}

func (m *MockPeriodReportRepository) FindByPeriod(ctx context.Context, tenantID uuid.UUID, period invoicing.Period, reportType invoicing.ReportType) (*invoicing.PeriodReport, error) {
	args := m.Called(ctx, tenantID, period, reportType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.PeriodReport), args.Error(1)
}

func (m *MockPeriodReportRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.PeriodReport, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.PeriodReport), args.Error(1)
}

func (m *MockPeriodReportRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.ReportFilter) ([]invoicing.PeriodReport, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]invoicing.PeriodReport), args.Get(1).(int64), args.Error(2)
}

func (m *MockPeriodReportRepository) Save(ctx context.Context, report *invoicing.PeriodReport) error {
	return m.Called(ctx, report).Error(0)
}

func (m *MockPeriodReportRepository) SaveWithLock(ctx context.Context, report *invoicing.PeriodReport) error {
	return m.Called(ctx, report).Error(0)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockIdempotencyStore) Close() error { return nil }

// MockReportArchive is a mock implementation of ReportArchive
type MockReportArchive struct {
	mock.Mock
}

func (m *MockReportArchive) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	return m.Called(ctx, key, data, contentType).Error(0)
}

// memorySequenceRepo is a FiscalSequenceRepository whose CompareAndAdvance
// behaves like the conditional UPDATE: one winner per expected value.
type memorySequenceRepo struct {
	mu        sync.Mutex
	sequences map[uuid.UUID]invoicing.FiscalSequence
	// casHook runs before each compare-and-swap, outside the lock
	casHook func()
}

func newMemorySequenceRepo(seqs ...*invoicing.FiscalSequence) *memorySequenceRepo {
	r := &memorySequenceRepo{sequences: make(map[uuid.UUID]invoicing.FiscalSequence)}
	for _, s := range seqs {
		r.sequences[s.ID] = *s
	}
	return r
}

func (r *memorySequenceRepo) get(id uuid.UUID) invoicing.FiscalSequence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sequences[id]
}

func (r *memorySequenceRepo) FindActive(_ context.Context, tenantID uuid.UUID, documentType invoicing.DocumentType) (*invoicing.FiscalSequence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sequences {
		if s.TenantID == tenantID && s.DocumentType == documentType && s.IsActive {
			seq := s
			return &seq, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memorySequenceRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*invoicing.FiscalSequence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sequences[id]
	if !ok || s.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return &s, nil
}

func (r *memorySequenceRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, activeOnly bool) ([]invoicing.FiscalSequence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]invoicing.FiscalSequence, 0)
	for _, s := range r.sequences {
		if s.TenantID == tenantID && (!activeOnly || s.IsActive) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memorySequenceRepo) Save(_ context.Context, seq *invoicing.FiscalSequence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequences[seq.ID] = *seq
	return nil
}

func (r *memorySequenceRepo) CompareAndAdvance(_ context.Context, id uuid.UUID, expected, next int64) (bool, error) {
	if r.casHook != nil {
		r.casHook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sequences[id]
	if !ok || !s.IsActive || s.CurrentNumber != expected {
		return false, nil
	}
	s.CurrentNumber = next
	s.Version++
	r.sequences[id] = s
	return true, nil
}

func (r *memorySequenceRepo) DeactivateByType(_ context.Context, tenantID uuid.UUID, documentType invoicing.DocumentType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sequences {
		if s.TenantID == tenantID && s.DocumentType == documentType {
			s.IsActive = false
			r.sequences[id] = s
		}
	}
	return nil
}

func (r *memorySequenceRepo) ListTenantIDs(_ context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uuid.UUID]struct{})
	out := make([]uuid.UUID, 0)
	for _, s := range r.sequences {
		if _, ok := seen[s.TenantID]; !ok {
			seen[s.TenantID] = struct{}{}
			out = append(out, s.TenantID)
		}
	}
	return out, nil
}
