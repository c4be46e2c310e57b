package handler

import (
	"context"
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

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
	return m.Called(ctx, invoice).Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, invoice *invoicing.Invoice) error {
	return m.Called(ctx, invoice).Error(0)
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
	return m.Called(ctx, payment).Error(0)
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

// MockReportRepository is a mock implementation of invoicing.PeriodReportRepository
type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) FindByPeriod(ctx context.Context, tenantID uuid.UUID, period invoicing.Period, reportType invoicing.ReportType) (*invoicing.PeriodReport, error) {
	args := m.Called(ctx, tenantID, period, reportType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.PeriodReport), args.Error(1)
}

func (m *MockReportRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.PeriodReport, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.PeriodReport), args.Error(1)
}

func (m *MockReportRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.ReportFilter) ([]invoicing.PeriodReport, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]invoicing.PeriodReport), args.Get(1).(int64), args.Error(2)
}

func (m *MockReportRepository) Save(ctx context.Context, report *invoicing.PeriodReport) error {
	return m.Called(ctx, report).Error(0)
}

func (m *MockReportRepository) SaveWithLock(ctx context.Context, report *invoicing.PeriodReport) error {
	return m.Called(ctx, report).Error(0)
}

// MockSequenceRepository is a mock implementation of invoicing.FiscalSequenceRepository
type MockSequenceRepository struct {
	mock.Mock
}

func (m *MockSequenceRepository) FindActive(ctx context.Context, tenantID uuid.UUID, documentType invoicing.DocumentType) (*invoicing.FiscalSequence, error) {
	args := m.Called(ctx, tenantID, documentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.FiscalSequence), args.Error(1)
}

func (m *MockSequenceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.FiscalSequence, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.FiscalSequence), args.Error(1)
}

func (m *MockSequenceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]invoicing.FiscalSequence, error) {
	args := m.Called(ctx, tenantID, activeOnly)
	return args.Get(0).([]invoicing.FiscalSequence), args.Error(1)
}

func (m *MockSequenceRepository) Save(ctx context.Context, sequence *invoicing.FiscalSequence) error {
	return m.Called(ctx, sequence).Error(0)
}

func (m *MockSequenceRepository) CompareAndAdvance(ctx context.Context, id uuid.UUID, expected, next int64) (bool, error) {
	args := m.Called(ctx, id, expected, next)
	return args.Bool(0), args.Error(1)
}

func (m *MockSequenceRepository) DeactivateByType(ctx context.Context, tenantID uuid.UUID, documentType invoicing.DocumentType) error {
	return m.Called(ctx, tenantID, documentType).Error(0)
}

func (m *MockSequenceRepository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	return args.Get(0).([]uuid.UUID), args.Error(1)
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
