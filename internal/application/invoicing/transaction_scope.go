package invoicing

import (
	"context"

	"github.com/clinicerp/backend/internal/domain/invoicing"
)

// TransactionScope runs a unit of work against invoicing repositories that
// share one database transaction. Returning an error rolls the unit back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to the current transaction.
//
// Finalize uses InvoiceRepo and SequenceRepo together so that a fiscal number is
// consumed only if the invoice row is written in the same commit. The payment
// ledger pairs PaymentRepo with InvoiceRepo for the same reason.
type TransactionalRepositories interface {
	InvoiceRepo() invoicing.InvoiceRepository
	PaymentRepo() invoicing.PaymentRepository
	SequenceRepo() invoicing.FiscalSequenceRepository
	QuotationRepo() invoicing.QuotationRepository
	SupplierBillRepo() invoicing.SupplierBillRepository
	ReportRepo() invoicing.PeriodReportRepository
}

// NoOpTransactionScope hands out plain repositories without a transaction.
// Used by unit tests with mocked repositories.
type NoOpTransactionScope struct {
	invoiceRepo      invoicing.InvoiceRepository
	paymentRepo      invoicing.PaymentRepository
	sequenceRepo     invoicing.FiscalSequenceRepository
	quotationRepo    invoicing.QuotationRepository
	supplierBillRepo invoicing.SupplierBillRepository
	reportRepo       invoicing.PeriodReportRepository
}

// Repositories groups the repositories passed to NewNoOpTransactionScope
type Repositories struct {
	Invoices      invoicing.InvoiceRepository
	Payments      invoicing.PaymentRepository
	Sequences     invoicing.FiscalSequenceRepository
	Quotations    invoicing.QuotationRepository
	SupplierBills invoicing.SupplierBillRepository
	Reports       invoicing.PeriodReportRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over repos
func NewNoOpTransactionScope(repos Repositories) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		invoiceRepo:      repos.Invoices,
		paymentRepo:      repos.Payments,
		sequenceRepo:     repos.Sequences,
		quotationRepo:    repos.Quotations,
		supplierBillRepo: repos.SupplierBills,
		reportRepo:       repos.Reports,
	}
}

// Execute runs fn directly
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) InvoiceRepo() invoicing.InvoiceRepository         { return s.invoiceRepo }
func (s *NoOpTransactionScope) PaymentRepo() invoicing.PaymentRepository         { return s.paymentRepo }
func (s *NoOpTransactionScope) SequenceRepo() invoicing.FiscalSequenceRepository { return s.sequenceRepo }
func (s *NoOpTransactionScope) QuotationRepo() invoicing.QuotationRepository     { return s.quotationRepo }
func (s *NoOpTransactionScope) SupplierBillRepo() invoicing.SupplierBillRepository {
	return s.supplierBillRepo
}
func (s *NoOpTransactionScope) ReportRepo() invoicing.PeriodReportRepository { return s.reportRepo }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
