package persistence

import (
	"context"

	appinvoicing "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/clinicerp/backend/internal/domain/invoicing"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Every repository handed to fn shares the same *gorm.DB transaction.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn in one database transaction, rolling back when it returns an error.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinvoicing.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) InvoiceRepo() invoicing.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

func (r *gormTransactionalRepositories) PaymentRepo() invoicing.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) SequenceRepo() invoicing.FiscalSequenceRepository {
	return NewGormFiscalSequenceRepository(r.tx)
}

func (r *gormTransactionalRepositories) QuotationRepo() invoicing.QuotationRepository {
	return NewGormQuotationRepository(r.tx)
}

func (r *gormTransactionalRepositories) SupplierBillRepo() invoicing.SupplierBillRepository {
	return NewGormSupplierBillRepository(r.tx)
}

func (r *gormTransactionalRepositories) ReportRepo() invoicing.PeriodReportRepository {
	return NewGormPeriodReportRepository(r.tx)
}

var (
	_ appinvoicing.TransactionScope          = (*GormTransactionScope)(nil)
	_ appinvoicing.TransactionalRepositories = (*gormTransactionalRepositories)(nil)

	_ invoicing.InvoiceRepository        = (*GormInvoiceRepository)(nil)
	_ invoicing.PaymentRepository        = (*GormPaymentRepository)(nil)
	_ invoicing.FiscalSequenceRepository = (*GormFiscalSequenceRepository)(nil)
	_ invoicing.QuotationRepository      = (*GormQuotationRepository)(nil)
	_ invoicing.SupplierBillRepository   = (*GormSupplierBillRepository)(nil)
	_ invoicing.PeriodReportRepository   = (*GormPeriodReportRepository)(nil)
)
