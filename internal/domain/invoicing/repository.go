package invoicing

import (
	"context"
	"time"

	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	shared.Filter
	Status       InvoiceStatus
	CustomerID   *uuid.UUID
	DocumentType DocumentType
	IssuedFrom   *time.Time
	IssuedTo     *time.Time
	// Now is the instant derived statuses are evaluated at
	Now time.Time
}

// InvoiceRepository persists invoices with their line items
type InvoiceRepository interface {
	// FindByIDForTenant returns shared.ErrNotFound when missing
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	FindByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, number string) (*Invoice, error)

	// FindAllForTenant returns one page and the total count
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, int64, error)

	// FindIssuedBetween returns finalized invoices issued in [from, to), cancelled ones included
	FindIssuedBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]Invoice, error)

	// Save inserts a new invoice or replaces a draft with its lines
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock updates the invoice only if its stored version matches,
	// returning shared.ErrConcurrencyConflict otherwise
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// NextInvoiceNumber generates the next internal number (INV-000001)
	NextInvoiceNumber(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// PaymentRepository is the append-only payment ledger
type PaymentRepository interface {
	// Create inserts an entry; a duplicate idempotency key yields shared.ErrAlreadyExists
	Create(ctx context.Context, payment *Payment) error

	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)

	// FindByIdempotencyKey returns shared.ErrNotFound when the key is unused
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*Payment, error)

	// FindByInvoice returns entries in application order
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Payment, error)

	// FindReversal returns the void entry of paymentID or shared.ErrNotFound
	FindReversal(ctx context.Context, tenantID, paymentID uuid.UUID) (*Payment, error)
}

// FiscalSequenceRepository stores authorized number ranges
type FiscalSequenceRepository interface {
	// FindActive returns the active sequence for the type or shared.ErrNotFound
	FindActive(ctx context.Context, tenantID uuid.UUID, documentType DocumentType) (*FiscalSequence, error)

	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*FiscalSequence, error)

	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]FiscalSequence, error)

	Save(ctx context.Context, sequence *FiscalSequence) error

	// CompareAndAdvance atomically moves current_number from expected to next.
	// It returns false, nil when another writer advanced the row first.
	CompareAndAdvance(ctx context.Context, id uuid.UUID, expected, next int64) (bool, error)

	// DeactivateByType deactivates every active sequence of the type
	DeactivateByType(ctx context.Context, tenantID uuid.UUID, documentType DocumentType) error

	// ListTenantIDs returns every tenant with at least one sequence
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// QuotationRepository persists quotations with their line items
type QuotationRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Quotation, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Quotation, int64, error)
	Save(ctx context.Context, quotation *Quotation) error
	SaveWithLock(ctx context.Context, quotation *Quotation) error
	NextQuotationNumber(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// SupplierBillRepository persists received supplier bills
type SupplierBillRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*SupplierBill, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]SupplierBill, int64, error)
	// FindIssuedBetween returns bills issued in [from, to), cancelled ones included
	FindIssuedBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]SupplierBill, error)
	ExistsByFiscalNumber(ctx context.Context, tenantID uuid.UUID, supplierTaxID, fiscalNumber string) (bool, error)
	Save(ctx context.Context, bill *SupplierBill) error
}

// ReportFilter narrows report listings
type ReportFilter struct {
	shared.Filter
	ReportType ReportType
	Status     ReportStatus
}

// PeriodReportRepository stores one report per tenant, period and type
type PeriodReportRepository interface {
	// FindByPeriod returns shared.ErrNotFound when the report was never generated
	FindByPeriod(ctx context.Context, tenantID uuid.UUID, period Period, reportType ReportType) (*PeriodReport, error)
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PeriodReport, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ReportFilter) ([]PeriodReport, int64, error)
	Save(ctx context.Context, report *PeriodReport) error
	SaveWithLock(ctx context.Context, report *PeriodReport) error
}
