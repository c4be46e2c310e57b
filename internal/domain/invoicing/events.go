package invoicing

import (
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeInvoice        = "Invoice"
	AggregateTypeQuotation      = "Quotation"
	AggregateTypeFiscalSequence = "FiscalSequence"
	AggregateTypePeriodReport   = "PeriodReport"
	AggregateTypeSupplierBill   = "SupplierBill"
)

// Event type constants
const (
	EventTypeInvoiceCreated           = "InvoiceCreated"
	EventTypeInvoiceFinalized         = "InvoiceFinalized"
	EventTypeInvoicePaymentApplied    = "InvoicePaymentApplied"
	EventTypeInvoicePaymentVoided     = "InvoicePaymentVoided"
	EventTypeInvoicePaid              = "InvoicePaid"
	EventTypeInvoiceCancelled         = "InvoiceCancelled"
	EventTypeQuotationConverted       = "QuotationConverted"
	EventTypeFiscalSequenceRunningLow = "FiscalSequenceRunningLow"
	EventTypePeriodReportGenerated    = "PeriodReportGenerated"
	EventTypePeriodReportSubmitted    = "PeriodReportSubmitted"
)

// InvoiceCreatedEvent is raised when a draft invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string       `json:"invoice_number"`
	DocumentType  DocumentType `json:"document_type"`
	CustomerID    uuid.UUID    `json:"customer_id"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		DocumentType:    inv.DocumentType,
		CustomerID:      inv.Customer.ID,
	}
}

// InvoiceFinalizedEvent is raised when a fiscal number is stamped on an invoice
type InvoiceFinalizedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string               `json:"invoice_number"`
	FiscalNumber  string               `json:"fiscal_number"`
	DocumentType  DocumentType         `json:"document_type"`
	Currency      valueobject.Currency `json:"currency"`
	Total         decimal.Decimal      `json:"total"`
	TaxAmount     decimal.Decimal      `json:"tax_amount"`
}

// NewInvoiceFinalizedEvent creates a new InvoiceFinalizedEvent
func NewInvoiceFinalizedEvent(inv *Invoice) *InvoiceFinalizedEvent {
	return &InvoiceFinalizedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceFinalized, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		FiscalNumber:    inv.FiscalNumber,
		DocumentType:    inv.DocumentType,
		Currency:        inv.Currency,
		Total:           inv.Total,
		TaxAmount:       inv.TaxAmount,
	}
}

// InvoicePaymentAppliedEvent is raised for every accepted payment
type InvoicePaymentAppliedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string               `json:"invoice_number"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      valueobject.Currency `json:"currency"`
	PaidAmount    decimal.Decimal      `json:"paid_amount"`
	AmountDue     decimal.Decimal      `json:"amount_due"`
}

// NewInvoicePaymentAppliedEvent creates a new InvoicePaymentAppliedEvent
func NewInvoicePaymentAppliedEvent(inv *Invoice, amount valueobject.Money) *InvoicePaymentAppliedEvent {
	return &InvoicePaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaymentApplied, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		Amount:          amount.Amount(),
		Currency:        amount.Currency(),
		PaidAmount:      inv.PaidAmount,
		AmountDue:       inv.AmountDue(),
	}
}

// InvoicePaymentVoidedEvent is raised when a payment is reversed
type InvoicePaymentVoidedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	AmountDue     decimal.Decimal `json:"amount_due"`
}

// NewInvoicePaymentVoidedEvent creates a new InvoicePaymentVoidedEvent
func NewInvoicePaymentVoidedEvent(inv *Invoice, amount valueobject.Money) *InvoicePaymentVoidedEvent {
	return &InvoicePaymentVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaymentVoided, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		Amount:          amount.Amount(),
		AmountDue:       inv.AmountDue(),
	}
}

// InvoicePaidEvent is raised when the amount due reaches zero
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	FiscalNumber  string          `json:"fiscal_number"`
	Total         decimal.Decimal `json:"total"`
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaid, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		FiscalNumber:    inv.FiscalNumber,
		Total:           inv.Total,
	}
}

// InvoiceCancelledEvent is raised when an invoice is cancelled
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string `json:"invoice_number"`
	FiscalNumber  string `json:"fiscal_number,omitempty"`
	Reason        string `json:"reason"`
}

// NewInvoiceCancelledEvent creates a new InvoiceCancelledEvent
func NewInvoiceCancelledEvent(inv *Invoice) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCancelled, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		FiscalNumber:    inv.FiscalNumber,
		Reason:          inv.CancelReason,
	}
}

// QuotationConvertedEvent is raised when a quotation becomes an invoice draft
type QuotationConvertedEvent struct {
	shared.BaseDomainEvent
	QuotationNumber string    `json:"quotation_number"`
	InvoiceID       uuid.UUID `json:"invoice_id"`
}

// NewQuotationConvertedEvent creates a new QuotationConvertedEvent
func NewQuotationConvertedEvent(q *Quotation, invoiceID uuid.UUID) *QuotationConvertedEvent {
	return &QuotationConvertedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuotationConverted, AggregateTypeQuotation, q.ID, q.TenantID),
		QuotationNumber: q.QuotationNumber,
		InvoiceID:       invoiceID,
	}
}

// FiscalSequenceRunningLowEvent is raised when remaining numbers drop to the alert threshold
type FiscalSequenceRunningLowEvent struct {
	shared.BaseDomainEvent
	DocumentType DocumentType `json:"document_type"`
	Prefix       string       `json:"prefix"`
	Remaining    int64        `json:"remaining"`
}

// NewFiscalSequenceRunningLowEvent creates a new FiscalSequenceRunningLowEvent
func NewFiscalSequenceRunningLowEvent(seq *FiscalSequence) *FiscalSequenceRunningLowEvent {
	return &FiscalSequenceRunningLowEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFiscalSequenceRunningLow, AggregateTypeFiscalSequence, seq.ID, seq.TenantID),
		DocumentType:    seq.DocumentType,
		Prefix:          seq.Prefix,
		Remaining:       seq.Remaining(),
	}
}

// PeriodReportGeneratedEvent is raised when a report draft is (re)generated
type PeriodReportGeneratedEvent struct {
	shared.BaseDomainEvent
	Period       string     `json:"period"`
	ReportType   ReportType `json:"report_type"`
	TotalRecords int        `json:"total_records"`
	Checksum     string     `json:"checksum"`
}

// NewPeriodReportGeneratedEvent creates a new PeriodReportGeneratedEvent
func NewPeriodReportGeneratedEvent(r *PeriodReport) *PeriodReportGeneratedEvent {
	return &PeriodReportGeneratedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePeriodReportGenerated, AggregateTypePeriodReport, r.ID, r.TenantID),
		Period:          r.Period.String(),
		ReportType:      r.ReportType,
		TotalRecords:    r.TotalRecords,
		Checksum:        r.Checksum,
	}
}

// PeriodReportSubmittedEvent is raised when a report is filed with the regulator
type PeriodReportSubmittedEvent struct {
	shared.BaseDomainEvent
	Period     string     `json:"period"`
	ReportType ReportType `json:"report_type"`
	Reference  string     `json:"reference"`
}

// NewPeriodReportSubmittedEvent creates a new PeriodReportSubmittedEvent
func NewPeriodReportSubmittedEvent(r *PeriodReport) *PeriodReportSubmittedEvent {
	return &PeriodReportSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePeriodReportSubmitted, AggregateTypePeriodReport, r.ID, r.TenantID),
		Period:          r.Period.String(),
		ReportType:      r.ReportType,
		Reference:       r.SubmissionReference,
	}
}
