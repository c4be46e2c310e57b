package models

import (
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// LineColumns are the priced columns shared by invoice and quotation lines
type LineColumns struct {
	ID           uuid.UUID              `gorm:"type:uuid;primary_key"`
	Position     int                    `gorm:"not null"`
	Description  string                 `gorm:"type:varchar(500);not null"`
	Quantity     decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	UnitPrice    decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	Discount     decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountType invoicing.DiscountType `gorm:"type:varchar(20);not null;default:'percentage'"`
	LineTotal    decimal.Decimal        `gorm:"type:decimal(24,8);not null"`
}

func lineColumnsFromDomain(l invoicing.LineItem) LineColumns {
	return LineColumns{
		ID:           l.ID,
		Position:     l.Position,
		Description:  l.Description,
		Quantity:     l.Quantity,
		UnitPrice:    l.UnitPrice,
		Discount:     l.Discount,
		DiscountType: l.DiscountType,
		LineTotal:    l.LineTotal,
	}
}

func (c LineColumns) toDomain() invoicing.LineItem {
	return invoicing.LineItem{
		ID:           c.ID,
		Position:     c.Position,
		Description:  c.Description,
		Quantity:     c.Quantity,
		UnitPrice:    c.UnitPrice,
		Discount:     c.Discount,
		DiscountType: c.DiscountType,
		LineTotal:    c.LineTotal,
	}
}

// BodyColumns persist the DocumentBody totals
type BodyColumns struct {
	Currency       valueobject.Currency `gorm:"type:varchar(3);not null"`
	TaxRate        decimal.Decimal      `gorm:"type:decimal(8,4);not null;default:0"`
	Subtotal       decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountAmount decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount      decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	Total          decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
}

func bodyColumnsFromDomain(b invoicing.DocumentBody) BodyColumns {
	return BodyColumns{
		Currency:       b.Currency,
		TaxRate:        b.TaxRate,
		Subtotal:       b.Subtotal,
		DiscountAmount: b.DiscountAmount,
		TaxAmount:      b.TaxAmount,
		Total:          b.Total,
	}
}

func (c BodyColumns) toDomain(items []invoicing.LineItem) invoicing.DocumentBody {
	return invoicing.DocumentBody{
		Currency:       c.Currency,
		TaxRate:        c.TaxRate,
		Items:          items,
		Subtotal:       c.Subtotal,
		DiscountAmount: c.DiscountAmount,
		TaxAmount:      c.TaxAmount,
		Total:          c.Total,
	}
}

// CustomerColumns persist the buyer snapshot of a document
type CustomerColumns struct {
	CustomerID    uuid.UUID `gorm:"type:uuid;index"`
	CustomerName  string    `gorm:"type:varchar(200);not null"`
	CustomerTaxID string    `gorm:"type:varchar(20)"`
}

func customerColumnsFromDomain(c invoicing.Customer) CustomerColumns {
	return CustomerColumns{CustomerID: c.ID, CustomerName: c.Name, CustomerTaxID: c.TaxID}
}

func (c CustomerColumns) toDomain() invoicing.Customer {
	return invoicing.Customer{ID: c.CustomerID, Name: c.CustomerName, TaxID: c.CustomerTaxID}
}

// InvoiceModel is the persistence model for the Invoice aggregate root.
// Status is derived on read and has no column. The tenant-scoped unique
// constraints live in the SQL migrations.
type InvoiceModel struct {
	TenantAggregateModel
	BodyColumns
	CustomerColumns
	InvoiceNumber    string                 `gorm:"type:varchar(50);not null;index"`
	FiscalNumber     *string                `gorm:"type:varchar(19);index"`
	FiscalSequenceID *uuid.UUID             `gorm:"type:uuid"`
	DocumentType     invoicing.DocumentType `gorm:"type:varchar(30);not null"`
	PaidAmount       decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	ExchangeRate     decimal.Decimal        `gorm:"type:decimal(18,6);not null;default:1"`
	IssueDate        *time.Time             `gorm:"index"`
	DueDate          *time.Time
	FinalizedAt      *time.Time
	CancelledAt      *time.Time
	CancelReason     string     `gorm:"type:varchar(500)"`
	QuotationID      *uuid.UUID `gorm:"type:uuid"`
	Notes            string     `gorm:"type:text"`
	Items            []InvoiceLineModel `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	items := make([]invoicing.LineItem, len(m.Items))
	for i, item := range m.Items {
		items[i] = item.toDomain()
	}
	inv := &invoicing.Invoice{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		DocumentBody:        m.BodyColumns.toDomain(items),
		InvoiceNumber:       m.InvoiceNumber,
		FiscalSequenceID:    m.FiscalSequenceID,
		DocumentType:        m.DocumentType,
		Customer:            m.CustomerColumns.toDomain(),
		PaidAmount:          m.PaidAmount,
		ExchangeRate:        m.ExchangeRate,
		IssueDate:           m.IssueDate,
		DueDate:             m.DueDate,
		FinalizedAt:         m.FinalizedAt,
		CancelledAt:         m.CancelledAt,
		CancelReason:        m.CancelReason,
		QuotationID:         m.QuotationID,
		Notes:               m.Notes,
	}
	if m.FiscalNumber != nil {
		inv.FiscalNumber = *m.FiscalNumber
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.BodyColumns = bodyColumnsFromDomain(inv.DocumentBody)
	m.CustomerColumns = customerColumnsFromDomain(inv.Customer)
	m.InvoiceNumber = inv.InvoiceNumber
	m.FiscalNumber = nullableString(inv.FiscalNumber)
	m.FiscalSequenceID = inv.FiscalSequenceID
	m.DocumentType = inv.DocumentType
	m.PaidAmount = inv.PaidAmount
	m.ExchangeRate = inv.ExchangeRate
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.FinalizedAt = inv.FinalizedAt
	m.CancelledAt = inv.CancelledAt
	m.CancelReason = inv.CancelReason
	m.QuotationID = inv.QuotationID
	m.Notes = inv.Notes
	m.Items = make([]InvoiceLineModel, len(inv.Items))
	for i, item := range inv.Items {
		m.Items[i] = InvoiceLineModel{LineColumns: lineColumnsFromDomain(item), InvoiceID: inv.ID}
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceLineModel is one line of an invoice
type InvoiceLineModel struct {
	LineColumns
	InvoiceID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (InvoiceLineModel) TableName() string {
	return "invoice_lines"
}

// PaymentModel is one row of the append-only payment ledger.
// IdempotencyKey is NULL when the caller sent none so the unique index only binds real keys.
type PaymentModel struct {
	ID                uuid.UUID               `gorm:"type:uuid;primary_key"`
	TenantID          uuid.UUID               `gorm:"type:uuid;not null;index;uniqueIndex:idx_payment_tenant_key,priority:1"`
	InvoiceID         uuid.UUID               `gorm:"type:uuid;not null;index"`
	Amount            decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	Currency          valueobject.Currency    `gorm:"type:varchar(3);not null"`
	Method            invoicing.PaymentMethod `gorm:"type:varchar(20);not null"`
	Reference         string                  `gorm:"type:varchar(100)"`
	Kind              invoicing.PaymentKind   `gorm:"type:varchar(10);not null;default:'payment'"`
	ReversesPaymentID *uuid.UUID              `gorm:"type:uuid;uniqueIndex"`
	IdempotencyKey    *string                 `gorm:"type:varchar(128);uniqueIndex:idx_payment_tenant_key,priority:2"`
	Note              string                  `gorm:"type:varchar(500)"`
	AppliedAt         time.Time               `gorm:"not null"`
	CreatedBy         *uuid.UUID              `gorm:"type:uuid"`
	CreatedAt         time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *invoicing.Payment {
	p := &invoicing.Payment{
		ID:                m.ID,
		TenantID:          m.TenantID,
		InvoiceID:         m.InvoiceID,
		Amount:            m.Amount,
		Currency:          m.Currency,
		Method:            m.Method,
		Reference:         m.Reference,
		Kind:              m.Kind,
		ReversesPaymentID: m.ReversesPaymentID,
		Note:              m.Note,
		AppliedAt:         m.AppliedAt,
		CreatedBy:         m.CreatedBy,
		CreatedAt:         m.CreatedAt,
	}
	if m.IdempotencyKey != nil {
		p.IdempotencyKey = *m.IdempotencyKey
	}
	return p
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(p *invoicing.Payment) *PaymentModel {
	return &PaymentModel{
		ID:                p.ID,
		TenantID:          p.TenantID,
		InvoiceID:         p.InvoiceID,
		Amount:            p.Amount,
		Currency:          p.Currency,
		Method:            p.Method,
		Reference:         p.Reference,
		Kind:              p.Kind,
		ReversesPaymentID: p.ReversesPaymentID,
		IdempotencyKey:    nullableString(p.IdempotencyKey),
		Note:              p.Note,
		AppliedAt:         p.AppliedAt,
		CreatedBy:         p.CreatedBy,
		CreatedAt:         p.CreatedAt,
	}
}

// FiscalSequenceModel is an authorized NCF range
type FiscalSequenceModel struct {
	TenantAggregateModel
	DocumentType   invoicing.DocumentType `gorm:"type:varchar(30);not null;index:idx_fiscal_sequence_active"`
	Prefix         string                 `gorm:"type:varchar(10);not null"`
	StartNumber    int64                  `gorm:"not null"`
	EndNumber      int64                  `gorm:"not null"`
	CurrentNumber  int64                  `gorm:"not null"`
	PadWidth       int                    `gorm:"not null;default:8"`
	ExpirationDate time.Time              `gorm:"not null"`
	IsActive       bool                   `gorm:"not null;default:true;index:idx_fiscal_sequence_active"`
	AlertThreshold int64                  `gorm:"not null;default:0"`
	Description    string                 `gorm:"type:varchar(200)"`
}

// TableName returns the table name for GORM
func (FiscalSequenceModel) TableName() string {
	return "fiscal_sequences"
}

// ToDomain converts the persistence model to a domain FiscalSequence
func (m *FiscalSequenceModel) ToDomain() *invoicing.FiscalSequence {
	return &invoicing.FiscalSequence{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		DocumentType:        m.DocumentType,
		Prefix:              m.Prefix,
		StartNumber:         m.StartNumber,
		EndNumber:           m.EndNumber,
		CurrentNumber:       m.CurrentNumber,
		PadWidth:            m.PadWidth,
		ExpirationDate:      m.ExpirationDate,
		IsActive:            m.IsActive,
		AlertThreshold:      m.AlertThreshold,
		Description:         m.Description,
	}
}

// FiscalSequenceModelFromDomain creates a new persistence model from a domain FiscalSequence
func FiscalSequenceModelFromDomain(s *invoicing.FiscalSequence) *FiscalSequenceModel {
	m := &FiscalSequenceModel{
		DocumentType:   s.DocumentType,
		Prefix:         s.Prefix,
		StartNumber:    s.StartNumber,
		EndNumber:      s.EndNumber,
		CurrentNumber:  s.CurrentNumber,
		PadWidth:       s.PadWidth,
		ExpirationDate: s.ExpirationDate,
		IsActive:       s.IsActive,
		AlertThreshold: s.AlertThreshold,
		Description:    s.Description,
	}
	m.FromDomainTenantAggregateRoot(s.TenantAggregateRoot)
	return m
}

// QuotationModel is the persistence model for the Quotation aggregate root
type QuotationModel struct {
	TenantAggregateModel
	BodyColumns
	CustomerColumns
	QuotationNumber    string                   `gorm:"type:varchar(50);not null;index"`
	DocumentType       invoicing.DocumentType   `gorm:"type:varchar(30);not null"`
	Stage              invoicing.QuotationStage `gorm:"type:varchar(20);not null;default:'draft'"`
	ValidUntil         *time.Time
	SentAt             *time.Time
	AcceptedAt         *time.Time
	RejectedAt         *time.Time
	RejectionReason    string     `gorm:"type:varchar(500)"`
	ConvertedInvoiceID *uuid.UUID `gorm:"type:uuid"`
	Notes              string     `gorm:"type:text"`
	Items              []QuotationLineModel `gorm:"foreignKey:QuotationID;references:ID"`
}

// TableName returns the table name for GORM
func (QuotationModel) TableName() string {
	return "quotations"
}

// ToDomain converts the persistence model to a domain Quotation
func (m *QuotationModel) ToDomain() *invoicing.Quotation {
	items := make([]invoicing.LineItem, len(m.Items))
	for i, item := range m.Items {
		items[i] = item.toDomain()
	}
	return &invoicing.Quotation{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		DocumentBody:        m.BodyColumns.toDomain(items),
		QuotationNumber:     m.QuotationNumber,
		DocumentType:        m.DocumentType,
		Customer:            m.CustomerColumns.toDomain(),
		Stage:               m.Stage,
		ValidUntil:          m.ValidUntil,
		SentAt:              m.SentAt,
		AcceptedAt:          m.AcceptedAt,
		RejectedAt:          m.RejectedAt,
		RejectionReason:     m.RejectionReason,
		ConvertedInvoiceID:  m.ConvertedInvoiceID,
		Notes:               m.Notes,
	}
}

// FromDomain populates the persistence model from a domain Quotation
func (m *QuotationModel) FromDomain(q *invoicing.Quotation) {
	m.FromDomainTenantAggregateRoot(q.TenantAggregateRoot)
	m.BodyColumns = bodyColumnsFromDomain(q.DocumentBody)
	m.CustomerColumns = customerColumnsFromDomain(q.Customer)
	m.QuotationNumber = q.QuotationNumber
	m.DocumentType = q.DocumentType
	m.Stage = q.Stage
	m.ValidUntil = q.ValidUntil
	m.SentAt = q.SentAt
	m.AcceptedAt = q.AcceptedAt
	m.RejectedAt = q.RejectedAt
	m.RejectionReason = q.RejectionReason
	m.ConvertedInvoiceID = q.ConvertedInvoiceID
	m.Notes = q.Notes
	m.Items = make([]QuotationLineModel, len(q.Items))
	for i, item := range q.Items {
		m.Items[i] = QuotationLineModel{LineColumns: lineColumnsFromDomain(item), QuotationID: q.ID}
	}
}

// QuotationModelFromDomain creates a new persistence model from a domain Quotation
func QuotationModelFromDomain(q *invoicing.Quotation) *QuotationModel {
	m := &QuotationModel{}
	m.FromDomain(q)
	return m
}

// QuotationLineModel is one line of a quotation
type QuotationLineModel struct {
	LineColumns
	QuotationID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (QuotationLineModel) TableName() string {
	return "quotation_lines"
}

// SupplierBillModel is a received purchase document feeding the 606
type SupplierBillModel struct {
	TenantAggregateModel
	SupplierName  string                 `gorm:"type:varchar(200);not null"`
	SupplierTaxID string                 `gorm:"type:varchar(20);not null;index:idx_supplier_bill_fiscal"`
	FiscalNumber  string                 `gorm:"type:varchar(19);not null;index:idx_supplier_bill_fiscal"`
	DocumentType  invoicing.DocumentType `gorm:"type:varchar(30);not null"`
	ExpenseType   invoicing.ExpenseType  `gorm:"type:varchar(2);not null"`
	Currency      valueobject.Currency   `gorm:"type:varchar(3);not null"`
	ExchangeRate  decimal.Decimal        `gorm:"type:decimal(18,6);not null;default:1"`
	IssueDate     time.Time              `gorm:"not null;index"`
	Subtotal      decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount     decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	Total         decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	CancelledAt   *time.Time
	CancelReason  string `gorm:"type:varchar(500)"`
	Notes         string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SupplierBillModel) TableName() string {
	return "supplier_bills"
}

// ToDomain converts the persistence model to a domain SupplierBill
func (m *SupplierBillModel) ToDomain() *invoicing.SupplierBill {
	return &invoicing.SupplierBill{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		SupplierName:        m.SupplierName,
		SupplierTaxID:       m.SupplierTaxID,
		FiscalNumber:        m.FiscalNumber,
		DocumentType:        m.DocumentType,
		ExpenseType:         m.ExpenseType,
		Currency:            m.Currency,
		ExchangeRate:        m.ExchangeRate,
		IssueDate:           m.IssueDate,
		Subtotal:            m.Subtotal,
		TaxAmount:           m.TaxAmount,
		Total:               m.Total,
		CancelledAt:         m.CancelledAt,
		CancelReason:        m.CancelReason,
		Notes:               m.Notes,
	}
}

// SupplierBillModelFromDomain creates a new persistence model from a domain SupplierBill
func SupplierBillModelFromDomain(b *invoicing.SupplierBill) *SupplierBillModel {
	m := &SupplierBillModel{
		SupplierName:  b.SupplierName,
		SupplierTaxID: b.SupplierTaxID,
		FiscalNumber:  b.FiscalNumber,
		DocumentType:  b.DocumentType,
		ExpenseType:   b.ExpenseType,
		Currency:      b.Currency,
		ExchangeRate:  b.ExchangeRate,
		IssueDate:     b.IssueDate,
		Subtotal:      b.Subtotal,
		TaxAmount:     b.TaxAmount,
		Total:         b.Total,
		CancelledAt:   b.CancelledAt,
		CancelReason:  b.CancelReason,
		Notes:         b.Notes,
	}
	m.FromDomainTenantAggregateRoot(b.TenantAggregateRoot)
	return m
}

// PeriodReportModel stores one 606 or 607 per tenant and month.
// Groups are kept as one JSON column.
type PeriodReportModel struct {
	TenantAggregateModel
	Period              string                  `gorm:"type:varchar(6);not null;index:idx_period_report_key"`
	ReportType          invoicing.ReportType    `gorm:"type:varchar(3);not null;index:idx_period_report_key"`
	Currency            valueobject.Currency    `gorm:"type:varchar(3);not null"`
	Groups              datatypes.JSONSlice[invoicing.ReportGroup]
	TotalRecords        int                     `gorm:"not null;default:0"`
	TotalAmount         decimal.Decimal         `gorm:"type:decimal(18,4);not null;default:0"`
	TotalTax            decimal.Decimal         `gorm:"type:decimal(18,4);not null;default:0"`
	Status              invoicing.ReportStatus  `gorm:"type:varchar(20);not null;default:'draft'"`
	GeneratedAt         time.Time               `gorm:"not null"`
	Checksum            string                  `gorm:"type:char(64);not null"`
	SubmittedAt         *time.Time
	SubmittedBy         *uuid.UUID `gorm:"type:uuid"`
	SubmissionReference string     `gorm:"type:varchar(100)"`
	ReviewedAt          *time.Time
	RejectionReason     string `gorm:"type:varchar(500)"`
	ArchiveKey          string `gorm:"type:varchar(300)"`
}

// TableName returns the table name for GORM
func (PeriodReportModel) TableName() string {
	return "period_reports"
}

// ToDomain converts the persistence model to a domain PeriodReport.
// A malformed stored period yields the zero Period.
func (m *PeriodReportModel) ToDomain() *invoicing.PeriodReport {
	period, _ := invoicing.ParsePeriod(m.Period)
	return &invoicing.PeriodReport{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		ReportFigures: invoicing.ReportFigures{
			Period:       period,
			ReportType:   m.ReportType,
			Currency:     m.Currency,
			Groups:       []invoicing.ReportGroup(m.Groups),
			TotalRecords: m.TotalRecords,
			TotalAmount:  m.TotalAmount,
			TotalTax:     m.TotalTax,
		},
		Status:              m.Status,
		GeneratedAt:         m.GeneratedAt,
		Checksum:            m.Checksum,
		SubmittedAt:         m.SubmittedAt,
		SubmittedBy:         m.SubmittedBy,
		SubmissionReference: m.SubmissionReference,
		ReviewedAt:          m.ReviewedAt,
		RejectionReason:     m.RejectionReason,
		ArchiveKey:          m.ArchiveKey,
	}
}

// PeriodReportModelFromDomain creates a new persistence model from a domain PeriodReport
func PeriodReportModelFromDomain(r *invoicing.PeriodReport) *PeriodReportModel {
	m := &PeriodReportModel{
		Period:              r.Period.String(),
		ReportType:          r.ReportType,
		Currency:            r.Currency,
		Groups:              datatypes.JSONSlice[invoicing.ReportGroup](r.Groups),
		TotalRecords:        r.TotalRecords,
		TotalAmount:         r.TotalAmount,
		TotalTax:            r.TotalTax,
		Status:              r.Status,
		GeneratedAt:         r.GeneratedAt,
		Checksum:            r.Checksum,
		SubmittedAt:         r.SubmittedAt,
		SubmittedBy:         r.SubmittedBy,
		SubmissionReference: r.SubmissionReference,
		ReviewedAt:          r.ReviewedAt,
		RejectionReason:     r.RejectionReason,
		ArchiveKey:          r.ArchiveKey,
	}
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	return m
}

// InvoicingModels lists every table for AutoMigrate in tests and tooling
func InvoicingModels() []any {
	return []any{
		&InvoiceModel{},
		&InvoiceLineModel{},
		&PaymentModel{},
		&FiscalSequenceModel{},
		&QuotationModel{},
		&QuotationLineModel{},
		&SupplierBillModel{},
		&PeriodReportModel{},
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
