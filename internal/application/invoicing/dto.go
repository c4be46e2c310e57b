package invoicing

import (
	"strings"
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ==================== Inputs ====================

// LineItemInput is one line as entered by the user. Prices are in the document currency.
type LineItemInput struct {
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Discount     decimal.Decimal `json:"discount"`
	DiscountType string          `json:"discount_type"`
}

// CustomerInput identifies the buyer
type CustomerInput struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	TaxID string    `json:"tax_id"`
}

func (c CustomerInput) toDomain() invoicing.Customer {
	return invoicing.Customer{ID: c.ID, Name: strings.TrimSpace(c.Name), TaxID: strings.TrimSpace(c.TaxID)}
}

// CreateInvoiceInput creates a draft invoice
type CreateInvoiceInput struct {
	DocumentType string           `json:"document_type"`
	Currency     string           `json:"currency"`
	Customer     CustomerInput    `json:"customer"`
	Lines        []LineItemInput  `json:"lines"`
	TaxRate      *decimal.Decimal `json:"tax_rate"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate"`
	DueDate      *time.Time       `json:"due_date"`
	Notes        string           `json:"notes"`
	CreatedBy    *uuid.UUID       `json:"-"`
}

// UpdateInvoiceInput edits a draft. Nil fields are left unchanged.
type UpdateInvoiceInput struct {
	Customer     *CustomerInput   `json:"customer"`
	Lines        []LineItemInput  `json:"lines"`
	TaxRate      *decimal.Decimal `json:"tax_rate"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate"`
	DueDate      *time.Time       `json:"due_date"`
	Notes        *string          `json:"notes"`
}

// PreviewInput prices lines without persisting anything
type PreviewInput struct {
	Currency string           `json:"currency"`
	Lines    []LineItemInput  `json:"lines"`
	TaxRate  *decimal.Decimal `json:"tax_rate"`
}

// InvoiceListInput narrows invoice listings
type InvoiceListInput struct {
	shared.Filter
	Status       string
	CustomerID   *uuid.UUID
	DocumentType string
	IssuedFrom   *time.Time
	IssuedTo     *time.Time
}

// ApplyPaymentCommand records a payment against an invoice
type ApplyPaymentCommand struct {
	TenantID       uuid.UUID
	InvoiceID      uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	Method         string
	Reference      string
	IdempotencyKey string
	AppliedAt      *time.Time
	CreatedBy      *uuid.UUID
}

// VoidPaymentCommand reverses a payment
type VoidPaymentCommand struct {
	TenantID       uuid.UUID
	PaymentID      uuid.UUID
	Reason         string
	IdempotencyKey string
	CreatedBy      *uuid.UUID
}

// RegisterSequenceInput registers an authorized number range
type RegisterSequenceInput struct {
	DocumentType   string    `json:"document_type"`
	Prefix         string    `json:"prefix"`
	StartNumber    int64     `json:"start_number"`
	EndNumber      int64     `json:"end_number"`
	PadWidth       int       `json:"pad_width"`
	ExpirationDate time.Time `json:"expiration_date"`
	AlertThreshold int64     `json:"alert_threshold"`
	Description    string    `json:"description"`
}

// CreateQuotationInput creates a draft quotation
type CreateQuotationInput struct {
	DocumentType string           `json:"document_type"`
	Currency     string           `json:"currency"`
	Customer     CustomerInput    `json:"customer"`
	Lines        []LineItemInput  `json:"lines"`
	TaxRate      *decimal.Decimal `json:"tax_rate"`
	ValidUntil   *time.Time       `json:"valid_until"`
	Notes        string           `json:"notes"`
	CreatedBy    *uuid.UUID       `json:"-"`
}

// UpdateQuotationInput replaces the editable content of a draft quotation
type UpdateQuotationInput struct {
	Customer   CustomerInput    `json:"customer"`
	Lines      []LineItemInput  `json:"lines"`
	TaxRate    *decimal.Decimal `json:"tax_rate"`
	ValidUntil *time.Time       `json:"valid_until"`
	Notes      string           `json:"notes"`
}

// RegisterSupplierBillInput records a bill received from a supplier
type RegisterSupplierBillInput struct {
	SupplierName  string           `json:"supplier_name"`
	SupplierTaxID string           `json:"supplier_tax_id"`
	FiscalNumber  string           `json:"fiscal_number"`
	DocumentType  string           `json:"document_type"`
	ExpenseType   string           `json:"expense_type"`
	Currency      string           `json:"currency"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	TaxAmount     decimal.Decimal  `json:"tax_amount"`
	ExchangeRate  *decimal.Decimal `json:"exchange_rate"`
	IssueDate     time.Time        `json:"issue_date"`
	Notes         string           `json:"notes"`
	CreatedBy     *uuid.UUID       `json:"-"`
}

// ==================== Responses ====================

// LineItemResponse is a priced line
type LineItemResponse struct {
	Position     int             `json:"position"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Discount     decimal.Decimal `json:"discount"`
	DiscountType string          `json:"discount_type"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// CustomerResponse is the buyer copied onto a document
type CustomerResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	TaxID string    `json:"tax_id,omitempty"`
}

// TotalsResponse is the calculator output
type TotalsResponse struct {
	Currency       valueobject.Currency `json:"currency"`
	TaxRate        decimal.Decimal      `json:"tax_rate"`
	Subtotal       valueobject.Money    `json:"subtotal"`
	DiscountAmount valueobject.Money    `json:"discount_amount"`
	TaxAmount      valueobject.Money    `json:"tax_amount"`
	Total          valueobject.Money    `json:"total"`
}

// PreviewResponse is the priced preview of a document
type PreviewResponse struct {
	TotalsResponse
	Lines []LineItemResponse `json:"lines"`
}

// InvoiceResponse is the API view of an invoice with its derived status
type InvoiceResponse struct {
	ID            uuid.UUID          `json:"id"`
	TenantID      uuid.UUID          `json:"tenant_id"`
	InvoiceNumber string             `json:"invoice_number"`
	FiscalNumber  string             `json:"fiscal_number,omitempty"`
	DocumentType  string             `json:"document_type"`
	DocumentCode  string             `json:"document_code"`
	Status        string             `json:"status"`
	Customer      CustomerResponse   `json:"customer"`
	Items         []LineItemResponse `json:"items"`
	TotalsResponse
	PaidAmount   valueobject.Money `json:"paid_amount"`
	AmountDue    valueobject.Money `json:"amount_due"`
	ExchangeRate decimal.Decimal   `json:"exchange_rate"`
	IssueDate    *time.Time        `json:"issue_date,omitempty"`
	DueDate      *time.Time        `json:"due_date,omitempty"`
	FinalizedAt  *time.Time        `json:"finalized_at,omitempty"`
	CancelledAt  *time.Time        `json:"cancelled_at,omitempty"`
	CancelReason string            `json:"cancel_reason,omitempty"`
	QuotationID  *uuid.UUID        `json:"quotation_id,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	Version      int               `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// PaymentResponse is one ledger entry
type PaymentResponse struct {
	ID                uuid.UUID         `json:"id"`
	InvoiceID         uuid.UUID         `json:"invoice_id"`
	Amount            valueobject.Money `json:"amount"`
	Method            string            `json:"method"`
	Kind              string            `json:"kind"`
	Reference         string            `json:"reference,omitempty"`
	ReversesPaymentID *uuid.UUID        `json:"reverses_payment_id,omitempty"`
	IdempotencyKey    string            `json:"idempotency_key,omitempty"`
	Note              string            `json:"note,omitempty"`
	AppliedAt         time.Time         `json:"applied_at"`
	CreatedAt         time.Time         `json:"created_at"`
}

// PaymentResult is returned by the ledger commands
type PaymentResult struct {
	Payment PaymentResponse `json:"payment"`
	Invoice InvoiceResponse `json:"invoice"`
	// Replayed is true when the idempotency key matched an earlier request
	Replayed bool `json:"replayed"`
}

// ReconcileResult reports the outcome of a ledger reconciliation
type ReconcileResult struct {
	InvoiceID    uuid.UUID         `json:"invoice_id"`
	LedgerSum    valueobject.Money `json:"ledger_sum"`
	PreviousPaid valueobject.Money `json:"previous_paid"`
	Repaired     bool              `json:"repaired"`
	Entries      int               `json:"entries"`
	Status       string            `json:"status"`
}

// SequenceResponse is an authorized range with its derived counters
type SequenceResponse struct {
	ID             uuid.UUID `json:"id"`
	DocumentType   string    `json:"document_type"`
	DocumentCode   string    `json:"document_code"`
	Prefix         string    `json:"prefix"`
	StartNumber    int64     `json:"start_number"`
	EndNumber      int64     `json:"end_number"`
	CurrentNumber  int64     `json:"current_number"`
	PadWidth       int       `json:"pad_width"`
	ExpirationDate time.Time `json:"expiration_date"`
	IsActive       bool      `json:"is_active"`
	AlertThreshold int64     `json:"alert_threshold"`
	Description    string    `json:"description,omitempty"`
	Issued         int64     `json:"issued"`
	Remaining      int64     `json:"remaining"`
	Expired        bool      `json:"expired"`
	Exhausted      bool      `json:"exhausted"`
	RunningLow     bool      `json:"running_low"`
	NextFiscal     string    `json:"next_fiscal_number,omitempty"`
}

// QuotationResponse is the API view of a quotation
type QuotationResponse struct {
	ID                 uuid.UUID          `json:"id"`
	QuotationNumber    string             `json:"quotation_number"`
	DocumentType       string             `json:"document_type"`
	Status             string             `json:"status"`
	Customer           CustomerResponse   `json:"customer"`
	Items              []LineItemResponse `json:"items"`
	TotalsResponse
	ValidUntil         *time.Time `json:"valid_until,omitempty"`
	SentAt             *time.Time `json:"sent_at,omitempty"`
	AcceptedAt         *time.Time `json:"accepted_at,omitempty"`
	RejectedAt         *time.Time `json:"rejected_at,omitempty"`
	RejectionReason    string     `json:"rejection_reason,omitempty"`
	ConvertedInvoiceID *uuid.UUID `json:"converted_invoice_id,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	Version            int        `json:"version"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// SupplierBillResponse is the API view of a supplier bill
type SupplierBillResponse struct {
	ID            uuid.UUID         `json:"id"`
	SupplierName  string            `json:"supplier_name"`
	SupplierTaxID string            `json:"supplier_tax_id"`
	FiscalNumber  string            `json:"fiscal_number"`
	DocumentType  string            `json:"document_type"`
	ExpenseType   string            `json:"expense_type"`
	ExpenseLabel  string            `json:"expense_label"`
	ExchangeRate  decimal.Decimal   `json:"exchange_rate"`
	IssueDate     time.Time         `json:"issue_date"`
	Subtotal      valueobject.Money `json:"subtotal"`
	TaxAmount     valueobject.Money `json:"tax_amount"`
	Total         valueobject.Money `json:"total"`
	Cancelled     bool              `json:"cancelled"`
	CancelledAt   *time.Time        `json:"cancelled_at,omitempty"`
	CancelReason  string            `json:"cancel_reason,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ReportResponse is the API view of a period report
type ReportResponse struct {
	ID                  uuid.UUID               `json:"id"`
	Period              string                  `json:"period"`
	ReportType          string                  `json:"report_type"`
	Currency            valueobject.Currency    `json:"currency"`
	Status              string                  `json:"status"`
	Groups              []invoicing.ReportGroup `json:"groups"`
	TotalRecords        int                     `json:"total_records"`
	TotalAmount         valueobject.Money       `json:"total_amount"`
	TotalTax            valueobject.Money       `json:"total_tax"`
	Checksum            string                  `json:"checksum"`
	GeneratedAt         time.Time               `json:"generated_at"`
	SubmittedAt         *time.Time              `json:"submitted_at,omitempty"`
	SubmissionReference string                  `json:"submission_reference,omitempty"`
	ReviewedAt          *time.Time              `json:"reviewed_at,omitempty"`
	RejectionReason     string                  `json:"rejection_reason,omitempty"`
	ArchiveKey          string                  `json:"archive_key,omitempty"`
	Version             int                     `json:"version"`
}

// TaxBalanceResponse is tax collected minus tax paid for a period
type TaxBalanceResponse struct {
	Period       string            `json:"period"`
	TaxCollected valueobject.Money `json:"tax_collected"`
	TaxPaid      valueobject.Money `json:"tax_paid"`
	Balance      valueobject.Money `json:"balance"`
	SalesReport  *uuid.UUID        `json:"sales_report_id,omitempty"`
	BuyReport    *uuid.UUID        `json:"purchases_report_id,omitempty"`
}

// ==================== Mapping ====================

func money(amount decimal.Decimal, currency valueobject.Currency) valueobject.Money {
	m, _ := valueobject.NewMoney(amount, currency)
	return m
}

func toLineInputs(currency valueobject.Currency, lines []LineItemInput) ([]invoicing.LineInput, error) {
	out := make([]invoicing.LineInput, 0, len(lines))
	for _, l := range lines {
		price, err := valueobject.NewMoney(l.UnitPrice, currency)
		if err != nil {
			return nil, shared.NewDomainError(invoicing.ErrCurrencyMismatch.Code, err.Error())
		}
		out = append(out, invoicing.LineInput{
			Description:  l.Description,
			Quantity:     l.Quantity,
			UnitPrice:    price,
			Discount:     l.Discount,
			DiscountType: invoicing.DiscountType(l.DiscountType),
		})
	}
	return out, nil
}

func toLineResponses(items []invoicing.LineItem) []LineItemResponse {
	return lo.Map(items, func(it invoicing.LineItem, _ int) LineItemResponse {
		return LineItemResponse{
			Position:     it.Position,
			Description:  it.Description,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			Discount:     it.Discount,
			DiscountType: string(it.DiscountType),
			LineTotal:    it.LineTotal,
		}
	})
}

func toCustomerResponse(c invoicing.Customer) CustomerResponse {
	return CustomerResponse{ID: c.ID, Name: c.Name, TaxID: c.TaxID}
}

func toTotalsResponse(b invoicing.DocumentBody) TotalsResponse {
	return TotalsResponse{
		Currency:       b.Currency,
		TaxRate:        b.TaxRate,
		Subtotal:       money(b.Subtotal, b.Currency),
		DiscountAmount: money(b.DiscountAmount, b.Currency),
		TaxAmount:      money(b.TaxAmount, b.Currency),
		Total:          money(b.Total, b.Currency),
	}
}

// ToInvoiceResponse maps an invoice, deriving its status at now
func ToInvoiceResponse(inv *invoicing.Invoice, now time.Time) InvoiceResponse {
	return InvoiceResponse{
		ID:             inv.ID,
		TenantID:       inv.TenantID,
		InvoiceNumber:  inv.InvoiceNumber,
		FiscalNumber:   inv.FiscalNumber,
		DocumentType:   string(inv.DocumentType),
		DocumentCode:   inv.DocumentType.Code(),
		Status:         inv.Status(now).String(),
		Customer:       toCustomerResponse(inv.Customer),
		Items:          toLineResponses(inv.Items),
		TotalsResponse: toTotalsResponse(inv.DocumentBody),
		PaidAmount:     money(inv.PaidAmount, inv.Currency),
		AmountDue:      inv.AmountDueMoney(),
		ExchangeRate:   inv.ExchangeRate,
		IssueDate:      inv.IssueDate,
		DueDate:        inv.DueDate,
		FinalizedAt:    inv.FinalizedAt,
		CancelledAt:    inv.CancelledAt,
		CancelReason:   inv.CancelReason,
		QuotationID:    inv.QuotationID,
		Notes:          inv.Notes,
		Version:        inv.Version,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

// ToPaymentResponse maps a ledger entry
func ToPaymentResponse(p *invoicing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                p.ID,
		InvoiceID:         p.InvoiceID,
		Amount:            p.Money(),
		Method:            string(p.Method),
		Kind:              string(p.Kind),
		Reference:         p.Reference,
		ReversesPaymentID: p.ReversesPaymentID,
		IdempotencyKey:    p.IdempotencyKey,
		Note:              p.Note,
		AppliedAt:         p.AppliedAt,
		CreatedAt:         p.CreatedAt,
	}
}

// ToSequenceResponse maps a sequence with counters evaluated at now
func ToSequenceResponse(s *invoicing.FiscalSequence, now time.Time) SequenceResponse {
	resp := SequenceResponse{
		ID:             s.ID,
		DocumentType:   string(s.DocumentType),
		DocumentCode:   s.DocumentType.Code(),
		Prefix:         s.Prefix,
		StartNumber:    s.StartNumber,
		EndNumber:      s.EndNumber,
		CurrentNumber:  s.CurrentNumber,
		PadWidth:       s.PadWidth,
		ExpirationDate: s.ExpirationDate,
		IsActive:       s.IsActive,
		AlertThreshold: s.AlertThreshold,
		Description:    s.Description,
		Issued:         s.Issued(),
		Remaining:      s.Remaining(),
		Expired:        s.IsExpired(now),
		Exhausted:      s.IsExhausted(),
		RunningLow:     s.IsRunningLow(),
	}
	if next, err := s.NextNumber(now); err == nil {
		resp.NextFiscal = s.Format(next)
	}
	return resp
}

// ToQuotationResponse maps a quotation, deriving its status at now
func ToQuotationResponse(q *invoicing.Quotation, now time.Time) QuotationResponse {
	return QuotationResponse{
		ID:                 q.ID,
		QuotationNumber:    q.QuotationNumber,
		DocumentType:       string(q.DocumentType),
		Status:             q.Status(now),
		Customer:           toCustomerResponse(q.Customer),
		Items:              toLineResponses(q.Items),
		TotalsResponse:     toTotalsResponse(q.DocumentBody),
		ValidUntil:         q.ValidUntil,
		SentAt:             q.SentAt,
		AcceptedAt:         q.AcceptedAt,
		RejectedAt:         q.RejectedAt,
		RejectionReason:    q.RejectionReason,
		ConvertedInvoiceID: q.ConvertedInvoiceID,
		Notes:              q.Notes,
		Version:            q.Version,
		CreatedAt:          q.CreatedAt,
		UpdatedAt:          q.UpdatedAt,
	}
}

// ToSupplierBillResponse maps a supplier bill
func ToSupplierBillResponse(b *invoicing.SupplierBill) SupplierBillResponse {
	return SupplierBillResponse{
		ID:            b.ID,
		SupplierName:  b.SupplierName,
		SupplierTaxID: b.SupplierTaxID,
		FiscalNumber:  b.FiscalNumber,
		DocumentType:  string(b.DocumentType),
		ExpenseType:   string(b.ExpenseType),
		ExpenseLabel:  b.ExpenseType.Label(),
		ExchangeRate:  b.ExchangeRate,
		IssueDate:     b.IssueDate,
		Subtotal:      money(b.Subtotal, b.Currency),
		TaxAmount:     money(b.TaxAmount, b.Currency),
		Total:         money(b.Total, b.Currency),
		Cancelled:     b.IsCancelled(),
		CancelledAt:   b.CancelledAt,
		CancelReason:  b.CancelReason,
		Notes:         b.Notes,
		CreatedAt:     b.CreatedAt,
	}
}

// ToReportResponse maps a period report
func ToReportResponse(r *invoicing.PeriodReport) ReportResponse {
	groups := r.Groups
	if groups == nil {
		groups = []invoicing.ReportGroup{}
	}
	return ReportResponse{
		ID:                  r.ID,
		Period:              r.Period.String(),
		ReportType:          string(r.ReportType),
		Currency:            r.Currency,
		Status:              string(r.Status),
		Groups:              groups,
		TotalRecords:        r.TotalRecords,
		TotalAmount:         money(r.TotalAmount, r.Currency),
		TotalTax:            money(r.TotalTax, r.Currency),
		Checksum:            r.Checksum,
		GeneratedAt:         r.GeneratedAt,
		SubmittedAt:         r.SubmittedAt,
		SubmissionReference: r.SubmissionReference,
		ReviewedAt:          r.ReviewedAt,
		RejectionReason:     r.RejectionReason,
		ArchiveKey:          r.ArchiveKey,
		Version:             r.Version,
	}
}

func newPage[T any](items []T, total int64, filter shared.Filter) shared.Paginated[T] {
	if items == nil {
		items = []T{}
	}
	return shared.NewPaginated(items, total, filter.Page, filter.Limit())
}
