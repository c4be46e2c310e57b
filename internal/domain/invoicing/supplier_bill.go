package invoicing

import (
	"strings"
	"time"

	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpenseType is the purchase category code reported on the 606
type ExpenseType string

var expenseTypeLabels = map[ExpenseType]string{
	"01": "Personnel expenses",
	"02": "Work, supplies and services",
	"03": "Rentals",
	"04": "Fixed asset expenses",
	"05": "Representation expenses",
	"06": "Other allowable deductions",
	"07": "Financial expenses",
	"08": "Extraordinary expenses",
	"09": "Cost of sales",
	"10": "Asset acquisitions",
	"11": "Insurance expenses",
}

// IsValid checks if the code is a known expense category
func (e ExpenseType) IsValid() bool {
	_, ok := expenseTypeLabels[e]
	return ok
}

// Label returns the human readable category
func (e ExpenseType) Label() string {
	return expenseTypeLabels[e]
}

// SupplierBill is a fiscal document received from a supplier. It feeds the 606.
type SupplierBill struct {
	shared.TenantAggregateRoot
	SupplierName  string
	SupplierTaxID string
	FiscalNumber  string
	DocumentType  DocumentType
	ExpenseType   ExpenseType
	Currency      valueobject.Currency
	ExchangeRate  decimal.Decimal
	IssueDate     time.Time
	Subtotal      decimal.Decimal
	TaxAmount     decimal.Decimal
	Total         decimal.Decimal
	CancelledAt   *time.Time
	CancelReason  string
	Notes         string
}

// SupplierBillInput carries the fields of a received bill
type SupplierBillInput struct {
	SupplierName  string
	SupplierTaxID string
	FiscalNumber  string
	DocumentType  DocumentType
	ExpenseType   ExpenseType
	Subtotal      valueobject.Money
	TaxAmount     valueobject.Money
	ExchangeRate  decimal.Decimal
	IssueDate     time.Time
	Notes         string
}

// NewSupplierBill validates and records a received bill
func NewSupplierBill(tenantID uuid.UUID, in SupplierBillInput) (*SupplierBill, error) {
	if strings.TrimSpace(in.SupplierName) == "" {
		return nil, invalidInput("supplier name cannot be empty")
	}
	if strings.TrimSpace(in.SupplierTaxID) == "" {
		return nil, invalidInput("supplier tax id cannot be empty")
	}
	if strings.TrimSpace(in.FiscalNumber) == "" {
		return nil, invalidInput("supplier fiscal number cannot be empty")
	}
	if !in.DocumentType.IsValid() {
		return nil, invalidInput("unknown fiscal document type %q", in.DocumentType)
	}
	if !in.ExpenseType.IsValid() {
		return nil, invalidInput("unknown expense type %q", in.ExpenseType)
	}
	if in.IssueDate.IsZero() {
		return nil, invalidInput("issue date is required")
	}
	if in.Subtotal.IsNegative() || in.TaxAmount.IsNegative() {
		return nil, errorf(ErrInvalidAmount, "bill amounts cannot be negative")
	}
	total, err := in.Subtotal.Add(in.TaxAmount)
	if err != nil {
		return nil, errorf(ErrCurrencyMismatch, "subtotal and tax must share a currency")
	}

	rate := in.ExchangeRate
	if in.Subtotal.Currency() == valueobject.DefaultCurrency {
		rate = decimal.NewFromInt(1)
	} else if !rate.IsPositive() {
		return nil, errorf(ErrCurrencyMismatch, "bill %s is in %s and needs an exchange rate to %s",
			strings.TrimSpace(in.FiscalNumber), in.Subtotal.Currency(), valueobject.DefaultCurrency)
	}

	return &SupplierBill{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		SupplierName:        strings.TrimSpace(in.SupplierName),
		SupplierTaxID:       strings.TrimSpace(in.SupplierTaxID),
		FiscalNumber:        strings.ToUpper(strings.TrimSpace(in.FiscalNumber)),
		DocumentType:        in.DocumentType,
		ExpenseType:         in.ExpenseType,
		Currency:            in.Subtotal.Currency(),
		ExchangeRate:        rate,
		IssueDate:           in.IssueDate,
		Subtotal:            in.Subtotal.RoundToMinor().Amount(),
		TaxAmount:           in.TaxAmount.RoundToMinor().Amount(),
		Total:               total.RoundToMinor().Amount(),
		Notes:               in.Notes,
	}, nil
}

// IsCancelled reports whether the bill was voided
func (b *SupplierBill) IsCancelled() bool {
	return b.CancelledAt != nil
}

// Cancel voids the bill so it drops out of the purchases report
func (b *SupplierBill) Cancel(reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return invalidInput("cancel reason is required")
	}
	if b.IsCancelled() {
		return errorf(ErrInvalidTransition, "supplier bill %s is already cancelled", b.FiscalNumber)
	}
	b.CancelledAt = &now
	b.CancelReason = reason
	b.Touch()
	return nil
}

// FiscalDocument returns the bill in the shape the period aggregator consumes
func (b *SupplierBill) FiscalDocument() FiscalDocument {
	return FiscalDocument{
		ID:           b.ID,
		DocumentType: b.DocumentType,
		FiscalNumber: b.FiscalNumber,
		Currency:     b.Currency,
		ExchangeRate: b.ExchangeRate,
		Total:        b.Total,
		TaxAmount:    b.TaxAmount,
		IssueDate:    b.IssueDate,
		Cancelled:    b.IsCancelled(),
		Issued:       true,
	}
}
