package invoicing

import (
	"strings"
	"time"

	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is derived from the invoice's facts on every read, never stored
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPartial   InvoiceStatus = "partial"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPending, InvoiceStatusPartial,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// FiscalNumberAssignment is what the sequence allocator hands to Finalize
type FiscalNumberAssignment struct {
	SequenceID   uuid.UUID
	Number       int64
	FiscalNumber string
}

// Invoice represents a customer invoice aggregate root.
// Lines are editable only while draft; finalizing stamps a fiscal number
// which is never released, even when the invoice is later cancelled.
type Invoice struct {
	shared.TenantAggregateRoot
	DocumentBody
	InvoiceNumber    string
	FiscalNumber     string
	FiscalSequenceID *uuid.UUID
	DocumentType     DocumentType
	Customer         Customer
	PaidAmount       decimal.Decimal
	ExchangeRate     decimal.Decimal // units of local currency per unit of Currency
	IssueDate        *time.Time
	DueDate          *time.Time
	FinalizedAt      *time.Time
	CancelledAt      *time.Time
	CancelReason     string
	QuotationID      *uuid.UUID
	Notes            string
}

// NewInvoice creates an empty draft invoice
func NewInvoice(tenantID uuid.UUID, invoiceNumber string, documentType DocumentType, currency valueobject.Currency, customer Customer, taxRate decimal.Decimal) (*Invoice, error) {
	if strings.TrimSpace(invoiceNumber) == "" {
		return nil, invalidInput("invoice number cannot be empty")
	}
	if !documentType.IsValid() {
		return nil, invalidInput("unknown fiscal document type %q", documentType)
	}
	body, err := newDocumentBody(currency, taxRate)
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		DocumentBody:        body,
		InvoiceNumber:       invoiceNumber,
		DocumentType:        documentType,
		Customer:            customer,
		PaidAmount:          decimal.Zero,
		ExchangeRate:        defaultExchangeRate(currency),
	}
	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))
	return inv, nil
}

func defaultExchangeRate(currency valueobject.Currency) decimal.Decimal {
	if currency == valueobject.DefaultCurrency {
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}

// Status derives the current status at instant now
func (inv *Invoice) Status(now time.Time) InvoiceStatus {
	switch {
	case inv.CancelledAt != nil:
		return InvoiceStatusCancelled
	case inv.FinalizedAt == nil:
		return InvoiceStatusDraft
	case !inv.AmountDue().IsPositive():
		return InvoiceStatusPaid
	case inv.DueDate != nil && inv.DueDate.Before(now):
		return InvoiceStatusOverdue
	case inv.PaidAmount.IsPositive():
		return InvoiceStatusPartial
	default:
		return InvoiceStatusPending
	}
}

// AmountDue returns total - paid
func (inv *Invoice) AmountDue() decimal.Decimal {
	return inv.Total.Sub(inv.PaidAmount)
}

// AmountDueMoney returns the outstanding balance as Money
func (inv *Invoice) AmountDueMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.AmountDue(), inv.Currency)
	return m
}

// IsDraft reports whether the invoice has not been finalized nor cancelled
func (inv *Invoice) IsDraft() bool {
	return inv.FinalizedAt == nil && inv.CancelledAt == nil
}

// IsCancelled reports whether the invoice was cancelled
func (inv *Invoice) IsCancelled() bool {
	return inv.CancelledAt != nil
}

// IsFinalized reports whether a fiscal number was stamped
func (inv *Invoice) IsFinalized() bool {
	return inv.FinalizedAt != nil
}

func (inv *Invoice) requireDraft(action string) error {
	if inv.IsCancelled() {
		return errorf(ErrInvoiceCancelled, "cannot %s a cancelled invoice", action)
	}
	if inv.IsFinalized() {
		return errorf(ErrInvalidTransition, "cannot %s a finalized invoice", action)
	}
	return nil
}

// SetLines replaces the line items and recomputes totals. Only allowed in draft.
func (inv *Invoice) SetLines(lines []LineInput, taxRate decimal.Decimal) error {
	if err := inv.requireDraft("edit lines of"); err != nil {
		return err
	}
	if err := inv.reprice(lines, taxRate); err != nil {
		return err
	}
	inv.Touch()
	return nil
}

// SetCustomer replaces the buyer data. Only allowed in draft.
func (inv *Invoice) SetCustomer(customer Customer) error {
	if err := inv.requireDraft("change customer of"); err != nil {
		return err
	}
	inv.Customer = customer
	inv.Touch()
	return nil
}

// SetDueDate sets or clears the due date. Only allowed in draft.
func (inv *Invoice) SetDueDate(due *time.Time) error {
	if err := inv.requireDraft("change due date of"); err != nil {
		return err
	}
	inv.DueDate = due
	inv.Touch()
	return nil
}

// SetExchangeRate records the rate to local currency. Only allowed in draft.
func (inv *Invoice) SetExchangeRate(rate decimal.Decimal) error {
	if err := inv.requireDraft("change exchange rate of"); err != nil {
		return err
	}
	if inv.Currency == valueobject.DefaultCurrency {
		inv.ExchangeRate = decimal.NewFromInt(1)
		return nil
	}
	if !rate.IsPositive() {
		return errorf(ErrInvalidAmount, "exchange rate must be positive")
	}
	inv.ExchangeRate = rate
	inv.Touch()
	return nil
}

// SetNotes replaces the free-text notes. Only allowed in draft.
func (inv *Invoice) SetNotes(notes string) error {
	if err := inv.requireDraft("edit notes of"); err != nil {
		return err
	}
	inv.Notes = notes
	inv.Touch()
	return nil
}

// CanFinalize checks the finalize guards without consuming a fiscal number
func (inv *Invoice) CanFinalize() error {
	if err := inv.requireDraft("finalize"); err != nil {
		return err
	}
	if len(inv.Items) == 0 {
		return errorf(ErrInvalidTransition, "invoice %s has no line items", inv.InvoiceNumber)
	}
	if !inv.Customer.IsSet() {
		return errorf(ErrInvalidTransition, "invoice %s has no customer", inv.InvoiceNumber)
	}
	if inv.DocumentType.RequiresCustomerTaxID() && strings.TrimSpace(inv.Customer.TaxID) == "" {
		return errorf(ErrInvalidTransition, "%s invoices require the customer tax id", inv.DocumentType)
	}
	// the rate is frozen once finalized and every period report converts through it
	if inv.Currency != valueobject.DefaultCurrency && !inv.ExchangeRate.IsPositive() {
		return errorf(ErrCurrencyMismatch, "invoice %s is in %s and needs an exchange rate to %s before finalizing",
			inv.InvoiceNumber, inv.Currency, valueobject.DefaultCurrency)
	}
	return nil
}

// Finalize stamps the allocated fiscal number and moves the invoice to pending.
// If the invoice has no due date, defaultDue days after issue is used (0 keeps it open).
func (inv *Invoice) Finalize(assignment FiscalNumberAssignment, issuedAt time.Time, defaultDueDays int) error {
	if err := inv.CanFinalize(); err != nil {
		return err
	}
	if assignment.FiscalNumber == "" || assignment.SequenceID == uuid.Nil {
		return invalidInput("fiscal number assignment is incomplete")
	}

	seqID := assignment.SequenceID
	inv.FiscalNumber = assignment.FiscalNumber
	inv.FiscalSequenceID = &seqID
	inv.IssueDate = &issuedAt
	inv.FinalizedAt = &issuedAt
	if inv.DueDate == nil && defaultDueDays > 0 {
		due := issuedAt.AddDate(0, 0, defaultDueDays)
		inv.DueDate = &due
	}
	inv.Touch()

	inv.AddDomainEvent(NewInvoiceFinalizedEvent(inv))
	return nil
}

// ApplyPayment adds amount to the paid balance. A payment that would make
// paid exceed total is rejected and leaves the invoice untouched.
func (inv *Invoice) ApplyPayment(amount valueobject.Money) error {
	if inv.IsCancelled() {
		return errorf(ErrInvoiceCancelled, "invoice %s is cancelled", inv.InvoiceNumber)
	}
	if !inv.IsFinalized() {
		return errorf(ErrInvalidTransition, "cannot pay draft invoice %s", inv.InvoiceNumber)
	}
	if !amount.IsPositive() {
		return errorf(ErrInvalidAmount, "payment amount must be positive")
	}
	if amount.Currency() != inv.Currency {
		return errorf(ErrCurrencyMismatch, "payment in %s for invoice in %s", amount.Currency(), inv.Currency)
	}
	if amount.Amount().GreaterThan(inv.AmountDue()) {
		return errorf(ErrOverpaymentRejected, "payment %s exceeds amount due %s", amount.StringFixed(), inv.AmountDueMoney().StringFixed())
	}

	inv.PaidAmount = inv.PaidAmount.Add(amount.Amount())
	inv.Touch()

	inv.AddDomainEvent(NewInvoicePaymentAppliedEvent(inv, amount))
	if !inv.AmountDue().IsPositive() {
		inv.AddDomainEvent(NewInvoicePaidEvent(inv))
	}
	return nil
}

// ReversePayment takes a voided payment's amount back off the paid balance
func (inv *Invoice) ReversePayment(amount valueobject.Money) error {
	if !inv.IsFinalized() {
		return errorf(ErrInvalidTransition, "invoice %s has no payments", inv.InvoiceNumber)
	}
	if !amount.IsPositive() {
		return errorf(ErrInvalidAmount, "reversal amount must be positive")
	}
	if amount.Currency() != inv.Currency {
		return errorf(ErrCurrencyMismatch, "reversal in %s for invoice in %s", amount.Currency(), inv.Currency)
	}
	if amount.Amount().GreaterThan(inv.PaidAmount) {
		return errorf(ErrInvalidAmount, "reversal exceeds paid amount")
	}

	inv.PaidAmount = inv.PaidAmount.Sub(amount.Amount())
	inv.Touch()

	inv.AddDomainEvent(NewInvoicePaymentVoidedEvent(inv, amount))
	return nil
}

// SyncPaidAmount overwrites the paid snapshot with the ledger sum.
// Returns true when the snapshot had drifted.
func (inv *Invoice) SyncPaidAmount(ledgerSum valueobject.Money) (bool, error) {
	if ledgerSum.Currency() != inv.Currency {
		return false, errorf(ErrCurrencyMismatch, "ledger in %s for invoice in %s", ledgerSum.Currency(), inv.Currency)
	}
	if ledgerSum.IsNegative() || ledgerSum.Amount().GreaterThan(inv.Total) {
		return false, errorf(ErrInvalidAmount, "ledger sum %s is outside [0, %s]", ledgerSum.StringFixed(), inv.Total.StringFixed(2))
	}
	if ledgerSum.Amount().Equal(inv.PaidAmount) {
		return false, nil
	}
	inv.PaidAmount = ledgerSum.Amount()
	inv.Touch()
	return true, nil
}

// Cancel cancels the invoice. A fully paid invoice cannot be cancelled.
// The fiscal number stays consumed.
func (inv *Invoice) Cancel(reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return invalidInput("cancel reason is required")
	}
	switch inv.Status(now) {
	case InvoiceStatusCancelled:
		return errorf(ErrInvalidTransition, "invoice %s is already cancelled", inv.InvoiceNumber)
	case InvoiceStatusPaid:
		return errorf(ErrInvalidTransition, "paid invoice %s cannot be cancelled", inv.InvoiceNumber)
	}

	inv.CancelledAt = &now
	inv.CancelReason = reason
	inv.Touch()

	inv.AddDomainEvent(NewInvoiceCancelledEvent(inv))
	return nil
}

// FiscalDocument returns the invoice in the shape the period aggregator consumes
func (inv *Invoice) FiscalDocument() FiscalDocument {
	doc := FiscalDocument{
		ID:           inv.ID,
		DocumentType: inv.DocumentType,
		FiscalNumber: inv.FiscalNumber,
		Currency:     inv.Currency,
		ExchangeRate: inv.ExchangeRate,
		Total:        inv.Total,
		TaxAmount:    inv.TaxAmount,
		Cancelled:    inv.IsCancelled(),
		Issued:       inv.IsFinalized(),
	}
	if inv.IssueDate != nil {
		doc.IssueDate = *inv.IssueDate
	}
	return doc
}
