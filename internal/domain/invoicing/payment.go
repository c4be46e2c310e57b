package invoicing

import (
	"strings"
	"time"

	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how the clinic received the money
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodDebitCard    PaymentMethod = "debit_card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodInsurance    PaymentMethod = "insurance"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid checks if the payment method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCreditCard, PaymentMethodDebitCard,
		PaymentMethodBankTransfer, PaymentMethodCheck, PaymentMethodInsurance, PaymentMethodOther:
		return true
	}
	return false
}

// PaymentKind distinguishes receipts from their reversals
type PaymentKind string

const (
	PaymentKindPayment PaymentKind = "payment"
	PaymentKindVoid    PaymentKind = "void"
)

// Payment is one immutable ledger entry against an invoice.
// Voids are new entries with a negative amount pointing at the original.
type Payment struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	InvoiceID         uuid.UUID
	Amount            decimal.Decimal
	Currency          valueobject.Currency
	Method            PaymentMethod
	Reference         string
	Kind              PaymentKind
	ReversesPaymentID *uuid.UUID
	IdempotencyKey    string
	Note              string
	AppliedAt         time.Time
	CreatedBy         *uuid.UUID
	CreatedAt         time.Time
}

// NewPayment validates and creates a payment entry
func NewPayment(tenantID, invoiceID uuid.UUID, amount valueobject.Money, method PaymentMethod, reference, idempotencyKey string, appliedAt time.Time) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, errorf(ErrInvalidAmount, "payment amount must be positive")
	}
	if !amount.Amount().Equal(amount.RoundToMinor().Amount()) {
		return nil, errorf(ErrInvalidAmount, "payment amount has more than %d decimal places", amount.Currency().MinorUnits())
	}
	if !method.IsValid() {
		return nil, invalidInput("unknown payment method %q", method)
	}
	if len(idempotencyKey) > 128 {
		return nil, invalidInput("idempotency key cannot exceed 128 characters")
	}

	now := time.Now()
	return &Payment{
		ID:             uuid.New(),
		TenantID:       tenantID,
		InvoiceID:      invoiceID,
		Amount:         amount.Amount(),
		Currency:       amount.Currency(),
		Method:         method,
		Reference:      strings.TrimSpace(reference),
		Kind:           PaymentKindPayment,
		IdempotencyKey: idempotencyKey,
		AppliedAt:      appliedAt,
		CreatedAt:      now,
	}, nil
}

// Money returns the signed amount as Money
func (p *Payment) Money() valueobject.Money {
	m, _ := valueobject.NewMoney(p.Amount, p.Currency)
	return m
}

// IsVoid reports whether this entry reverses another payment
func (p *Payment) IsVoid() bool {
	return p.Kind == PaymentKindVoid
}

// NewVoid creates the reversing entry for p
func (p *Payment) NewVoid(reason, idempotencyKey string, at time.Time) (*Payment, error) {
	if p.IsVoid() {
		return nil, errorf(ErrInvalidTransition, "a void entry cannot be voided")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalidInput("void reason is required")
	}

	original := p.ID
	return &Payment{
		ID:                uuid.New(),
		TenantID:          p.TenantID,
		InvoiceID:         p.InvoiceID,
		Amount:            p.Amount.Neg(),
		Currency:          p.Currency,
		Method:            p.Method,
		Reference:         p.Reference,
		Kind:              PaymentKindVoid,
		ReversesPaymentID: &original,
		IdempotencyKey:    idempotencyKey,
		Note:              reason,
		AppliedAt:         at,
		CreatedAt:         time.Now(),
	}, nil
}

// SumPayments returns the signed sum of ledger entries, all of which must be in currency
func SumPayments(currency valueobject.Currency, payments []Payment) (valueobject.Money, error) {
	total := valueobject.Zero(currency)
	for i := range payments {
		if payments[i].Currency != currency {
			return valueobject.Money{}, errorf(ErrCurrencyMismatch, "payment %s is in %s, expected %s", payments[i].ID, payments[i].Currency, currency)
		}
		total, _ = total.Add(payments[i].Money())
	}
	return total, nil
}
