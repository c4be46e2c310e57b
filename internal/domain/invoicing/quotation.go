package invoicing

import (
	"strings"
	"time"

	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuotationStage is the persisted lifecycle stage of a quotation
type QuotationStage string

const (
	QuotationStageDraft    QuotationStage = "draft"
	QuotationStageSent     QuotationStage = "sent"
	QuotationStageAccepted QuotationStage = "accepted"
	QuotationStageRejected QuotationStage = "rejected"
)

// QuotationStatusExpired is reported instead of draft/sent once ValidUntil has passed
const QuotationStatusExpired = "expired"

// Quotation is a priced offer that can be turned into an invoice draft
type Quotation struct {
	shared.TenantAggregateRoot
	DocumentBody
	QuotationNumber    string
	DocumentType       DocumentType
	Customer           Customer
	Stage              QuotationStage
	ValidUntil         *time.Time
	SentAt             *time.Time
	AcceptedAt         *time.Time
	RejectedAt         *time.Time
	RejectionReason    string
	ConvertedInvoiceID *uuid.UUID
	Notes              string
}

// NewQuotation creates an empty draft quotation
func NewQuotation(tenantID uuid.UUID, number string, documentType DocumentType, currency valueobject.Currency, customer Customer, taxRate decimal.Decimal, validUntil *time.Time) (*Quotation, error) {
	if strings.TrimSpace(number) == "" {
		return nil, invalidInput("quotation number cannot be empty")
	}
	if !documentType.IsValid() {
		return nil, invalidInput("unknown fiscal document type %q", documentType)
	}
	body, err := newDocumentBody(currency, taxRate)
	if err != nil {
		return nil, err
	}
	return &Quotation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		DocumentBody:        body,
		QuotationNumber:     number,
		DocumentType:        documentType,
		Customer:            customer,
		Stage:               QuotationStageDraft,
		ValidUntil:          validUntil,
	}, nil
}

// IsExpired reports whether an open quotation passed its validity date
func (q *Quotation) IsExpired(now time.Time) bool {
	open := q.Stage == QuotationStageDraft || q.Stage == QuotationStageSent
	return open && q.ValidUntil != nil && q.ValidUntil.Before(now)
}

// Status returns the stage, or "expired" for open quotations past validity
func (q *Quotation) Status(now time.Time) string {
	if q.IsExpired(now) {
		return QuotationStatusExpired
	}
	return string(q.Stage)
}

// IsConverted reports whether an invoice was created from the quotation
func (q *Quotation) IsConverted() bool {
	return q.ConvertedInvoiceID != nil
}

// Update replaces lines, customer, validity and notes. Only allowed in draft.
func (q *Quotation) Update(customer Customer, lines []LineInput, taxRate decimal.Decimal, validUntil *time.Time, notes string) error {
	if q.Stage != QuotationStageDraft {
		return errorf(ErrInvalidTransition, "quotation %s is %s, only drafts can be edited", q.QuotationNumber, q.Stage)
	}
	if err := q.reprice(lines, taxRate); err != nil {
		return err
	}
	q.Customer = customer
	q.ValidUntil = validUntil
	q.Notes = notes
	q.Touch()
	return nil
}

// Send marks the quotation as delivered to the customer
func (q *Quotation) Send(now time.Time) error {
	if q.Stage != QuotationStageDraft {
		return errorf(ErrInvalidTransition, "cannot send quotation in stage %s", q.Stage)
	}
	if q.IsExpired(now) {
		return errorf(ErrInvalidTransition, "quotation %s has expired", q.QuotationNumber)
	}
	if len(q.Items) == 0 {
		return errorf(ErrInvalidTransition, "quotation %s has no line items", q.QuotationNumber)
	}
	q.Stage = QuotationStageSent
	q.SentAt = &now
	q.Touch()
	return nil
}

// Accept records the customer's acceptance
func (q *Quotation) Accept(now time.Time) error {
	if q.Stage != QuotationStageSent {
		return errorf(ErrInvalidTransition, "cannot accept quotation in stage %s", q.Stage)
	}
	if q.IsExpired(now) {
		return errorf(ErrInvalidTransition, "quotation %s has expired", q.QuotationNumber)
	}
	q.Stage = QuotationStageAccepted
	q.AcceptedAt = &now
	q.Touch()
	return nil
}

// Reject records the customer's refusal
func (q *Quotation) Reject(reason string, now time.Time) error {
	if q.Stage != QuotationStageDraft && q.Stage != QuotationStageSent {
		return errorf(ErrInvalidTransition, "cannot reject quotation in stage %s", q.Stage)
	}
	q.Stage = QuotationStageRejected
	q.RejectedAt = &now
	q.RejectionReason = strings.TrimSpace(reason)
	q.Touch()
	return nil
}

// ToInvoice builds the invoice draft a conversion produces. The quotation itself
// is only changed by MarkConverted once the invoice has been stored.
func (q *Quotation) ToInvoice(invoiceNumber string, now time.Time) (*Invoice, error) {
	if q.IsConverted() {
		return nil, errorf(ErrQuotationAlreadyConverted, "quotation %s was converted already", q.QuotationNumber)
	}
	if q.Stage == QuotationStageRejected {
		return nil, errorf(ErrInvalidTransition, "rejected quotation %s cannot be converted", q.QuotationNumber)
	}
	if q.IsExpired(now) {
		return nil, errorf(ErrInvalidTransition, "quotation %s has expired", q.QuotationNumber)
	}
	if len(q.Items) == 0 {
		return nil, errorf(ErrInvalidTransition, "quotation %s has no line items", q.QuotationNumber)
	}

	inv, err := NewInvoice(q.TenantID, invoiceNumber, q.DocumentType, q.Currency, q.Customer, q.TaxRate)
	if err != nil {
		return nil, err
	}
	if err := inv.SetLines(q.Inputs(), q.TaxRate); err != nil {
		return nil, err
	}
	quotationID := q.ID
	inv.QuotationID = &quotationID
	inv.Notes = q.Notes
	return inv, nil
}

// MarkConverted links the created invoice and accepts the quotation if still open
func (q *Quotation) MarkConverted(invoiceID uuid.UUID, now time.Time) error {
	if q.IsConverted() {
		return errorf(ErrQuotationAlreadyConverted, "quotation %s was converted already", q.QuotationNumber)
	}
	if q.Stage != QuotationStageAccepted {
		q.Stage = QuotationStageAccepted
		q.AcceptedAt = &now
	}
	q.ConvertedInvoiceID = &invoiceID
	q.Touch()
	q.AddDomainEvent(NewQuotationConvertedEvent(q, invoiceID))
	return nil
}
