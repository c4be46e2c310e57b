package invoicing

import (
	"fmt"

	"github.com/clinicerp/backend/internal/domain/shared"
)

// Error codes surfaced by the invoicing context. Callers match them with
// errors.Is against the sentinels below; messages may carry extra detail.
var (
	ErrNoSequenceConfigured      = shared.NewDomainError("NO_SEQUENCE_CONFIGURED", "No active fiscal sequence for document type")
	ErrSequenceExpired           = shared.NewDomainError("SEQUENCE_EXPIRED", "Fiscal sequence has expired")
	ErrSequenceExhausted         = shared.NewDomainError("SEQUENCE_EXHAUSTED", "Fiscal sequence has no numbers left")
	ErrSequenceContention        = shared.NewDomainError("SEQUENCE_CONTENTION", "Fiscal sequence is busy, retry")
	ErrOverpaymentRejected       = shared.NewDomainError("OVERPAYMENT_REJECTED", "Payment exceeds amount due")
	ErrInvalidTransition         = shared.NewDomainError("INVALID_TRANSITION", "Transition not allowed in current status")
	ErrReportLocked              = shared.NewDomainError("REPORT_LOCKED", "Report has been submitted and cannot be regenerated")
	ErrInvoiceNotFound           = shared.NewDomainError("INVOICE_NOT_FOUND", "Invoice not found")
	ErrInvoiceCancelled          = shared.NewDomainError("INVOICE_CANCELLED", "Invoice is cancelled")
	ErrInvalidAmount             = shared.NewDomainError("INVALID_AMOUNT", "Amount is invalid")
	ErrCurrencyMismatch          = shared.NewDomainError("CURRENCY_MISMATCH", "Currency does not match document currency")
	ErrInvalidPeriod             = shared.NewDomainError("INVALID_PERIOD", "Period must be formatted YYYYMM")
	ErrQuotationAlreadyConverted = shared.NewDomainError("QUOTATION_ALREADY_CONVERTED", "Quotation was already converted to an invoice")
	ErrIdempotencyInProgress     = shared.NewDomainError("IDEMPOTENCY_IN_PROGRESS", "A request with this idempotency key is in progress")
)

func errorf(base *shared.DomainError, format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(base.Code, fmt.Sprintf(format, args...))
}

func invalidInput(format string, args ...any) *shared.DomainError {
	return errorf(shared.ErrInvalidInput, format, args...)
}
