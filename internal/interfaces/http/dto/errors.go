package dto

import (
	"net/http"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
)

// Transport-level error codes. Domain codes come from the domain packages.
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeTenantRequired  = "TENANT_REQUIRED"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeRequestTimeout  = "REQUEST_TIMEOUT"
	ErrCodeRouteNotFound   = "ROUTE_NOT_FOUND"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeTenantRequired:  http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRequestTimeout:  http.StatusGatewayTimeout,
	ErrCodeRouteNotFound:   http.StatusNotFound,

	// Validation -> 400
	shared.ErrInvalidInput.Code:        http.StatusBadRequest,
	invoicing.ErrInvalidAmount.Code:    http.StatusBadRequest,
	invoicing.ErrCurrencyMismatch.Code: http.StatusBadRequest,
	invoicing.ErrInvalidPeriod.Code:    http.StatusBadRequest,

	// Not found -> 404
	shared.ErrNotFound.Code:          http.StatusNotFound,
	invoicing.ErrInvoiceNotFound.Code: http.StatusNotFound,

	// Invariant violations -> 422
	invoicing.ErrOverpaymentRejected.Code:       http.StatusUnprocessableEntity,
	invoicing.ErrInvalidTransition.Code:         http.StatusUnprocessableEntity,
	invoicing.ErrReportLocked.Code:              http.StatusUnprocessableEntity,
	invoicing.ErrInvoiceCancelled.Code:          http.StatusUnprocessableEntity,
	invoicing.ErrQuotationAlreadyConverted.Code: http.StatusUnprocessableEntity,
	shared.ErrInvalidState.Code:                 http.StatusUnprocessableEntity,

	// Resource exhaustion -> 409
	invoicing.ErrNoSequenceConfigured.Code: http.StatusConflict,
	invoicing.ErrSequenceExpired.Code:      http.StatusConflict,
	invoicing.ErrSequenceExhausted.Code:    http.StatusConflict,

	// Concurrency -> 409
	invoicing.ErrSequenceContention.Code:    http.StatusConflict,
	shared.ErrConcurrencyConflict.Code:      http.StatusConflict,
	invoicing.ErrIdempotencyInProgress.Code: http.StatusConflict,
	shared.ErrAlreadyExists.Code:            http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes are 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
