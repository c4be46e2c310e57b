package handler

import (
	"net/http"
	"strings"
	"time"

	invoicingapp "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/clinicerp/backend/internal/interfaces/http/dto"
	"github.com/clinicerp/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxIdempotencyKeyLength bounds the Idempotency-Key header
const maxIdempotencyKeyLength = 128

// PaymentHandler handles the payment ledger endpoints
type PaymentHandler struct {
	BaseHandler
	ledger *invoicingapp.PaymentLedger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(ledger *invoicingapp.PaymentLedger, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler: BaseHandler{logger: logger},
		ledger:      ledger,
	}
}

// ApplyPaymentRequest records a payment against an invoice
type ApplyPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"gt=0" example:"1500.00"`
	Currency  string          `json:"currency" binding:"omitempty,oneof=DOP USD" example:"DOP"`
	Method    string          `json:"method" binding:"required,oneof=cash credit_card debit_card bank_transfer check insurance other" example:"cash"`
	Reference string          `json:"reference" binding:"max=100" example:"REC-0042"`
	AppliedAt *time.Time      `json:"applied_at"`
}

// VoidPaymentRequest reverses a payment
type VoidPaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=500" example:"Cheque devuelto"`
}

// idempotencyKey reads the optional Idempotency-Key header
func (h *PaymentHandler) idempotencyKey(c *gin.Context) (string, bool) {
	key := strings.TrimSpace(c.GetHeader(middleware.IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLength {
		h.BadRequest(c, "Idempotency-Key is too long")
		return "", false
	}
	return key, true
}

// Apply records a payment. A retried request carrying the same
// Idempotency-Key returns the original payment with 200 instead of 201.
func (h *PaymentHandler) Apply(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}
	invoiceID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}
	key, ok := h.idempotencyKey(c)
	if !ok {
		return
	}

	var req ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.ledger.ApplyPayment(c.Request.Context(), invoicingapp.ApplyPaymentCommand{
		TenantID:       tenantID,
		InvoiceID:      invoiceID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Method:         req.Method,
		Reference:      req.Reference,
		IdempotencyKey: key,
		AppliedAt:      req.AppliedAt,
		CreatedBy:      getUserID(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Replayed {
		c.JSON(http.StatusOK, dto.NewSuccessResponse(result))
		return
	}
	h.Created(c, result)
}

// Void appends a reversing entry for a payment
func (h *PaymentHandler) Void(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}
	paymentID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}
	key, ok := h.idempotencyKey(c)
	if !ok {
		return
	}

	var req VoidPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.ledger.VoidPayment(c.Request.Context(), invoicingapp.VoidPaymentCommand{
		TenantID:       tenantID,
		PaymentID:      paymentID,
		Reason:         req.Reason,
		IdempotencyKey: key,
		CreatedBy:      getUserID(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// List returns the ledger entries of an invoice in application order
func (h *PaymentHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}
	invoiceID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	payments, err := h.ledger.ListPayments(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}

// Reconcile recomputes the paid amount of an invoice from its ledger
func (h *PaymentHandler) Reconcile(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}
	invoiceID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	result, err := h.ledger.Reconcile(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
