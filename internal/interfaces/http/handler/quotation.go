package handler

import (
	"time"

	invoicingapp "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// QuotationHandler handles quotation HTTP requests
type QuotationHandler struct {
	BaseHandler
	quotationService *invoicingapp.QuotationService
}

// NewQuotationHandler creates a new QuotationHandler
func NewQuotationHandler(quotationService *invoicingapp.QuotationService, logger *zap.Logger) *QuotationHandler {
	return &QuotationHandler{
		BaseHandler:      BaseHandler{logger: logger},
		quotationService: quotationService,
	}
}

// CreateQuotationRequest creates a draft quotation
type CreateQuotationRequest struct {
	DocumentType string            `json:"document_type" binding:"required" example:"credit-fiscal"`
	Currency     string            `json:"currency" binding:"omitempty,oneof=DOP USD" example:"DOP"`
	Customer     CustomerRequest   `json:"customer" binding:"required"`
	Lines        []LineItemRequest `json:"lines" binding:"required,min=1,dive"`
	TaxRate      *decimal.Decimal  `json:"tax_rate" binding:"omitempty,gte=0,lte=100"`
	ValidUntil   *time.Time        `json:"valid_until"`
	Notes        string            `json:"notes" binding:"max=2000"`
}

// UpdateQuotationRequest replaces the content of a draft quotation
type UpdateQuotationRequest struct {
	Customer   CustomerRequest   `json:"customer" binding:"required"`
	Lines      []LineItemRequest `json:"lines" binding:"required,min=1,dive"`
	TaxRate    *decimal.Decimal  `json:"tax_rate" binding:"omitempty,gte=0,lte=100"`
	ValidUntil *time.Time        `json:"valid_until"`
	Notes      string            `json:"notes" binding:"max=2000"`
}

// RejectRequest carries a rejection reason
type RejectRequest struct {
	Reason string `json:"reason" binding:"max=500" example:"Precio fuera de presupuesto"`
}

// Create creates a draft quotation
func (h *QuotationHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}

	var req CreateQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	q, err := h.quotationService.Create(c.Request.Context(), tenantID, invoicingapp.CreateQuotationInput{
		DocumentType: req.DocumentType,
		Currency:     req.Currency,
		Customer:     req.Customer.toInput(),
		Lines:        toLineInputs(req.Lines),
		TaxRate:      req.TaxRate,
		ValidUntil:   req.ValidUntil,
		Notes:        req.Notes,
		CreatedBy:    getUserID(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, q)
}

// Update replaces the content of a draft quotation
func (h *QuotationHandler) Update(c *gin.Context) {
	tenantID, quotationID, ok := h.tenantAndID(c)
	if !ok {
		return
	}

	var req UpdateQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	q, err := h.quotationService.Update(c.Request.Context(), tenantID, quotationID, invoicingapp.UpdateQuotationInput{
		Customer:   req.Customer.toInput(),
		Lines:      toLineInputs(req.Lines),
		TaxRate:    req.TaxRate,
		ValidUntil: req.ValidUntil,
		Notes:      req.Notes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, q)
}

// Send marks a draft quotation as sent to the patient
func (h *QuotationHandler) Send(c *gin.Context) {
	tenantID, quotationID, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	q, err := h.quotationService.Send(c.Request.Context(), tenantID, quotationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, q)
}

// Accept records the patient's acceptance
func (h *QuotationHandler) Accept(c *gin.Context) {
	tenantID, quotationID, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	q, err := h.quotationService.Accept(c.Request.Context(), tenantID, quotationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, q)
}

// Reject records the patient's rejection
func (h *QuotationHandler) Reject(c *gin.Context) {
	tenantID, quotationID, ok := h.tenantAndID(c)
	if !ok {
		return
	}

	var req RejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindingError(c, err)
			return
		}
	}

	q, err := h.quotationService.Reject(c.Request.Context(), tenantID, quotationID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, q)
}

// Convert turns an accepted quotation into a draft invoice
func (h *QuotationHandler) Convert(c *gin.Context) {
	tenantID, quotationID, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	invoice, err := h.quotationService.Convert(c.Request.Context(), tenantID, quotationID, getUserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, invoice)
}

// GetByID returns one quotation
func (h *QuotationHandler) GetByID(c *gin.Context) {
	tenantID, quotationID, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	q, err := h.quotationService.GetByID(c.Request.Context(), tenantID, quotationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, q)
}

// List returns a page of quotations
func (h *QuotationHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}
	filter, ok := bindListFilter(c, &h.BaseHandler)
	if !ok {
		return
	}
	page, err := h.quotationService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

func (h *QuotationHandler) tenantAndID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return uuid.Nil, uuid.Nil, false
	}
	quotationID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid quotation ID format")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, quotationID, true
}

// bindListFilter binds the common pagination query parameters
func bindListFilter(c *gin.Context, h *BaseHandler) (shared.Filter, bool) {
	var q dto.ListRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return shared.Filter{}, false
	}
	return q.ToFilter(), true
}
