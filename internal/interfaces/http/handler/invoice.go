package handler

import (
	"time"

	invoicingapp "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/clinicerp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceHandler handles invoice HTTP requests
type InvoiceHandler struct {
	BaseHandler
	invoiceService *invoicingapp.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *invoicingapp.InvoiceService, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		BaseHandler:    BaseHandler{logger: logger},
		invoiceService: invoiceService,
	}
}

// LineItemRequest is one document line
type LineItemRequest struct {
	Description  string          `json:"description" binding:"required,max=500" example:"Consulta general"`
	Quantity     decimal.Decimal `json:"quantity" binding:"gt=0" example:"1"`
	UnitPrice    decimal.Decimal `json:"unit_price" binding:"gte=0" example:"2500.00"`
	Discount     decimal.Decimal `json:"discount" binding:"gte=0" example:"10"`
	DiscountType string          `json:"discount_type" binding:"omitempty,oneof=percentage fixed" example:"percentage"`
}

// CustomerRequest identifies the buyer of a document
type CustomerRequest struct {
	ID    string `json:"id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440001"`
	Name  string `json:"name" binding:"required,max=200" example:"María Pérez"`
	TaxID string `json:"tax_id" binding:"omitempty,max=20" example:"40212345678"`
}

func (r CustomerRequest) toInput() invoicingapp.CustomerInput {
	return invoicingapp.CustomerInput{ID: uuid.MustParse(r.ID), Name: r.Name, TaxID: r.TaxID}
}

func toLineInputs(lines []LineItemRequest) []invoicingapp.LineItemInput {
	out := make([]invoicingapp.LineItemInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, invoicingapp.LineItemInput{
			Description:  l.Description,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			Discount:     l.Discount,
			DiscountType: l.DiscountType,
		})
	}
	return out
}

// PreviewRequest prices lines without saving
type PreviewRequest struct {
	Currency string            `json:"currency" binding:"omitempty,oneof=DOP USD" example:"DOP"`
	Lines    []LineItemRequest `json:"lines" binding:"required,min=1,dive"`
	TaxRate  *decimal.Decimal  `json:"tax_rate" binding:"omitempty,gte=0,lte=100" example:"18"`
}

// CreateInvoiceRequest creates a draft invoice
type CreateInvoiceRequest struct {
	DocumentType string            `json:"document_type" binding:"required" example:"final-consumer"`
	Currency     string            `json:"currency" binding:"omitempty,oneof=DOP USD" example:"DOP"`
	Customer     CustomerRequest   `json:"customer" binding:"required"`
	Lines        []LineItemRequest `json:"lines" binding:"required,min=1,dive"`
	TaxRate      *decimal.Decimal  `json:"tax_rate" binding:"omitempty,gte=0,lte=100" example:"18"`
	ExchangeRate *decimal.Decimal  `json:"exchange_rate" binding:"omitempty,gt=0" example:"58.50"`
	DueDate      *time.Time        `json:"due_date"`
	Notes        string            `json:"notes" binding:"max=2000"`
}

// UpdateInvoiceRequest edits a draft invoice. Omitted fields are unchanged.
type UpdateInvoiceRequest struct {
	Customer     *CustomerRequest  `json:"customer"`
	Lines        []LineItemRequest `json:"lines" binding:"omitempty,min=1,dive"`
	TaxRate      *decimal.Decimal  `json:"tax_rate" binding:"omitempty,gte=0,lte=100"`
	ExchangeRate *decimal.Decimal  `json:"exchange_rate" binding:"omitempty,gt=0"`
	DueDate      *time.Time        `json:"due_date"`
	Notes        *string           `json:"notes" binding:"omitempty,max=2000"`
}

// CancelRequest carries the reason of a cancellation
type CancelRequest struct {
	Reason string `json:"reason" binding:"required,max=500" example:"Emitida por error"`
}

// InvoiceListQuery are the invoice list query parameters
type InvoiceListQuery struct {
	dto.ListRequest
	Status       string     `form:"status" binding:"omitempty,oneof=draft pending partial paid overdue cancelled"`
	CustomerID   string     `form:"customer_id" binding:"omitempty,uuid"`
	DocumentType string     `form:"document_type"`
	IssuedFrom   *time.Time `form:"issued_from" time_format:"2006-01-02"`
	IssuedTo     *time.Time `form:"issued_to" time_format:"2006-01-02"`
}

// Preview prices a set of lines with the document calculator
func (h *InvoiceHandler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	preview, err := h.invoiceService.Preview(c.Request.Context(), invoicingapp.PreviewInput{
		Currency: req.Currency,
		Lines:    toLineInputs(req.Lines),
		TaxRate:  req.TaxRate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, preview)
}

// Create creates a draft invoice
func (h *InvoiceHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}

	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	invoice, err := h.invoiceService.Create(c.Request.Context(), tenantID, invoicingapp.CreateInvoiceInput{
		DocumentType: req.DocumentType,
		Currency:     req.Currency,
		Customer:     req.Customer.toInput(),
		Lines:        toLineInputs(req.Lines),
		TaxRate:      req.TaxRate,
		ExchangeRate: req.ExchangeRate,
		DueDate:      req.DueDate,
		Notes:        req.Notes,
		CreatedBy:    getUserID(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, invoice)
}

// Update edits a draft invoice
func (h *InvoiceHandler) Update(c *gin.Context) {
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

	var req UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	in := invoicingapp.UpdateInvoiceInput{
		TaxRate:      req.TaxRate,
		ExchangeRate: req.ExchangeRate,
		DueDate:      req.DueDate,
		Notes:        req.Notes,
	}
	if req.Customer != nil {
		customer := req.Customer.toInput()
		in.Customer = &customer
	}
	if req.Lines != nil {
		in.Lines = toLineInputs(req.Lines)
	}

	invoice, err := h.invoiceService.UpdateDraft(c.Request.Context(), tenantID, invoiceID, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Finalize assigns the next fiscal number and issues the invoice
func (h *InvoiceHandler) Finalize(c *gin.Context) {
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

	invoice, err := h.invoiceService.Finalize(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Cancel voids an invoice. Its fiscal number stays consumed.
func (h *InvoiceHandler) Cancel(c *gin.Context) {
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

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	invoice, err := h.invoiceService.Cancel(c.Request.Context(), tenantID, invoiceID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// GetByID returns one invoice with its derived status
func (h *InvoiceHandler) GetByID(c *gin.Context) {
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

	invoice, err := h.invoiceService.GetByID(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// List returns a page of invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}

	var q InvoiceListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}

	in := invoicingapp.InvoiceListInput{
		Filter:       q.ToFilter(),
		Status:       q.Status,
		DocumentType: q.DocumentType,
		IssuedFrom:   q.IssuedFrom,
		IssuedTo:     q.IssuedTo,
	}
	if q.CustomerID != "" {
		customerID := uuid.MustParse(q.CustomerID)
		in.CustomerID = &customerID
	}

	page, err := h.invoiceService.List(c.Request.Context(), tenantID, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}
