package handler

import (
	"time"

	invoicingapp "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SupplierBillHandler records bills received from suppliers
type SupplierBillHandler struct {
	BaseHandler
	billService *invoicingapp.SupplierBillService
}

// NewSupplierBillHandler creates a new SupplierBillHandler
func NewSupplierBillHandler(billService *invoicingapp.SupplierBillService, logger *zap.Logger) *SupplierBillHandler {
	return &SupplierBillHandler{
		BaseHandler: BaseHandler{logger: logger},
		billService: billService,
	}
}

// RegisterSupplierBillRequest records a received bill
type RegisterSupplierBillRequest struct {
	SupplierName  string           `json:"supplier_name" binding:"required,max=200" example:"Laboratorio Central SRL"`
	SupplierTaxID string           `json:"supplier_tax_id" binding:"required,max=20" example:"131234567"`
	FiscalNumber  string           `json:"fiscal_number" binding:"required,max=19" example:"B0100000042"`
	DocumentType  string           `json:"document_type" binding:"required" example:"credit-fiscal"`
	ExpenseType   string           `json:"expense_type" binding:"required,len=2" example:"02"`
	Currency      string           `json:"currency" binding:"omitempty,oneof=DOP USD" example:"DOP"`
	Subtotal      decimal.Decimal  `json:"subtotal" binding:"gte=0" example:"10000.00"`
	TaxAmount     decimal.Decimal  `json:"tax_amount" binding:"gte=0" example:"1800.00"`
	ExchangeRate  *decimal.Decimal `json:"exchange_rate" binding:"omitempty,gt=0"`
	IssueDate     time.Time        `json:"issue_date" binding:"required" example:"2026-01-15T00:00:00Z"`
	Notes         string           `json:"notes" binding:"max=2000"`
}

// Register records a supplier bill for the purchases report
func (h *SupplierBillHandler) Register(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}

	var req RegisterSupplierBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	bill, err := h.billService.Register(c.Request.Context(), tenantID, invoicingapp.RegisterSupplierBillInput{
		SupplierName:  req.SupplierName,
		SupplierTaxID: req.SupplierTaxID,
		FiscalNumber:  req.FiscalNumber,
		DocumentType:  req.DocumentType,
		ExpenseType:   req.ExpenseType,
		Currency:      req.Currency,
		Subtotal:      req.Subtotal,
		TaxAmount:     req.TaxAmount,
		ExchangeRate:  req.ExchangeRate,
		IssueDate:     req.IssueDate,
		Notes:         req.Notes,
		CreatedBy:     getUserID(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, bill)
}

// Cancel voids a supplier bill
func (h *SupplierBillHandler) Cancel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}
	billID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid supplier bill ID format")
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	bill, err := h.billService.Cancel(c.Request.Context(), tenantID, billID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, bill)
}

// GetByID returns one supplier bill
func (h *SupplierBillHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}
	billID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid supplier bill ID format")
		return
	}

	bill, err := h.billService.GetByID(c.Request.Context(), tenantID, billID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, bill)
}

// List returns a page of supplier bills
func (h *SupplierBillHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}
	filter, ok := bindListFilter(c, &h.BaseHandler)
	if !ok {
		return
	}
	page, err := h.billService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}
