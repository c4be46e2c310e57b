package handler

import (
	invoicingapp "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportHandler handles the 606/607 period reports
type ReportHandler struct {
	BaseHandler
	reportService *invoicingapp.ReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService *invoicingapp.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		BaseHandler:   BaseHandler{logger: logger},
		reportService: reportService,
	}
}

// GenerateReportRequest builds the report of one period
type GenerateReportRequest struct {
	Period     string `json:"period" binding:"required,yyyymm" example:"202601"`
	ReportType string `json:"report_type" binding:"required,oneof=606 607 sales purchases" example:"607"`
}

// SubmitReportRequest files a draft report
type SubmitReportRequest struct {
	Reference string `json:"reference" binding:"max=100" example:"DGII-2026-000123"`
}

// ReportListQuery filters the report listing
type ReportListQuery struct {
	dto.ListRequest
	ReportType string `form:"report_type" binding:"omitempty,oneof=606 607 sales purchases"`
	Status     string `form:"status" binding:"omitempty,oneof=draft submitted accepted rejected"`
}

// TaxBalanceQuery selects the period of a tax balance
type TaxBalanceQuery struct {
	Period string `form:"period" binding:"required,yyyymm" example:"202601"`
}

// Generate computes a period report and stores it as a draft. Filed reports
// are locked and answer REPORT_LOCKED.
func (h *ReportHandler) Generate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}

	var req GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	report, err := h.reportService.Generate(c.Request.Context(), tenantID, req.Period, req.ReportType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Submit files a draft report
func (h *ReportHandler) Submit(c *gin.Context) {
	tenantID, reportID, ok := h.tenantAndID(c)
	if !ok {
		return
	}

	var req SubmitReportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindingError(c, err)
			return
		}
	}

	report, err := h.reportService.Submit(c.Request.Context(), tenantID, reportID, getUserID(c), req.Reference)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Accept records the authority's acceptance of a submitted report
func (h *ReportHandler) Accept(c *gin.Context) {
	tenantID, reportID, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	report, err := h.reportService.Accept(c.Request.Context(), tenantID, reportID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Reject records the authority's rejection; the report can be regenerated
func (h *ReportHandler) Reject(c *gin.Context) {
	tenantID, reportID, ok := h.tenantAndID(c)
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

	report, err := h.reportService.Reject(c.Request.Context(), tenantID, reportID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// GetByID returns one report with its groups
func (h *ReportHandler) GetByID(c *gin.Context) {
	tenantID, reportID, ok := h.tenantAndID(c)
	if !ok {
		return
	}
	report, err := h.reportService.GetByID(c.Request.Context(), tenantID, reportID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// List returns a page of reports
func (h *ReportHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}

	var q ReportListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}

	filter := invoicing.ReportFilter{
		Filter: q.ToFilter(),
		Status: invoicing.ReportStatus(q.Status),
	}
	if q.ReportType != "" {
		rtype, err := invoicing.ParseReportType(q.ReportType)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		filter.ReportType = rtype
	}

	page, err := h.reportService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

// TaxBalance returns tax collected minus tax paid for a period
func (h *ReportHandler) TaxBalance(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}

	var q TaxBalanceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}

	balance, err := h.reportService.TaxBalance(c.Request.Context(), tenantID, q.Period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

func (h *ReportHandler) tenantAndID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return uuid.Nil, uuid.Nil, false
	}
	reportID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid report ID format")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, reportID, true
}
