package handler

import (
	"time"

	invoicingapp "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SequenceHandler manages authorized fiscal number ranges
type SequenceHandler struct {
	BaseHandler
	sequenceService *invoicingapp.SequenceService
}

// NewSequenceHandler creates a new SequenceHandler
func NewSequenceHandler(sequenceService *invoicingapp.SequenceService, logger *zap.Logger) *SequenceHandler {
	return &SequenceHandler{
		BaseHandler:     BaseHandler{logger: logger},
		sequenceService: sequenceService,
	}
}

// RegisterSequenceRequest registers a range authorized by the tax authority
type RegisterSequenceRequest struct {
	DocumentType   string    `json:"document_type" binding:"required" example:"credit-fiscal"`
	Prefix         string    `json:"prefix" binding:"required,max=10" example:"B01"`
	StartNumber    int64     `json:"start_number" binding:"required,min=1" example:"1"`
	EndNumber      int64     `json:"end_number" binding:"required,gtefield=StartNumber" example:"500"`
	PadWidth       int       `json:"pad_width" binding:"omitempty,min=1,max=18" example:"8"`
	ExpirationDate time.Time `json:"expiration_date" binding:"required" example:"2026-12-31T00:00:00Z"`
	AlertThreshold int64     `json:"alert_threshold" binding:"omitempty,min=0" example:"50"`
	Description    string    `json:"description" binding:"max=255"`
}

// SequenceListQuery filters the range listing
type SequenceListQuery struct {
	ActiveOnly   bool   `form:"active_only"`
	DocumentType string `form:"document_type"`
}

// Register stores a new range and retires the previous active range of the type
func (h *SequenceHandler) Register(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}

	var req RegisterSequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	seq, err := h.sequenceService.Register(c.Request.Context(), tenantID, invoicingapp.RegisterSequenceInput{
		DocumentType:   req.DocumentType,
		Prefix:         req.Prefix,
		StartNumber:    req.StartNumber,
		EndNumber:      req.EndNumber,
		PadWidth:       req.PadWidth,
		ExpirationDate: req.ExpirationDate,
		AlertThreshold: req.AlertThreshold,
		Description:    req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, seq)
}

// List returns the tenant's ranges. With document_type it returns only the
// active range of that type.
func (h *SequenceHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}

	var q SequenceListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}

	if q.DocumentType != "" {
		seq, err := h.sequenceService.GetActiveStatus(c.Request.Context(), tenantID, q.DocumentType)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, []invoicingapp.SequenceResponse{*seq})
		return
	}

	seqs, err := h.sequenceService.List(c.Request.Context(), tenantID, q.ActiveOnly)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, seqs)
}

// GetByID returns one range with its remaining count and flags
func (h *SequenceHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}
	sequenceID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid sequence ID format")
		return
	}

	seq, err := h.sequenceService.GetStatus(c.Request.Context(), tenantID, sequenceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, seq)
}

// Deactivate retires a range so it no longer issues numbers
func (h *SequenceHandler) Deactivate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}
	sequenceID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid sequence ID format")
		return
	}

	seq, err := h.sequenceService.Deactivate(c.Request.Context(), tenantID, sequenceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, seq)
}
