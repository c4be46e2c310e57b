package handler

import (
	"errors"
	"net/http"
	"testing"

	invoicingapp "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type reportHandlerFixture struct {
	tenantID uuid.UUID
	reports  *MockReportRepository
	engine   *gin.Engine
}

func newReportHandlerFixture() *reportHandlerFixture {
	f := &reportHandlerFixture{
		tenantID: uuid.New(),
		reports:  new(MockReportRepository),
	}
	logger := zap.NewNop()
	scope := invoicingapp.NewNoOpTransactionScope(invoicingapp.Repositories{Reports: f.reports})
	svc := invoicingapp.NewReportService(f.reports, scope, nil, nil, nil, invoicingapp.DefaultSettings(), logger)
	h := NewReportHandler(svc, logger)

	f.engine = newTestEngine(func(rg *gin.RouterGroup) {
		rg.POST("/reports/generate", h.Generate)
		rg.GET("/reports/tax-balance", h.TaxBalance)
		rg.GET("/reports", h.List)
		rg.GET("/reports/:id", h.GetByID)
	})
	return f
}

func TestReportHandler_Generate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"malformed period", map[string]any{"period": "2026-01", "report_type": "607"}, "period"},
		{"month out of range", map[string]any{"period": "202613", "report_type": "607"}, "period"},
		{"unknown report type", map[string]any{"period": "202601", "report_type": "608"}, "report_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReportHandlerFixture()

			w := performRequest(f.engine, http.MethodPost, "/reports/generate", tt.body, tenantHeaders(f.tenantID))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeResponse(t, w)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			require.NotEmpty(t, resp.Error.Details)
			assert.Equal(t, tt.field, resp.Error.Details[0].Field)
		})
	}
}

func TestReportHandler_GetByID(t *testing.T) {
	t.Run("storage failure is a generic 500", func(t *testing.T) {
		f := newReportHandlerFixture()
		id := uuid.New()
		f.reports.On("FindByIDForTenant", mock.Anything, f.tenantID, id).Return(nil, errors.New("connection reset"))

		w := performRequest(f.engine, http.MethodGet, "/reports/"+id.String(), nil, tenantHeaders(f.tenantID))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection reset")
	})

	t.Run("tax-balance is not captured by the id route", func(t *testing.T) {
		f := newReportHandlerFixture()

		w := performRequest(f.engine, http.MethodGet, "/reports/tax-balance", nil, tenantHeaders(f.tenantID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.NotEmpty(t, resp.Error.Details)
		assert.Equal(t, "period", resp.Error.Details[0].Field)
		f.reports.AssertNotCalled(t, "FindByIDForTenant", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestReportHandler_List(t *testing.T) {
	f := newReportHandlerFixture()
	f.reports.On("FindAllForTenant", mock.Anything, f.tenantID, mock.MatchedBy(func(filter invoicing.ReportFilter) bool {
		return filter.ReportType == invoicing.ReportTypeSales && filter.Status == invoicing.ReportStatusSubmitted
	})).Return([]invoicing.PeriodReport{}, int64(0), nil)

	w := performRequest(f.engine, http.MethodGet, "/reports?report_type=607&status=submitted", nil, tenantHeaders(f.tenantID))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(0), resp.Meta.Total)
	f.reports.AssertExpectations(t)
}
