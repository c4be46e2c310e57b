package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	invoicingapp "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/clinicerp/backend/internal/interfaces/http/dto"
	"github.com/clinicerp/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type paymentHandlerFixture struct {
	tenantID uuid.UUID
	invoice  *invoicing.Invoice
	invoices *MockInvoiceRepository
	payments *MockPaymentRepository
	engine   *gin.Engine
}

// pendingInvoice returns a finalized DOP invoice with a total of 1000.00
func pendingInvoice(t *testing.T, tenantID uuid.UUID) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewInvoice(tenantID, "INV-000010", invoicing.DocumentTypeFinalConsumer, valueobject.DOP,
		invoicing.Customer{ID: uuid.New(), Name: "Paciente"}, decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, inv.SetLines([]invoicing.LineInput{{
		Description: "Cirugía menor",
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   valueobject.MustMoney("1000.00", valueobject.DOP),
	}}, decimal.Zero))
	require.NoError(t, inv.Finalize(invoicing.FiscalNumberAssignment{
		SequenceID: uuid.New(), Number: 10, FiscalNumber: "B0200000010",
	}, time.Now(), 30))
	inv.ClearDomainEvents()
	return inv
}

func newPaymentHandlerFixture(t *testing.T) *paymentHandlerFixture {
	f := &paymentHandlerFixture{
		tenantID: uuid.New(),
		invoices: new(MockInvoiceRepository),
		payments: new(MockPaymentRepository),
	}
	f.invoice = pendingInvoice(t, f.tenantID)

	logger := zap.NewNop()
	scope := invoicingapp.NewNoOpTransactionScope(invoicingapp.Repositories{Invoices: f.invoices, Payments: f.payments})
	ledger := invoicingapp.NewPaymentLedger(f.payments, f.invoices, scope, nil, nil, nil, invoicingapp.DefaultSettings(), logger)
	h := NewPaymentHandler(ledger, logger)

	f.engine = newTestEngine(func(rg *gin.RouterGroup) {
		rg.POST("/invoices/:id/payments", h.Apply)
		rg.GET("/invoices/:id/payments", h.List)
		rg.POST("/payments/:id/void", h.Void)
	})
	return f
}

func (f *paymentHandlerFixture) paymentsPath() string {
	return "/invoices/" + f.invoice.ID.String() + "/payments"
}

func TestPaymentHandler_Apply(t *testing.T) {
	t.Run("records a partial payment", func(t *testing.T) {
		f := newPaymentHandlerFixture(t)
		f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, f.invoice.ID).Return(f.invoice, nil)
		f.invoices.On("SaveWithLock", mock.Anything, f.invoice).Return(nil)
		f.payments.On("Create", mock.Anything, mock.AnythingOfType("*invoicing.Payment")).Return(nil)

		w := performRequest(f.engine, http.MethodPost, f.paymentsPath(),
			map[string]any{"amount": "400.00", "method": "cash"}, tenantHeaders(f.tenantID))

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		data := dataMap(t, decodeResponse(t, w))
		inv := data["invoice"].(map[string]any)
		assert.Equal(t, "partial", inv["status"])
		assert.Equal(t, "600.00", inv["amount_due"].(map[string]any)["amount"])
		assert.Equal(t, false, data["replayed"])
		f.payments.AssertExpectations(t)
	})

	t.Run("overpayment is 422", func(t *testing.T) {
		f := newPaymentHandlerFixture(t)
		f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, f.invoice.ID).Return(f.invoice, nil)

		w := performRequest(f.engine, http.MethodPost, f.paymentsPath(),
			map[string]any{"amount": "1500.00", "method": "cash"}, tenantHeaders(f.tenantID))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, invoicing.ErrOverpaymentRejected.Code, decodeResponse(t, w).Error.Code)
		f.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects a non-positive amount", func(t *testing.T) {
		f := newPaymentHandlerFixture(t)

		w := performRequest(f.engine, http.MethodPost, f.paymentsPath(),
			map[string]any{"amount": "0", "method": "cash"}, tenantHeaders(f.tenantID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
	})

	t.Run("rejects an unknown method", func(t *testing.T) {
		f := newPaymentHandlerFixture(t)

		w := performRequest(f.engine, http.MethodPost, f.paymentsPath(),
			map[string]any{"amount": "100", "method": "bitcoin"}, tenantHeaders(f.tenantID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects an oversized idempotency key", func(t *testing.T) {
		f := newPaymentHandlerFixture(t)
		headers := tenantHeaders(f.tenantID)
		headers[middleware.IdempotencyKeyHeader] = strings.Repeat("k", maxIdempotencyKeyLength+1)

		w := performRequest(f.engine, http.MethodPost, f.paymentsPath(),
			map[string]any{"amount": "100", "method": "cash"}, headers)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.invoices.AssertNotCalled(t, "FindByIDForTenant", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPaymentHandler_List(t *testing.T) {
	f := newPaymentHandlerFixture(t)
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, f.invoice.ID).Return(f.invoice, nil)
	f.payments.On("FindByInvoice", mock.Anything, f.tenantID, f.invoice.ID).Return([]invoicing.Payment{}, nil)

	w := performRequest(f.engine, http.MethodGet, f.paymentsPath(), nil, tenantHeaders(f.tenantID))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decodeResponse(t, w).Data)
}

func TestPaymentHandler_Void_RequiresReason(t *testing.T) {
	f := newPaymentHandlerFixture(t)

	w := performRequest(f.engine, http.MethodPost, "/payments/"+uuid.NewString()+"/void",
		map[string]any{}, tenantHeaders(f.tenantID))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.payments.AssertNotCalled(t, "FindByIDForTenant", mock.Anything, mock.Anything, mock.Anything)
}
