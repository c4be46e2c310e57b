package invoicing

import (
	"context"
	"testing"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type quotationFixture struct {
	tenantID   uuid.UUID
	quotations *MockQuotationRepository
	invoices   *MockInvoiceRepository
	publisher  *MockEventPublisher
	service    *QuotationService
}

func newQuotationFixture(t *testing.T) *quotationFixture {
	t.Helper()
	f := &quotationFixture{
		tenantID:   uuid.New(),
		quotations: new(MockQuotationRepository),
		invoices:   new(MockInvoiceRepository),
		publisher:  NewMockEventPublisher(),
	}
	scope := NewNoOpTransactionScope(Repositories{Quotations: f.quotations, Invoices: f.invoices})
	f.service = NewQuotationService(f.quotations, scope, f.publisher, DefaultSettings(), zaptest.NewLogger(t)).WithClock(fixedClock)
	return f
}

func sentQuotation(t *testing.T, tenantID uuid.UUID) *invoicing.Quotation {
	t.Helper()
	valid := testNow.AddDate(0, 0, 15)
	q, err := invoicing.NewQuotation(tenantID, "COT-000003", invoicing.DocumentTypeFinalConsumer, "DOP",
		invoicing.Customer{ID: uuid.New(), Name: "Luis Gómez"}, dec("18"), &valid)
	require.NoError(t, err)
	lines, err := toLineInputs("DOP", []LineItemInput{
		{Description: "Ecografía", Quantity: dec("1"), UnitPrice: dec("2500")},
		{Description: "Consulta", Quantity: dec("1"), UnitPrice: dec("1500"), Discount: dec("10")},
	})
	require.NoError(t, err)
	require.NoError(t, q.Update(q.Customer, lines, dec("18"), &valid, ""))
	require.NoError(t, q.Send(testNow))
	return q
}

// ==================== Create / Transitions ====================

func TestQuotationService_CreateAndSend(t *testing.T) {
	ctx := context.Background()
	f := newQuotationFixture(t)
	f.quotations.On("NextQuotationNumber", mock.Anything, f.tenantID).Return("COT-000001", nil)

	var stored *invoicing.Quotation
	f.quotations.On("Save", mock.Anything, mock.AnythingOfType("*invoicing.Quotation")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*invoicing.Quotation) }).
		Return(nil)

	valid := testNow.AddDate(0, 1, 0)
	created, err := f.service.Create(ctx, f.tenantID, CreateQuotationInput{
		Customer:   CustomerInput{ID: uuid.New(), Name: "Luis Gómez"},
		Lines:      []LineItemInput{{Description: "Ecografía", Quantity: dec("1"), UnitPrice: dec("2500")}},
		ValidUntil: &valid,
	})
	require.NoError(t, err)
	assert.Equal(t, "draft", created.Status)
	assert.Equal(t, "2950.00", created.Total.StringFixed())
	require.NotNil(t, stored)

	f.quotations.On("FindByIDForTenant", mock.Anything, f.tenantID, stored.ID).Return(stored, nil)
	f.quotations.On("SaveWithLock", mock.Anything, stored).Return(nil)

	sent, err := f.service.Send(ctx, f.tenantID, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "sent", sent.Status)
	require.NotNil(t, sent.SentAt)

	_, err = f.service.Update(ctx, f.tenantID, stored.ID, UpdateQuotationInput{})
	assert.ErrorIs(t, err, invoicing.ErrInvalidTransition)
}

func TestQuotationService_Transitions(t *testing.T) {
	ctx := context.Background()

	t.Run("accept then reject is refused", func(t *testing.T) {
		f := newQuotationFixture(t)
		q := sentQuotation(t, f.tenantID)
		f.quotations.On("FindByIDForTenant", mock.Anything, f.tenantID, q.ID).Return(q, nil)
		f.quotations.On("SaveWithLock", mock.Anything, q).Return(nil)

		accepted, err := f.service.Accept(ctx, f.tenantID, q.ID)
		require.NoError(t, err)
		assert.Equal(t, "accepted", accepted.Status)

		_, err = f.service.Reject(ctx, f.tenantID, q.ID, "muy caro")
		assert.ErrorIs(t, err, invoicing.ErrInvalidTransition)
	})

	t.Run("expired quotation reports expired", func(t *testing.T) {
		f := newQuotationFixture(t)
		q := sentQuotation(t, f.tenantID)
		past := testNow.AddDate(0, 0, -1)
		q.ValidUntil = &past
		f.quotations.On("FindByIDForTenant", mock.Anything, f.tenantID, q.ID).Return(q, nil)

		got, err := f.service.GetByID(ctx, f.tenantID, q.ID)
		require.NoError(t, err)
		assert.Equal(t, invoicing.QuotationStatusExpired, got.Status)

		_, err = f.service.Accept(ctx, f.tenantID, q.ID)
		assert.ErrorIs(t, err, invoicing.ErrInvalidTransition)
		f.quotations.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})
}

// ==================== Convert ====================

func TestQuotationService_Convert(t *testing.T) {
	ctx := context.Background()
	f := newQuotationFixture(t)
	q := sentQuotation(t, f.tenantID)

	f.quotations.On("FindByIDForTenant", mock.Anything, f.tenantID, q.ID).Return(q, nil)
	f.quotations.On("SaveWithLock", mock.Anything, q).Return(nil)
	f.invoices.On("NextInvoiceNumber", mock.Anything, f.tenantID).Return("INV-000010", nil)
	f.invoices.On("Save", mock.Anything, mock.AnythingOfType("*invoicing.Invoice")).Return(nil).Once()

	inv, err := f.service.Convert(ctx, f.tenantID, q.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, "draft", inv.Status)
	assert.Equal(t, "INV-000010", inv.InvoiceNumber)
	require.NotNil(t, inv.QuotationID)
	assert.Equal(t, q.ID, *inv.QuotationID)
	assert.True(t, inv.Total.Equals(q.TotalMoney()))
	assert.Len(t, inv.Items, 2)
	assert.Equal(t, invoicing.QuotationStageAccepted, q.Stage)
	require.NotNil(t, q.ConvertedInvoiceID)
	assert.Equal(t, inv.ID, *q.ConvertedInvoiceID)
	assert.Len(t, f.publisher.GetEventsByType(invoicing.EventTypeQuotationConverted), 1)

	_, err = f.service.Convert(ctx, f.tenantID, q.ID, nil)
	assert.ErrorIs(t, err, invoicing.ErrQuotationAlreadyConverted)
	f.invoices.AssertNumberOfCalls(t, "Save", 1)
}

func TestQuotationService_Convert_InvoiceNumberClash(t *testing.T) {
	ctx := context.Background()
	f := newQuotationFixture(t)
	q := sentQuotation(t, f.tenantID)

	f.quotations.On("FindByIDForTenant", mock.Anything, f.tenantID, q.ID).Return(q, nil)
	f.quotations.On("SaveWithLock", mock.Anything, q).Return(nil)
	f.invoices.On("NextInvoiceNumber", mock.Anything, f.tenantID).Return("INV-000010", nil).Once()
	f.invoices.On("NextInvoiceNumber", mock.Anything, f.tenantID).Return("INV-000011", nil).Once()
	f.invoices.On("Save", mock.Anything, mock.AnythingOfType("*invoicing.Invoice")).Return(shared.ErrAlreadyExists).Once()
	f.invoices.On("Save", mock.Anything, mock.AnythingOfType("*invoicing.Invoice")).Return(nil).Once()

	inv, err := f.service.Convert(ctx, f.tenantID, q.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, "INV-000011", inv.InvoiceNumber)
	require.NotNil(t, q.ConvertedInvoiceID)
	assert.Equal(t, inv.ID, *q.ConvertedInvoiceID)
	f.quotations.AssertNumberOfCalls(t, "SaveWithLock", 1)
	assert.Len(t, f.publisher.GetEventsByType(invoicing.EventTypeQuotationConverted), 1)
}

func TestQuotationService_Convert_ConcurrentConversionLoses(t *testing.T) {
	ctx := context.Background()
	f := newQuotationFixture(t)
	q := sentQuotation(t, f.tenantID)

	winner := *q
	invoiceID := uuid.New()
	winner.ConvertedInvoiceID = &invoiceID

	f.quotations.On("FindByIDForTenant", mock.Anything, f.tenantID, q.ID).Return(q, nil).Once()
	f.quotations.On("FindByIDForTenant", mock.Anything, f.tenantID, q.ID).Return(&winner, nil).Once()
	f.quotations.On("SaveWithLock", mock.Anything, q).Return(shared.ErrConcurrencyConflict)
	f.invoices.On("NextInvoiceNumber", mock.Anything, f.tenantID).Return("INV-000011", nil)
	f.invoices.On("Save", mock.Anything, mock.Anything).Return(nil)

	_, err := f.service.Convert(ctx, f.tenantID, q.ID, nil)
	assert.ErrorIs(t, err, invoicing.ErrQuotationAlreadyConverted)
	assert.Empty(t, f.publisher.GetEventsByType(invoicing.EventTypeQuotationConverted))
}

func TestQuotationService_Convert_RejectedQuotation(t *testing.T) {
	f := newQuotationFixture(t)
	q := sentQuotation(t, f.tenantID)
	require.NoError(t, q.Reject("no", testNow))
	f.quotations.On("FindByIDForTenant", mock.Anything, f.tenantID, q.ID).Return(q, nil)
	f.invoices.On("NextInvoiceNumber", mock.Anything, f.tenantID).Return("INV-000012", nil)

	_, err := f.service.Convert(context.Background(), f.tenantID, q.ID, nil)
	assert.ErrorIs(t, err, invoicing.ErrInvalidTransition)
	f.invoices.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
