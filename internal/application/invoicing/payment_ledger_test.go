package invoicing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// memoryPaymentRepo is an append-only ledger with the unique (tenant, key) index
type memoryPaymentRepo struct {
	mu      sync.Mutex
	entries []invoicing.Payment
}

func (r *memoryPaymentRepo) Create(_ context.Context, p *invoicing.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.IdempotencyKey != "" {
		for _, e := range r.entries {
			if e.TenantID == p.TenantID && e.IdempotencyKey == p.IdempotencyKey {
				return shared.ErrAlreadyExists
			}
		}
	}
	r.entries = append(r.entries, *p)
	return nil
}

func (r *memoryPaymentRepo) find(match func(invoicing.Payment) bool) (*invoicing.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if match(e) {
			p := e
			return &p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryPaymentRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*invoicing.Payment, error) {
	return r.find(func(p invoicing.Payment) bool { return p.TenantID == tenantID && p.ID == id })
}

func (r *memoryPaymentRepo) FindByIdempotencyKey(_ context.Context, tenantID uuid.UUID, key string) (*invoicing.Payment, error) {
	return r.find(func(p invoicing.Payment) bool { return p.TenantID == tenantID && p.IdempotencyKey == key })
}

func (r *memoryPaymentRepo) FindByInvoice(_ context.Context, tenantID, invoiceID uuid.UUID) ([]invoicing.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []invoicing.Payment
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.InvoiceID == invoiceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryPaymentRepo) FindReversal(_ context.Context, tenantID, paymentID uuid.UUID) (*invoicing.Payment, error) {
	return r.find(func(p invoicing.Payment) bool {
		return p.TenantID == tenantID && p.ReversesPaymentID != nil && *p.ReversesPaymentID == paymentID
	})
}

type ledgerFixture struct {
	tenantID    uuid.UUID
	invoice     *invoicing.Invoice
	invoices    *MockInvoiceRepository
	payments    *memoryPaymentRepo
	idempotency *MockIdempotencyStore
	publisher   *MockEventPublisher
	ledger      *PaymentLedger
}

// finalizedInvoice returns a pending DOP invoice with a total of total
func finalizedInvoice(t *testing.T, tenantID uuid.UUID, total string) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewInvoice(tenantID, "INV-000100", invoicing.DocumentTypeFinalConsumer, "DOP",
		invoicing.Customer{ID: uuid.New(), Name: "Clínica Paciente"}, dec("0"))
	require.NoError(t, err)
	lines, err := toLineInputs("DOP", []LineItemInput{{Description: "Cirugía menor", Quantity: dec("1"), UnitPrice: dec(total)}})
	require.NoError(t, err)
	require.NoError(t, inv.SetLines(lines, dec("0")))
	require.NoError(t, inv.Finalize(invoicing.FiscalNumberAssignment{
		SequenceID: uuid.New(), Number: 7, FiscalNumber: "B0200000007",
	}, testNow, 30))
	inv.ClearDomainEvents()
	return inv
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		tenantID:    uuid.New(),
		invoices:    new(MockInvoiceRepository),
		payments:    &memoryPaymentRepo{},
		idempotency: new(MockIdempotencyStore),
		publisher:   NewMockEventPublisher(),
	}
	f.invoice = finalizedInvoice(t, f.tenantID, "1000.00")
	f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, f.invoice.ID).Return(f.invoice, nil)
	f.invoices.On("SaveWithLock", mock.Anything, f.invoice).Return(nil)

	scope := NewNoOpTransactionScope(Repositories{Invoices: f.invoices, Payments: f.payments})
	f.ledger = NewPaymentLedger(f.payments, f.invoices, scope, f.idempotency, f.publisher, nil, DefaultSettings(), zaptest.NewLogger(t)).
		WithClock(fixedClock)
	f.ledger.retryInterval = time.Millisecond
	return f
}

func (f *ledgerFixture) pay(amount, key string) (*PaymentResult, error) {
	return f.ledger.ApplyPayment(context.Background(), ApplyPaymentCommand{
		TenantID:       f.tenantID,
		InvoiceID:      f.invoice.ID,
		Amount:         dec(amount),
		Method:         "cash",
		IdempotencyKey: key,
	})
}

func (f *ledgerFixture) storeKey(key string) string {
	return "payment:" + f.tenantID.String() + ":" + key
}

// ==================== ApplyPayment ====================

func TestPaymentLedger_ApplyPayment_PartialThenPaid(t *testing.T) {
	f := newLedgerFixture(t)

	first, err := f.pay("400.00", "")
	require.NoError(t, err)
	assert.Equal(t, "partial", first.Invoice.Status)
	assert.Equal(t, "600.00", first.Invoice.AmountDue.StringFixed())
	assert.False(t, first.Replayed)

	second, err := f.pay("600.00", "")
	require.NoError(t, err)
	assert.Equal(t, "paid", second.Invoice.Status)
	assert.Equal(t, "0.00", second.Invoice.AmountDue.StringFixed())

	_, err = f.pay("0.01", "")
	assert.ErrorIs(t, err, invoicing.ErrOverpaymentRejected)

	entries, err := f.payments.FindByInvoice(context.Background(), f.tenantID, f.invoice.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.True(t, f.invoice.PaidAmount.Equal(dec("1000")))
	assert.Len(t, f.publisher.GetEventsByType(invoicing.EventTypeInvoicePaymentApplied), 2)
	assert.Len(t, f.publisher.GetEventsByType(invoicing.EventTypeInvoicePaid), 1)
	f.idempotency.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentLedger_ApplyPayment_Rejections(t *testing.T) {
	t.Run("amount with sub-cent precision", func(t *testing.T) {
		f := newLedgerFixture(t)
		_, err := f.pay("10.005", "")
		assert.ErrorIs(t, err, invoicing.ErrInvalidAmount)
	})

	t.Run("currency differs from the invoice", func(t *testing.T) {
		f := newLedgerFixture(t)
		_, err := f.ledger.ApplyPayment(context.Background(), ApplyPaymentCommand{
			TenantID: f.tenantID, InvoiceID: f.invoice.ID, Amount: dec("10"), Currency: "USD", Method: "cash",
		})
		assert.ErrorIs(t, err, invoicing.ErrCurrencyMismatch)
	})

	t.Run("cancelled invoice", func(t *testing.T) {
		f := newLedgerFixture(t)
		require.NoError(t, f.invoice.Cancel("Error de captura", testNow))
		_, err := f.pay("10", "")
		assert.ErrorIs(t, err, invoicing.ErrInvoiceCancelled)
	})

	t.Run("unknown method", func(t *testing.T) {
		f := newLedgerFixture(t)
		_, err := f.ledger.ApplyPayment(context.Background(), ApplyPaymentCommand{
			TenantID: f.tenantID, InvoiceID: f.invoice.ID, Amount: dec("10"), Method: "barter",
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("missing invoice", func(t *testing.T) {
		f := newLedgerFixture(t)
		other := uuid.New()
		f.invoices.On("FindByIDForTenant", mock.Anything, f.tenantID, other).Return(nil, shared.ErrNotFound)
		_, err := f.ledger.ApplyPayment(context.Background(), ApplyPaymentCommand{
			TenantID: f.tenantID, InvoiceID: other, Amount: dec("10"), Method: "cash",
		})
		assert.ErrorIs(t, err, invoicing.ErrInvoiceNotFound)
	})
}

// ==================== Idempotency ====================

func TestPaymentLedger_ApplyPayment_IdempotentReplay(t *testing.T) {
	f := newLedgerFixture(t)
	f.idempotency.On("Claim", mock.Anything, f.storeKey("pos-7781"), 24*time.Hour).Return(true, nil).Once()

	first, err := f.pay("400.00", "pos-7781")
	require.NoError(t, err)
	second, err := f.pay("400.00", "pos-7781")
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)
	assert.True(t, f.invoice.PaidAmount.Equal(dec("400")))
	entries, _ := f.payments.FindByInvoice(context.Background(), f.tenantID, f.invoice.ID)
	assert.Len(t, entries, 1)
	f.idempotency.AssertExpectations(t)
	f.idempotency.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestPaymentLedger_ApplyPayment_KeyInFlight(t *testing.T) {
	f := newLedgerFixture(t)
	f.idempotency.On("Claim", mock.Anything, f.storeKey("k1"), 24*time.Hour).Return(false, nil)

	_, err := f.pay("100", "k1")
	assert.ErrorIs(t, err, invoicing.ErrIdempotencyInProgress)
	assert.True(t, f.invoice.PaidAmount.IsZero())
}

func TestPaymentLedger_ApplyPayment_FailureReleasesClaim(t *testing.T) {
	f := newLedgerFixture(t)
	f.idempotency.On("Claim", mock.Anything, f.storeKey("big"), 24*time.Hour).Return(true, nil)
	f.idempotency.On("Release", mock.Anything, f.storeKey("big")).Return(nil).Once()

	_, err := f.pay("1000.01", "big")
	assert.ErrorIs(t, err, invoicing.ErrOverpaymentRejected)
	f.idempotency.AssertExpectations(t)
}

func TestPaymentLedger_ApplyPayment_StoreDownFallsBackToIndex(t *testing.T) {
	f := newLedgerFixture(t)
	f.idempotency.On("Claim", mock.Anything, f.storeKey("k2"), 24*time.Hour).Return(false, errors.New("redis: connection refused"))

	res, err := f.pay("250", "k2")
	require.NoError(t, err)
	assert.Equal(t, "k2", res.Payment.IdempotencyKey)
}

func TestPaymentLedger_ApplyPayment_KeyReusedForOtherInvoice(t *testing.T) {
	f := newLedgerFixture(t)
	f.idempotency.On("Claim", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	_, err := f.pay("100", "shared-key")
	require.NoError(t, err)

	other := finalizedInvoice(t, f.tenantID, "50")
	_, err = f.ledger.ApplyPayment(context.Background(), ApplyPaymentCommand{
		TenantID: f.tenantID, InvoiceID: other.ID, Amount: dec("50"), Method: "cash", IdempotencyKey: "shared-key",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

// ==================== Lock retry ====================

func TestPaymentLedger_ApplyPayment_RetriesLostLock(t *testing.T) {
	tenantID := uuid.New()
	stale := finalizedInvoice(t, tenantID, "1000")
	fresh := finalizedInvoice(t, tenantID, "1000")
	fresh.ID = stale.ID

	invoices := new(MockInvoiceRepository)
	invoices.On("FindByIDForTenant", mock.Anything, tenantID, stale.ID).Return(stale, nil).Once()
	invoices.On("FindByIDForTenant", mock.Anything, tenantID, stale.ID).Return(fresh, nil).Once()
	invoices.On("SaveWithLock", mock.Anything, stale).Return(shared.ErrConcurrencyConflict).Once()
	invoices.On("SaveWithLock", mock.Anything, fresh).Return(nil).Once()

	payments := new(MockPaymentRepository)
	payments.On("Create", mock.Anything, mock.AnythingOfType("*invoicing.Payment")).Return(nil).Twice()

	scope := NewNoOpTransactionScope(Repositories{Invoices: invoices, Payments: payments})
	ledger := NewPaymentLedger(payments, invoices, scope, nil, nil, nil, DefaultSettings(), zaptest.NewLogger(t)).WithClock(fixedClock)
	ledger.retryInterval = time.Millisecond

	res, err := ledger.ApplyPayment(context.Background(), ApplyPaymentCommand{
		TenantID: tenantID, InvoiceID: stale.ID, Amount: dec("400"), Method: "debit_card",
	})
	require.NoError(t, err)
	assert.Equal(t, "partial", res.Invoice.Status)
	assert.True(t, fresh.PaidAmount.Equal(dec("400")))
	invoices.AssertExpectations(t)
	payments.AssertExpectations(t)
}

func TestPaymentLedger_ApplyPayment_LockRetriesAreBounded(t *testing.T) {
	tenantID := uuid.New()
	inv := finalizedInvoice(t, tenantID, "1000")

	invoices := new(MockInvoiceRepository)
	invoices.On("FindByIDForTenant", mock.Anything, tenantID, inv.ID).Return(inv, nil)
	invoices.On("SaveWithLock", mock.Anything, inv).Return(shared.ErrConcurrencyConflict)
	payments := new(MockPaymentRepository)
	payments.On("Create", mock.Anything, mock.Anything).Return(nil)

	settings := DefaultSettings()
	settings.PaymentMaxRetries = 2
	scope := NewNoOpTransactionScope(Repositories{Invoices: invoices, Payments: payments})
	ledger := NewPaymentLedger(payments, invoices, scope, nil, nil, nil, settings, zaptest.NewLogger(t))
	ledger.retryInterval = time.Millisecond

	_, err := ledger.ApplyPayment(context.Background(), ApplyPaymentCommand{
		TenantID: tenantID, InvoiceID: inv.ID, Amount: dec("1"), Method: "cash",
	})
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	invoices.AssertNumberOfCalls(t, "SaveWithLock", 3)
}

// ==================== VoidPayment ====================

func TestPaymentLedger_VoidPayment(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	paid, err := f.pay("400.00", "")
	require.NoError(t, err)

	voided, err := f.ledger.VoidPayment(ctx, VoidPaymentCommand{
		TenantID: f.tenantID, PaymentID: paid.Payment.ID, Reason: "Cheque devuelto",
	})
	require.NoError(t, err)
	assert.Equal(t, "void", voided.Payment.Kind)
	assert.Equal(t, "-400.00", voided.Payment.Amount.StringFixed())
	require.NotNil(t, voided.Payment.ReversesPaymentID)
	assert.Equal(t, paid.Payment.ID, *voided.Payment.ReversesPaymentID)
	assert.Equal(t, "pending", voided.Invoice.Status)
	assert.Equal(t, "1000.00", voided.Invoice.AmountDue.StringFixed())

	t.Run("repeat with the default key replays", func(t *testing.T) {
		again, err := f.ledger.VoidPayment(ctx, VoidPaymentCommand{
			TenantID: f.tenantID, PaymentID: paid.Payment.ID, Reason: "Cheque devuelto",
		})
		require.NoError(t, err)
		assert.True(t, again.Replayed)
		assert.Equal(t, voided.Payment.ID, again.Payment.ID)
	})

	t.Run("second void with another key is rejected", func(t *testing.T) {
		_, err := f.ledger.VoidPayment(ctx, VoidPaymentCommand{
			TenantID: f.tenantID, PaymentID: paid.Payment.ID, Reason: "otra vez", IdempotencyKey: "other",
		})
		assert.ErrorIs(t, err, invoicing.ErrInvalidTransition)
	})

	t.Run("a void entry cannot be voided", func(t *testing.T) {
		_, err := f.ledger.VoidPayment(ctx, VoidPaymentCommand{
			TenantID: f.tenantID, PaymentID: voided.Payment.ID, Reason: "x",
		})
		assert.ErrorIs(t, err, invoicing.ErrInvalidTransition)
	})

	entries, err := f.ledger.ListPayments(ctx, f.tenantID, f.invoice.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.True(t, f.invoice.PaidAmount.IsZero())
}

// ==================== Reconcile ====================

func TestPaymentLedger_Reconcile(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	_, err := f.pay("400.00", "")
	require.NoError(t, err)

	t.Run("in step", func(t *testing.T) {
		res, err := f.ledger.Reconcile(ctx, f.tenantID, f.invoice.ID)
		require.NoError(t, err)
		assert.False(t, res.Repaired)
		assert.Equal(t, 1, res.Entries)
	})

	t.Run("drifted snapshot is repaired", func(t *testing.T) {
		f.invoice.PaidAmount = dec("150")
		res, err := f.ledger.Reconcile(ctx, f.tenantID, f.invoice.ID)
		require.NoError(t, err)
		assert.True(t, res.Repaired)
		assert.Equal(t, "150.00", res.PreviousPaid.StringFixed())
		assert.Equal(t, "400.00", res.LedgerSum.StringFixed())
		assert.Equal(t, "partial", res.Status)
		assert.True(t, f.invoice.PaidAmount.Equal(dec("400")))
	})
}
