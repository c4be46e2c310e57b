//go:build integration

package integration

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	appinvoicing "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func registerSequence(t *testing.T, db *TestDB, tenantID uuid.UUID, docType invoicing.DocumentType, prefix string, start, end int64) *invoicing.FiscalSequence {
	t.Helper()
	seq, err := invoicing.NewFiscalSequence(tenantID, docType, prefix, start, end, 8, time.Now().AddDate(1, 0, 0), 5)
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormFiscalSequenceRepository(db.DB).Save(context.Background(), seq))
	return seq
}

// ==================== Fiscal number allocation ====================

func TestFiscalSequence_ConcurrentFinalizeIsDenseAndDistinct(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	ctx := context.Background()
	tenantID := uuid.New()
	seq := registerSequence(t, testDB, tenantID, invoicing.DocumentTypeFinalConsumer, "B02", 1, 10000)

	txScope := persistence.NewGormTransactionScope(testDB.DB)
	logger := zaptest.NewLogger(t)
	allocator := appinvoicing.NewSequenceAllocator(txScope, appinvoicing.Settings{AllocationMaxRetries: 100}, nil, logger)
	service := appinvoicing.NewInvoiceService(persistence.NewGormInvoiceRepository(testDB.DB), txScope, allocator, nil, nil,
		appinvoicing.DefaultSettings(), logger)

	const workers = 40
	ids := make([]uuid.UUID, workers)
	for i := range ids {
		resp, err := service.Create(ctx, tenantID, appinvoicing.CreateInvoiceInput{
			DocumentType: "final-consumer",
			Customer:     appinvoicing.CustomerInput{ID: uuid.New(), Name: "Paciente"},
			Lines: []appinvoicing.LineItemInput{
				{Description: "Consulta", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1500)},
			},
		})
		require.NoError(t, err)
		ids[i] = resp.ID
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		fiscal  []string
		failure []error
	)
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			<-start
			resp, err := service.Finalize(ctx, tenantID, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failure = append(failure, err)
				return
			}
			fiscal = append(fiscal, resp.FiscalNumber)
		}(id)
	}
	close(start)
	wg.Wait()

	require.Empty(t, failure)
	require.Len(t, fiscal, workers)
	sort.Strings(fiscal)
	for i, number := range fiscal {
		assert.Equal(t, seq.Format(int64(i+1)), number)
	}

	stored, err := persistence.NewGormFiscalSequenceRepository(testDB.DB).FindByIDForTenant(ctx, tenantID, seq.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), stored.CurrentNumber)

	t.Run("cancel never returns a number", func(t *testing.T) {
		_, err := service.Cancel(ctx, tenantID, ids[0], "error de digitación")
		require.NoError(t, err)

		stored, err := persistence.NewGormFiscalSequenceRepository(testDB.DB).FindByIDForTenant(ctx, tenantID, seq.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(workers), stored.CurrentNumber)
	})
}

func TestFiscalSequence_OneActiveRangePerType(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	tenantID := uuid.New()
	registerSequence(t, testDB, tenantID, invoicing.DocumentTypeCreditFiscal, "B01", 1, 100)

	second, err := invoicing.NewFiscalSequence(tenantID, invoicing.DocumentTypeCreditFiscal, "B01", 101, 200, 8, time.Now().AddDate(1, 0, 0), 5)
	require.NoError(t, err)
	err = persistence.NewGormFiscalSequenceRepository(testDB.DB).Save(context.Background(), second)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

// ==================== Payment ledger ====================

func TestPaymentLedger_ConcurrentSameKeyAppliesOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	ctx := context.Background()
	tenantID := uuid.New()
	registerSequence(t, testDB, tenantID, invoicing.DocumentTypeFinalConsumer, "B02", 1, 100)

	txScope := persistence.NewGormTransactionScope(testDB.DB)
	logger := zaptest.NewLogger(t)
	invoiceRepo := persistence.NewGormInvoiceRepository(testDB.DB)
	allocator := appinvoicing.NewSequenceAllocator(txScope, appinvoicing.Settings{}, nil, logger)
	service := appinvoicing.NewInvoiceService(invoiceRepo, txScope, allocator, nil, nil, appinvoicing.DefaultSettings(), logger)
	ledger := appinvoicing.NewPaymentLedger(persistence.NewGormPaymentRepository(testDB.DB), invoiceRepo, txScope,
		nil, nil, nil, appinvoicing.Settings{PaymentMaxRetries: 20}, logger)

	created, err := service.Create(ctx, tenantID, appinvoicing.CreateInvoiceInput{
		DocumentType: "final-consumer",
		Customer:     appinvoicing.CustomerInput{ID: uuid.New(), Name: "Paciente"},
		Lines: []appinvoicing.LineItemInput{
			{Description: "Procedimiento", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1000)},
		},
		TaxRate: &decimal.Zero,
	})
	require.NoError(t, err)
	_, err = service.Finalize(ctx, tenantID, created.ID)
	require.NoError(t, err)

	const attempts = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		payments = map[uuid.UUID]int{}
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := ledger.ApplyPayment(ctx, appinvoicing.ApplyPaymentCommand{
				TenantID: tenantID, InvoiceID: created.ID,
				Amount: decimal.NewFromInt(400), Method: "cash", IdempotencyKey: "caja-7",
			})
			if err != nil {
				// a loser may still see the key as in progress
				assert.Equal(t, invoicing.ErrIdempotencyInProgress.Code, shared.CodeOf(err))
				return
			}
			mu.Lock()
			payments[res.Payment.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, payments, 1, "every successful call reports the same payment")

	entries, err := ledger.ListPayments(ctx, tenantID, created.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	stored, err := invoiceRepo.FindByIDForTenant(ctx, tenantID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "400.00", stored.PaidAmount.StringFixed(2))
	assert.Equal(t, "600.00", stored.AmountDue().StringFixed(2))
}
