package invoicing

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestSequence(t *testing.T, tenantID uuid.UUID, docType invoicing.DocumentType, prefix string, start, end int64) *invoicing.FiscalSequence {
	t.Helper()
	seq, err := invoicing.NewFiscalSequence(tenantID, docType, prefix, start, end, 8, testNow.AddDate(1, 0, 0), 0)
	require.NoError(t, err)
	return seq
}

func newTestAllocator(t *testing.T, repo *memorySequenceRepo, settings Settings) *SequenceAllocator {
	t.Helper()
	scope := NewNoOpTransactionScope(Repositories{Sequences: repo})
	a := NewSequenceAllocator(scope, settings, nil, zaptest.NewLogger(t)).WithClock(fixedClock)
	a.initialInterval = time.Millisecond
	return a
}

// ==================== Allocation ====================

func TestSequenceAllocator_Allocate(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("continues from the last issued number", func(t *testing.T) {
		seq := newTestSequence(t, tenantID, invoicing.DocumentTypeFinalConsumer, "B02", 1, 5000)
		seq.CurrentNumber = 1891
		repo := newMemorySequenceRepo(seq)
		a := newTestAllocator(t, repo, DefaultSettings())

		first, err := a.Allocate(ctx, tenantID, invoicing.DocumentTypeFinalConsumer)
		require.NoError(t, err)
		second, err := a.Allocate(ctx, tenantID, invoicing.DocumentTypeFinalConsumer)
		require.NoError(t, err)

		assert.Equal(t, int64(1892), first.Number)
		assert.Equal(t, "B0200001892", first.FiscalNumber)
		assert.Equal(t, int64(1893), second.Number)
		assert.Equal(t, "B0200001893", second.FiscalNumber)
		assert.Equal(t, seq.ID, second.SequenceID)
		assert.Equal(t, int64(1893), repo.get(seq.ID).CurrentNumber)
		assert.Equal(t, int64(5000-1893), second.Remaining)
	})

	t.Run("fresh range starts at its first number", func(t *testing.T) {
		seq := newTestSequence(t, tenantID, invoicing.DocumentTypeCreditFiscal, "B01", 100, 200)
		a := newTestAllocator(t, newMemorySequenceRepo(seq), DefaultSettings())

		alloc, err := a.Allocate(ctx, tenantID, invoicing.DocumentTypeCreditFiscal)
		require.NoError(t, err)
		assert.Equal(t, int64(100), alloc.Number)
	})

	t.Run("no active sequence", func(t *testing.T) {
		a := newTestAllocator(t, newMemorySequenceRepo(), DefaultSettings())

		_, err := a.Allocate(ctx, tenantID, invoicing.DocumentTypeFinalConsumer)
		assert.ErrorIs(t, err, invoicing.ErrNoSequenceConfigured)
	})

	t.Run("other tenant's sequence is invisible", func(t *testing.T) {
		seq := newTestSequence(t, uuid.New(), invoicing.DocumentTypeFinalConsumer, "B02", 1, 10)
		a := newTestAllocator(t, newMemorySequenceRepo(seq), DefaultSettings())

		_, err := a.Allocate(ctx, tenantID, invoicing.DocumentTypeFinalConsumer)
		assert.ErrorIs(t, err, invoicing.ErrNoSequenceConfigured)
	})

	t.Run("expired sequence fails even with numbers left", func(t *testing.T) {
		seq := newTestSequence(t, tenantID, invoicing.DocumentTypeFinalConsumer, "B02", 1, 10)
		seq.ExpirationDate = testNow.Add(-time.Hour)
		repo := newMemorySequenceRepo(seq)
		a := newTestAllocator(t, repo, DefaultSettings())

		_, err := a.Allocate(ctx, tenantID, invoicing.DocumentTypeFinalConsumer)
		assert.ErrorIs(t, err, invoicing.ErrSequenceExpired)
		assert.Equal(t, int64(0), repo.get(seq.ID).CurrentNumber)
	})

	t.Run("exhausted sequence", func(t *testing.T) {
		seq := newTestSequence(t, tenantID, invoicing.DocumentTypeFinalConsumer, "B02", 1, 10)
		seq.CurrentNumber = 10
		a := newTestAllocator(t, newMemorySequenceRepo(seq), DefaultSettings())

		_, err := a.Allocate(ctx, tenantID, invoicing.DocumentTypeFinalConsumer)
		assert.ErrorIs(t, err, invoicing.ErrSequenceExhausted)
	})

	t.Run("last number is issued then the range is exhausted", func(t *testing.T) {
		seq := newTestSequence(t, tenantID, invoicing.DocumentTypeFinalConsumer, "B02", 1, 10)
		seq.CurrentNumber = 9
		a := newTestAllocator(t, newMemorySequenceRepo(seq), DefaultSettings())

		alloc, err := a.Allocate(ctx, tenantID, invoicing.DocumentTypeFinalConsumer)
		require.NoError(t, err)
		assert.Equal(t, int64(10), alloc.Number)
		assert.Equal(t, int64(0), alloc.Remaining)

		_, err = a.Allocate(ctx, tenantID, invoicing.DocumentTypeFinalConsumer)
		assert.ErrorIs(t, err, invoicing.ErrSequenceExhausted)
	})

	t.Run("running low is reported", func(t *testing.T) {
		seq := newTestSequence(t, tenantID, invoicing.DocumentTypeFinalConsumer, "B02", 1, 100)
		seq.AlertThreshold = 10
		seq.CurrentNumber = 89
		a := newTestAllocator(t, newMemorySequenceRepo(seq), DefaultSettings())

		alloc, err := a.Allocate(ctx, tenantID, invoicing.DocumentTypeFinalConsumer)
		require.NoError(t, err)
		require.Len(t, alloc.Events, 1)
		event, ok := alloc.Events[0].(*invoicing.FiscalSequenceRunningLowEvent)
		require.True(t, ok)
		assert.Equal(t, int64(10), event.Remaining)
	})
}

// ==================== Concurrency ====================

func TestSequenceAllocator_ConcurrentAllocationsAreDistinctAndDense(t *testing.T) {
	const workers = 50
	ctx := context.Background()
	tenantID := uuid.New()
	seq := newTestSequence(t, tenantID, invoicing.DocumentTypeFinalConsumer, "B02", 1, 1000)
	repo := newMemorySequenceRepo(seq)
	a := newTestAllocator(t, repo, Settings{AllocationMaxRetries: 200})

	var (
		mu      sync.Mutex
		numbers []int64
		wg      sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			alloc, err := a.Allocate(ctx, tenantID, invoicing.DocumentTypeFinalConsumer)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers = append(numbers, alloc.Number)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, numbers, workers)
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	for i, n := range numbers {
		assert.Equal(t, int64(i+1), n)
	}
	assert.Equal(t, int64(workers), repo.get(seq.ID).CurrentNumber)
}

func TestSequenceAllocator_ContentionIsBounded(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	seq := newTestSequence(t, tenantID, invoicing.DocumentTypeFinalConsumer, "B02", 1, 1000)
	repo := newMemorySequenceRepo(seq)

	// another writer always wins the row first
	repo.casHook = func() {
		repo.mu.Lock()
		s := repo.sequences[seq.ID]
		s.CurrentNumber++
		repo.sequences[seq.ID] = s
		repo.mu.Unlock()
	}
	a := newTestAllocator(t, repo, Settings{AllocationMaxRetries: 3})

	_, err := a.Allocate(ctx, tenantID, invoicing.DocumentTypeFinalConsumer)
	assert.ErrorIs(t, err, invoicing.ErrSequenceContention)
	assert.Equal(t, int64(4), repo.get(seq.ID).CurrentNumber, "one external advance per attempt")
}
