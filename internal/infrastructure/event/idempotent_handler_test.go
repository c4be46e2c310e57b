package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockIdempotencyStore) Close() error { return nil }

func runningLow(t *testing.T, remaining int64) *invoicing.FiscalSequenceRunningLowEvent {
	t.Helper()
	seq, err := invoicing.NewFiscalSequence(uuid.New(), invoicing.DocumentTypeFinalConsumer, "B02", 1, 100, 8,
		time.Now().AddDate(1, 0, 0), 10)
	require.NoError(t, err)
	seq.CurrentNumber = 100 - remaining
	return invoicing.NewFiscalSequenceRunningLowEvent(seq)
}

func TestIdempotentHandler_OnePerAggregateWindow(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore(time.Minute)
	defer store.Close()
	inner := newTestHandler(invoicing.EventTypeFiscalSequenceRunningLow)
	h := NewIdempotentHandler(inner, store, zap.NewNop(), WithKeyFunc(ByAggregate), WithWindow(time.Hour))

	first := runningLow(t, 9)
	second := *first
	second.BaseDomainEvent = shared.NewBaseDomainEvent(first.EventType(), first.AggregateType(), first.AggregateID(), first.TenantID())
	second.Remaining = 8

	require.NoError(t, h.Handle(context.Background(), first))
	require.NoError(t, h.Handle(context.Background(), &second))
	require.NoError(t, h.Handle(context.Background(), runningLow(t, 5)))

	assert.Equal(t, 2, inner.count(), "second alert for the same sequence is suppressed")
	stats := h.Metrics().Stats()
	assert.Equal(t, int64(2), stats.EventsProcessed)
	assert.Equal(t, int64(1), stats.EventsDuplicate)
	assert.Equal(t, []string{invoicing.EventTypeFiscalSequenceRunningLow}, h.EventTypes())
}

func TestIdempotentHandler_ByEventID(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore(time.Minute)
	defer store.Close()
	inner := newTestHandler()
	h := NewIdempotentHandler(inner, store, zap.NewNop())

	evt := newTestEvent("InvoicePaid", uuid.New())
	require.NoError(t, h.Handle(context.Background(), evt))
	require.NoError(t, h.Handle(context.Background(), evt))
	require.NoError(t, h.Handle(context.Background(), newTestEvent("InvoicePaid", uuid.New())))
	assert.Equal(t, 2, inner.count())
}

func TestIdempotentHandler_FailureReleasesKey(t *testing.T) {
	store := new(MockIdempotencyStore)
	evt := newTestEvent("InvoicePaid", uuid.New())
	key := ByEventID(evt)
	store.On("Claim", mock.Anything, key, 24*time.Hour).Return(true, nil)
	store.On("Release", mock.Anything, key).Return(nil)

	inner := newTestHandler()
	inner.err = errors.New("notifier down")
	h := NewIdempotentHandler(inner, store, zap.NewNop())

	assert.EqualError(t, h.Handle(context.Background(), evt), "notifier down")
	assert.Equal(t, int64(1), h.Metrics().Stats().EventsFailed)
	store.AssertExpectations(t)
}

func TestIdempotentHandler_StoreErrorStillHandles(t *testing.T) {
	store := new(MockIdempotencyStore)
	store.On("Claim", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis timeout"))

	inner := newTestHandler()
	h := NewIdempotentHandler(inner, store, zap.NewNop())

	require.NoError(t, h.Handle(context.Background(), newTestEvent("InvoicePaid", uuid.New())))
	assert.Equal(t, 1, inner.count())
	store.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}
