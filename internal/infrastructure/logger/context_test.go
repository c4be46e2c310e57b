package logger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func spanContext(t *testing.T, ctx context.Context) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	return trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
}

func fieldMap(entry observer.LoggedEntry) map[string]any {
	return entry.ContextMap()
}

// ==================== Context values ====================

func TestFromContext(t *testing.T) {
	t.Run("missing logger is a no-op", func(t *testing.T) {
		l := FromContext(context.Background())
		require.NotNil(t, l)
		l.Info("does not panic")
	})

	t.Run("attached logger is returned", func(t *testing.T) {
		l := zap.NewExample()
		assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
	})

	t.Run("nil logger falls back to no-op", func(t *testing.T) {
		assert.NotNil(t, FromContext(WithContext(context.Background(), nil)))
	})
}

func TestCorrelationValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, Actor(ctx))
	_, ok := TenantID(ctx)
	assert.False(t, ok)

	tenantID := uuid.New()
	ctx = WithActor(WithTenantID(WithRequestID(ctx, "req-1"), tenantID), "recepcion")

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "recepcion", Actor(ctx))
	got, ok := TenantID(ctx)
	assert.True(t, ok)
	assert.Equal(t, tenantID, got)

	t.Run("nil tenant is absent", func(t *testing.T) {
		_, ok := TenantID(WithTenantID(context.Background(), uuid.Nil))
		assert.False(t, ok)
	})
}

// ==================== Enrichment ====================

func TestFields(t *testing.T) {
	t.Run("empty context", func(t *testing.T) {
		assert.Empty(t, Fields(context.Background()))
	})

	t.Run("invalid span context adds nothing", func(t *testing.T) {
		ctx := trace.ContextWithSpanContext(context.Background(), trace.SpanContext{})
		assert.Empty(t, Fields(ctx))
	})

	t.Run("all fields", func(t *testing.T) {
		tenantID := uuid.New()
		ctx := spanContext(t, context.Background())
		ctx = WithActor(WithTenantID(WithRequestID(ctx, "req-9"), tenantID), "caja")

		core, recorded := observer.New(zapcore.DebugLevel)
		zap.New(core).Info("x", Fields(ctx)...)

		fields := fieldMap(recorded.All()[0])
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
		assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
		assert.Equal(t, "req-9", fields["request_id"])
		assert.Equal(t, tenantID.String(), fields["tenant_id"])
		assert.Equal(t, "caja", fields["actor"])
	})
}

func TestL(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := WithRequestID(WithContext(context.Background(), base), "req-42")
	L(ctx).Info("payment applied", zap.String("invoice_id", "inv-1"))

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := fieldMap(entries[0])
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "inv-1", fields["invoice_id"])
}

func TestEnrich(t *testing.T) {
	t.Run("nil base", func(t *testing.T) {
		assert.NotNil(t, Enrich(context.Background(), nil))
	})

	t.Run("no fields returns base", func(t *testing.T) {
		base := zap.NewExample()
		assert.Same(t, base, Enrich(context.Background(), base))
	})
}
