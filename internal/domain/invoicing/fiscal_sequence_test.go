package invoicing

import (
	"testing"
	"time"

	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestSequence(t *testing.T, start, end int64) *FiscalSequence {
	t.Helper()
	seq, err := NewFiscalSequence(uuid.New(), DocumentTypeFinalConsumer, "B02", start, end, 8, time.Now().AddDate(1, 0, 0), 0)
	require.NoError(t, err)
	return seq
}

func TestNewFiscalSequence(t *testing.T) {
	t.Run("fresh sequence has issued nothing", func(t *testing.T) {
		seq := createTestSequence(t, 1, 500)
		assert.Equal(t, int64(0), seq.CurrentNumber)
		assert.Equal(t, int64(500), seq.Remaining())
		assert.Equal(t, int64(0), seq.Issued())
		assert.True(t, seq.IsActive)
	})

	tests := []struct {
		name       string
		prefix     string
		start, end int64
		pad        int
		expires    time.Time
	}{
		{"empty prefix", " ", 1, 10, 8, time.Now()},
		{"start below one", "B01", 0, 10, 8, time.Now()},
		{"end before start", "B01", 10, 9, 8, time.Now()},
		{"end does not fit padding", "B01", 1, 1000, 3, time.Now()},
		{"pad too wide", "B01", 1, 10, 19, time.Now()},
		{"prefix too long", "FACTURA-B02", 1, 10, 8, time.Now()},
		{"prefix and padding exceed fiscal number", "FACT", 1, 5000, 18, time.Now()},
		{"three letter prefix with wide padding", "B02", 1, 10, 17, time.Now()},
		{"no expiration", "B01", 1, 10, 8, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFiscalSequence(uuid.New(), DocumentTypeCreditFiscal, tt.prefix, tt.start, tt.end, tt.pad, tt.expires, 0)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
		})
	}

	t.Run("widest fiscal number fits the column", func(t *testing.T) {
		seq, err := NewFiscalSequence(uuid.New(), DocumentTypeCreditFiscal, "FACT", 1, 5000, 15, time.Now().Add(time.Hour), 0)
		require.NoError(t, err)
		assert.Len(t, seq.Format(5000), MaxFiscalNumberLength)
	})

	t.Run("default pad width", func(t *testing.T) {
		seq, err := NewFiscalSequence(uuid.New(), DocumentTypeCreditFiscal, "B01", 1, 10, 0, time.Now().Add(time.Hour), 0)
		require.NoError(t, err)
		assert.Equal(t, DefaultPadWidth, seq.PadWidth)
	})
}

func TestFiscalSequence_NextNumber(t *testing.T) {
	now := time.Now()

	t.Run("continues after last issued number", func(t *testing.T) {
		seq := createTestSequence(t, 1, 5000)
		seq.CurrentNumber = 1891

		n, err := seq.NextNumber(now)
		require.NoError(t, err)
		assert.Equal(t, int64(1892), n)
		seq.Advance(n)

		n, err = seq.NextNumber(now)
		require.NoError(t, err)
		assert.Equal(t, int64(1893), n)
		assert.Equal(t, "B0200001893", seq.Format(n))
	})

	t.Run("expired fails even with numbers left", func(t *testing.T) {
		seq := createTestSequence(t, 1, 100)
		seq.ExpirationDate = now.Add(-time.Minute)
		_, err := seq.NextNumber(now)
		assert.ErrorIs(t, err, ErrSequenceExpired)
	})

	t.Run("exhausted at end number", func(t *testing.T) {
		seq := createTestSequence(t, 1, 100)
		seq.CurrentNumber = 100
		_, err := seq.NextNumber(now)
		assert.ErrorIs(t, err, ErrSequenceExhausted)
		assert.Equal(t, int64(0), seq.Remaining())
	})

	t.Run("last number is still issuable", func(t *testing.T) {
		seq := createTestSequence(t, 1, 100)
		seq.CurrentNumber = 99
		n, err := seq.NextNumber(now)
		require.NoError(t, err)
		assert.Equal(t, int64(100), n)
	})

	t.Run("inactive sequence", func(t *testing.T) {
		seq := createTestSequence(t, 1, 100)
		seq.Deactivate()
		_, err := seq.NextNumber(now)
		assert.ErrorIs(t, err, ErrNoSequenceConfigured)
	})
}

func TestFiscalSequence_Format(t *testing.T) {
	seq, err := NewFiscalSequence(uuid.New(), DocumentTypeCreditFiscal, "E31", 1, 10_000_000, 8, time.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, "E3100000156", seq.Format(156))

	seq.PadWidth = 10
	assert.Equal(t, "E310000000156", seq.Format(156))
}

func TestFiscalSequence_IsRunningLow(t *testing.T) {
	seq := createTestSequence(t, 1, 100)
	assert.False(t, seq.IsRunningLow())

	seq.AlertThreshold = 10
	seq.CurrentNumber = 89
	assert.False(t, seq.IsRunningLow())
	seq.CurrentNumber = 90
	assert.True(t, seq.IsRunningLow())
}

func TestParseDocumentType(t *testing.T) {
	tests := map[string]DocumentType{
		"credit-fiscal":  DocumentTypeCreditFiscal,
		"B02":            DocumentTypeFinalConsumer,
		"b15":            DocumentTypeGovernmental,
		"Special-Regime": DocumentTypeSpecialRegime,
	}
	for in, want := range tests {
		got, err := ParseDocumentType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseDocumentType("B99")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
