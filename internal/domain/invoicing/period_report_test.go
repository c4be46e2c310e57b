package invoicing

import (
	"testing"
	"time"

	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestReport(t *testing.T) (*PeriodReport, ReportFigures) {
	t.Helper()
	figures, err := AggregateDocuments(march2026, ReportTypeSales, valueobject.DOP, time.UTC, sampleDocuments())
	require.NoError(t, err)
	r, err := NewPeriodReport(uuid.New(), figures, time.Now())
	require.NoError(t, err)
	return r, figures
}

func TestPeriodReport_RegenerateDraftIsDeterministic(t *testing.T) {
	r, figures := createTestReport(t)
	first := r.Checksum
	generatedAt := r.GeneratedAt
	version := r.Version

	again, err := AggregateDocuments(march2026, ReportTypeSales, valueobject.DOP, time.UTC, sampleDocuments())
	require.NoError(t, err)
	changed, err := r.Regenerate(again, time.Now().Add(time.Minute))
	require.NoError(t, err)

	assert.False(t, changed)
	assert.Equal(t, first, r.Checksum)
	assert.Equal(t, figures.ComputeChecksum(), r.Checksum)
	assert.Equal(t, generatedAt, r.GeneratedAt)
	assert.Equal(t, version, r.Version)
	assert.Equal(t, ReportStatusDraft, r.Status)
}

func TestPeriodReport_RegenerateChangedFigures(t *testing.T) {
	r, _ := createTestReport(t)
	first := r.Checksum
	later := time.Now().Add(time.Hour)

	docs := sampleDocuments()
	figures, err := AggregateDocuments(march2026, ReportTypeSales, valueobject.DOP, time.UTC, docs[1:])
	require.NoError(t, err)
	changed, err := r.Regenerate(figures, later)
	require.NoError(t, err)

	assert.True(t, changed)
	assert.NotEqual(t, first, r.Checksum)
	assert.Equal(t, later, r.GeneratedAt)
}

func TestPeriodReport_Locking(t *testing.T) {
	r, figures := createTestReport(t)
	by := uuid.New()
	require.NoError(t, r.Submit(&by, "DGII-2026-03-0001", time.Now()))
	assert.True(t, r.IsLocked())

	_, err := r.Regenerate(figures, time.Now())
	assert.ErrorIs(t, err, ErrReportLocked)

	require.NoError(t, r.Accept(time.Now()))
	_, err = r.Regenerate(figures, time.Now())
	assert.ErrorIs(t, err, ErrReportLocked)
	assert.ErrorIs(t, r.Submit(&by, "again", time.Now()), ErrInvalidTransition)
}

func TestPeriodReport_RejectedCanBeRegenerated(t *testing.T) {
	r, figures := createTestReport(t)
	require.NoError(t, r.Submit(nil, "ref-1", time.Now()))
	require.NoError(t, r.Reject("montos no cuadran", time.Now()))
	r.SetArchiveKey("reports/x.json")

	changed, err := r.Regenerate(figures, time.Now())
	require.NoError(t, err)
	assert.True(t, changed, "a rejected report returns to draft even with the same figures")
	assert.Equal(t, ReportStatusDraft, r.Status)
	assert.Empty(t, r.RejectionReason)
	assert.Empty(t, r.SubmissionReference)
	assert.Empty(t, r.ArchiveKey)
}

func TestPeriodReport_RegenerateOtherPeriod(t *testing.T) {
	r, figures := createTestReport(t)
	figures.Period = march2026.Previous()
	_, err := r.Regenerate(figures, time.Now())
	assert.Error(t, err)
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("202603")
	require.NoError(t, err)
	assert.Equal(t, march2026, p)
	assert.Equal(t, "202603", p.String())
	assert.Equal(t, "202602", p.Previous().String())
	assert.Equal(t, "202512", Period{Year: 2026, Month: time.January}.Previous().String())

	for _, bad := range []string{"", "2026-03", "202613", "202600", "abcd03", "199912"} {
		_, err := ParsePeriod(bad)
		assert.ErrorIs(t, err, ErrInvalidPeriod, bad)
	}
}

func TestPeriod_Contains(t *testing.T) {
	loc := time.FixedZone("AST", -4*3600)
	p := march2026

	assert.True(t, p.Contains(time.Date(2026, 3, 1, 0, 0, 0, 0, loc), loc))
	assert.False(t, p.Contains(time.Date(2026, 4, 1, 0, 0, 0, 0, loc), loc))
	// 02:00 UTC on April 1st is still March 31st in AST
	assert.True(t, p.Contains(time.Date(2026, 4, 1, 2, 0, 0, 0, time.UTC), loc))
}
