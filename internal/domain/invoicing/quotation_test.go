package invoicing

import (
	"testing"
	"time"

	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestQuotation(t *testing.T, validUntil *time.Time) *Quotation {
	t.Helper()
	q, err := NewQuotation(uuid.New(), "COT-000001", DocumentTypeFinalConsumer, valueobject.DOP, testCustomer(), dec("18"), validUntil)
	require.NoError(t, err)
	require.NoError(t, q.Update(q.Customer, []LineInput{line("Ortodoncia fase 1", "1", "423.73")}, dec("18"), validUntil, "plan de tratamiento"))
	return q
}

func TestQuotation_Lifecycle(t *testing.T) {
	now := time.Now()
	q := createTestQuotation(t, nil)
	assert.Equal(t, "draft", q.Status(now))
	assert.Equal(t, "500.00", q.TotalMoney().StringFixed())

	require.NoError(t, q.Send(now))
	assert.ErrorIs(t, q.Update(q.Customer, nil, dec("18"), nil, ""), ErrInvalidTransition)

	require.NoError(t, q.Accept(now))
	assert.Equal(t, "accepted", q.Status(now))
	assert.ErrorIs(t, q.Reject("tarde", now), ErrInvalidTransition)
}

func TestQuotation_Expired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	q := createTestQuotation(t, &past)

	assert.Equal(t, QuotationStatusExpired, q.Status(time.Now()))
	assert.ErrorIs(t, q.Send(time.Now()), ErrInvalidTransition)

	_, err := q.ToInvoice("INV-000001", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestQuotation_ToInvoice(t *testing.T) {
	now := time.Now()
	q := createTestQuotation(t, nil)
	require.NoError(t, q.Send(now))

	inv, err := q.ToInvoice("INV-000042", now)
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusDraft, inv.Status(now))
	assert.Equal(t, q.ID, *inv.QuotationID)
	assert.Equal(t, q.TenantID, inv.TenantID)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "Ortodoncia fase 1", inv.Items[0].Description)
	assert.True(t, inv.Total.Equal(q.Total))
	assert.False(t, q.IsConverted())

	require.NoError(t, q.MarkConverted(inv.ID, now))
	assert.Equal(t, QuotationStageAccepted, q.Stage)
	assert.Equal(t, inv.ID, *q.ConvertedInvoiceID)

	_, err = q.ToInvoice("INV-000043", now)
	assert.ErrorIs(t, err, ErrQuotationAlreadyConverted)
	assert.ErrorIs(t, q.MarkConverted(uuid.New(), now), ErrQuotationAlreadyConverted)
}

func TestQuotation_RejectedCannotConvert(t *testing.T) {
	q := createTestQuotation(t, nil)
	require.NoError(t, q.Reject("muy costoso", time.Now()))
	_, err := q.ToInvoice("INV-000001", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
