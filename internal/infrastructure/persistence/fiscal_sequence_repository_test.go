package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The allocator relies on this exact statement shape: a single conditional UPDATE
// whose WHERE clause carries the expected current_number.
const casStatement = `UPDATE "fiscal_sequences" SET "current_number"=\$1,"updated_at"=\$2,"version"=version \+ 1 ` +
	`WHERE \(?id = \$3 AND current_number = \$4 AND is_active = \$5\)?`

// ==================== CompareAndAdvance SQL ====================

func TestGormFiscalSequenceRepository_CompareAndAdvance(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("winner sees one affected row", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		repo := NewGormFiscalSequenceRepository(db.DB)

		mock.ExpectExec(casStatement).
			WithArgs(int64(1892), sqlmock.AnyArg(), id, int64(1891), true).
			WillReturnResult(sqlmock.NewResult(0, 1))

		swapped, err := repo.CompareAndAdvance(ctx, id, 1891, 1892)
		require.NoError(t, err)
		assert.True(t, swapped)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("loser sees zero rows and no error", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		repo := NewGormFiscalSequenceRepository(db.DB)

		mock.ExpectExec(casStatement).
			WithArgs(int64(1892), sqlmock.AnyArg(), id, int64(1891), true).
			WillReturnResult(sqlmock.NewResult(0, 0))

		swapped, err := repo.CompareAndAdvance(ctx, id, 1891, 1892)
		require.NoError(t, err)
		assert.False(t, swapped)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver error is returned", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		repo := NewGormFiscalSequenceRepository(db.DB)

		boom := errors.New("connection reset")
		mock.ExpectExec(casStatement).WillReturnError(boom)

		swapped, err := repo.CompareAndAdvance(ctx, id, 1891, 1892)
		assert.ErrorIs(t, err, boom)
		assert.False(t, swapped)
	})
}

// ==================== DeactivateByType SQL ====================

func TestGormFiscalSequenceRepository_DeactivateByType(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormFiscalSequenceRepository(db.DB)
	tenantID := uuid.New()

	mock.ExpectExec(`UPDATE "fiscal_sequences" SET "is_active"=\$1,"updated_at"=\$2,"version"=version \+ 1 ` +
		`WHERE \(?tenant_id = \$3 AND document_type = \$4 AND is_active = \$5\)?`).
		WithArgs(false, sqlmock.AnyArg(), tenantID, "credit-fiscal", true).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.DeactivateByType(context.Background(), tenantID, "credit-fiscal"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
