package persistence

import (
	"context"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentRepository implements the append-only payment ledger.
// Rows are only ever inserted; voids are new rows.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Create inserts a ledger entry. A reused idempotency key or a second void
// of the same payment trips a unique index and yields shared.ErrAlreadyExists.
func (r *GormPaymentRepository) Create(ctx context.Context, payment *invoicing.Payment) error {
	return translateError(r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(payment)).Error)
}

// FindByIDForTenant finds a ledger entry by ID within a tenant
func (r *GormPaymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Payment, error) {
	return r.first(ctx, "tenant_id = ? AND id = ?", tenantID, id)
}

// FindByIdempotencyKey finds the entry recorded under key
func (r *GormPaymentRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*invoicing.Payment, error) {
	return r.first(ctx, "tenant_id = ? AND idempotency_key = ?", tenantID, key)
}

// FindReversal finds the void entry that reverses paymentID
func (r *GormPaymentRepository) FindReversal(ctx context.Context, tenantID, paymentID uuid.UUID) (*invoicing.Payment, error) {
	return r.first(ctx, "tenant_id = ? AND reverses_payment_id = ?", tenantID, paymentID)
}

// FindByInvoice returns the entries of an invoice in application order
func (r *GormPaymentRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]invoicing.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("applied_at ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]invoicing.Payment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

func (r *GormPaymentRepository) first(ctx context.Context, cond string, args ...any) (*invoicing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).Where(cond, args...).First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}
