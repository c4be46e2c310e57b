package persistence

import (
	"context"
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormFiscalSequenceRepository implements invoicing.FiscalSequenceRepository using GORM
type GormFiscalSequenceRepository struct {
	db *gorm.DB
}

// NewGormFiscalSequenceRepository creates a new GormFiscalSequenceRepository
func NewGormFiscalSequenceRepository(db *gorm.DB) *GormFiscalSequenceRepository {
	return &GormFiscalSequenceRepository{db: db}
}

// FindActive returns the active range of a document type
func (r *GormFiscalSequenceRepository) FindActive(ctx context.Context, tenantID uuid.UUID, documentType invoicing.DocumentType) (*invoicing.FiscalSequence, error) {
	var model models.FiscalSequenceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND document_type = ? AND is_active = ?", tenantID, documentType, true).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a range by ID within a tenant
func (r *GormFiscalSequenceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.FiscalSequence, error) {
	var model models.FiscalSequenceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists the ranges of a tenant grouped by document type, newest first
func (r *GormFiscalSequenceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]invoicing.FiscalSequence, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var rows []models.FiscalSequenceModel
	if err := query.Order("document_type ASC, created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]invoicing.FiscalSequence, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a range. CurrentNumber is only moved by CompareAndAdvance
// once the row exists, so Save never writes it over an existing row.
func (r *GormFiscalSequenceRepository) Save(ctx context.Context, sequence *invoicing.FiscalSequence) error {
	model := models.FiscalSequenceModelFromDomain(sequence)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.FiscalSequenceModel{}).Where("id = ?", model.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return translateError(tx.Create(model).Error)
		}
		model.UpdatedAt = time.Now()
		return tx.Model(&models.FiscalSequenceModel{}).
			Where("id = ? AND tenant_id = ?", model.ID, model.TenantID).
			Updates(map[string]any{
				"is_active":       model.IsActive,
				"alert_threshold": model.AlertThreshold,
				"description":     model.Description,
				"expiration_date": model.ExpirationDate,
				"updated_at":      model.UpdatedAt,
			}).Error
	})
}

// CompareAndAdvance moves current_number from expected to next in one statement.
// The row must still be active; a false result means another writer won.
func (r *GormFiscalSequenceRepository) CompareAndAdvance(ctx context.Context, id uuid.UUID, expected, next int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.FiscalSequenceModel{}).
		Where("id = ? AND current_number = ? AND is_active = ?", id, expected, true).
		Updates(map[string]any{
			"current_number": next,
			"version":        gorm.Expr("version + 1"),
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DeactivateByType retires every active range of a document type
func (r *GormFiscalSequenceRepository) DeactivateByType(ctx context.Context, tenantID uuid.UUID, documentType invoicing.DocumentType) error {
	return r.db.WithContext(ctx).
		Model(&models.FiscalSequenceModel{}).
		Where("tenant_id = ? AND document_type = ? AND is_active = ?", tenantID, documentType, true).
		Updates(map[string]any{
			"is_active":  false,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		}).Error
}

// ListTenantIDs returns every tenant that owns at least one range
func (r *GormFiscalSequenceRepository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.FiscalSequenceModel{}).
		Distinct("tenant_id").
		Order("tenant_id").
		Pluck("tenant_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
