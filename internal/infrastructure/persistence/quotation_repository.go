package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const quotationNumberPrefix = "COT-"

// GormQuotationRepository implements invoicing.QuotationRepository using GORM
type GormQuotationRepository struct {
	db *gorm.DB
}

// NewGormQuotationRepository creates a new GormQuotationRepository
func NewGormQuotationRepository(db *gorm.DB) *GormQuotationRepository {
	return &GormQuotationRepository{db: db}
}

// FindByIDForTenant finds a quotation by ID within a tenant
func (r *GormQuotationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Quotation, error) {
	var model models.QuotationModel
	if err := r.db.WithContext(ctx).
		Preload("Items", orderedLines).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant returns one page of quotations. Filters["stage"] narrows by stage.
func (r *GormQuotationRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]invoicing.Quotation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.QuotationModel{}).Where("tenant_id = ?", tenantID)
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(quotation_number) LIKE ? OR LOWER(customer_name) LIKE ?", pattern, pattern)
	}
	if stage, ok := filter.Filters["stage"].(string); ok && stage != "" {
		query = query.Where("stage = ?", stage)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.QuotationModel
	if err := applyPage(query, filter, QuotationSortFields, "created_at").
		Preload("Items", orderedLines).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]invoicing.Quotation, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Save creates a quotation or replaces it together with its lines
func (r *GormQuotationRepository) Save(ctx context.Context, quotation *invoicing.Quotation) error {
	model := models.QuotationModelFromDomain(quotation)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Save(model).Error; err != nil {
			return translateError(err)
		}
		return replaceQuotationLines(tx, model)
	})
}

// SaveWithLock updates the quotation only when the stored version still matches
func (r *GormQuotationRepository) SaveWithLock(ctx context.Context, quotation *invoicing.Quotation) error {
	model := models.QuotationModelFromDomain(quotation)
	expected := model.Version
	model.Version = expected + 1
	model.UpdatedAt = time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.QuotationModel{}).
			Where("id = ? AND tenant_id = ? AND version = ?", model.ID, model.TenantID, expected).
			Select("*").
			Omit("id", "tenant_id", "created_at", "created_by", "Items").
			Updates(model)
		if result.Error != nil {
			return translateError(result.Error)
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}
		return replaceQuotationLines(tx, model)
	})
	if err != nil {
		return err
	}
	quotation.Version = model.Version
	quotation.UpdatedAt = model.UpdatedAt
	return nil
}

// NextQuotationNumber returns the next quotation number, COT-000001 onwards
func (r *GormQuotationRepository) NextQuotationNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	return nextDocumentNumber(ctx, r.db, &models.QuotationModel{}, "quotation_number", tenantID, quotationNumberPrefix)
}

func replaceQuotationLines(tx *gorm.DB, model *models.QuotationModel) error {
	keep := make([]uuid.UUID, len(model.Items))
	for i, item := range model.Items {
		keep[i] = item.ID
	}
	stale := tx.Where("quotation_id = ?", model.ID)
	if len(keep) > 0 {
		stale = stale.Where("id NOT IN ?", keep)
	}
	if err := stale.Delete(&models.QuotationLineModel{}).Error; err != nil {
		return err
	}
	for i := range model.Items {
		if err := tx.Save(&model.Items[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
