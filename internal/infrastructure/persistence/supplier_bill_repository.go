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

// GormSupplierBillRepository implements invoicing.SupplierBillRepository using GORM
type GormSupplierBillRepository struct {
	db *gorm.DB
}

// NewGormSupplierBillRepository creates a new GormSupplierBillRepository
func NewGormSupplierBillRepository(db *gorm.DB) *GormSupplierBillRepository {
	return &GormSupplierBillRepository{db: db}
}

// FindByIDForTenant finds a bill by ID within a tenant
func (r *GormSupplierBillRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.SupplierBill, error) {
	var model models.SupplierBillModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant returns one page of bills.
// Filters["supplier_tax_id"] and Filters["expense_type"] narrow the listing.
func (r *GormSupplierBillRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]invoicing.SupplierBill, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SupplierBillModel{}).Where("tenant_id = ?", tenantID)
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(supplier_name) LIKE ? OR LOWER(fiscal_number) LIKE ?", pattern, pattern)
	}
	for key, value := range filter.Filters {
		switch key {
		case "supplier_tax_id":
			query = query.Where("supplier_tax_id = ?", value)
		case "expense_type":
			query = query.Where("expense_type = ?", value)
		}
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.SupplierBillModel
	if err := applyPage(query, filter, SupplierBillSortFields, "issue_date").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return billsToDomain(rows), total, nil
}

// FindIssuedBetween returns bills issued in [from, to), cancelled ones included
func (r *GormSupplierBillRepository) FindIssuedBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]invoicing.SupplierBill, error) {
	var rows []models.SupplierBillModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND issue_date >= ? AND issue_date < ?", tenantID, from, to).
		Order("issue_date ASC, fiscal_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return billsToDomain(rows), nil
}

// ExistsByFiscalNumber reports whether the supplier's number was already registered
func (r *GormSupplierBillRepository) ExistsByFiscalNumber(ctx context.Context, tenantID uuid.UUID, supplierTaxID, fiscalNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SupplierBillModel{}).
		Where("tenant_id = ? AND supplier_tax_id = ? AND fiscal_number = ?", tenantID, supplierTaxID, fiscalNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a bill
func (r *GormSupplierBillRepository) Save(ctx context.Context, bill *invoicing.SupplierBill) error {
	return translateError(r.db.WithContext(ctx).Save(models.SupplierBillModelFromDomain(bill)).Error)
}

func billsToDomain(rows []models.SupplierBillModel) []invoicing.SupplierBill {
	out := make([]invoicing.SupplierBill, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}
