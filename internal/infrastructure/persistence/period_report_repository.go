package persistence

import (
	"context"
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPeriodReportRepository implements invoicing.PeriodReportRepository using GORM
type GormPeriodReportRepository struct {
	db *gorm.DB
}

// NewGormPeriodReportRepository creates a new GormPeriodReportRepository
func NewGormPeriodReportRepository(db *gorm.DB) *GormPeriodReportRepository {
	return &GormPeriodReportRepository{db: db}
}

// FindByPeriod returns the report of a tenant, month and type
func (r *GormPeriodReportRepository) FindByPeriod(ctx context.Context, tenantID uuid.UUID, period invoicing.Period, reportType invoicing.ReportType) (*invoicing.PeriodReport, error) {
	var model models.PeriodReportModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND period = ? AND report_type = ?", tenantID, period.String(), reportType).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a report by ID within a tenant
func (r *GormPeriodReportRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.PeriodReport, error) {
	var model models.PeriodReportModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant returns one page of reports, newest period first by default
func (r *GormPeriodReportRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.ReportFilter) ([]invoicing.PeriodReport, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PeriodReportModel{}).Where("tenant_id = ?", tenantID)
	if filter.ReportType != "" {
		query = query.Where("report_type = ?", filter.ReportType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.PeriodReportModel
	if err := applyPage(query, filter.Filter, PeriodReportSortFields, "period").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]invoicing.PeriodReport, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Save inserts a newly generated report. A second report for the same
// tenant, month and type yields shared.ErrAlreadyExists.
func (r *GormPeriodReportRepository) Save(ctx context.Context, report *invoicing.PeriodReport) error {
	return translateError(r.db.WithContext(ctx).Create(models.PeriodReportModelFromDomain(report)).Error)
}

// SaveWithLock updates the report only when the stored version still matches
func (r *GormPeriodReportRepository) SaveWithLock(ctx context.Context, report *invoicing.PeriodReport) error {
	model := models.PeriodReportModelFromDomain(report)
	expected := model.Version
	model.Version = expected + 1
	model.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.PeriodReportModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", model.ID, model.TenantID, expected).
		Select("*").
		Omit("id", "tenant_id", "created_at", "created_by", "period", "report_type").
		Updates(model)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	report.Version = model.Version
	report.UpdatedAt = model.UpdatedAt
	return nil
}
