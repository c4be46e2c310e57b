package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clinicerp/backend/internal/domain/invoicing"
	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const invoiceNumberPrefix = "INV-"

// GormInvoiceRepository implements invoicing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// FindByIDForTenant finds an invoice by ID within a tenant
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Preload("Items", orderedLines).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByInvoiceNumber finds an invoice by its internal number
func (r *GormInvoiceRepository) FindByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, number string) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Preload("Items", orderedLines).
		Where("tenant_id = ? AND invoice_number = ?", tenantID, number).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant returns one page of invoices and the total matching count
func (r *GormInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("tenant_id = ?", tenantID)
	query = r.applyFilter(query, filter).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.InvoiceModel
	if err := applyPage(query, filter.Filter, InvoiceSortFields, "created_at").
		Preload("Items", orderedLines).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return invoicesToDomain(rows), total, nil
}

// FindIssuedBetween returns finalized invoices issued in [from, to), cancelled ones included
func (r *GormInvoiceRepository) FindIssuedBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]invoicing.Invoice, error) {
	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND finalized_at IS NOT NULL AND issue_date >= ? AND issue_date < ?", tenantID, from, to).
		Order("issue_date ASC, fiscal_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return invoicesToDomain(rows), nil
}

// Save creates an invoice or replaces a draft together with its lines
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Save(model).Error; err != nil {
			return translateError(err)
		}
		return replaceInvoiceLines(tx, model)
	})
}

// SaveWithLock updates the invoice only when the stored version still matches.
// On success invoice.Version is advanced to the stored value.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	expected := model.Version
	model.Version = expected + 1
	model.UpdatedAt = time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.InvoiceModel{}).
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
		return replaceInvoiceLines(tx, model)
	})
	if err != nil {
		return err
	}
	invoice.Version = model.Version
	invoice.UpdatedAt = model.UpdatedAt
	return nil
}

// NextInvoiceNumber returns the next internal number, INV-000001 onwards
func (r *GormInvoiceRepository) NextInvoiceNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	return nextDocumentNumber(ctx, r.db, &models.InvoiceModel{}, "invoice_number", tenantID, invoiceNumberPrefix)
}

func (r *GormInvoiceRepository) applyFilter(query *gorm.DB, filter invoicing.InvoiceFilter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(invoice_number) LIKE ? OR LOWER(fiscal_number) LIKE ? OR LOWER(customer_name) LIKE ?",
			pattern, pattern, pattern)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.DocumentType != "" {
		query = query.Where("document_type = ?", filter.DocumentType)
	}
	if filter.IssuedFrom != nil {
		query = query.Where("issue_date >= ?", *filter.IssuedFrom)
	}
	if filter.IssuedTo != nil {
		query = query.Where("issue_date < ?", *filter.IssuedTo)
	}
	if filter.Status != "" {
		now := filter.Now
		if now.IsZero() {
			now = time.Now()
		}
		query = whereDerivedStatus(query, filter.Status, now)
	}
	return query
}

// whereDerivedStatus expresses Invoice.Status as SQL so listings can filter on it.
// The branches mirror the precedence cancelled, draft, paid, overdue, partial, pending.
func whereDerivedStatus(query *gorm.DB, status invoicing.InvoiceStatus, now time.Time) *gorm.DB {
	const (
		open    = "cancelled_at IS NULL AND finalized_at IS NOT NULL"
		unpaid  = open + " AND paid_amount < total"
		overdue = "due_date IS NOT NULL AND due_date < ?"
		onTime  = "(due_date IS NULL OR due_date >= ?)"
	)
	switch status {
	case invoicing.InvoiceStatusCancelled:
		return query.Where("cancelled_at IS NOT NULL")
	case invoicing.InvoiceStatusDraft:
		return query.Where("cancelled_at IS NULL AND finalized_at IS NULL")
	case invoicing.InvoiceStatusPaid:
		return query.Where(open + " AND paid_amount >= total")
	case invoicing.InvoiceStatusOverdue:
		return query.Where(unpaid+" AND "+overdue, now)
	case invoicing.InvoiceStatusPartial:
		return query.Where(unpaid+" AND paid_amount > 0 AND "+onTime, now)
	case invoicing.InvoiceStatusPending:
		return query.Where(unpaid+" AND paid_amount <= 0 AND "+onTime, now)
	default:
		return query.Where("1 = 0")
	}
}

func replaceInvoiceLines(tx *gorm.DB, model *models.InvoiceModel) error {
	keep := make([]uuid.UUID, len(model.Items))
	for i, item := range model.Items {
		keep[i] = item.ID
	}
	stale := tx.Where("invoice_id = ?", model.ID)
	if len(keep) > 0 {
		stale = stale.Where("id NOT IN ?", keep)
	}
	if err := stale.Delete(&models.InvoiceLineModel{}).Error; err != nil {
		return err
	}
	for i := range model.Items {
		if err := tx.Save(&model.Items[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func invoicesToDomain(rows []models.InvoiceModel) []invoicing.Invoice {
	out := make([]invoicing.Invoice, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// nextDocumentNumber scans the highest prefix-NNNNNN number of a tenant and adds one.
// Numbers grow past six digits, so longer values sort first.
// Concurrent callers may compute the same value; the unique index rejects the loser.
func nextDocumentNumber(ctx context.Context, db *gorm.DB, model any, column string, tenantID uuid.UUID, prefix string) (string, error) {
	var last []string
	err := db.WithContext(ctx).
		Model(model).
		Where("tenant_id = ? AND "+column+" LIKE ?", tenantID, prefix+"%").
		Order("LENGTH(" + column + ") DESC").
		Order(column + " DESC").
		Limit(1).
		Pluck(column, &last).Error
	if err != nil {
		return "", err
	}

	next := int64(1)
	if len(last) > 0 {
		var n int64
		if _, scanErr := fmt.Sscanf(strings.TrimPrefix(last[0], prefix), "%d", &n); scanErr == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%06d", prefix, next), nil
}

// translateError maps driver errors onto the shared domain errors
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.ErrAlreadyExists
	default:
		return err
	}
}
