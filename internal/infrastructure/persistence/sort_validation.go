package persistence

import (
	"strings"

	"github.com/clinicerp/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder normalizes the direction to ASC or DESC, defaulting to DESC
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted, defaultField otherwise
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// InvoiceSortFields contains allowed sort fields for invoices
var InvoiceSortFields = map[string]bool{
	"created_at":     true,
	"updated_at":     true,
	"invoice_number": true,
	"fiscal_number":  true,
	"customer_name":  true,
	"issue_date":     true,
	"due_date":       true,
	"total":          true,
	"paid_amount":    true,
}

// QuotationSortFields contains allowed sort fields for quotations
var QuotationSortFields = map[string]bool{
	"created_at":       true,
	"updated_at":       true,
	"quotation_number": true,
	"customer_name":    true,
	"valid_until":      true,
	"stage":            true,
	"total":            true,
}

// SupplierBillSortFields contains allowed sort fields for supplier bills
var SupplierBillSortFields = map[string]bool{
	"created_at":    true,
	"issue_date":    true,
	"supplier_name": true,
	"fiscal_number": true,
	"total":         true,
}

// PeriodReportSortFields contains allowed sort fields for period reports
var PeriodReportSortFields = map[string]bool{
	"created_at":   true,
	"period":       true,
	"report_type":  true,
	"status":       true,
	"generated_at": true,
}

// applyPage orders by a whitelisted column and cuts one page
func applyPage(query *gorm.DB, filter shared.Filter, allowed map[string]bool, defaultField string) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowed, defaultField)
	return query.
		Order(field + " " + ValidateSortOrder(filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.Limit())
}
