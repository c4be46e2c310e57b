package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string returns DESC", "", "DESC"},
		{"asc lowercase returns ASC", "asc", "ASC"},
		{"whitespace around ASC returns ASC", "  asc  ", "ASC"},
		{"invalid value returns DESC", "sideways", "DESC"},
		{"injection attempt returns DESC", "ASC; DROP TABLE invoices;--", "DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortOrder(tt.input))
		})
	}
}

func TestValidateSortField(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string returns default", "", "created_at"},
		{"whitelisted field", "fiscal_number", "fiscal_number"},
		{"whitespace is trimmed", "  due_date ", "due_date"},
		{"case sensitive", "TOTAL", "created_at"},
		{"unknown column", "tenant_id", "created_at"},
		{"injection attempt", "total; DROP TABLE payments;--", "created_at"},
		{"subselect", "total, (SELECT 1)", "created_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortField(tt.input, InvoiceSortFields, "created_at"))
		})
	}
}

func TestSortFieldsWhitelists(t *testing.T) {
	whitelists := map[string]map[string]bool{
		"InvoiceSortFields":      InvoiceSortFields,
		"QuotationSortFields":    QuotationSortFields,
		"SupplierBillSortFields": SupplierBillSortFields,
		"PeriodReportSortFields": PeriodReportSortFields,
	}

	for name, whitelist := range whitelists {
		t.Run(name+" allows created_at", func(t *testing.T) {
			assert.True(t, whitelist["created_at"], "%s should contain created_at", name)
		})
		t.Run(name+" never exposes tenant_id", func(t *testing.T) {
			assert.False(t, whitelist["tenant_id"])
		})
	}
}
