package invoicing

import (
	"time"

	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Settings are the invoicing defaults loaded from the [invoicing] config section
type Settings struct {
	DefaultCurrency      valueobject.Currency
	DefaultTaxRate       decimal.Decimal
	DefaultDueDays       int
	AllocationMaxRetries int
	PaymentMaxRetries    int
	IdempotencyTTL       time.Duration
	// Location is where period boundaries and due dates are evaluated
	Location *time.Location
}

// DefaultSettings returns the DGII defaults: DOP, ITBIS 18%, 30 day terms
func DefaultSettings() Settings {
	return Settings{
		DefaultCurrency:      valueobject.DOP,
		DefaultTaxRate:       decimal.NewFromInt(18),
		DefaultDueDays:       30,
		AllocationMaxRetries: 10,
		PaymentMaxRetries:    5,
		IdempotencyTTL:       24 * time.Hour,
		Location:             time.UTC,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if !s.DefaultCurrency.IsValid() {
		s.DefaultCurrency = d.DefaultCurrency
	}
	if s.AllocationMaxRetries <= 0 {
		s.AllocationMaxRetries = d.AllocationMaxRetries
	}
	if s.PaymentMaxRetries <= 0 {
		s.PaymentMaxRetries = d.PaymentMaxRetries
	}
	if s.IdempotencyTTL <= 0 {
		s.IdempotencyTTL = d.IdempotencyTTL
	}
	if s.Location == nil {
		s.Location = d.Location
	}
	return s
}

// Clock returns the current instant; tests replace it
type Clock func() time.Time
