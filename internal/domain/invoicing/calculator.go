package invoicing

import (
	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DiscountType selects how a line discount is interpreted
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// IsValid checks if the discount type is known
func (t DiscountType) IsValid() bool {
	return t == DiscountTypePercentage || t == DiscountTypeFixed
}

var hundred = decimal.NewFromInt(100)

// LineInput is the priced content of one line before it becomes a LineItem
type LineInput struct {
	Description  string
	Quantity     decimal.Decimal
	UnitPrice    valueobject.Money
	Discount     decimal.Decimal
	DiscountType DiscountType
}

// DocumentTotals are the document-level figures, each rounded to the minor unit.
// Total always equals Subtotal - DiscountTotal + TaxAmount exactly.
type DocumentTotals struct {
	Subtotal      valueobject.Money
	DiscountTotal valueobject.Money
	TaxAmount     valueobject.Money
	Total         valueobject.Money
}

// lineBreakdown returns the unrounded gross and discount of a line
func lineBreakdown(quantity decimal.Decimal, unitPrice valueobject.Money, discount decimal.Decimal, discountType DiscountType) (gross, off valueobject.Money, err error) {
	if !quantity.IsPositive() {
		return gross, off, errorf(ErrInvalidAmount, "quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return gross, off, errorf(ErrInvalidAmount, "unit price cannot be negative")
	}
	if discount.IsNegative() {
		return gross, off, errorf(ErrInvalidAmount, "discount cannot be negative")
	}

	gross = unitPrice.Multiply(quantity)
	switch discountType {
	case DiscountTypePercentage, "":
		if discount.GreaterThan(hundred) {
			return gross, off, errorf(ErrInvalidAmount, "percentage discount must be between 0 and 100")
		}
		off = gross.Percent(discount)
	case DiscountTypeFixed:
		fixed, _ := valueobject.NewMoney(discount, unitPrice.Currency())
		if c, _ := fixed.Cmp(gross); c > 0 {
			fixed = gross
		}
		off = fixed
	default:
		return gross, off, invalidInput("unknown discount type %q", discountType)
	}
	return gross, off, nil
}

// ComputeLineTotal returns the discounted, unrounded amount of a line.
// A fixed discount larger than the line gross is clamped so the total is never negative.
func ComputeLineTotal(quantity decimal.Decimal, unitPrice valueobject.Money, discount decimal.Decimal, discountType DiscountType) (valueobject.Money, error) {
	gross, off, err := lineBreakdown(quantity, unitPrice, discount, discountType)
	if err != nil {
		return valueobject.Money{}, err
	}
	return gross.Subtract(off)
}

// ComputeDocumentTotals aggregates lines priced in currency and applies taxRate
// (a percentage) to the discounted subtotal. Rounding happens once per figure,
// half-up to the minor unit; line order does not affect the result.
func ComputeDocumentTotals(currency valueobject.Currency, lines []LineInput, taxRate decimal.Decimal) (DocumentTotals, error) {
	if !currency.IsValid() {
		return DocumentTotals{}, errorf(ErrCurrencyMismatch, "unsupported currency %q", currency)
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(hundred) {
		return DocumentTotals{}, errorf(ErrInvalidAmount, "tax rate must be between 0 and 100")
	}

	subtotal := valueobject.Zero(currency)
	discounts := valueobject.Zero(currency)
	for i, line := range lines {
		if line.UnitPrice.Currency() != currency {
			return DocumentTotals{}, errorf(ErrCurrencyMismatch, "line %d is priced in %s, document is %s", i+1, line.UnitPrice.Currency(), currency)
		}
		gross, off, err := lineBreakdown(line.Quantity, line.UnitPrice, line.Discount, line.DiscountType)
		if err != nil {
			return DocumentTotals{}, err
		}
		subtotal, _ = subtotal.Add(gross)
		discounts, _ = discounts.Add(off)
	}

	subtotal = subtotal.RoundToMinor()
	discounts = discounts.RoundToMinor()
	taxable, _ := subtotal.Subtract(discounts)
	tax := taxable.Percent(taxRate).RoundToMinor()
	total, _ := taxable.Add(tax)

	return DocumentTotals{
		Subtotal:      subtotal,
		DiscountTotal: discounts,
		TaxAmount:     tax,
		Total:         total,
	}, nil
}
