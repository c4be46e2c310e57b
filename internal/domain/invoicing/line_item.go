package invoicing

import (
	"strings"

	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one priced line of an invoice or quotation
type LineItem struct {
	ID           uuid.UUID
	Position     int
	Description  string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	Discount     decimal.Decimal
	DiscountType DiscountType
	LineTotal    decimal.Decimal // unrounded, discounted
}

// Input converts the stored line back into calculator input
func (l LineItem) Input(currency valueobject.Currency) LineInput {
	price, _ := valueobject.NewMoney(l.UnitPrice, currency)
	return LineInput{
		Description:  l.Description,
		Quantity:     l.Quantity,
		UnitPrice:    price,
		Discount:     l.Discount,
		DiscountType: l.DiscountType,
	}
}

// Customer is the buyer data copied onto a document
type Customer struct {
	ID    uuid.UUID
	Name  string
	TaxID string
}

// IsSet reports whether a customer has been attached
func (c Customer) IsSet() bool {
	return c.ID != uuid.Nil && strings.TrimSpace(c.Name) != ""
}

// DocumentBody holds the priced content shared by invoices and quotations.
// The stored totals are always the calculator's output for Items and TaxRate.
type DocumentBody struct {
	Currency       valueobject.Currency
	TaxRate        decimal.Decimal
	Items          []LineItem
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
}

func newDocumentBody(currency valueobject.Currency, taxRate decimal.Decimal) (DocumentBody, error) {
	if !currency.IsValid() {
		return DocumentBody{}, errorf(ErrCurrencyMismatch, "unsupported currency %q", currency)
	}
	body := DocumentBody{Currency: currency, TaxRate: taxRate}
	if err := body.reprice(nil, taxRate); err != nil {
		return DocumentBody{}, err
	}
	return body, nil
}

// reprice replaces all lines and recomputes every total
func (b *DocumentBody) reprice(lines []LineInput, taxRate decimal.Decimal) error {
	for i, line := range lines {
		if strings.TrimSpace(line.Description) == "" {
			return invalidInput("line %d: description cannot be empty", i+1)
		}
	}
	totals, err := ComputeDocumentTotals(b.Currency, lines, taxRate)
	if err != nil {
		return err
	}

	items := make([]LineItem, 0, len(lines))
	for i, line := range lines {
		lineTotal, err := ComputeLineTotal(line.Quantity, line.UnitPrice, line.Discount, line.DiscountType)
		if err != nil {
			return err
		}
		discountType := line.DiscountType
		if discountType == "" {
			discountType = DiscountTypePercentage
		}
		items = append(items, LineItem{
			ID:           uuid.New(),
			Position:     i + 1,
			Description:  strings.TrimSpace(line.Description),
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice.Amount(),
			Discount:     line.Discount,
			DiscountType: discountType,
			LineTotal:    lineTotal.Amount(),
		})
	}

	b.Items = items
	b.TaxRate = taxRate
	b.Subtotal = totals.Subtotal.Amount()
	b.DiscountAmount = totals.DiscountTotal.Amount()
	b.TaxAmount = totals.TaxAmount.Amount()
	b.Total = totals.Total.Amount()
	return nil
}

// Inputs returns the lines in calculator form
func (b *DocumentBody) Inputs() []LineInput {
	inputs := make([]LineInput, len(b.Items))
	for i, item := range b.Items {
		inputs[i] = item.Input(b.Currency)
	}
	return inputs
}

// TotalMoney returns the document total as Money
func (b *DocumentBody) TotalMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(b.Total, b.Currency)
	return m
}

// TaxMoney returns the document tax as Money
func (b *DocumentBody) TaxMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(b.TaxAmount, b.Currency)
	return m
}
