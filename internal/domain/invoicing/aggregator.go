package invoicing

import (
	"slices"
	"time"

	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// FiscalDocument is the report-relevant view of an invoice or supplier bill
type FiscalDocument struct {
	ID           uuid.UUID
	DocumentType DocumentType
	FiscalNumber string
	Currency     valueobject.Currency
	ExchangeRate decimal.Decimal
	Total        decimal.Decimal
	TaxAmount    decimal.Decimal
	IssueDate    time.Time
	Cancelled    bool
	Issued       bool
}

// counts reports whether the document belongs in the period's report
func (d FiscalDocument) counts(period Period, loc *time.Location) bool {
	return d.Issued && !d.Cancelled && period.Contains(d.IssueDate, loc)
}

// normalized returns total and tax converted to the report currency
func (d FiscalDocument) normalized(currency valueobject.Currency) (total, tax decimal.Decimal, err error) {
	t, err := valueobject.NewMoney(d.Total, d.Currency)
	if err != nil {
		return total, tax, errorf(ErrCurrencyMismatch, "document %s: %v", d.FiscalNumber, err)
	}
	x, _ := valueobject.NewMoney(d.TaxAmount, d.Currency)

	tc, err := t.Convert(currency, d.ExchangeRate)
	if err != nil {
		return total, tax, errorf(ErrCurrencyMismatch, "document %s is in %s without an exchange rate to %s", d.FiscalNumber, d.Currency, currency)
	}
	xc, _ := x.Convert(currency, d.ExchangeRate)
	return tc.Amount(), xc.Amount(), nil
}

// AggregateDocuments summarises documents into report figures. Documents that
// are cancelled, never issued, or outside the period are skipped. The result
// depends only on the set of documents, not their order.
func AggregateDocuments(period Period, reportType ReportType, currency valueobject.Currency, loc *time.Location, docs []FiscalDocument) (ReportFigures, error) {
	if !reportType.IsValid() {
		return ReportFigures{}, invalidInput("unknown report type %q", reportType)
	}
	if !currency.IsValid() {
		return ReportFigures{}, errorf(ErrCurrencyMismatch, "unsupported report currency %q", currency)
	}
	if loc == nil {
		loc = time.UTC
	}

	included := lo.Filter(docs, func(d FiscalDocument, _ int) bool { return d.counts(period, loc) })
	byType := lo.GroupBy(included, func(d FiscalDocument) DocumentType { return d.DocumentType })

	types := lo.Keys(byType)
	slices.Sort(types)

	figures := ReportFigures{
		Period:      period,
		ReportType:  reportType,
		Currency:    currency,
		Groups:      make([]ReportGroup, 0, len(types)),
		TotalAmount: decimal.Zero,
		TotalTax:    decimal.Zero,
	}
	for _, docType := range types {
		group := ReportGroup{
			DocumentType: docType,
			Code:         docType.Code(),
			TotalAmount:  decimal.Zero,
			TaxAmount:    decimal.Zero,
		}
		for _, d := range byType[docType] {
			total, tax, err := d.normalized(currency)
			if err != nil {
				return ReportFigures{}, err
			}
			group.Records++
			group.TotalAmount = group.TotalAmount.Add(total)
			group.TaxAmount = group.TaxAmount.Add(tax)
		}
		figures.Groups = append(figures.Groups, group)
		figures.TotalRecords += group.Records
		figures.TotalAmount = figures.TotalAmount.Add(group.TotalAmount)
		figures.TotalTax = figures.TotalTax.Add(group.TaxAmount)
	}
	return figures, nil
}

// TaxBalance is tax collected on sales minus tax paid on purchases for a period
type TaxBalance struct {
	Period       Period
	Currency     valueobject.Currency
	TaxCollected decimal.Decimal
	TaxPaid      decimal.Decimal
	Balance      decimal.Decimal
}

// ComputeTaxBalance derives the balance from a 607 and a 606 of the same period.
// The balance is computed on demand and never stored.
func ComputeTaxBalance(sales, purchases ReportFigures) (TaxBalance, error) {
	if sales.ReportType != ReportTypeSales || purchases.ReportType != ReportTypePurchases {
		return TaxBalance{}, invalidInput("tax balance needs a %s and a %s report", ReportTypeSales, ReportTypePurchases)
	}
	if sales.Period != purchases.Period {
		return TaxBalance{}, errorf(ErrInvalidPeriod, "reports cover %s and %s", sales.Period, purchases.Period)
	}
	if sales.Currency != purchases.Currency {
		return TaxBalance{}, errorf(ErrCurrencyMismatch, "reports are in %s and %s", sales.Currency, purchases.Currency)
	}
	return TaxBalance{
		Period:       sales.Period,
		Currency:     sales.Currency,
		TaxCollected: sales.TotalTax,
		TaxPaid:      purchases.TotalTax,
		Balance:      sales.TotalTax.Sub(purchases.TotalTax),
	}, nil
}
