package invoicing

import (
	"testing"
	"time"

	"github.com/clinicerp/backend/internal/domain/shared"
	"github.com/clinicerp/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayment(t *testing.T) {
	t.Run("valid payment", func(t *testing.T) {
		p, err := NewPayment(uuid.New(), uuid.New(), dop("400"), PaymentMethodCash, " REC-1 ", "key-1", time.Now())
		require.NoError(t, err)
		assert.Equal(t, PaymentKindPayment, p.Kind)
		assert.Equal(t, "REC-1", p.Reference)
		assert.Equal(t, "400.00", p.Money().StringFixed())
	})

	t.Run("rejects sub-cent amounts", func(t *testing.T) {
		_, err := NewPayment(uuid.New(), uuid.New(), dop("10.005"), PaymentMethodCash, "", "", time.Now())
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("rejects non positive", func(t *testing.T) {
		_, err := NewPayment(uuid.New(), uuid.New(), dop("0"), PaymentMethodCash, "", "", time.Now())
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("rejects unknown method", func(t *testing.T) {
		_, err := NewPayment(uuid.New(), uuid.New(), dop("1"), PaymentMethod("crypto"), "", "", time.Now())
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestPayment_NewVoid(t *testing.T) {
	original, err := NewPayment(uuid.New(), uuid.New(), dop("250.50"), PaymentMethodCreditCard, "AUTH-9", "", time.Now())
	require.NoError(t, err)

	void, err := original.NewVoid("cargo duplicado", "", time.Now())
	require.NoError(t, err)
	assert.True(t, void.IsVoid())
	assert.Equal(t, original.ID, *void.ReversesPaymentID)
	assert.Equal(t, "-250.50", void.Money().StringFixed())

	_, err = void.NewVoid("again", "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = original.NewVoid("", "", time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestSumPayments(t *testing.T) {
	inv := uuid.New()
	tenant := uuid.New()
	p1, _ := NewPayment(tenant, inv, dop("400"), PaymentMethodCash, "", "", time.Now())
	p2, _ := NewPayment(tenant, inv, dop("600"), PaymentMethodCash, "", "", time.Now())
	v1, _ := p1.NewVoid("error", "", time.Now())

	sum, err := SumPayments(valueobject.DOP, []Payment{*p1, *p2, *v1})
	require.NoError(t, err)
	assert.Equal(t, "600.00", sum.StringFixed())

	usd, _ := NewPayment(tenant, inv, valueobject.MustMoney("1", valueobject.USD), PaymentMethodCash, "", "", time.Now())
	_, err = SumPayments(valueobject.DOP, []Payment{*p1, *usd})
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestNewSupplierBill(t *testing.T) {
	in := SupplierBillInput{
		SupplierName:  "Distribuidora Dental SRL",
		SupplierTaxID: "130123456",
		FiscalNumber:  "b0100000077",
		DocumentType:  DocumentTypeCreditFiscal,
		ExpenseType:   "09",
		Subtotal:      dop("1000"),
		TaxAmount:     dop("180"),
		IssueDate:     time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	}

	bill, err := NewSupplierBill(uuid.New(), in)
	require.NoError(t, err)
	assert.Equal(t, "B0100000077", bill.FiscalNumber)
	assert.Equal(t, "1180.00", bill.Total.StringFixed(2))
	assert.Equal(t, "Cost of sales", bill.ExpenseType.Label())

	require.NoError(t, bill.Cancel("anulada por proveedor", time.Now()))
	assert.True(t, bill.FiscalDocument().Cancelled)
	assert.ErrorIs(t, bill.Cancel("x", time.Now()), ErrInvalidTransition)

	t.Run("mixed currencies", func(t *testing.T) {
		bad := in
		bad.TaxAmount = valueobject.MustMoney("18", valueobject.USD)
		_, err := NewSupplierBill(uuid.New(), bad)
		assert.ErrorIs(t, err, ErrCurrencyMismatch)
	})

	t.Run("unknown expense type", func(t *testing.T) {
		bad := in
		bad.ExpenseType = "99"
		_, err := NewSupplierBill(uuid.New(), bad)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}
