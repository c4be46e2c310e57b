package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.RequireFromString("100.50"), DOP)
		require.NoError(t, err)
		assert.Equal(t, DOP, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.RequireFromString("100.5")))
	})

	t.Run("rejects unsupported currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromInt(100), "CNY")
		assert.Error(t, err)
	})

	t.Run("rejects empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromInt(100), "")
		assert.Error(t, err)
	})
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" usd ")
	require.NoError(t, err)
	assert.Equal(t, USD, c)

	_, err = ParseCurrency("EUR")
	assert.Error(t, err)
}

func TestMoneyAdd(t *testing.T) {
	t.Run("adds same currency", func(t *testing.T) {
		result, err := MustMoney("100.50", DOP).Add(MustMoney("50.25", DOP))
		require.NoError(t, err)
		assert.Equal(t, "150.75", result.StringFixed())
	})

	t.Run("fails for different currencies", func(t *testing.T) {
		_, err := MustMoney("100", DOP).Add(MustMoney("50", USD))
		assert.ErrorIs(t, err, ErrCurrencyMismatch)
	})
}

func TestMoneySubtract(t *testing.T) {
	result, err := MustMoney("1000.00", DOP).Subtract(MustMoney("400.00", DOP))
	require.NoError(t, err)
	assert.Equal(t, "600.00", result.StringFixed())

	_, err = MustMoney("1", USD).Subtract(MustMoney("1", DOP))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoneyRoundToMinor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"76.2714", "76.27"},
		{"76.275", "76.28"},
		{"0.005", "0.01"},
		{"0.0049", "0.00"},
		{"10", "10.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MustMoney(tt.in, DOP).RoundToMinor().StringFixed())
		})
	}
}

func TestMoneyPercent(t *testing.T) {
	tax := MustMoney("423.73", DOP).Percent(decimal.NewFromInt(18)).RoundToMinor()
	assert.Equal(t, "76.27", tax.StringFixed())
}

func TestMoneyConvert(t *testing.T) {
	t.Run("same currency is identity", func(t *testing.T) {
		m := MustMoney("12.34", DOP)
		out, err := m.Convert(DOP, decimal.Zero)
		require.NoError(t, err)
		assert.True(t, out.Equals(m))
	})

	t.Run("foreign amount uses rate", func(t *testing.T) {
		out, err := MustMoney("100.00", USD).Convert(DOP, decimal.RequireFromString("58.4512"))
		require.NoError(t, err)
		assert.Equal(t, DOP, out.Currency())
		assert.Equal(t, "5845.12", out.StringFixed())
	})

	t.Run("missing rate is a currency mismatch", func(t *testing.T) {
		_, err := MustMoney("100.00", USD).Convert(DOP, decimal.Zero)
		assert.ErrorIs(t, err, ErrCurrencyMismatch)
	})
}

func TestMoneyCmp(t *testing.T) {
	c, err := MustMoney("600.01", DOP).Cmp(MustMoney("600", DOP))
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	_, err = MustMoney("1", DOP).Cmp(MustMoney("1", USD))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoneyJSON(t *testing.T) {
	t.Run("marshals fixed minor units", func(t *testing.T) {
		data, err := json.Marshal(MustMoney("500", DOP))
		require.NoError(t, err)
		assert.JSONEq(t, `{"amount":"500.00","currency":"DOP"}`, string(data))
	})

	t.Run("unmarshals and validates", func(t *testing.T) {
		var m Money
		require.NoError(t, json.Unmarshal([]byte(`{"amount":"76.27","currency":"USD"}`), &m))
		assert.Equal(t, USD, m.Currency())
		assert.Equal(t, "76.27", m.StringFixed())

		err := json.Unmarshal([]byte(`{"amount":"1","currency":"XXX"}`), &m)
		assert.Error(t, err)
	})
}

func TestSum(t *testing.T) {
	total, err := Sum(DOP, MustMoney("400", DOP), MustMoney("600", DOP))
	require.NoError(t, err)
	assert.Equal(t, "1000.00", total.StringFixed())

	_, err = Sum(DOP, MustMoney("400", DOP), MustMoney("1", USD))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}
