package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrencyValid(t *testing.T) {
	for _, c := range []Currency{CurrencyBTC, CurrencyLTC, CurrencyETH, CurrencySOL, CurrencyUSDT} {
		assert.True(t, c.Valid(), "%s", c)
	}
	assert.False(t, Currency("DOGE").Valid())
	assert.False(t, Currency("").Valid())
}

func TestNormalizeRoundsToNativePrecision(t *testing.T) {
	// 9th decimal noise on a BTC amount disappears.
	got := CurrencyBTC.Normalize(d("0.000999999999"))
	assert.True(t, got.Equal(d("0.001")), "got %s", got)

	// USDT keeps 6 decimals.
	got = CurrencyUSDT.Normalize(d("12.3456789"))
	assert.True(t, got.Equal(d("12.345679")), "got %s", got)

	// Unknown currency passes through untouched.
	raw := d("1.23456789012345")
	assert.True(t, Currency("XYZ").Normalize(raw).Equal(raw))
}

func TestMinConfirmationsPerCurrency(t *testing.T) {
	assert.Equal(t, 1, CurrencyBTC.MinConfirmations())
	assert.Equal(t, 3, CurrencyLTC.MinConfirmations())
	assert.Equal(t, 12, CurrencyETH.MinConfirmations())
	assert.Equal(t, 32, CurrencySOL.MinConfirmations())
	assert.Equal(t, 19, CurrencyUSDT.MinConfirmations())

	info, err := CurrencyETH.Info()
	require.NoError(t, err)
	assert.Equal(t, int32(18), info.Decimals)

	_, err = Currency("XYZ").Info()
	assert.Error(t, err)
}

func TestInvoiceOutstanding(t *testing.T) {
	inv := &Invoice{
		Currency:   CurrencyBTC,
		AmountDue:  d("0.00100000"),
		AmountPaid: d("0.00040000"),
	}
	assert.True(t, inv.Outstanding().Equal(d("0.0006")))

	inv.AmountPaid = d("0.00150000")
	assert.True(t, inv.Outstanding().IsZero(), "overpaid invoice owes nothing")
}
