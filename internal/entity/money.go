package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyBTC  Currency = "BTC"
	CurrencyLTC  Currency = "LTC"
	CurrencyETH  Currency = "ETH"
	CurrencySOL  Currency = "SOL"
	CurrencyUSDT Currency = "USDT"
)

// CurrencyInfo describes how amounts in a currency are compared and when a
// transaction counts as final.
type CurrencyInfo struct {
	Decimals         int32
	MinConfirmations int
}

var currencies = map[Currency]CurrencyInfo{
	CurrencyBTC:  {Decimals: 8, MinConfirmations: 1},
	CurrencyLTC:  {Decimals: 8, MinConfirmations: 3},
	CurrencyETH:  {Decimals: 18, MinConfirmations: 12},
	CurrencySOL:  {Decimals: 9, MinConfirmations: 32},
	CurrencyUSDT: {Decimals: 6, MinConfirmations: 19},
}

func (c Currency) Valid() bool {
	_, ok := currencies[c]
	return ok
}

func (c Currency) Info() (CurrencyInfo, error) {
	info, ok := currencies[c]
	if !ok {
		return CurrencyInfo{}, fmt.Errorf("unknown currency %q", string(c))
	}
	return info, nil
}

// Normalize rounds an amount to the currency's native precision. Amount
// comparison must always happen on normalized values so that sub-precision
// noise from a gateway never flips a payment into the underpaid band.
func (c Currency) Normalize(amount decimal.Decimal) decimal.Decimal {
	info, ok := currencies[c]
	if !ok {
		return amount
	}
	return amount.Round(info.Decimals)
}

// MinConfirmations returns the confirmation count required before a
// transaction in this currency is treated as final.
func (c Currency) MinConfirmations() int {
	info, ok := currencies[c]
	if !ok {
		return 1
	}
	return info.MinConfirmations
}
