package rates

import (
	"context"
	"fmt"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/6R1M5L07H/shopcore/internal/usecase"
	"github.com/shopspring/decimal"
)

// StaticRateSource quotes from a fixed fiat-per-coin table loaded from
// config. Good enough for a shop that reprices its catalog; a live oracle
// can replace it behind the same port.
type StaticRateSource struct {
	rates map[domain.Currency]decimal.Decimal
}

func NewStaticRateSource(rates map[domain.Currency]decimal.Decimal) *StaticRateSource {
	return &StaticRateSource{rates: rates}
}

func (s *StaticRateSource) Quote(ctx context.Context, fiatAmount decimal.Decimal, currency domain.Currency) (decimal.Decimal, error) {
	rate, ok := s.rates[currency]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("no rate configured for %s", currency)
	}
	info, err := currency.Info()
	if err != nil {
		return decimal.Zero, err
	}
	return fiatAmount.DivRound(rate, info.Decimals), nil
}

var _ usecase.RateSource = (*StaticRateSource)(nil)
