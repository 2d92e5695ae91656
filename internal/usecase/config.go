package usecase

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingConfig is the immutable rate/penalty configuration handed to the
// order components at construction time. Percentages are fractions
// (0.05 == 5%).
type PricingConfig struct {
	OrderTTL            time.Duration
	GraceWindow         time.Duration
	PartialExtension    time.Duration
	CancelPenaltyPct    decimal.Decimal
	UnderpayPenaltyPct  decimal.Decimal
	LatePenaltyPct      decimal.Decimal
	OverpayTolerancePct decimal.Decimal
}

// DefaultPricing mirrors the shop's production defaults; tests construct
// their own.
func DefaultPricing() PricingConfig {
	return PricingConfig{
		OrderTTL:            30 * time.Minute,
		GraceWindow:         5 * time.Minute,
		PartialExtension:    15 * time.Minute,
		CancelPenaltyPct:    decimal.RequireFromString("0.05"),
		UnderpayPenaltyPct:  decimal.RequireFromString("0.05"),
		LatePenaltyPct:      decimal.RequireFromString("0.05"),
		OverpayTolerancePct: decimal.RequireFromString("0.001"),
	}
}
