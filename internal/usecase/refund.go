package usecase

import (
	"fmt"
	"time"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/shopspring/decimal"
)

type CancelReason string

const (
	ReasonUserRequest  CancelReason = "user_request"
	ReasonAdmin        CancelReason = "admin"
	ReasonTimeout      CancelReason = "timeout"
	ReasonUnderpayment CancelReason = "underpayment"
	ReasonLatePayment  CancelReason = "late_payment"
)

// RefundBreakdown is the calculator's output. FinalCredit is what lands on
// the user's balance; NonRefundable is value already delivered and never
// credited back.
type RefundBreakdown struct {
	NonRefundable  decimal.Decimal
	RefundableBase decimal.Decimal
	Penalty        decimal.Decimal
	FinalCredit    decimal.Decimal
	Strike         bool
}

// RefundCalculator computes the refundable amount for a cancellation,
// separating already-delivered value from reversible value. Pure: it never
// touches storage.
type RefundCalculator struct {
	cfg PricingConfig
}

func NewRefundCalculator(cfg PricingConfig) *RefundCalculator {
	return &RefundCalculator{cfg: cfg}
}

// Compute builds the breakdown for cancelling `o` for `reason`. The invoice
// may be nil for orders settled entirely from balance.
//
// For a paid order the refundable base is physical value plus shipping; the
// digital portion was delivered the instant the order was paid and is never
// part of the credit. Cancelling a paid digital-only order is rejected. For a
// pending order nothing is delivered yet, so the base is everything the user
// has put in: applied balance plus the fiat value of whatever crypto arrived.
func (c *RefundCalculator) Compute(o *domain.Order, inv *domain.Invoice, reason CancelReason, now time.Time) (RefundBreakdown, error) {
	var br RefundBreakdown

	if o.Status == domain.StatusPaid || o.Status == domain.StatusPaidAwaitingShipment || o.PaidAt != nil {
		if !o.HasPhysical() {
			return br, fmt.Errorf("%w: digital-only order already delivered", ErrStateTransition)
		}
		br.NonRefundable = o.DigitalTotal()
		br.RefundableBase = o.PhysicalTotal().Add(o.ShippingCost)
	} else {
		br.NonRefundable = decimal.Zero
		br.RefundableBase = o.BalanceApplied.Add(c.FiatPaid(o, inv))
	}

	pct, strike := c.penaltyFor(o, reason, now)
	br.Penalty = br.RefundableBase.Mul(pct).Round(2)
	br.FinalCredit = br.RefundableBase.Sub(br.Penalty)
	br.Strike = strike && br.RefundableBase.IsPositive()
	return br, nil
}

// FiatPaid converts the invoice's received crypto into order currency,
// capped at the fiat amount the invoice covers.
func (c *RefundCalculator) FiatPaid(o *domain.Order, inv *domain.Invoice) decimal.Decimal {
	if inv == nil {
		return decimal.Zero
	}
	fiatDue := o.TotalPrice.Sub(o.BalanceApplied)
	paid := c.FiatValue(o, inv, inv.AmountPaid)
	if paid.GreaterThan(fiatDue) {
		return fiatDue
	}
	return paid
}

// FiatValue converts a crypto amount into order currency using the
// checkout-time rate implied by the invoice itself (fiat due / crypto due).
func (c *RefundCalculator) FiatValue(o *domain.Order, inv *domain.Invoice, amount decimal.Decimal) decimal.Decimal {
	if inv == nil || inv.AmountDue.IsZero() || amount.IsZero() {
		return decimal.Zero
	}
	fiatDue := o.TotalPrice.Sub(o.BalanceApplied)
	return fiatDue.Mul(amount).Div(inv.AmountDue).Round(2)
}

func (c *RefundCalculator) penaltyFor(o *domain.Order, reason CancelReason, now time.Time) (decimal.Decimal, bool) {
	switch reason {
	case ReasonUserRequest:
		if !now.After(o.GraceEndsAt) {
			return decimal.Zero, false
		}
		return c.cfg.CancelPenaltyPct, false
	case ReasonUnderpayment:
		return c.cfg.UnderpayPenaltyPct, true
	case ReasonLatePayment:
		return c.cfg.LatePenaltyPct, false
	case ReasonAdmin, ReasonTimeout:
		return decimal.Zero, false
	}
	return decimal.Zero, false
}
