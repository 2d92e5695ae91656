package usecase

import (
	"context"
	"log/slog"
	"time"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
)

// SweepStats summarizes one expiration pass.
type SweepStats struct {
	Scanned int
	Expired int
	Skipped int
	Failed  int
}

// ExpireOrders is the timeout side of the lifecycle: it cancels orders whose
// deadline passed while they were still pending. Each order is its own unit
// of work; one slow or failing order never blocks the rest of the batch, and
// an order a webhook paid in the meantime is skipped by the zero-row
// conditional write.
type ExpireOrders struct {
	orders    OrderRepo
	invoices  InvoiceRepo
	lifecycle *Lifecycle
	refunds   *RefundCalculator
	batch     int
	now       func() time.Time
	log       *slog.Logger
}

func NewExpireOrders(orders OrderRepo, invoices InvoiceRepo, lifecycle *Lifecycle, refunds *RefundCalculator, batch int, log *slog.Logger) *ExpireOrders {
	if batch <= 0 {
		batch = 200
	}
	return &ExpireOrders{orders: orders, invoices: invoices, lifecycle: lifecycle, refunds: refunds, batch: batch, now: time.Now, log: log}
}

// RunOnce performs one synchronous sweep pass.
func (uc *ExpireOrders) RunOnce(ctx context.Context) SweepStats {
	var stats SweepStats
	now := uc.now()

	ids, err := uc.orders.ListExpired(ctx, now, domain.PendingStatuses(), uc.batch)
	if err != nil {
		uc.log.Error("expiry scan failed", "err", err)
		stats.Failed++
		return stats
	}

	for _, id := range ids {
		stats.Scanned++
		expired, err := uc.expireOne(ctx, id, now)
		switch {
		case err != nil:
			// Non-fatal: log and keep sweeping.
			uc.log.Error("expire failed", "order_id", id, "err", err)
			stats.Failed++
		case expired:
			stats.Expired++
		default:
			stats.Skipped++
		}
	}
	return stats
}

func (uc *ExpireOrders) expireOne(ctx context.Context, orderID string, now time.Time) (bool, error) {
	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return false, err
	}
	if !o.Status.Pending() {
		return false, nil
	}
	// The scan query works on a snapshot; a partial payment may have extended
	// the deadline since.
	if o.ExpiresAt.After(now) {
		return false, nil
	}

	inv, err := uc.invoices.GetByOrderID(ctx, o.ID)
	if err != nil {
		return false, err
	}
	br, err := uc.refunds.Compute(o, inv, ReasonTimeout, now)
	if err != nil {
		return false, err
	}

	// Conditional write: if a payment moved the order first, zero rows match
	// and the sweep silently moves on.
	won, err := uc.lifecycle.Cancel(ctx, o, domain.StatusCancelledBySystem, ReasonTimeout, br, now)
	if err != nil {
		return false, err
	}
	return won, nil
}
