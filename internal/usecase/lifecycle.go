package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
)

// Lifecycle owns order status. All transitions funnel through here as
// conditional writes keyed on the current status, so a webhook and the
// expiration sweep racing on the same order produce one winner and one no-op.
type Lifecycle struct {
	orders OrderRepo
	users  UserLedger
	cache  OrderCache
	events EventPublisher
	log    *slog.Logger
}

func NewLifecycle(orders OrderRepo, users UserLedger, cache OrderCache, events EventPublisher, log *slog.Logger) *Lifecycle {
	return &Lifecycle{orders: orders, users: users, cache: cache, events: events, log: log}
}

// MarkPaid moves a pending order into its paid state. The status write, the
// stock consumption and the instant delivery of digital lines are one
// transaction in the store; an order is never paid with its reservations
// still active. Returns false when the conditional write matched zero rows
// (another actor moved the order first).
func (l *Lifecycle) MarkPaid(ctx context.Context, o *domain.Order, now time.Time) (domain.Status, bool, error) {
	target := o.PaidStatusFor()
	ok, err := l.orders.MarkPaidTx(ctx, o.ID, domain.PendingStatuses(), target, now)
	if err != nil {
		return "", false, fmt.Errorf("mark paid %s: %w", o.ID, err)
	}
	if !ok {
		return "", false, nil
	}
	l.settle(ctx, o, target, "")
	return target, true, nil
}

// Cancel moves the order into a cancelled state, releases stock where the
// order never reached payment, credits the refund and issues a strike when
// the breakdown says so. The conditional write is keyed on the status the
// caller loaded; false means the race was lost.
func (l *Lifecycle) Cancel(ctx context.Context, o *domain.Order, target domain.Status, reason CancelReason, br RefundBreakdown, now time.Time) (bool, error) {
	if !domain.CanTransition(o.Status, target) {
		return false, fmt.Errorf("%w: %s -> %s", ErrStateTransition, o.Status, target)
	}
	ok, err := l.orders.CancelTx(ctx, o.ID, []domain.Status{o.Status}, target, now)
	if err != nil {
		return false, fmt.Errorf("cancel %s: %w", o.ID, err)
	}
	if !ok {
		return false, nil
	}
	if br.FinalCredit.IsPositive() {
		if err := l.users.Credit(ctx, o.UserID, br.FinalCredit, "refund:"+string(reason)); err != nil {
			return false, fmt.Errorf("credit refund %s: %w", o.ID, err)
		}
	}
	if br.Strike {
		if err := l.users.AddStrike(ctx, o.UserID, string(reason)); err != nil {
			l.log.Error("strike failed", "order_id", o.ID, "user_id", o.UserID, "err", err)
		}
	}
	l.settle(ctx, o, target, string(reason))
	return true, nil
}

// MarkShipped confirms shipment of the remaining physical lines.
func (l *Lifecycle) MarkShipped(ctx context.Context, o *domain.Order, now time.Time) (bool, error) {
	ok, err := l.orders.MarkShippedTx(ctx, o.ID, now)
	if err != nil {
		return false, fmt.Errorf("mark shipped %s: %w", o.ID, err)
	}
	if !ok {
		return false, nil
	}
	l.settle(ctx, o, domain.StatusShipped, "")
	return true, nil
}

// settle does the best-effort post-transition work: status cache and event
// publish. Neither may fail the committed transition.
func (l *Lifecycle) settle(ctx context.Context, o *domain.Order, status domain.Status, reason string) {
	if l.cache != nil {
		if err := l.cache.SetStatus(ctx, o.ID, string(status)); err != nil {
			l.log.Warn("status cache write failed", "order_id", o.ID, "err", err)
		}
	}
	if l.events != nil {
		msg := OrderEventMsg{
			OrderID:    o.ID,
			UserID:     o.UserID,
			Status:     string(status),
			Reason:     reason,
			Physical:   o.HasPhysical(),
			OccurredAt: time.Now().UTC(),
		}
		if err := l.events.PublishOrderEvent(ctx, msg); err != nil {
			l.log.Warn("event publish failed", "order_id", o.ID, "status", status, "err", err)
		}
	}
}
