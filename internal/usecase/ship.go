package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
)

// MarkShipped is the admin action confirming shipment of the remaining
// physical line items.
type MarkShipped struct {
	orders    OrderRepo
	lifecycle *Lifecycle
	now       func() time.Time
	log       *slog.Logger
}

func NewMarkShipped(orders OrderRepo, lifecycle *Lifecycle, log *slog.Logger) *MarkShipped {
	return &MarkShipped{orders: orders, lifecycle: lifecycle, now: time.Now, log: log}
}

func (uc *MarkShipped) Execute(ctx context.Context, orderID string) (domain.Status, error) {
	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if o.Status != domain.StatusPaidAwaitingShipment {
		return "", fmt.Errorf("%w: %s -> %s", ErrStateTransition, o.Status, domain.StatusShipped)
	}
	won, err := uc.lifecycle.MarkShipped(ctx, o, uc.now())
	if err != nil {
		return "", err
	}
	if !won {
		return "", ErrConcurrencyConflict
	}
	uc.log.Info("order shipped", "order_id", o.ID)
	return domain.StatusShipped, nil
}
