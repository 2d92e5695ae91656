package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
)

type Actor string

const (
	ActorUser  Actor = "user"
	ActorAdmin Actor = "admin"
)

type CancelInput struct {
	OrderID string
	Actor   Actor
	// UserID is the requesting user for ActorUser; ownership is enforced
	// here. Admin authorization happens at the boundary before this call.
	UserID string
	Note   string
}

type CancelOutput struct {
	Status domain.Status
	Refund RefundBreakdown
}

// CancelOrder performs user- and admin-initiated cancellation: guarded
// transition, refund credit, stock release.
type CancelOrder struct {
	orders    OrderRepo
	invoices  InvoiceRepo
	lifecycle *Lifecycle
	refunds   *RefundCalculator
	now       func() time.Time
	log       *slog.Logger
}

func NewCancelOrder(orders OrderRepo, invoices InvoiceRepo, lifecycle *Lifecycle, refunds *RefundCalculator, log *slog.Logger) *CancelOrder {
	return &CancelOrder{orders: orders, invoices: invoices, lifecycle: lifecycle, refunds: refunds, now: time.Now, log: log}
}

func (uc *CancelOrder) Execute(ctx context.Context, in CancelInput) (CancelOutput, error) {
	o, err := uc.orders.GetByID(ctx, in.OrderID)
	if err != nil {
		return CancelOutput{}, err
	}

	var target domain.Status
	var reason CancelReason
	switch in.Actor {
	case ActorUser:
		if o.UserID != in.UserID {
			return CancelOutput{}, ErrNotFound
		}
		target, reason = domain.StatusCancelledByUser, ReasonUserRequest
	case ActorAdmin:
		target, reason = domain.StatusCancelledByAdmin, ReasonAdmin
	default:
		return CancelOutput{}, fmt.Errorf("%w: unknown actor %q", ErrValidation, in.Actor)
	}

	if !domain.CanTransition(o.Status, target) {
		return CancelOutput{}, fmt.Errorf("%w: %s -> %s", ErrStateTransition, o.Status, target)
	}

	inv, err := uc.invoices.GetByOrderID(ctx, o.ID)
	if err != nil {
		return CancelOutput{}, err
	}

	now := uc.now()
	br, err := uc.refunds.Compute(o, inv, reason, now)
	if err != nil {
		return CancelOutput{}, err
	}

	won, err := uc.lifecycle.Cancel(ctx, o, target, reason, br, now)
	if err != nil {
		return CancelOutput{}, err
	}
	if !won {
		return CancelOutput{}, ErrConcurrencyConflict
	}

	uc.log.Info("order cancelled",
		"order_id", o.ID, "actor", in.Actor, "note", in.Note,
		"credited", br.FinalCredit.String())
	return CancelOutput{Status: target, Refund: br}, nil
}
