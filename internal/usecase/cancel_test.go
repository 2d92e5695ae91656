package usecase

import (
	"context"
	"testing"
	"time"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCancelUC(e *testEnv) *CancelOrder {
	return NewCancelOrder(e.orders, e.invoices, e.lifecycle, e.refunds, testLogger())
}

func seedBalancePaidPending(e *testEnv, graceEndsAt time.Time) *domain.Order {
	o := &domain.Order{
		ID:     "o1",
		UserID: "u1",
		Lines: []domain.LineItem{
			{ItemID: "ebook", Quantity: 1, UnitPrice: dec("30.00")},
		},
		Status:         domain.StatusPendingPayment,
		TotalPrice:     dec("30.00"),
		BalanceApplied: dec("30.00"),
		CreatedAt:      time.Now().Add(-10 * time.Minute),
		GraceEndsAt:    graceEndsAt,
		ExpiresAt:      time.Now().Add(20 * time.Minute),
	}
	e.orders.put(o)
	return o
}

func TestUserCancelInGraceFullRefund(t *testing.T) {
	e := newTestEnv(nil)
	seedBalancePaidPending(e, time.Now().Add(3*time.Minute))
	uc := newCancelUC(e)

	out, err := uc.Execute(context.Background(), CancelInput{OrderID: "o1", Actor: ActorUser, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelledByUser, out.Status)
	assert.True(t, out.Refund.Penalty.IsZero())
	assert.True(t, out.Refund.FinalCredit.Equal(dec("30.00")))

	bal, _ := e.users.Balance(context.Background(), "u1")
	assert.True(t, bal.Equal(dec("30.00")))
	assert.Equal(t, []string{"o1"}, e.stock.released)
}

func TestUserCancelAfterGracePenalized(t *testing.T) {
	e := newTestEnv(nil)
	seedBalancePaidPending(e, time.Now().Add(-time.Minute))
	uc := newCancelUC(e)

	out, err := uc.Execute(context.Background(), CancelInput{OrderID: "o1", Actor: ActorUser, UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, out.Refund.Penalty.Equal(dec("1.50")), "got %s", out.Refund.Penalty)
	assert.True(t, out.Refund.FinalCredit.Equal(dec("28.50")), "got %s", out.Refund.FinalCredit)
}

func TestAdminCancelNoPenalty(t *testing.T) {
	e := newTestEnv(nil)
	seedBalancePaidPending(e, time.Now().Add(-time.Minute))
	uc := newCancelUC(e)

	out, err := uc.Execute(context.Background(), CancelInput{OrderID: "o1", Actor: ActorAdmin, Note: "fraud review"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelledByAdmin, out.Status)
	assert.True(t, out.Refund.Penalty.IsZero())
	assert.True(t, out.Refund.FinalCredit.Equal(dec("30.00")))
}

func TestUserCancelForeignOrderHidden(t *testing.T) {
	e := newTestEnv(nil)
	seedBalancePaidPending(e, time.Now())
	uc := newCancelUC(e)

	_, err := uc.Execute(context.Background(), CancelInput{OrderID: "o1", Actor: ActorUser, UserID: "intruder"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserCancelShippedRejected(t *testing.T) {
	e := newTestEnv(nil)
	o := seedBalancePaidPending(e, time.Now())
	o.Status = domain.StatusShipped
	e.orders.put(o)
	uc := newCancelUC(e)

	_, err := uc.Execute(context.Background(), CancelInput{OrderID: "o1", Actor: ActorUser, UserID: "u1"})
	assert.ErrorIs(t, err, ErrStateTransition)
}

func TestUserCancelPaidDigitalOnlyRejected(t *testing.T) {
	e := newTestEnv(nil)
	o := seedBalancePaidPending(e, time.Now())
	o.Status = domain.StatusPaid
	e.orders.put(o)
	uc := newCancelUC(e)

	// PAID digital-only has no reversible value and no legal transition out.
	_, err := uc.Execute(context.Background(), CancelInput{OrderID: "o1", Actor: ActorUser, UserID: "u1"})
	assert.ErrorIs(t, err, ErrStateTransition)
}

func TestCancelLosesRace(t *testing.T) {
	e := newTestEnv(nil)
	seedBalancePaidPending(e, time.Now())
	uc := newCancelUC(e)

	// A payment settles the order between the read and the conditional write.
	e.orders.beforeUpdate = func(o *domain.Order) {
		o.Status = domain.StatusPaid
	}

	_, err := uc.Execute(context.Background(), CancelInput{OrderID: "o1", Actor: ActorUser, UserID: "u1"})
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
}

func TestAdminCancelPaidPhysicalRefundsUndelivered(t *testing.T) {
	e := newTestEnv(nil)
	paidAt := time.Now().Add(-time.Hour)
	o := &domain.Order{
		ID:     "o2",
		UserID: "u1",
		Lines: []domain.LineItem{
			{ItemID: "ebook", Quantity: 1, UnitPrice: dec("10.00"), Delivered: true},
			{ItemID: "tshirt", Quantity: 1, UnitPrice: dec("20.00"), Physical: true},
		},
		Status:       domain.StatusPaidAwaitingShipment,
		TotalPrice:   dec("35.00"),
		ShippingCost: dec("5.00"),
		CreatedAt:    paidAt.Add(-10 * time.Minute),
		GraceEndsAt:  paidAt,
		ExpiresAt:    paidAt.Add(30 * time.Minute),
		PaidAt:       &paidAt,
	}
	e.orders.put(o)
	uc := newCancelUC(e)

	out, err := uc.Execute(context.Background(), CancelInput{OrderID: "o2", Actor: ActorAdmin})
	require.NoError(t, err)
	assert.True(t, out.Refund.NonRefundable.Equal(dec("10.00")))
	assert.True(t, out.Refund.FinalCredit.Equal(dec("25.00")))
	// Paid orders consumed their reservation; nothing goes back to the pool.
	assert.Empty(t, e.stock.released)
}
