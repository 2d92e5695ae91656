package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("storage unavailable")

func newExpireUC(e *testEnv) *ExpireOrders {
	return NewExpireOrders(e.orders, e.invoices, e.lifecycle, e.refunds, 100, testLogger())
}

func seedExpiredOrder(e *testEnv, id string, paidSoFar string) *domain.Order {
	o := &domain.Order{
		ID:     id,
		UserID: "u1",
		Lines: []domain.LineItem{
			{ItemID: "ebook", Quantity: 1, UnitPrice: dec("30.00")},
		},
		Status:         domain.StatusPendingPayment,
		TotalPrice:     dec("30.00"),
		CreatedAt:      time.Now().Add(-time.Hour),
		GraceEndsAt:    time.Now().Add(-55 * time.Minute),
		ExpiresAt:      time.Now().Add(-30 * time.Minute),
		Crypto:         domain.CurrencyBTC,
		PaymentAddress: "addr-" + id,
		InvoiceID:      "inv-" + id,
	}
	e.orders.put(o)
	inv := &domain.Invoice{
		ID:        "inv-" + id,
		OrderID:   id,
		Currency:  domain.CurrencyBTC,
		Address:   "addr-" + id,
		AmountDue: dec("0.00100000"),
	}
	if paidSoFar != "" {
		inv.AmountPaid = dec(paidSoFar)
	}
	e.invoices.put(inv)
	return o
}

func TestSweepExpiresPendingOrder(t *testing.T) {
	e := newTestEnv(nil)
	seedExpiredOrder(e, "o1", "")
	uc := newExpireUC(e)

	stats := uc.RunOnce(context.Background())
	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 1, stats.Expired)
	assert.Zero(t, stats.Failed)

	o, _ := e.orders.GetByID(context.Background(), "o1")
	assert.Equal(t, domain.StatusCancelledBySystem, o.Status)
	require.NotNil(t, o.CancelledAt)
	assert.Equal(t, []string{"o1"}, e.stock.released)
}

func TestSweepCreditsPartialPaymentWithoutPenalty(t *testing.T) {
	e := newTestEnv(nil)
	seedExpiredOrder(e, "o1", "0.00050000")
	uc := newExpireUC(e)

	stats := uc.RunOnce(context.Background())
	assert.Equal(t, 1, stats.Expired)

	// Half the invoice arrived before the deadline: 15.00 back, timeout
	// itself carries no penalty.
	bal, _ := e.users.Balance(context.Background(), "u1")
	assert.True(t, bal.Equal(dec("15.00")), "got %s", bal)
	assert.Zero(t, e.users.strikes["u1"])
}

func TestSweepSkipsExtendedDeadline(t *testing.T) {
	e := newTestEnv(nil)
	o := seedExpiredOrder(e, "o1", "")
	uc := newExpireUC(e)
	// A partial payment extended the deadline after the scan snapshot was
	// taken: the id still comes back from the scan, the live row is fresh.
	e.orders.staleList = []string{"o1"}
	require.NoError(t, e.orders.ExtendExpiry(context.Background(), "o1", o.ExpiresAt.Add(45*time.Minute)))

	stats := uc.RunOnce(context.Background())
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Expired)

	fresh, _ := e.orders.GetByID(context.Background(), "o1")
	assert.Equal(t, domain.StatusPendingPayment, fresh.Status)
}

func TestSweepLosesRaceToWebhook(t *testing.T) {
	e := newTestEnv(nil)
	seedExpiredOrder(e, "o1", "")
	uc := newExpireUC(e)

	// The webhook pays the order between the sweep's read and its write.
	e.orders.beforeUpdate = func(o *domain.Order) {
		o.Status = domain.StatusPaid
	}

	stats := uc.RunOnce(context.Background())
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Expired)
	assert.Zero(t, stats.Failed)

	fresh, _ := e.orders.GetByID(context.Background(), "o1")
	assert.Equal(t, domain.StatusPaid, fresh.Status, "the payment's win stands")
	assert.Empty(t, e.users.credits, "no refund for an order that got paid")
}

func TestSweepContinuesPastFailures(t *testing.T) {
	e := newTestEnv(nil)
	seedExpiredOrder(e, "o1", "")
	seedExpiredOrder(e, "o2", "")
	seedExpiredOrder(e, "o3", "")
	uc := newExpireUC(e)
	e.orders.getErr = map[string]error{"o2": errBoom}

	stats := uc.RunOnce(context.Background())
	assert.Equal(t, 3, stats.Scanned)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.Expired, "one broken order never blocks the rest")
}

func TestSweepRespectsBatchLimit(t *testing.T) {
	e := newTestEnv(nil)
	for _, id := range []string{"o1", "o2", "o3"} {
		seedExpiredOrder(e, id, "")
	}
	uc := NewExpireOrders(e.orders, e.invoices, e.lifecycle, e.refunds, 2, testLogger())

	stats := uc.RunOnce(context.Background())
	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 2, stats.Expired)

	// The next pass picks up the remainder.
	stats = uc.RunOnce(context.Background())
	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 1, stats.Expired)
}
