package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPendingPayment, StatusPaid, true},
		{StatusPendingPayment, StatusPaidAwaitingShipment, true},
		{StatusPendingPayment, StatusPendingPaymentPartial, true},
		{StatusPendingPayment, StatusCancelledByUser, true},
		{StatusPendingPayment, StatusCancelledBySystem, true},
		{StatusPendingPaymentAndAddress, StatusPaid, true},
		{StatusPendingPaymentAndAddress, StatusCancelledByAdmin, true},
		{StatusPendingPaymentPartial, StatusPaid, true},
		{StatusPendingPaymentPartial, StatusCancelledBySystem, true},
		{StatusPaidAwaitingShipment, StatusShipped, true},
		{StatusPaidAwaitingShipment, StatusCancelledByUser, true},
		{StatusPaidAwaitingShipment, StatusCancelledByAdmin, true},

		// Partial never goes back to a plain pending state.
		{StatusPendingPaymentPartial, StatusPendingPayment, false},
		// Paid digital-only and shipped are final.
		{StatusPaid, StatusCancelledByUser, false},
		{StatusPaid, StatusShipped, false},
		{StatusShipped, StatusCancelledByAdmin, false},
		// Cancelled states go nowhere.
		{StatusCancelledByUser, StatusPaid, false},
		{StatusCancelledBySystem, StatusPendingPayment, false},
		// The system never ships on behalf of payment events.
		{StatusPaidAwaitingShipment, StatusCancelledBySystem, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusPendingPaymentPartial.Pending())
	assert.False(t, StatusPaid.Pending())
	assert.True(t, StatusCancelledBySystem.Cancelled())
	assert.False(t, StatusPendingPayment.Cancelled())
	assert.True(t, StatusShipped.Terminal())
	assert.False(t, StatusPaidAwaitingShipment.Terminal())
	assert.Len(t, PendingStatuses(), 3)
}

func TestOrderValidate(t *testing.T) {
	o := &Order{
		UserID: "u1",
		Lines: []LineItem{
			{ItemID: "a", Quantity: 2, UnitPrice: d("10.00")},
			{ItemID: "b", Quantity: 1, UnitPrice: d("7.50"), Physical: true},
		},
		ShippingCost: d("2.50"),
		TotalPrice:   d("30.00"),
	}
	assert.NoError(t, o.Validate())

	o.TotalPrice = d("29.99")
	assert.ErrorIs(t, o.Validate(), ErrInvalidOrder)

	o.TotalPrice = d("30.00")
	o.Lines[0].Quantity = 0
	assert.ErrorIs(t, o.Validate(), ErrInvalidOrder)

	assert.ErrorIs(t, (&Order{UserID: "u1"}).Validate(), ErrInvalidOrder)
}

func TestOrderTotalsSplitByKind(t *testing.T) {
	o := &Order{
		Lines: []LineItem{
			{ItemID: "ebook", Quantity: 1, UnitPrice: d("10.00")},
			{ItemID: "tshirt", Quantity: 1, UnitPrice: d("20.00"), Physical: true},
		},
	}
	assert.True(t, o.DigitalTotal().Equal(d("10.00")))
	assert.True(t, o.PhysicalTotal().Equal(d("20.00")))
	assert.True(t, o.HasPhysical())
	assert.True(t, o.HasUndeliveredPhysical())
	assert.Equal(t, StatusPaidAwaitingShipment, o.PaidStatusFor())

	o.Lines[1].Delivered = true
	assert.False(t, o.HasUndeliveredPhysical())

	digital := &Order{Lines: []LineItem{{ItemID: "key", Quantity: 1, UnitPrice: d("5.00")}}}
	assert.Equal(t, StatusPaid, digital.PaidStatusFor())
}
