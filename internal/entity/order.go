package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPendingPayment           Status = "PENDING_PAYMENT"
	StatusPendingPaymentAndAddress Status = "PENDING_PAYMENT_AND_ADDRESS"
	StatusPendingPaymentPartial    Status = "PENDING_PAYMENT_PARTIAL"
	StatusPaid                     Status = "PAID"
	StatusPaidAwaitingShipment     Status = "PAID_AWAITING_SHIPMENT"
	StatusShipped                  Status = "SHIPPED"
	StatusCancelledByUser          Status = "CANCELLED_BY_USER"
	StatusCancelledByAdmin         Status = "CANCELLED_BY_ADMIN"
	StatusCancelledBySystem        Status = "CANCELLED_BY_SYSTEM"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidOrder      = errors.New("invalid order")
)

// PendingStatuses is the set of states a payment or a timeout may still move.
// Every conditional status write that competes with another actor is keyed on
// this set.
func PendingStatuses() []Status {
	return []Status{
		StatusPendingPayment,
		StatusPendingPaymentAndAddress,
		StatusPendingPaymentPartial,
	}
}

func (s Status) Pending() bool {
	switch s {
	case StatusPendingPayment, StatusPendingPaymentAndAddress, StatusPendingPaymentPartial:
		return true
	}
	return false
}

func (s Status) Cancelled() bool {
	switch s {
	case StatusCancelledByUser, StatusCancelledByAdmin, StatusCancelledBySystem:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusShipped,
		StatusCancelledByUser, StatusCancelledByAdmin, StatusCancelledBySystem:
		return true
	}
	return false
}

// transitions is the full legal transition table. Anything not listed here is
// rejected with ErrInvalidTransition; status is never written free-form.
var transitions = map[Status][]Status{
	StatusPendingPayment: {
		StatusPaid, StatusPaidAwaitingShipment, StatusPendingPaymentPartial,
		StatusCancelledByUser, StatusCancelledByAdmin, StatusCancelledBySystem,
	},
	StatusPendingPaymentAndAddress: {
		StatusPaid, StatusPaidAwaitingShipment, StatusPendingPaymentPartial,
		StatusCancelledByUser, StatusCancelledByAdmin, StatusCancelledBySystem,
	},
	StatusPendingPaymentPartial: {
		StatusPaid, StatusPaidAwaitingShipment,
		StatusCancelledByUser, StatusCancelledByAdmin, StatusCancelledBySystem,
	},
	StatusPaidAwaitingShipment: {
		StatusShipped, StatusCancelledByUser, StatusCancelledByAdmin,
	},
}

func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

type LineItem struct {
	ItemID    string
	Quantity  int
	UnitPrice decimal.Decimal // snapshot at checkout, immutable
	Physical  bool
	Delivered bool
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Order struct {
	ID             string
	UserID         string
	Lines          []LineItem
	Status         Status
	TotalPrice     decimal.Decimal
	BalanceApplied decimal.Decimal
	ShippingCost   decimal.Decimal
	CreatedAt      time.Time
	GraceEndsAt    time.Time // user cancellation before this carries no penalty
	ExpiresAt      time.Time
	PaidAt         *time.Time
	ShippedAt      *time.Time
	CancelledAt    *time.Time
	Crypto         Currency // empty until a crypto invoice is opened
	PaymentAddress string
	InvoiceID      string
}

func (o *Order) Validate() error {
	if o.UserID == "" || len(o.Lines) == 0 {
		return ErrInvalidOrder
	}
	sum := decimal.Zero
	for _, li := range o.Lines {
		if li.Quantity <= 0 || li.UnitPrice.IsNegative() {
			return ErrInvalidOrder
		}
		sum = sum.Add(li.Subtotal())
	}
	if !o.TotalPrice.Equal(sum.Add(o.ShippingCost)) {
		return ErrInvalidOrder
	}
	return nil
}

func (o *Order) HasPhysical() bool {
	for _, li := range o.Lines {
		if li.Physical {
			return true
		}
	}
	return false
}

// HasUndeliveredPhysical reports whether a paid order still owes the customer
// a shipment.
func (o *Order) HasUndeliveredPhysical() bool {
	for _, li := range o.Lines {
		if li.Physical && !li.Delivered {
			return true
		}
	}
	return false
}

func (o *Order) DigitalTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range o.Lines {
		if !li.Physical {
			sum = sum.Add(li.Subtotal())
		}
	}
	return sum
}

func (o *Order) PhysicalTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range o.Lines {
		if li.Physical {
			sum = sum.Add(li.Subtotal())
		}
	}
	return sum
}

// PaidStatusFor returns the paid-side target state: orders with physical goods
// still to ship park in PAID_AWAITING_SHIPMENT, everything else lands in PAID.
func (o *Order) PaidStatusFor() Status {
	if o.HasPhysical() {
		return StatusPaidAwaitingShipment
	}
	return StatusPaid
}
