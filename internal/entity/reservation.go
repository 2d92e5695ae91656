package domain

import "time"

type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "ACTIVE"
	ReservationReleased ReservationStatus = "RELEASED"
	ReservationConsumed ReservationStatus = "CONSUMED"
)

// StockReservation is a temporary hold on inventory tied to one order line.
// It is created atomically with the order and leaves ACTIVE exactly once:
// released back to the pool on cancellation or timeout, or consumed for good
// when the order is paid.
type StockReservation struct {
	ID        string
	OrderID   string
	ItemID    string
	Quantity  int
	Status    ReservationStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Shortfall reports how far short the pool fell for one requested line.
type Shortfall struct {
	ItemID    string
	Requested int
	Available int
}

// ReservationResult is what a reserve attempt produced. A non-empty Shortfall
// means the pool could not cover every line in full; Reserved still lists what
// could be held so checkout can offer reduced quantities.
type ReservationResult struct {
	Reserved  []StockReservation
	Shortfall []Shortfall
}

func (r ReservationResult) FullySatisfied() bool {
	return len(r.Shortfall) == 0
}
