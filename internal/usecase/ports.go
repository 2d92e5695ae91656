package usecase

import (
	"context"
	"time"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/shopspring/decimal"
)

// OrderRepo is the durable order store. Every status change goes through
// UpdateStatusIf so two actors racing on the same order produce exactly one
// winner and one zero-row no-op.
type OrderRepo interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// UpdateStatusIf moves the order to `to` only if its stored status is one
	// of `from`. It returns false (and no error) when zero rows matched.
	// The repo stamps paid_at/shipped_at/cancelled_at from `at` as the target
	// state requires.
	UpdateStatusIf(ctx context.Context, id string, from []domain.Status, to domain.Status, at time.Time) (bool, error)
	// MarkPaidTx is the paid-side settlement: the conditional status write,
	// the consumption of the order's reservations and the delivery flag on
	// digital lines commit together or not at all. False means the status
	// write matched zero rows and nothing else happened.
	MarkPaidTx(ctx context.Context, id string, from []domain.Status, to domain.Status, at time.Time) (bool, error)
	// CancelTx moves the order into a cancelled state and releases its still
	// active reservations in the same transaction.
	CancelTx(ctx context.Context, id string, from []domain.Status, to domain.Status, at time.Time) (bool, error)
	// MarkShippedTx confirms shipment and flags the physical lines delivered
	// in one transaction.
	MarkShippedTx(ctx context.Context, id string, at time.Time) (bool, error)
	// ExtendExpiry pushes the order's deadline out, together with the
	// deadline of its active reservations.
	ExtendExpiry(ctx context.Context, id string, deadline time.Time) error
	SetPaymentTarget(ctx context.Context, id string, crypto domain.Currency, address, invoiceID string) error
	// ListExpired returns ids of orders past `now` that are still in one of
	// the given states. Read-only; each returned order is transitioned in its
	// own unit of work.
	ListExpired(ctx context.Context, now time.Time, statuses []domain.Status, limit int) ([]string, error)
}

// StockLedger guards the finite stock pool.
type StockLedger interface {
	// Reserve holds quantities for the order inside one transaction. Lines the
	// pool cannot cover in full come back in the shortfall list with whatever
	// was available; no two concurrent calls can oversubscribe an item.
	Reserve(ctx context.Context, orderID string, lines []domain.LineItem, expiresAt time.Time) (domain.ReservationResult, error)
	// Release returns all ACTIVE reservations of the order to the pool.
	// Idempotent: a second call is a no-op.
	Release(ctx context.Context, orderID string) error
}

type InvoiceRepo interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.Invoice, error)
	// RecordTransaction inserts the confirmed transaction and adds its amount
	// to the invoice's amount paid, in one transaction. It returns false when
	// the hash was already recorded (replay), leaving the invoice untouched.
	RecordTransaction(ctx context.Context, tx *domain.InvoiceTransaction) (bool, error)
	// IncrementUnderpay bumps the underpayment counter and returns the new
	// value.
	IncrementUnderpay(ctx context.Context, invoiceID string) (int, error)
}

// UserLedger is the pre-funded balance and strike store.
type UserLedger interface {
	Credit(ctx context.Context, userID string, amount decimal.Decimal, reason string) error
	// DebitIf subtracts amount only if the balance covers it; returns false
	// otherwise.
	DebitIf(ctx context.Context, userID string, amount decimal.Decimal, reason string) (bool, error)
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	AddStrike(ctx context.Context, userID string, reason string) error
}

// AddressAllocator leases a payment address from the per-currency pool.
type AddressAllocator interface {
	Lease(ctx context.Context, currency domain.Currency, orderID string) (string, error)
}

// RateSource quotes how much of a cryptocurrency settles a fiat total.
type RateSource interface {
	Quote(ctx context.Context, fiatAmount decimal.Decimal, currency domain.Currency) (decimal.Decimal, error)
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	// Unlock drops a lock whose protected work did not happen, so the same
	// key can be retried before the TTL runs out.
	Unlock(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type OrderCache interface {
	SetStatus(ctx context.Context, orderID string, status string) error
	GetStatus(ctx context.Context, orderID string) (string, error)
}

// EventPublisher pushes lifecycle events to the fulfillment/ops side.
// Best-effort: a publish failure is logged, never rolled into the transition.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, msg OrderEventMsg) error
}
