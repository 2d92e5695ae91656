package usecase

import (
	"errors"
	"fmt"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
)

var (
	// ErrValidation covers malformed input rejected before any mutation.
	ErrValidation = errors.New("validation failed")
	// ErrConcurrencyConflict is surfaced after a bounded number of optimistic
	// retries all lost the race.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
	// ErrDuplicatePayment marks a transaction hash that was already credited.
	// Handlers treat it as an idempotent no-op, not a failure.
	ErrDuplicatePayment = errors.New("duplicate payment transaction")
	// ErrStateTransition means the requested transition is not legal from the
	// order's current state.
	ErrStateTransition = errors.New("state transition not allowed")
	// ErrStockUnavailable means a reservation could not be fully satisfied.
	ErrStockUnavailable = errors.New("stock unavailable")
	// ErrNotFound is returned by lookups for unknown ids.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientBalance means a balance debit would go negative.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrDuplicateRequest marks a checkout replay on the same idempotency key
	// that is still in flight.
	ErrDuplicateRequest = errors.New("duplicate request")
)

// ShortfallError carries the structured shortfall list so checkout can offer
// reduced quantities instead of a bare failure.
type ShortfallError struct {
	Shortfall []domain.Shortfall
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("%v: %d line(s) short", ErrStockUnavailable, len(e.Shortfall))
}

func (e *ShortfallError) Unwrap() error { return ErrStockUnavailable }
