package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/shopspring/decimal"
)

// PaymentNotice is a verified payment notification, either from the webhook
// or from the chain watcher. The signature has already been checked at the
// boundary; this layer classifies and transitions.
type PaymentNotice struct {
	OrderID       string
	TxHash        string
	Address       string
	Amount        decimal.Decimal
	Currency      domain.Currency
	Confirmations int
}

type PaymentOutcome string

const (
	OutcomePaid                  PaymentOutcome = "PAID"
	OutcomeOverpaid              PaymentOutcome = "OVERPAID"
	OutcomeUnderpaidGrace        PaymentOutcome = "UNDERPAID_GRACE"
	OutcomeUnderpaidCancelled    PaymentOutcome = "UNDERPAID_CANCELLED"
	OutcomeLate                  PaymentOutcome = "LATE"
	OutcomeAwaitingConfirmations PaymentOutcome = "AWAITING_CONFIRMATIONS"
)

type PaymentResult struct {
	Outcome  PaymentOutcome
	Status   domain.Status
	Credited decimal.Decimal // fiat credited to the user's balance, if any
}

// ProcessPayment reconciles one confirmed transaction against an order's
// invoice: exact or tolerated overpayment pays the order, underpayment walks
// the grace path, late money is credited back minus penalty, and a replayed
// hash is an idempotent no-op.
type ProcessPayment struct {
	orders    OrderRepo
	invoices  InvoiceRepo
	users     UserLedger
	idem      IdempotencyStore
	lifecycle *Lifecycle
	refunds   *RefundCalculator
	cfg       PricingConfig
	now       func() time.Time
	log       *slog.Logger
}

func NewProcessPayment(orders OrderRepo, invoices InvoiceRepo, users UserLedger,
	idem IdempotencyStore, lifecycle *Lifecycle, refunds *RefundCalculator,
	cfg PricingConfig, log *slog.Logger) *ProcessPayment {
	return &ProcessPayment{
		orders: orders, invoices: invoices, users: users, idem: idem,
		lifecycle: lifecycle, refunds: refunds, cfg: cfg, now: time.Now, log: log,
	}
}

func (p *ProcessPayment) Execute(ctx context.Context, n PaymentNotice) (PaymentResult, error) {
	if n.OrderID == "" || n.TxHash == "" || !n.Amount.IsPositive() || !n.Currency.Valid() {
		return PaymentResult{}, fmt.Errorf("%w: incomplete payment notice", ErrValidation)
	}

	o, err := p.orders.GetByID(ctx, n.OrderID)
	if err != nil {
		return PaymentResult{}, err
	}
	inv, err := p.invoices.GetByOrderID(ctx, n.OrderID)
	if err != nil {
		return PaymentResult{}, err
	}
	if inv == nil {
		return PaymentResult{}, fmt.Errorf("%w: order has no open invoice", ErrValidation)
	}
	if n.Currency != inv.Currency {
		return PaymentResult{}, fmt.Errorf("%w: currency %s does not match invoice %s", ErrValidation, n.Currency, inv.Currency)
	}
	if n.Address != "" && n.Address != inv.Address {
		return PaymentResult{}, fmt.Errorf("%w: destination address mismatch", ErrValidation)
	}

	// Normalize to the currency's native precision before any comparison so
	// sub-precision noise cannot flip the classification.
	amount := n.Currency.Normalize(n.Amount)

	// Below the confirmation threshold the transaction is only observed. The
	// hash is not burned, so the gateway's re-post at final depth is not a
	// duplicate.
	if n.Confirmations < n.Currency.MinConfirmations() {
		p.log.Info("payment below confirmation threshold",
			"order_id", o.ID, "tx", n.TxHash, "confirmations", n.Confirmations)
		return PaymentResult{Outcome: OutcomeAwaitingConfirmations, Status: o.Status}, nil
	}

	// Replay protection: redis fast path, then the durable unique hash index.
	if ok, err := p.idem.TryLock(ctx, "paytx", n.TxHash); err == nil && !ok {
		return PaymentResult{}, ErrDuplicatePayment
	}
	now := p.now()
	recorded, err := p.invoices.RecordTransaction(ctx, &domain.InvoiceTransaction{
		TxHash:        n.TxHash,
		InvoiceID:     inv.ID,
		Amount:        amount,
		Confirmations: n.Confirmations,
		SeenAt:        now,
	})
	if err != nil {
		// The fast-path lock must not outlive a failed durable write; the
		// gateway retries with the same hash and that retry has to get in.
		if uerr := p.idem.Unlock(ctx, "paytx", n.TxHash); uerr != nil {
			p.log.Warn("tx lock release failed", "tx", n.TxHash, "err", uerr)
		}
		return PaymentResult{}, fmt.Errorf("record transaction: %w", err)
	}
	if !recorded {
		return PaymentResult{}, ErrDuplicatePayment
	}
	inv.AmountPaid = inv.Currency.Normalize(inv.AmountPaid.Add(amount))

	// Money arriving for an order that already settled cannot transition
	// anything; it goes straight to the balance.
	if o.Status == domain.StatusPaid || o.Status == domain.StatusPaidAwaitingShipment || o.Status == domain.StatusShipped {
		return p.creditSurplus(ctx, o, inv, amount)
	}

	if now.After(o.ExpiresAt) || o.Status.Cancelled() {
		return p.latePayment(ctx, o, inv, amount, now)
	}

	if inv.AmountPaid.GreaterThanOrEqual(inv.AmountDue) {
		return p.settlePaid(ctx, o, inv, amount, now)
	}
	return p.underpaid(ctx, o, inv, now)
}

func (p *ProcessPayment) settlePaid(ctx context.Context, o *domain.Order, inv *domain.Invoice, amount decimal.Decimal, now time.Time) (PaymentResult, error) {
	status, won, err := p.lifecycle.MarkPaid(ctx, o, now)
	if err != nil {
		return PaymentResult{}, err
	}
	if !won {
		return p.lostRace(ctx, o, inv, amount)
	}

	over := inv.AmountPaid.Sub(inv.AmountDue)
	tolerance := inv.AmountDue.Mul(p.cfg.OverpayTolerancePct)
	if over.GreaterThan(tolerance) {
		// Above tolerance the excess is credited back; within it the shop
		// keeps the difference.
		credit := p.refunds.FiatValue(o, inv, over)
		if err := p.users.Credit(ctx, o.UserID, credit, "overpayment"); err != nil {
			return PaymentResult{}, fmt.Errorf("credit overpayment: %w", err)
		}
		return PaymentResult{Outcome: OutcomeOverpaid, Status: status, Credited: credit}, nil
	}
	return PaymentResult{Outcome: OutcomePaid, Status: status}, nil
}

func (p *ProcessPayment) underpaid(ctx context.Context, o *domain.Order, inv *domain.Invoice, now time.Time) (PaymentResult, error) {
	count, err := p.invoices.IncrementUnderpay(ctx, inv.ID)
	if err != nil {
		return PaymentResult{}, fmt.Errorf("increment underpay: %w", err)
	}

	if count <= 1 {
		// First strike of the underpayment path: one fixed deadline
		// extension, order parks in the partial state.
		ok, err := p.orders.UpdateStatusIf(ctx, o.ID, domain.PendingStatuses(), domain.StatusPendingPaymentPartial, now)
		if err != nil {
			return PaymentResult{}, err
		}
		if !ok {
			return PaymentResult{}, ErrConcurrencyConflict
		}
		deadline := o.ExpiresAt.Add(p.cfg.PartialExtension)
		if err := p.orders.ExtendExpiry(ctx, o.ID, deadline); err != nil {
			return PaymentResult{}, fmt.Errorf("extend expiry: %w", err)
		}
		return PaymentResult{Outcome: OutcomeUnderpaidGrace, Status: domain.StatusPendingPaymentPartial}, nil
	}

	// Second underpayment cancels for good: paid amount comes back minus
	// penalty, one strike issued.
	br, err := p.refunds.Compute(o, inv, ReasonUnderpayment, now)
	if err != nil {
		return PaymentResult{}, err
	}
	won, err := p.lifecycle.Cancel(ctx, o, domain.StatusCancelledBySystem, ReasonUnderpayment, br, now)
	if err != nil {
		return PaymentResult{}, err
	}
	if !won {
		return p.lostRace(ctx, o, inv, inv.AmountPaid)
	}
	return PaymentResult{Outcome: OutcomeUnderpaidCancelled, Status: domain.StatusCancelledBySystem, Credited: br.FinalCredit}, nil
}

// latePayment routes a correct-but-late amount through the cancellation and
// penalty path. If the sweep already cancelled the order, only this
// transaction still needs crediting.
func (p *ProcessPayment) latePayment(ctx context.Context, o *domain.Order, inv *domain.Invoice, amount decimal.Decimal, now time.Time) (PaymentResult, error) {
	if o.Status.Pending() {
		br, err := p.refunds.Compute(o, inv, ReasonLatePayment, now)
		if err != nil {
			return PaymentResult{}, err
		}
		won, err := p.lifecycle.Cancel(ctx, o, domain.StatusCancelledBySystem, ReasonLatePayment, br, now)
		if err != nil {
			return PaymentResult{}, err
		}
		if won {
			return PaymentResult{Outcome: OutcomeLate, Status: domain.StatusCancelledBySystem, Credited: br.FinalCredit}, nil
		}
	}
	return p.creditLateTx(ctx, o, inv, amount)
}

// creditLateTx credits the fiat value of a single transaction minus the late
// penalty, for orders whose cancellation (and earlier-payment crediting)
// already happened elsewhere.
func (p *ProcessPayment) creditLateTx(ctx context.Context, o *domain.Order, inv *domain.Invoice, amount decimal.Decimal) (PaymentResult, error) {
	base := p.refunds.FiatValue(o, inv, amount)
	penalty := base.Mul(p.cfg.LatePenaltyPct).Round(2)
	credit := base.Sub(penalty)
	if credit.IsPositive() {
		if err := p.users.Credit(ctx, o.UserID, credit, "late_payment"); err != nil {
			return PaymentResult{}, fmt.Errorf("credit late payment: %w", err)
		}
	}
	return PaymentResult{Outcome: OutcomeLate, Status: domain.StatusCancelledBySystem, Credited: credit}, nil
}

// creditSurplus handles money arriving after the order already settled.
func (p *ProcessPayment) creditSurplus(ctx context.Context, o *domain.Order, inv *domain.Invoice, amount decimal.Decimal) (PaymentResult, error) {
	credit := p.refunds.FiatValue(o, inv, amount)
	if credit.IsPositive() {
		if err := p.users.Credit(ctx, o.UserID, credit, "surplus_payment"); err != nil {
			return PaymentResult{}, fmt.Errorf("credit surplus: %w", err)
		}
	}
	return PaymentResult{Outcome: OutcomeOverpaid, Status: o.Status, Credited: credit}, nil
}

// lostRace re-reads the order after a zero-row conditional write and settles
// the transaction against whichever state won.
func (p *ProcessPayment) lostRace(ctx context.Context, o *domain.Order, inv *domain.Invoice, amount decimal.Decimal) (PaymentResult, error) {
	fresh, err := p.orders.GetByID(ctx, o.ID)
	if err != nil {
		return PaymentResult{}, err
	}
	switch {
	case fresh.Status.Cancelled():
		return p.creditLateTx(ctx, fresh, inv, amount)
	case fresh.Status == domain.StatusPaid || fresh.Status == domain.StatusPaidAwaitingShipment || fresh.Status == domain.StatusShipped:
		return p.creditSurplus(ctx, fresh, inv, amount)
	}
	return PaymentResult{}, ErrConcurrencyConflict
}
