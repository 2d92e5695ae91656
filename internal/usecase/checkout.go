package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartLine struct {
	ItemID    string
	Quantity  int
	UnitPrice decimal.Decimal
	Physical  bool
}

type CheckoutInput struct {
	UserID          string
	IdempotencyKey  string
	Lines           []CartLine
	ShippingCost    decimal.Decimal
	Currency        domain.Currency
	UseBalance      bool
	ShippingAddress string
}

type CheckoutOutput struct {
	OrderID        string
	Status         domain.Status
	PaymentAddress string
	AmountDue      decimal.Decimal
	Currency       domain.Currency
	ExpiresAt      time.Time
}

// Checkout reserves stock, creates the order and opens its invoice. A
// partially satisfiable reservation comes back as a ShortfallError so the
// storefront can offer reduced quantities instead of failing outright.
type Checkout struct {
	orders    OrderRepo
	stock     StockLedger
	invoices  InvoiceRepo
	users     UserLedger
	idem      IdempotencyStore
	addrs     AddressAllocator
	rates     RateSource
	lifecycle *Lifecycle
	cfg       PricingConfig
	now       func() time.Time
	log       *slog.Logger
}

func NewCheckout(orders OrderRepo, stock StockLedger, invoices InvoiceRepo, users UserLedger,
	idem IdempotencyStore, addrs AddressAllocator, rates RateSource, lifecycle *Lifecycle,
	cfg PricingConfig, log *slog.Logger) *Checkout {
	return &Checkout{
		orders: orders, stock: stock, invoices: invoices, users: users,
		idem: idem, addrs: addrs, rates: rates, lifecycle: lifecycle,
		cfg: cfg, now: time.Now, log: log,
	}
}

func (uc *Checkout) Execute(ctx context.Context, in CheckoutInput) (CheckoutOutput, error) {
	if err := uc.validate(in); err != nil {
		return CheckoutOutput{}, err
	}

	// Fast path: replayed idempotency key returns the existing order.
	if id, ok, _ := uc.idem.Recall(ctx, in.UserID, in.IdempotencyKey); ok {
		return uc.existing(ctx, id)
	}
	ok, err := uc.idem.TryLock(ctx, in.UserID, in.IdempotencyKey)
	if err != nil {
		return CheckoutOutput{}, err
	}
	if !ok {
		return CheckoutOutput{}, ErrDuplicateRequest
	}

	now := uc.now()
	orderID := uuid.NewString()
	lines := make([]domain.LineItem, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, domain.LineItem{
			ItemID:    l.ItemID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Physical:  l.Physical,
		})
	}

	expiresAt := now.Add(uc.cfg.OrderTTL)
	res, err := uc.stock.Reserve(ctx, orderID, lines, expiresAt)
	if err != nil {
		return CheckoutOutput{}, fmt.Errorf("reserve stock: %w", err)
	}
	// Until the order row exists the expiration sweep cannot see this hold.
	// Any exit before that point gives the hold back and frees the
	// idempotency key for a retry.
	committed := false
	defer func() {
		if committed {
			return
		}
		if rerr := uc.stock.Release(ctx, orderID); rerr != nil {
			uc.log.Error("release after failed checkout", "order_id", orderID, "err", rerr)
		}
		if uerr := uc.idem.Unlock(ctx, in.UserID, in.IdempotencyKey); uerr != nil {
			uc.log.Warn("idempotency unlock failed", "key", in.IdempotencyKey, "err", uerr)
		}
	}()
	if !res.FullySatisfied() {
		// The storefront can re-offer the reduced quantities.
		return CheckoutOutput{}, &ShortfallError{Shortfall: res.Shortfall}
	}

	o := &domain.Order{
		ID:           orderID,
		UserID:       in.UserID,
		Lines:        lines,
		Status:       domain.StatusPendingPayment,
		ShippingCost: in.ShippingCost,
		CreatedAt:    now,
		GraceEndsAt:  now.Add(uc.cfg.GraceWindow),
		ExpiresAt:    expiresAt,
	}
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	o.TotalPrice = total.Add(in.ShippingCost)
	if o.HasPhysical() && in.ShippingAddress == "" {
		o.Status = domain.StatusPendingPaymentAndAddress
	}
	if err := o.Validate(); err != nil {
		return CheckoutOutput{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	remainder := o.TotalPrice
	if in.UseBalance {
		applied, err := uc.applyBalance(ctx, in.UserID, o.TotalPrice)
		if err != nil {
			return CheckoutOutput{}, err
		}
		o.BalanceApplied = applied
		remainder = o.TotalPrice.Sub(applied)
	}

	if err := uc.orders.Create(ctx, o); err != nil {
		return CheckoutOutput{}, fmt.Errorf("create order: %w", err)
	}
	committed = true

	out := CheckoutOutput{OrderID: o.ID, Status: o.Status, ExpiresAt: o.ExpiresAt}

	if remainder.IsPositive() {
		inv, err := uc.openInvoice(ctx, o, in.Currency, remainder, now)
		if err != nil {
			return CheckoutOutput{}, err
		}
		out.PaymentAddress = inv.Address
		out.AmountDue = inv.AmountDue
		out.Currency = inv.Currency
	} else {
		// Balance covered the whole order; no invoice, straight to paid.
		status, won, err := uc.lifecycle.MarkPaid(ctx, o, now)
		if err != nil {
			return CheckoutOutput{}, err
		}
		if !won {
			return CheckoutOutput{}, ErrConcurrencyConflict
		}
		out.Status = status
	}

	_ = uc.idem.Remember(ctx, in.UserID, in.IdempotencyKey, o.ID)
	return out, nil
}

func (uc *Checkout) validate(in CheckoutInput) error {
	if in.UserID == "" || len(in.Lines) == 0 {
		return fmt.Errorf("%w: user and at least one line required", ErrValidation)
	}
	for _, l := range in.Lines {
		if l.ItemID == "" || l.Quantity <= 0 || l.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: bad line item %q", ErrValidation, l.ItemID)
		}
	}
	if in.ShippingCost.IsNegative() {
		return fmt.Errorf("%w: negative shipping", ErrValidation)
	}
	if in.Currency != "" && !in.Currency.Valid() {
		return fmt.Errorf("%w: unsupported currency %q", ErrValidation, in.Currency)
	}
	return nil
}

func (uc *Checkout) existing(ctx context.Context, orderID string) (CheckoutOutput, error) {
	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return CheckoutOutput{}, err
	}
	out := CheckoutOutput{OrderID: o.ID, Status: o.Status, ExpiresAt: o.ExpiresAt, PaymentAddress: o.PaymentAddress, Currency: o.Crypto}
	if o.InvoiceID != "" {
		if inv, err := uc.invoices.GetByOrderID(ctx, o.ID); err == nil && inv != nil {
			out.AmountDue = inv.AmountDue
		}
	}
	return out, nil
}

// applyBalance debits as much of the user's balance as the order needs,
// possibly all of it.
func (uc *Checkout) applyBalance(ctx context.Context, userID string, total decimal.Decimal) (decimal.Decimal, error) {
	bal, err := uc.users.Balance(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load balance: %w", err)
	}
	apply := decimal.Min(bal, total)
	if !apply.IsPositive() {
		return decimal.Zero, nil
	}
	ok, err := uc.users.DebitIf(ctx, userID, apply, "checkout")
	if err != nil {
		return decimal.Zero, fmt.Errorf("debit balance: %w", err)
	}
	if !ok {
		// Balance moved underneath us; proceed without it rather than fail.
		return decimal.Zero, nil
	}
	return apply, nil
}

func (uc *Checkout) openInvoice(ctx context.Context, o *domain.Order, currency domain.Currency, fiatRemainder decimal.Decimal, now time.Time) (*domain.Invoice, error) {
	if currency == "" {
		return nil, fmt.Errorf("%w: currency required for crypto payment", ErrValidation)
	}
	address, err := uc.addrs.Lease(ctx, currency, o.ID)
	if err != nil {
		return nil, fmt.Errorf("lease address: %w", err)
	}
	due, err := uc.rates.Quote(ctx, fiatRemainder, currency)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", currency, err)
	}
	inv := &domain.Invoice{
		ID:        uuid.NewString(),
		Number:    fmt.Sprintf("INV-%d", now.UnixNano()),
		OrderID:   o.ID,
		Currency:  currency,
		Address:   address,
		AmountDue: currency.Normalize(due),
		CreatedAt: now,
	}
	if err := uc.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	if err := uc.orders.SetPaymentTarget(ctx, o.ID, currency, address, inv.ID); err != nil {
		return nil, fmt.Errorf("set payment target: %w", err)
	}
	o.Crypto = currency
	o.PaymentAddress = address
	o.InvoiceID = inv.ID
	return inv, nil
}
