package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/shopspring/decimal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// --- orders ---

type fakeOrders struct {
	mu sync.Mutex
	m  map[string]*domain.Order
	// stock stands in for the reservation tables the settlement transactions
	// touch alongside the order row.
	stock *fakeStock
	// beforeUpdate runs inside UpdateStatusIf before the status check; tests
	// use it to simulate a competing actor winning first.
	beforeUpdate func(o *domain.Order)
	// createErr fails the next Create.
	createErr error
	// getErr fails GetByID for specific ids.
	getErr map[string]error
	// staleList forces ids into ListExpired results, standing in for a scan
	// that worked on a snapshot the live rows have since moved past.
	staleList []string
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{m: map[string]*domain.Order{}}
}

func (f *fakeOrders) put(o *domain.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[o.ID] = o
}

func (f *fakeOrders) Create(_ context.Context, o *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		return err
	}
	if _, ok := f.m[o.ID]; ok {
		return fmt.Errorf("duplicate order %s", o.ID)
	}
	cp := *o
	f.m[o.ID] = &cp
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	o, ok := f.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Lines = append([]domain.LineItem(nil), o.Lines...)
	return &cp, nil
}

func (f *fakeOrders) UpdateStatusIf(_ context.Context, id string, from []domain.Status, to domain.Status, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.m[id]
	if !ok {
		return false, nil
	}
	if f.beforeUpdate != nil {
		hook := f.beforeUpdate
		f.beforeUpdate = nil
		hook(o)
	}
	matched := false
	for _, s := range from {
		if o.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	o.Status = to
	switch {
	case to == domain.StatusPaid || to == domain.StatusPaidAwaitingShipment:
		t := at
		o.PaidAt = &t
	case to == domain.StatusShipped:
		t := at
		o.ShippedAt = &t
	case to.Cancelled():
		t := at
		o.CancelledAt = &t
	}
	return true, nil
}

func (f *fakeOrders) ExtendExpiry(_ context.Context, id string, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.m[id]
	if !ok {
		return ErrNotFound
	}
	o.ExpiresAt = deadline
	return nil
}

// MarkPaidTx mirrors the store's all-or-nothing settlement: when the stock
// consumption fails, the status write does not survive either.
func (f *fakeOrders) MarkPaidTx(ctx context.Context, id string, from []domain.Status, to domain.Status, at time.Time) (bool, error) {
	f.mu.Lock()
	var prev domain.Status
	if o, found := f.m[id]; found {
		prev = o.Status
	}
	f.mu.Unlock()

	ok, err := f.UpdateStatusIf(ctx, id, from, to, at)
	if err != nil || !ok {
		return ok, err
	}
	if f.stock != nil {
		if cerr := f.stock.Consume(ctx, id); cerr != nil {
			f.mu.Lock()
			if o, found := f.m[id]; found {
				o.Status = prev
				o.PaidAt = nil
			}
			f.mu.Unlock()
			return false, cerr
		}
	}
	f.deliver(id, false)
	return true, nil
}

func (f *fakeOrders) CancelTx(ctx context.Context, id string, from []domain.Status, to domain.Status, at time.Time) (bool, error) {
	ok, err := f.UpdateStatusIf(ctx, id, from, to, at)
	if err != nil || !ok {
		return ok, err
	}
	if f.stock != nil {
		// Paid orders consumed their reservations; only pending ones still
		// hold stock.
		for _, s := range from {
			if s.Pending() {
				_ = f.stock.Release(ctx, id)
				break
			}
		}
	}
	return true, nil
}

func (f *fakeOrders) MarkShippedTx(ctx context.Context, id string, at time.Time) (bool, error) {
	ok, err := f.UpdateStatusIf(ctx, id,
		[]domain.Status{domain.StatusPaidAwaitingShipment}, domain.StatusShipped, at)
	if err != nil || !ok {
		return ok, err
	}
	f.deliver(id, true)
	return true, nil
}

func (f *fakeOrders) deliver(id string, physicalOnly bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.m[id]
	if !ok {
		return
	}
	for i := range o.Lines {
		if o.Lines[i].Physical == physicalOnly {
			o.Lines[i].Delivered = true
		}
	}
}

func (f *fakeOrders) SetPaymentTarget(_ context.Context, id string, crypto domain.Currency, address, invoiceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.m[id]
	if !ok {
		return ErrNotFound
	}
	o.Crypto = crypto
	o.PaymentAddress = address
	o.InvoiceID = invoiceID
	return nil
}

func (f *fakeOrders) ListExpired(_ context.Context, now time.Time, statuses []domain.Status, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := append([]string(nil), f.staleList...)
	for id, o := range f.m {
		if len(ids) >= limit {
			break
		}
		if o.ExpiresAt.After(now) {
			continue
		}
		for _, s := range statuses {
			if o.Status == s {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

// --- stock ---

type fakeStock struct {
	mu       sync.Mutex
	stock    map[string]int
	holds    map[string]map[string]int // orderID -> itemID -> qty
	released []string
	consumed []string
	failNext error
}

func newFakeStock(stock map[string]int) *fakeStock {
	return &fakeStock{stock: stock, holds: map[string]map[string]int{}}
}

func (f *fakeStock) activeHolds(itemID string) int {
	n := 0
	for _, h := range f.holds {
		n += h[itemID]
	}
	return n
}

func (f *fakeStock) Reserve(_ context.Context, orderID string, lines []domain.LineItem, expiresAt time.Time) (domain.ReservationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return domain.ReservationResult{}, err
	}
	var res domain.ReservationResult
	hold := map[string]int{}
	for _, l := range lines {
		available := f.stock[l.ItemID] - f.activeHolds(l.ItemID)
		if available < 0 {
			available = 0
		}
		got := l.Quantity
		if available < got {
			got = available
			res.Shortfall = append(res.Shortfall, domain.Shortfall{
				ItemID: l.ItemID, Requested: l.Quantity, Available: available,
			})
		}
		if got > 0 {
			hold[l.ItemID] = got
			res.Reserved = append(res.Reserved, domain.StockReservation{
				OrderID: orderID, ItemID: l.ItemID, Quantity: got,
				Status: domain.ReservationActive, ExpiresAt: expiresAt,
			})
		}
	}
	f.holds[orderID] = hold
	return res, nil
}

func (f *fakeStock) Release(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.holds, orderID)
	f.released = append(f.released, orderID)
	return nil
}

func (f *fakeStock) Consume(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for item, qty := range f.holds[orderID] {
		if f.stock[item] < qty {
			return fmt.Errorf("stock underflow for %s", item)
		}
		f.stock[item] -= qty
	}
	delete(f.holds, orderID)
	f.consumed = append(f.consumed, orderID)
	return nil
}

// --- invoices ---

type fakeInvoices struct {
	mu       sync.Mutex
	byOrder  map[string]*domain.Invoice
	txHashes map[string]bool
	// recordErr fails the next RecordTransaction without recording anything.
	recordErr error
}

func newFakeInvoices() *fakeInvoices {
	return &fakeInvoices{byOrder: map[string]*domain.Invoice{}, txHashes: map[string]bool{}}
}

func (f *fakeInvoices) put(inv *domain.Invoice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byOrder[inv.OrderID] = inv
}

func (f *fakeInvoices) Create(_ context.Context, inv *domain.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *inv
	f.byOrder[inv.OrderID] = &cp
	return nil
}

func (f *fakeInvoices) GetByOrderID(_ context.Context, orderID string) (*domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.byOrder[orderID]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeInvoices) RecordTransaction(_ context.Context, tx *domain.InvoiceTransaction) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		err := f.recordErr
		f.recordErr = nil
		return false, err
	}
	if f.txHashes[tx.TxHash] {
		return false, nil
	}
	f.txHashes[tx.TxHash] = true
	for _, inv := range f.byOrder {
		if inv.ID == tx.InvoiceID {
			inv.AmountPaid = inv.Currency.Normalize(inv.AmountPaid.Add(tx.Amount))
			break
		}
	}
	return true, nil
}

func (f *fakeInvoices) IncrementUnderpay(_ context.Context, invoiceID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.byOrder {
		if inv.ID == invoiceID {
			inv.UnderpayCount++
			return inv.UnderpayCount, nil
		}
	}
	return 0, ErrNotFound
}

// --- users ---

type creditEntry struct {
	UserID string
	Amount decimal.Decimal
	Reason string
}

type fakeUsers struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	credits  []creditEntry
	strikes  map[string]int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{balances: map[string]decimal.Decimal{}, strikes: map[string]int{}}
}

func (f *fakeUsers) Credit(_ context.Context, userID string, amount decimal.Decimal, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] = f.balances[userID].Add(amount)
	f.credits = append(f.credits, creditEntry{UserID: userID, Amount: amount, Reason: reason})
	return nil
}

func (f *fakeUsers) DebitIf(_ context.Context, userID string, amount decimal.Decimal, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[userID].LessThan(amount) {
		return false, nil
	}
	f.balances[userID] = f.balances[userID].Sub(amount)
	return true, nil
}

func (f *fakeUsers) Balance(_ context.Context, userID string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID], nil
}

func (f *fakeUsers) AddStrike(_ context.Context, userID string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strikes[userID]++
	return nil
}

// --- idempotency / cache / events / addresses / rates ---

type fakeIdem struct {
	mu     sync.Mutex
	locked map[string]bool
	stored map[string]string
}

func newFakeIdem() *fakeIdem {
	return &fakeIdem{locked: map[string]bool{}, stored: map[string]string{}}
}

func (f *fakeIdem) TryLock(_ context.Context, scope, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := scope + ":" + key
	if f.locked[k] {
		return false, nil
	}
	f.locked[k] = true
	return true, nil
}

func (f *fakeIdem) Unlock(_ context.Context, scope, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locked, scope+":"+key)
	return nil
}

func (f *fakeIdem) Remember(_ context.Context, scope, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[scope+":"+key] = value
	return nil
}

func (f *fakeIdem) Recall(_ context.Context, scope, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.stored[scope+":"+key]
	return v, ok, nil
}

type fakeCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{m: map[string]string{}} }

func (f *fakeCache) SetStatus(_ context.Context, orderID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[orderID] = status
	return nil
}

func (f *fakeCache) GetStatus(_ context.Context, orderID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.m[orderID], nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []OrderEventMsg
}

func (f *fakePublisher) PublishOrderEvent(_ context.Context, msg OrderEventMsg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

type fakeAddrs struct {
	mu   sync.Mutex
	next int
}

func (f *fakeAddrs) Lease(_ context.Context, currency domain.Currency, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return fmt.Sprintf("%s-addr-%d", currency, f.next), nil
}

type fakeRates struct {
	// fiat price per coin
	rate decimal.Decimal
}

func (f fakeRates) Quote(_ context.Context, fiatAmount decimal.Decimal, currency domain.Currency) (decimal.Decimal, error) {
	info, err := currency.Info()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return fiatAmount.DivRound(f.rate, info.Decimals), nil
}

// --- assembled environment ---

type testEnv struct {
	orders   *fakeOrders
	stock    *fakeStock
	invoices *fakeInvoices
	users    *fakeUsers
	idem     *fakeIdem
	cache    *fakeCache
	events   *fakePublisher
	addrs    *fakeAddrs

	pricing   PricingConfig
	lifecycle *Lifecycle
	refunds   *RefundCalculator
}

func newTestEnv(stock map[string]int) *testEnv {
	e := &testEnv{
		orders:   newFakeOrders(),
		stock:    newFakeStock(stock),
		invoices: newFakeInvoices(),
		users:    newFakeUsers(),
		idem:     newFakeIdem(),
		cache:    newFakeCache(),
		events:   &fakePublisher{},
		addrs:    &fakeAddrs{},
		pricing:  DefaultPricing(),
	}
	e.orders.stock = e.stock
	e.lifecycle = NewLifecycle(e.orders, e.users, e.cache, e.events, testLogger())
	e.refunds = NewRefundCalculator(e.pricing)
	return e
}
