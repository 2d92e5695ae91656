package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is the payment target for one order's active payment attempt.
// The invoice number and amount due never change after creation; amount paid
// and the underpayment counter advance as confirmed transactions arrive, and
// the whole record freezes once the order reaches a terminal or paid state.
type Invoice struct {
	ID            string
	Number        string // human-facing, immutable
	OrderID       string
	Currency      Currency
	Address       string
	AmountDue     decimal.Decimal
	AmountPaid    decimal.Decimal
	UnderpayCount int
	CreatedAt     time.Time
}

// Outstanding is the normalized remainder still owed.
func (i *Invoice) Outstanding() decimal.Decimal {
	rem := i.AmountDue.Sub(i.AmountPaid)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return i.Currency.Normalize(rem)
}

// InvoiceTransaction is one confirmed on-chain payment credited to an
// invoice. The hash is unique across all invoices; replays are detected on it.
type InvoiceTransaction struct {
	TxHash        string
	InvoiceID     string
	Amount        decimal.Decimal
	Confirmations int
	SeenAt        time.Time
}
