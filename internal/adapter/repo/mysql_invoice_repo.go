package repo

import (
	"context"
	"database/sql"
	"fmt"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/6R1M5L07H/shopcore/internal/usecase"
)

type MySQLInvoiceRepo struct{ db *sql.DB }

func NewMySQLInvoiceRepo(db *sql.DB) *MySQLInvoiceRepo { return &MySQLInvoiceRepo{db: db} }

func (r *MySQLInvoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO invoices (id,number,order_id,currency,address,amount_due,amount_paid,underpay_count,created_at)
VALUES (?,?,?,?,?,?,0,0,?)`,
		inv.ID, inv.Number, inv.OrderID, string(inv.Currency), inv.Address, inv.AmountDue, inv.CreatedAt)
	return err
}

func (r *MySQLInvoiceRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,number,order_id,currency,address,amount_due,amount_paid,underpay_count,created_at
FROM invoices WHERE order_id = ?`, orderID)

	var inv domain.Invoice
	var currency string
	err := row.Scan(&inv.ID, &inv.Number, &inv.OrderID, &currency, &inv.Address,
		&inv.AmountDue, &inv.AmountPaid, &inv.UnderpayCount, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		// Balance-settled orders have no invoice; callers treat nil as "no
		// active payment attempt".
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	inv.Currency = domain.Currency(currency)
	return &inv, nil
}

// RecordTransaction relies on the unique index on tx_hash: a replay fails the
// insert with a duplicate-key error and the invoice stays untouched.
func (r *MySQLInvoiceRepo) RecordTransaction(ctx context.Context, t *domain.InvoiceTransaction) (bool, error) {
	duplicate := false
	err := withRetry(ctx, r.db, func(tx *sql.Tx) error {
		duplicate = false
		_, err := tx.ExecContext(ctx, `
INSERT INTO invoice_transactions (tx_hash,invoice_id,amount,confirmations,seen_at)
VALUES (?,?,?,?,?)`,
			t.TxHash, t.InvoiceID, t.Amount, t.Confirmations, t.SeenAt)
		if isDuplicateKey(err) {
			duplicate = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE invoices SET amount_paid = amount_paid + ? WHERE id = ?`,
			t.Amount, t.InvoiceID)
		if err != nil {
			return fmt.Errorf("add to amount paid: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return !duplicate, nil
}

func (r *MySQLInvoiceRepo) IncrementUnderpay(ctx context.Context, invoiceID string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET underpay_count = underpay_count + 1 WHERE id = ?`, invoiceID)
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		return 0, usecase.ErrNotFound
	}
	var count int
	err = r.db.QueryRowContext(ctx,
		`SELECT underpay_count FROM invoices WHERE id = ?`, invoiceID).Scan(&count)
	return count, err
}

var _ usecase.InvoiceRepo = (*MySQLInvoiceRepo)(nil)
