package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/6R1M5L07H/shopcore/internal/usecase"
)

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

func (r *MySQLOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	return withRetry(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO orders (id,user_id,status,total_price,balance_applied,shipping_cost,
                    created_at,grace_ends_at,expires_at,crypto_currency,payment_address,invoice_id,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,NOW())`,
			o.ID, o.UserID, string(o.Status), o.TotalPrice, o.BalanceApplied, o.ShippingCost,
			o.CreatedAt, o.GraceEndsAt, o.ExpiresAt, nullStr(string(o.Crypto)), nullStr(o.PaymentAddress), nullStr(o.InvoiceID))
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for _, li := range o.Lines {
			_, err := tx.ExecContext(ctx, `
INSERT INTO order_items (order_id,item_id,quantity,unit_price,is_physical,delivered)
VALUES (?,?,?,?,?,?)`,
				o.ID, li.ItemID, li.Quantity, li.UnitPrice, li.Physical, li.Delivered)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,user_id,status,total_price,balance_applied,shipping_cost,
       created_at,grace_ends_at,expires_at,paid_at,shipped_at,cancelled_at,
       crypto_currency,payment_address,invoice_id
FROM orders WHERE id=?`, id)

	var o domain.Order
	var status string
	var crypto, address, invoiceID sql.NullString
	var paidAt, shippedAt, cancelledAt sql.NullTime
	err := row.Scan(&o.ID, &o.UserID, &status, &o.TotalPrice, &o.BalanceApplied, &o.ShippingCost,
		&o.CreatedAt, &o.GraceEndsAt, &o.ExpiresAt, &paidAt, &shippedAt, &cancelledAt,
		&crypto, &address, &invoiceID)
	if err == sql.ErrNoRows {
		return nil, usecase.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = domain.Status(status)
	o.Crypto = domain.Currency(crypto.String)
	o.PaymentAddress = address.String
	o.InvoiceID = invoiceID.String
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	if shippedAt.Valid {
		o.ShippedAt = &shippedAt.Time
	}
	if cancelledAt.Valid {
		o.CancelledAt = &cancelledAt.Time
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT item_id,quantity,unit_price,is_physical,delivered
FROM order_items WHERE order_id=? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var li domain.LineItem
		if err := rows.Scan(&li.ItemID, &li.Quantity, &li.UnitPrice, &li.Physical, &li.Delivered); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, li)
	}
	return &o, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execStatusUpdate is the single-writer invariant: the write matches only
// while the stored status is one of `from`, and zero affected rows means
// another actor won.
func execStatusUpdate(ctx context.Context, ex execer, id string, from []domain.Status, to domain.Status, at time.Time) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("empty from-status set")
	}
	args := []any{string(to)}
	stampCol := stampColumn(to)
	set := "status = ?, updated_at = NOW()"
	if stampCol != "" {
		set += ", " + stampCol + " = ?"
		args = append(args, at)
	}
	args = append(args, id)
	placeholders := make([]string, len(from))
	for i, s := range from {
		placeholders[i] = "?"
		args = append(args, string(s))
	}

	res, err := ex.ExecContext(ctx, `
UPDATE orders SET `+set+`
WHERE id = ? AND status IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *MySQLOrderRepo) UpdateStatusIf(ctx context.Context, id string, from []domain.Status, to domain.Status, at time.Time) (bool, error) {
	return execStatusUpdate(ctx, r.db, id, from, to, at)
}

// MarkPaidTx commits the paid transition, the reservation consumption and the
// digital delivery flags as one transaction: an order is never PAID while its
// reservations are still ACTIVE.
func (r *MySQLOrderRepo) MarkPaidTx(ctx context.Context, id string, from []domain.Status, to domain.Status, at time.Time) (bool, error) {
	var won bool
	err := withRetry(ctx, r.db, func(tx *sql.Tx) error {
		won = false
		ok, err := execStatusUpdate(ctx, tx, id, from, to, at)
		if err != nil || !ok {
			return err
		}
		if err := consumeReservationsTx(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE order_items SET delivered = 1 WHERE order_id = ? AND is_physical = 0`, id); err != nil {
			return fmt.Errorf("deliver digital lines: %w", err)
		}
		won = true
		return nil
	})
	return won, err
}

// CancelTx commits the cancelled transition and the release of any still
// active reservations together. For paid orders the release matches zero
// rows; their reservations were consumed at settlement.
func (r *MySQLOrderRepo) CancelTx(ctx context.Context, id string, from []domain.Status, to domain.Status, at time.Time) (bool, error) {
	var won bool
	err := withRetry(ctx, r.db, func(tx *sql.Tx) error {
		won = false
		ok, err := execStatusUpdate(ctx, tx, id, from, to, at)
		if err != nil || !ok {
			return err
		}
		if err := releaseReservationsTx(ctx, tx, id); err != nil {
			return err
		}
		won = true
		return nil
	})
	return won, err
}

// MarkShippedTx confirms shipment and flags the physical lines delivered in
// one transaction.
func (r *MySQLOrderRepo) MarkShippedTx(ctx context.Context, id string, at time.Time) (bool, error) {
	var won bool
	err := withRetry(ctx, r.db, func(tx *sql.Tx) error {
		won = false
		ok, err := execStatusUpdate(ctx, tx, id,
			[]domain.Status{domain.StatusPaidAwaitingShipment}, domain.StatusShipped, at)
		if err != nil || !ok {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE order_items SET delivered = 1 WHERE order_id = ? AND is_physical = 1`, id); err != nil {
			return fmt.Errorf("deliver physical lines: %w", err)
		}
		won = true
		return nil
	})
	return won, err
}

func stampColumn(to domain.Status) string {
	switch {
	case to == domain.StatusPaid || to == domain.StatusPaidAwaitingShipment:
		return "paid_at"
	case to == domain.StatusShipped:
		return "shipped_at"
	case to.Cancelled():
		return "cancelled_at"
	}
	return ""
}

// ExtendExpiry moves the order deadline and keeps the reservation deadlines
// in step, so an extended order's holds keep counting against availability.
func (r *MySQLOrderRepo) ExtendExpiry(ctx context.Context, id string, deadline time.Time) error {
	return withRetry(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE orders SET expires_at = ?, updated_at = NOW() WHERE id = ?`, deadline, id)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return usecase.ErrNotFound
		}
		_, err = tx.ExecContext(ctx, `
UPDATE stock_reservations SET expires_at = ?
WHERE order_id = ? AND status = 'ACTIVE'`, deadline, id)
		return err
	})
}

func (r *MySQLOrderRepo) SetPaymentTarget(ctx context.Context, id string, crypto domain.Currency, address, invoiceID string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET crypto_currency = ?, payment_address = ?, invoice_id = ?, updated_at = NOW()
WHERE id = ?`, string(crypto), address, invoiceID, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return usecase.ErrNotFound
	}
	return nil
}

func (r *MySQLOrderRepo) ListExpired(ctx context.Context, now time.Time, statuses []domain.Status, limit int) ([]string, error) {
	placeholders := make([]string, len(statuses))
	args := []any{now}
	for i, s := range statuses {
		placeholders[i] = "?"
		args = append(args, string(s))
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, `
SELECT id FROM orders
WHERE expires_at <= ? AND status IN (`+strings.Join(placeholders, ",")+`)
ORDER BY expires_at LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)
