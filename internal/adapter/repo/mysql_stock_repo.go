package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/6R1M5L07H/shopcore/internal/usecase"
	"github.com/google/uuid"
)

// MySQLStockLedger allocates and releases finite item quantities. Every
// reserve/consume runs under row locks on the product rows, re-reading
// availability before committing, so concurrent orders cannot oversubscribe
// an item.
type MySQLStockLedger struct{ db *sql.DB }

func NewMySQLStockLedger(db *sql.DB) *MySQLStockLedger { return &MySQLStockLedger{db: db} }

func (l *MySQLStockLedger) Reserve(ctx context.Context, orderID string, lines []domain.LineItem, expiresAt time.Time) (domain.ReservationResult, error) {
	var result domain.ReservationResult

	err := withRetry(ctx, l.db, func(tx *sql.Tx) error {
		result = domain.ReservationResult{}
		for _, li := range lines {
			var stock int
			err := tx.QueryRowContext(ctx,
				`SELECT stock FROM products WHERE id = ? FOR UPDATE`, li.ItemID).Scan(&stock)
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: product %s", usecase.ErrNotFound, li.ItemID)
			}
			if err != nil {
				return fmt.Errorf("lock product %s: %w", li.ItemID, err)
			}

			// Expired holds no longer count: their orders can only end in
			// cancellation, never in consumption.
			var held int
			err = tx.QueryRowContext(ctx, `
SELECT COALESCE(SUM(quantity),0) FROM stock_reservations
WHERE item_id = ? AND status = 'ACTIVE' AND expires_at > NOW()`, li.ItemID).Scan(&held)
			if err != nil {
				return fmt.Errorf("sum reservations %s: %w", li.ItemID, err)
			}

			available := stock - held
			if available < 0 {
				available = 0
			}
			hold := li.Quantity
			if hold > available {
				hold = available
				result.Shortfall = append(result.Shortfall, domain.Shortfall{
					ItemID:    li.ItemID,
					Requested: li.Quantity,
					Available: available,
				})
			}
			if hold == 0 {
				continue
			}

			resv := domain.StockReservation{
				ID:        uuid.NewString(),
				OrderID:   orderID,
				ItemID:    li.ItemID,
				Quantity:  hold,
				Status:    domain.ReservationActive,
				ExpiresAt: expiresAt,
			}
			_, err = tx.ExecContext(ctx, `
INSERT INTO stock_reservations (id,order_id,item_id,quantity,status,expires_at,created_at)
VALUES (?,?,?,?,?,?,NOW())`,
				resv.ID, resv.OrderID, resv.ItemID, resv.Quantity, string(resv.Status), resv.ExpiresAt)
			if err != nil {
				return fmt.Errorf("insert reservation: %w", err)
			}
			result.Reserved = append(result.Reserved, resv)
		}
		return nil
	})
	if err != nil {
		return domain.ReservationResult{}, err
	}
	return result, nil
}

// Release is idempotent: only ACTIVE rows match, so the second call affects
// zero rows and is a no-op.
func (l *MySQLStockLedger) Release(ctx context.Context, orderID string) error {
	_, err := l.db.ExecContext(ctx, `
UPDATE stock_reservations SET status = 'RELEASED', released_at = NOW()
WHERE order_id = ? AND status = 'ACTIVE'`, orderID)
	return err
}

// consumeReservationsTx permanently decrements product stock for the order's
// ACTIVE reservations, inside the caller's transaction. It runs as part of
// the paid settlement so consumption and the status write commit together.
func consumeReservationsTx(ctx context.Context, tx *sql.Tx, orderID string) error {
	rows, err := tx.QueryContext(ctx, `
SELECT item_id, quantity FROM stock_reservations
WHERE order_id = ? AND status = 'ACTIVE' FOR UPDATE`, orderID)
	if err != nil {
		return err
	}
	type hold struct {
		itemID string
		qty    int
	}
	var holds []hold
	for rows.Next() {
		var h hold
		if err := rows.Scan(&h.itemID, &h.qty); err != nil {
			rows.Close()
			return err
		}
		holds = append(holds, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, h := range holds {
		res, err := tx.ExecContext(ctx, `
UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`,
			h.qty, h.itemID, h.qty)
		if err != nil {
			return fmt.Errorf("decrement stock %s: %w", h.itemID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			// Reserved quantity must always be coverable; this means the
			// ledger and the product row disagree.
			return fmt.Errorf("stock underflow for item %s", h.itemID)
		}
	}

	_, err = tx.ExecContext(ctx, `
UPDATE stock_reservations SET status = 'CONSUMED'
WHERE order_id = ? AND status = 'ACTIVE'`, orderID)
	return err
}

// releaseReservationsTx is the in-transaction twin of Release.
func releaseReservationsTx(ctx context.Context, tx *sql.Tx, orderID string) error {
	_, err := tx.ExecContext(ctx, `
UPDATE stock_reservations SET status = 'RELEASED', released_at = NOW()
WHERE order_id = ? AND status = 'ACTIVE'`, orderID)
	return err
}

var _ usecase.StockLedger = (*MySQLStockLedger)(nil)
