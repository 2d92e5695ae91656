package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/6R1M5L07H/shopcore/internal/usecase"
	"github.com/shopspring/decimal"
)

// MySQLUserLedger holds pre-funded balances and strikes. Every balance move
// leaves an audit row so credits and debits are reconstructible.
type MySQLUserLedger struct{ db *sql.DB }

func NewMySQLUserLedger(db *sql.DB) *MySQLUserLedger { return &MySQLUserLedger{db: db} }

func (r *MySQLUserLedger) Credit(ctx context.Context, userID string, amount decimal.Decimal, reason string) error {
	return withRetry(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET balance = balance + ? WHERE id = ?`, amount, userID)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: user %s", usecase.ErrNotFound, userID)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO balance_entries (user_id,amount,reason,created_at) VALUES (?,?,?,NOW())`,
			userID, amount, reason)
		return err
	})
}

// DebitIf subtracts only when the balance covers the amount; the guard lives
// in the WHERE clause so two concurrent debits cannot drive it negative.
func (r *MySQLUserLedger) DebitIf(ctx context.Context, userID string, amount decimal.Decimal, reason string) (bool, error) {
	ok := false
	err := withRetry(ctx, r.db, func(tx *sql.Tx) error {
		ok = false
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET balance = balance - ? WHERE id = ? AND balance >= ?`,
			amount, userID, amount)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		ok = true
		_, err = tx.ExecContext(ctx, `
INSERT INTO balance_entries (user_id,amount,reason,created_at) VALUES (?,?,?,NOW())`,
			userID, amount.Neg(), reason)
		return err
	})
	return ok, err
}

func (r *MySQLUserLedger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT balance FROM users WHERE id = ?`, userID).Scan(&bal)
	if err == sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("%w: user %s", usecase.ErrNotFound, userID)
	}
	return bal, err
}

func (r *MySQLUserLedger) AddStrike(ctx context.Context, userID string, reason string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET strikes = strikes + 1 WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %s", usecase.ErrNotFound, userID)
	}
	return nil
}

var _ usecase.UserLedger = (*MySQLUserLedger)(nil)
