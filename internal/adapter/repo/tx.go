package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/6R1M5L07H/shopcore/internal/usecase"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const maxTxRetries = 3

var txConflicts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mysql_tx_conflicts_total",
		Help: "Row-lock conflicts hit inside retryable transactions",
	},
	[]string{"result"},
)

// retryable reports whether a transaction should be retried: MySQL deadlock
// (1213) and lock wait timeout (1205) are races, not failures.
func retryable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	return false
}

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

// withRetry runs fn inside a transaction, retrying a bounded number of times
// on deadlock/lock-timeout with jittered backoff. Anything else rolls back
// and surfaces immediately.
func withRetry(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	backoff := 25 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= maxTxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}

		err = fn(tx)
		if err == nil {
			err = tx.Commit()
			if err == nil {
				return nil
			}
		} else {
			_ = tx.Rollback()
		}

		if !retryable(err) {
			return err
		}
		txConflicts.WithLabelValues("retried").Inc()
		lastErr = err
		if attempt == maxTxRetries {
			break
		}

		jitter := time.Duration(rand.Int63n(int64(backoff / 2)))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	txConflicts.WithLabelValues("exhausted").Inc()
	return fmt.Errorf("%w: tx retries exhausted: %v", usecase.ErrConcurrencyConflict, lastErr)
}
