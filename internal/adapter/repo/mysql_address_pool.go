package repo

import (
	"context"
	"database/sql"
	"fmt"

	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/6R1M5L07H/shopcore/internal/usecase"
)

// MySQLAddressPool leases payment addresses from a pre-generated pool, one
// per order. The row lock keeps two checkouts from leasing the same address.
type MySQLAddressPool struct{ db *sql.DB }

func NewMySQLAddressPool(db *sql.DB) *MySQLAddressPool { return &MySQLAddressPool{db: db} }

func (p *MySQLAddressPool) Lease(ctx context.Context, currency domain.Currency, orderID string) (string, error) {
	var address string
	err := withRetry(ctx, p.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
SELECT address FROM address_pool
WHERE currency = ? AND order_id IS NULL
ORDER BY id LIMIT 1 FOR UPDATE SKIP LOCKED`, string(currency)).Scan(&address)
		if err == sql.ErrNoRows {
			return fmt.Errorf("address pool exhausted for %s", currency)
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
UPDATE address_pool SET order_id = ?, leased_at = NOW() WHERE address = ?`,
			orderID, address)
		return err
	})
	if err != nil {
		return "", err
	}
	return address, nil
}

var _ usecase.AddressAllocator = (*MySQLAddressPool)(nil)
