// Package settlement closes out a refunded payment: the ledger record goes
// away and the account lets go of the subscription in the same commit.
package settlement

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/ledger"
)

// Settler finishes a refund locally.
type Settler interface {
	// Settle deletes record and, when the account still holds
	// record.GatewaySubscriptionID, clears its subscription sub-record.
	// Either both writes land or neither does. The result reports whether the
	// account was cleared; a record already gone is not an error.
	Settle(ctx context.Context, accountID string, record ledger.PaymentRecord) (bool, error)
}

type postgresSettler struct{ db *sql.DB }

// NewPostgresSettler returns a Settler over the payment and user_account tables.
func NewPostgresSettler(db *sql.DB) Settler { return postgresSettler{db: db} }

func (s postgresSettler) Settle(ctx context.Context, accountID string, record ledger.PaymentRecord) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin settlement: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM payment WHERE gateway_payment_id = $1`, record.GatewayPaymentID); err != nil {
		return false, fmt.Errorf("delete payment: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE user_account
		    SET subscription_id = '', subscription_status = '', version = version + 1
		  WHERE id = $1 AND subscription_id = $2`,
		accountID, record.GatewaySubscriptionID)
	if err != nil {
		return false, fmt.Errorf("clear user_account subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear user_account subscription: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit settlement: %w", err)
	}
	return n > 0, nil
}
