package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const recordColumns = `id, gateway_payment_id, gateway_subscription_id, signature, created_at`

type postgresLedger struct{ db *sql.DB }

// NewPostgresLedger returns a Ledger over the payment table.
func NewPostgresLedger(db *sql.DB) Ledger { return postgresLedger{db: db} }

func (l postgresLedger) Create(ctx context.Context, record PaymentRecord) (PaymentRecord, bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	stored, err := scanRecord(l.db.QueryRowContext(ctx,
		`INSERT INTO payment (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (gateway_payment_id) DO NOTHING
		RETURNING `+recordColumns,
		record.ID, record.GatewayPaymentID, record.GatewaySubscriptionID, record.Signature, record.CreatedAt.UTC(),
	))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return PaymentRecord{}, false, fmt.Errorf("insert payment: %w", err)
	}

	existing, err := scanRecord(l.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM payment WHERE gateway_payment_id = $1`, record.GatewayPaymentID))
	if err != nil {
		return PaymentRecord{}, false, fmt.Errorf("select existing payment: %w", err)
	}
	return existing, false, nil
}

func (l postgresLedger) FindBySubscriptionID(ctx context.Context, subscriptionID string) (PaymentRecord, error) {
	rec, err := scanRecord(l.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM payment
		  WHERE gateway_subscription_id = $1
		  ORDER BY created_at DESC
		  LIMIT 1`, subscriptionID))
	if errors.Is(err, sql.ErrNoRows) {
		return PaymentRecord{}, ErrNotFound
	}
	if err != nil {
		return PaymentRecord{}, fmt.Errorf("select payment: %w", err)
	}
	return rec, nil
}

func (l postgresLedger) Delete(ctx context.Context, record PaymentRecord) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM payment WHERE id = $1`, record.ID)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (l postgresLedger) List(ctx context.Context, count, skip int) ([]PaymentRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM payment ORDER BY created_at DESC LIMIT $1 OFFSET $2`, count, skip)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []PaymentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (PaymentRecord, error) {
	var rec PaymentRecord
	if err := row.Scan(&rec.ID, &rec.GatewayPaymentID, &rec.GatewaySubscriptionID, &rec.Signature, &rec.CreatedAt); err != nil {
		return PaymentRecord{}, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}
