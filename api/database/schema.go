package database

import (
	"database/sql"
	"fmt"
)

// schema is applied on every start; each statement must stay idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS user_account (
		id                  TEXT PRIMARY KEY,
		role                TEXT NOT NULL DEFAULT 'USER',
		subscription_id     TEXT NOT NULL DEFAULT '',
		subscription_status TEXT NOT NULL DEFAULT '',
		version             BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS payment (
		id                      UUID PRIMARY KEY,
		gateway_payment_id      TEXT NOT NULL UNIQUE,
		gateway_subscription_id TEXT NOT NULL,
		signature               TEXT NOT NULL,
		created_at              TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS payment_subscription_created_idx
		ON payment (gateway_subscription_id, created_at DESC)`,
}

// EnsureSchema creates the billing tables when they are missing.
func EnsureSchema(conn *sql.DB) error {
	for i, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
