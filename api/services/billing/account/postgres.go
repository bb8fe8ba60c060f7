package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type postgresStore struct{ db *sql.DB }

// NewPostgresStore returns a Store over the user_account table.
func NewPostgresStore(db *sql.DB) Store { return postgresStore{db: db} }

func (s postgresStore) Get(ctx context.Context, id string) (Account, error) {
	var a Account
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, role, subscription_id, subscription_status, version FROM user_account WHERE id = $1`, id,
	).Scan(&a.ID, &a.Role, &a.Subscription.ID, &status, &a.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("select user_account: %w", err)
	}
	a.Subscription.Status = SubscriptionState(status)
	return a, nil
}

func (s postgresStore) UpdateSubscription(ctx context.Context, id string, version int64, sub Subscription) (int64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE user_account
		    SET subscription_id = $3, subscription_status = $4, version = version + 1
		  WHERE id = $1 AND version = $2
		RETURNING version`,
		id, version, sub.ID, string(sub.Status),
	).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the row vanished or someone else bumped the version.
		if _, getErr := s.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, ErrVersionConflict
	}
	if err != nil {
		return 0, fmt.Errorf("update user_account: %w", err)
	}
	return next, nil
}
