package account

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	config "github.com/tbeaudouin05/billing-lifecycle/api/config"
	database "github.com/tbeaudouin05/billing-lifecycle/api/database"
)

const testAccountID = "account-store-test"

func setupAccountDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in -short mode")
	}
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set")
	}
	if database.GetDB() == nil {
		config.CheckNotProdDB()
		cfg, err := config.LoadConfig()
		require.NoError(t, err)
		config.AppConfig = cfg
		require.NoError(t, database.Initialize())
	}
	db := database.GetDB()
	_, _ = db.Exec("DELETE FROM user_account WHERE id = $1", testAccountID)
	t.Cleanup(func() { _, _ = db.Exec("DELETE FROM user_account WHERE id = $1", testAccountID) })
	return db
}

func TestPostgresStore_GetMissing(t *testing.T) {
	db := setupAccountDB(t)
	_, err := NewPostgresStore(db).Get(context.Background(), testAccountID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_UpdateSubscriptionBumpsVersion(t *testing.T) {
	db := setupAccountDB(t)
	_, err := db.Exec("INSERT INTO user_account (id, role) VALUES ($1, 'USER')", testAccountID)
	require.NoError(t, err)

	store := NewPostgresStore(db)
	ctx := context.Background()
	acct, err := store.Get(ctx, testAccountID)
	require.NoError(t, err)
	assert.Equal(t, StateNone, acct.Subscription.Status)

	v, err := store.UpdateSubscription(ctx, testAccountID, acct.Version, Subscription{ID: "sub_1", Status: StateCreated})
	require.NoError(t, err)
	assert.Equal(t, acct.Version+1, v)

	// Stale version is rejected and leaves the row untouched.
	_, err = store.UpdateSubscription(ctx, testAccountID, acct.Version, Subscription{ID: "sub_2", Status: StateActive})
	assert.ErrorIs(t, err, ErrVersionConflict)

	acct, err = store.Get(ctx, testAccountID)
	require.NoError(t, err)
	assert.Equal(t, Subscription{ID: "sub_1", Status: StateCreated}, acct.Subscription)
}
