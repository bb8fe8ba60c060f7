package settlement

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	config "github.com/tbeaudouin05/billing-lifecycle/api/config"
	database "github.com/tbeaudouin05/billing-lifecycle/api/database"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/ledger"
)

const (
	settleAccountID = "account-settlement-test"
	settleSubID     = "sub_settlement_test"
)

func setupSettlementDB(t *testing.T) *sql.DB {
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
	cleanup := func() {
		_, _ = db.Exec("DELETE FROM payment WHERE gateway_subscription_id = $1", settleSubID)
		_, _ = db.Exec("DELETE FROM user_account WHERE id = $1", settleAccountID)
	}
	cleanup()
	t.Cleanup(cleanup)
	return db
}

func seed(t *testing.T, db *sql.DB, subscriptionID string) ledger.PaymentRecord {
	t.Helper()
	_, err := db.Exec(`INSERT INTO user_account (id, role, subscription_id, subscription_status) VALUES ($1, 'USER', $2, 'canceled')`,
		settleAccountID, subscriptionID)
	require.NoError(t, err)
	rec, _, err := ledger.NewPostgresLedger(db).Create(context.Background(), ledger.PaymentRecord{
		GatewayPaymentID: "pay_settlement_1", GatewaySubscriptionID: settleSubID, Signature: "sig", CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	return rec
}

func TestPostgresSettler_DeletesRecordAndClearsAccount(t *testing.T) {
	db := setupSettlementDB(t)
	rec := seed(t, db, settleSubID)

	cleared, err := NewPostgresSettler(db).Settle(context.Background(), settleAccountID, rec)
	require.NoError(t, err)
	assert.True(t, cleared)

	var subID, status string
	require.NoError(t, db.QueryRow(`SELECT subscription_id, subscription_status FROM user_account WHERE id = $1`, settleAccountID).Scan(&subID, &status))
	assert.Empty(t, subID)
	assert.Empty(t, status)
	_, err = ledger.NewPostgresLedger(db).FindBySubscriptionID(context.Background(), settleSubID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestPostgresSettler_LeavesReplacedSubscription(t *testing.T) {
	db := setupSettlementDB(t)
	rec := seed(t, db, "sub_newer")

	cleared, err := NewPostgresSettler(db).Settle(context.Background(), settleAccountID, rec)
	require.NoError(t, err)
	assert.False(t, cleared)

	var subID string
	require.NoError(t, db.QueryRow(`SELECT subscription_id FROM user_account WHERE id = $1`, settleAccountID).Scan(&subID))
	assert.Equal(t, "sub_newer", subID)
}
