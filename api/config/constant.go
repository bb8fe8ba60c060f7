package config

import (
	"log"
	"strings"
	"time"
)

const (
	// ProdDbId is the identifier for the production database
	ProdDbId = "old-cloud"

	// RefundWindow is how long after a verified payment a cancellation is refunded in full.
	RefundWindow = 14 * 24 * time.Hour

	// TotalBillingCycles is the number of monthly charges a subscription runs for.
	TotalBillingCycles = 12

	// CustomerNotify asks the gateway to handle customer notifications itself.
	CustomerNotify = true

	// DefaultGatewayTimeout bounds every gateway call when GATEWAY_TIMEOUT is unset.
	DefaultGatewayTimeout = 10 * time.Second

	// DefaultListCount and MaxListCount bound payment listings.
	DefaultListCount = 10
	MaxListCount     = 100
)

// CheckNotProdDB aborts immediately if the configured database URL contains ProdDbId.
// This should be called at the start of any test that interacts with the database.
func CheckNotProdDB() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DatabaseURL is not configured")
	}
	if strings.Contains(cfg.DatabaseURL, ProdDbId) {
		log.Fatalf("Tests aborted: DatabaseURL contains production identifier %s", ProdDbId)
	}
}
