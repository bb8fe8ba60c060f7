package bootstrap

import (
	"fmt"
	"sync"

	"github.com/tbeaudouin05/billing-lifecycle/api/config"
	"github.com/tbeaudouin05/billing-lifecycle/api/database"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/account"
	billingapp "github.com/tbeaudouin05/billing-lifecycle/api/services/billing/app"
	stripegw "github.com/tbeaudouin05/billing-lifecycle/api/services/billing/gateway/stripe"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/ledger"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/settlement"
)

var billingService billingapp.Service
var initOnce sync.Once
var initErr error

// Init initializes config, database, and the gateway client, and wires the billing service.
func Init() error {
	// If a service has already been injected (e.g., tests), do not override or init heavy deps.
	if billingService != nil {
		return nil
	}
	var err error
	if config.AppConfig == nil {
		config.AppConfig, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := database.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	db := database.GetDB()

	cfg := config.AppConfig
	billingService = billingapp.NewService(
		stripegw.New(cfg.StripeSecretKey),
		account.NewPostgresStore(db),
		ledger.NewPostgresLedger(db),
		settlement.NewPostgresSettler(db),
		billingapp.Settings{
			PlanID:          cfg.PlanID,
			SignatureSecret: cfg.PaymentSignatureSecret,
			GatewayTimeout:  cfg.GatewayTimeout,
		},
	)
	return nil
}

func GetBillingService() billingapp.Service { return billingService }

// SetBillingService allows tests to inject a stub implementation.
func SetBillingService(s billingapp.Service) { billingService = s }

// Ensure runs Init() once per process and returns any initialization error.
func Ensure() error {
	initOnce.Do(func() {
		initErr = Init()
	})
	return initErr
}
