package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds the global application configuration
var AppConfig *Config

// Config holds the application configuration
type Config struct {
	DatabaseURL     string
	StripeSecretKey string
	// Shared secret the gateway signs payment confirmations with
	PaymentSignatureSecret string
	// Recurring plan every new subscription is created against
	PlanID string
	// Raw GATEWAY_TIMEOUT value; parsed into GatewayTimeout
	GatewayTimeoutRaw string
	GatewayTimeout    time.Duration
	// Optional: base URL for running remote HTTP integration tests (e.g., https://api.example.com)
	IntegrationBaseURL string
	HTTPPort           string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{}

	// Try to load .env file from current directory and parent directories
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	vars := []struct {
		name     string
		envVar   string
		display  string
		required bool
	}{
		{"DatabaseURL", "DATABASE_URL", "Database URL", true},
		{"StripeSecretKey", "STRIPE_SECRET_KEY", "Stripe Secret Key", true},
		{"PaymentSignatureSecret", "PAYMENT_SIGNATURE_SECRET", "Payment Signature Secret", true},
		{"PlanID", "BILLING_PLAN_ID", "Billing Plan ID", true},
		{"GatewayTimeoutRaw", "GATEWAY_TIMEOUT", "Gateway Timeout", false},
		{"IntegrationBaseURL", "INTEGRATION_BASE_URL", "Integration Base URL", false},
		{"HTTPPort", "PORT", "HTTP Port", false},
	}

	for _, v := range vars {
		value := os.Getenv(v.envVar)
		if v.required && value == "" {
			return nil, fmt.Errorf("missing required environment variable: %s", v.display)
		}
		configField := reflect.ValueOf(config).Elem().FieldByName(v.name)
		configField.SetString(value)
	}

	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDefaults() error {
	if c.HTTPPort == "" {
		c.HTTPPort = "8080"
	}
	c.GatewayTimeout = DefaultGatewayTimeout
	if c.GatewayTimeoutRaw != "" {
		d, err := time.ParseDuration(c.GatewayTimeoutRaw)
		if err != nil {
			return fmt.Errorf("invalid GATEWAY_TIMEOUT %q: %v", c.GatewayTimeoutRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid GATEWAY_TIMEOUT %q: must be positive", c.GatewayTimeoutRaw)
		}
		c.GatewayTimeout = d
	}
	return nil
}

// loadDotEnv loads the nearest .env walking up from the working directory.
// Variables already present in the environment win.
func loadDotEnv() error {
	currentDir, _ := os.Getwd()
	for currentDir != "/" && currentDir != "." {
		envPath := filepath.Join(currentDir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return fmt.Errorf("failed to load .env file: %v", err)
			}
			return nil
		}
		currentDir = filepath.Dir(currentDir)
	}
	return nil
}
